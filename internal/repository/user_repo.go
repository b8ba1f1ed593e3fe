package repository

import (
	"context"

	"github.com/formmatic/formmatic/internal/db"
	"github.com/formmatic/formmatic/internal/models"
)

const UsersCollection = "_fm_users"

type UserRepo struct {
	pool *db.Pool
}

func NewUserRepo(pool *db.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) EnsureIndexes(ctx context.Context) error {
	return r.pool.Get().CreateUniqueIndex(ctx, UsersCollection, "email")
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	doc, err := r.pool.Get().FindOne(ctx, UsersCollection, map[string]any{"email": email})
	if err != nil || doc == nil {
		return nil, err
	}
	var u models.User
	if err := fromDoc(doc, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	doc, err := r.pool.Get().FindOne(ctx, UsersCollection, byID(id))
	if err != nil || doc == nil {
		return nil, err
	}
	var u models.User
	if err := fromDoc(doc, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) (string, error) {
	doc, err := toDoc(user)
	if err != nil {
		return "", err
	}
	result, err := r.pool.Get().Insert(ctx, UsersCollection, doc)
	if err != nil {
		return "", err
	}
	return extractID(result), nil
}
