package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formmatic/formmatic/internal/db"
	"github.com/formmatic/formmatic/internal/formdoc/formdoctest"
	"github.com/formmatic/formmatic/internal/models"
	"github.com/formmatic/formmatic/pkg/oxidb"
	"github.com/formmatic/formmatic/pkg/oxidb/oxidbtest"
)

func newPool(t *testing.T) (*oxidbtest.Server, *db.Pool) {
	t.Helper()
	srv := oxidbtest.New(t)
	pool, err := db.NewPool(context.Background(), srv.Host, srv.Port, 1, nil)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return srv, pool
}

func TestTransactionRepoRoundTrip(t *testing.T) {
	srv, pool := newPool(t)
	repo := NewTransactionRepo(pool)
	ctx := context.Background()
	require.NoError(t, repo.EnsureIndexes(ctx))
	require.NoError(t, repo.EnsureTextIndex(ctx))

	tx := &models.Transaction{
		UserID:          "u1",
		TransactionType: "Simple Transfer",
		FormData:        formdoctest.SimpleTransfer(),
		Date:            "2024-03-14",
		UpdatedAt:       "2024-03-14T10:00:00Z",
	}
	tx.FormData.SetID("stale")
	tx.Describe()
	id, err := repo.Create(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, "1", id)

	stored := srv.Docs(TransactionsCollection)[0]
	assert.NotContains(t, stored["formData"], "_id")

	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1", got.ID)
	assert.Equal(t, "1", got.FormData.ID())
	assert.Equal(t, "Ana Diaz", got.ClientName)
	assert.Equal(t, "Fresno", got.FormData.String("address.city"))

	got.ClientName = "Ana D. Diaz"
	got.UpdatedAt = "2024-03-15T10:00:00Z"
	require.NoError(t, repo.Update(ctx, id, got))
	found, err := repo.TextSearch(ctx, "ana d.", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)

	require.NoError(t, repo.Delete(ctx, id))
	got, err = repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTransactionRepoFindSortsByUpdate(t *testing.T) {
	_, pool := newPool(t)
	repo := NewTransactionRepo(pool)
	ctx := context.Background()
	for _, ts := range []string{"2024-01-01T00:00:00Z", "2024-03-01T00:00:00Z", "2024-02-01T00:00:00Z"} {
		_, err := repo.Create(ctx, &models.Transaction{UserID: "u1", TransactionType: "Duplicate Stickers", UpdatedAt: ts})
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, &models.Transaction{UserID: "u2", UpdatedAt: "2024-04-01T00:00:00Z"})
	require.NoError(t, err)

	list, err := repo.Find(ctx, map[string]any{"userId": "u1"}, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2024-03-01T00:00:00Z", list[0].UpdatedAt)
	assert.Equal(t, "2024-02-01T00:00:00Z", list[1].UpdatedAt)

	n, err := repo.Count(ctx, map[string]any{"userId": "u1"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestDocumentRepoCache(t *testing.T) {
	srv, pool := newPool(t)
	repo := NewDocumentRepo(pool)
	ctx := context.Background()
	require.NoError(t, repo.EnsureIndexes(ctx))
	require.NoError(t, repo.EnsureBucket(ctx))

	require.NoError(t, repo.PutBlob(ctx, "k1", []byte("%PDF-1.7"), map[string]string{"formType": "Reg138"}))
	_, err := repo.Create(ctx, &models.FilledPDF{TransactionID: "7", FormType: "Reg138", BlobKey: "k1", Size: 8})
	require.NoError(t, err)

	pdf, err := repo.FindForm(ctx, "7", "Reg138")
	require.NoError(t, err)
	require.NotNil(t, pdf)
	data, err := repo.GetBlob(ctx, pdf.BlobKey)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))

	missing, err := repo.FindForm(ctx, "7", "Reg227")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := repo.FindByTransaction(ctx, "7")
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NoError(t, repo.DeleteBlob(ctx, "k1"))
	require.NoError(t, repo.Delete(ctx, all[0].ID))
	assert.Empty(t, srv.Objects(BlobBucket))
	assert.Empty(t, srv.Docs(DocumentsCollection))
}

func TestUserRepoUniqueEmail(t *testing.T) {
	_, pool := newPool(t)
	repo := NewUserRepo(pool)
	ctx := context.Background()
	require.NoError(t, repo.EnsureIndexes(ctx))

	id, err := repo.Create(ctx, &models.User{Email: "a@b.c", Name: "A", Role: models.RoleAgent})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.User{Email: "a@b.c", Name: "B"})
	assert.True(t, oxidb.IsConflict(err))

	u, err := repo.FindByEmail(ctx, "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	u, err = repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "A", u.Name)
	u, err = repo.FindByEmail(ctx, "nobody@b.c")
	require.NoError(t, err)
	assert.Nil(t, u)
}
