package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/formmatic/formmatic/internal/persist"
)

// maxDraft bounds one stored draft value.
const maxDraft = 1 << 20

var draftKey = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

func draftNamespace(userID string) string {
	return "draft:" + userID
}

// DraftService keeps each user's form store and scenario selection in the
// shared persister under a per-user namespace.
type DraftService struct {
	p persist.Persister
}

func NewDraftService(p persist.Persister) *DraftService {
	return &DraftService{p: p}
}

func (s *DraftService) scoped(c Caller) (persist.Persister, error) {
	if c.UserID == "" {
		return nil, ErrForbidden
	}
	return persist.Namespaced(s.p, draftNamespace(c.UserID)), nil
}

func checkKey(key string) error {
	if !draftKey.MatchString(key) {
		return fmt.Errorf("%w: bad draft key %q", ErrInvalid, key)
	}
	return nil
}

func (s *DraftService) Get(ctx context.Context, c Caller, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	p, err := s.scoped(c)
	if err != nil {
		return nil, err
	}
	data, err := p.Get(ctx, key)
	if errors.Is(err, persist.ErrNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

// Set stores a JSON value.
func (s *DraftService) Set(ctx context.Context, c Caller, key string, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if len(value) > maxDraft {
		return fmt.Errorf("%w: draft exceeds %d bytes", ErrInvalid, maxDraft)
	}
	if !json.Valid(value) {
		return fmt.Errorf("%w: draft is not JSON", ErrInvalid)
	}
	p, err := s.scoped(c)
	if err != nil {
		return err
	}
	return p.Set(ctx, key, value)
}

func (s *DraftService) Delete(ctx context.Context, c Caller, keys ...string) error {
	if len(keys) == 0 {
		return fmt.Errorf("%w: key is required", ErrInvalid)
	}
	for _, k := range keys {
		if err := checkKey(k); err != nil {
			return err
		}
	}
	p, err := s.scoped(c)
	if err != nil {
		return err
	}
	return p.Delete(ctx, keys...)
}
