package apiclient

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/formmatic/formmatic/internal/persist"
)

// Drafts returns a persist.Persister that keeps values in the caller's
// server-side draft store.
func (c *Client) Drafts() persist.Persister {
	return &drafts{c: c}
}

type drafts struct {
	c *Client
}

func (d *drafts) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := d.c.do(ctx, http.MethodGet, "/api/draft/"+url.PathEscape(key), nil, nil)
	if IsStatus(err, http.StatusNotFound) {
		return nil, persist.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (d *drafts) Set(ctx context.Context, key string, value []byte) error {
	resp, err := d.c.do(ctx, http.MethodPut, "/api/draft/"+url.PathEscape(key), nil, value)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (d *drafts) Delete(ctx context.Context, keys ...string) error {
	resp, err := d.c.do(ctx, http.MethodDelete, "/api/draft", url.Values{"key": keys}, nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
