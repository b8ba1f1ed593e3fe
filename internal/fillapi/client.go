// Package fillapi talks to the external document-generation service that
// fills a DMV PDF template from form data.
package fillapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

// ErrEmptyDocument is returned when the service answers 2xx with no bytes.
var ErrEmptyDocument = errors.New("fillapi: empty document")

// maxDocument bounds a single generated PDF.
const maxDocument = 32 << 20

// Request is the generation payload.
type Request struct {
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
}

// Error is a failure reported by the service.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("fillapi: status %d: %s", e.Status, e.Message)
}

type Config struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	url    string
	apiKey string
	http   *http.Client
}

func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{url: cfg.URL, apiKey: cfg.APIKey, http: hc}
}

// Generate fills template with data and returns the PDF bytes.
func (c *Client) Generate(ctx context.Context, template string, data map[string]any) ([]byte, error) {
	body, err := json.Marshal(Request{Template: template, Data: data})
	if err != nil {
		return nil, fmt.Errorf("fillapi: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("fillapi: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fillapi: %s: %w", template, err)
	}
	defer resp.Body.Close()

	pdf, err := io.ReadAll(io.LimitReader(resp.Body, maxDocument+1))
	if err != nil {
		return nil, fmt.Errorf("fillapi: read response: %w", err)
	}
	if len(pdf) > maxDocument {
		return nil, fmt.Errorf("fillapi: %s: document exceeds %d bytes", template, maxDocument)
	}
	mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if resp.StatusCode >= 300 || mt == "application/json" {
		return nil, &Error{Status: resp.StatusCode, Message: errorMessage(pdf)}
	}
	if len(pdf) == 0 {
		return nil, ErrEmptyDocument
	}
	return pdf, nil
}

func errorMessage(body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
