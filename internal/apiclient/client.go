// Package apiclient talks to a formmatic-server over HTTP.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/formmatic/formmatic/internal/models"
)

// ErrEmptyPDF is returned when the fill endpoint answers 200 with no body.
var ErrEmptyPDF = errors.New("apiclient: empty pdf response")

// FailedHeader lists the titles of forms that could not be merged into a
// printed packet.
const FailedHeader = "X-Formmatic-Failed"

// StatusError is a non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("apiclient: status %d", e.Code)
	}
	return fmt.Sprintf("apiclient: status %d: %s", e.Code, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Config configures a Client.
type Config struct {
	BaseURL string
	// Token is sent as a bearer token when set.
	Token   string
	Timeout time.Duration
	// HTTPClient overrides the default client, e.g. in tests.
	HTTPClient *http.Client
}

// Client is safe for concurrent use.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{http: hc, baseURL: strings.TrimRight(cfg.BaseURL, "/"), token: cfg.Token}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		switch b := body.(type) {
		case []byte:
			bodyReader = bytes.NewReader(b)
		default:
			jsonBody, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("apiclient: marshal request body: %w", err)
			}
			bodyReader = bytes.NewReader(jsonBody)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("apiclient: create request: %w", err)
	}
	if body != nil {
		if _, raw := body.([]byte); raw {
			req.Header.Set("Content-Type", "application/octet-stream")
		} else {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var er models.ErrorResponse
	if json.Unmarshal(body, &er) == nil && er.Error != "" {
		return &StatusError{Code: resp.StatusCode, Message: er.Error}
	}
	return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, target any) error {
	resp, err := c.do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if target == nil {
		_, err := io.Copy(io.Discard, resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("apiclient: decode %s response: %w", path, err)
	}
	return nil
}

// Save creates a transaction record and returns its id.
func (c *Client) Save(ctx context.Context, req models.SaveRequest) (string, error) {
	return c.save(ctx, "/api/save", req)
}

// Update overwrites the record named by req.TransactionID.
func (c *Client) Update(ctx context.Context, req models.SaveRequest) (string, error) {
	return c.save(ctx, "/api/update", req)
}

func (c *Client) save(ctx context.Context, path string, req models.SaveRequest) (string, error) {
	var out models.SaveResponse
	if err := c.doJSON(ctx, http.MethodPost, path, nil, req, &out); err != nil {
		return "", err
	}
	if out.TransactionID == "" {
		return "", fmt.Errorf("apiclient: %s returned no transactionId", path)
	}
	return out.TransactionID, nil
}

// FillPDF fills one form for a saved transaction. A JSON body on a 200
// response is treated as the server's error.
func (c *Client) FillPDF(ctx context.Context, req models.FillRequest) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/fillPdf", nil, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: read pdf: %w", err)
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt == "application/json" {
		var er models.ErrorResponse
		_ = json.Unmarshal(data, &er)
		return nil, &StatusError{Code: resp.StatusCode, Message: er.Error}
	}
	if len(data) == 0 {
		return nil, ErrEmptyPDF
	}
	return data, nil
}

// PrintResult is a packet printed by the server.
type PrintResult struct {
	PDF    []byte
	Failed []string
}

// Print asks the server to fill and merge every form of a saved
// transaction.
func (c *Client) Print(ctx context.Context, req models.PrintRequest) (*PrintResult, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/print", nil, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: read packet: %w", err)
	}
	res := &PrintResult{PDF: data}
	if h := resp.Header.Get(FailedHeader); h != "" {
		for _, title := range strings.Split(h, ",") {
			if t, err := url.QueryUnescape(strings.TrimSpace(title)); err == nil && t != "" {
				res.Failed = append(res.Failed, t)
			}
		}
	}
	return res, nil
}

// Recent lists the caller's latest transactions.
func (c *Client) Recent(ctx context.Context) ([]models.Transaction, error) {
	var out []models.Transaction
	err := c.doJSON(ctx, http.MethodGet, "/api/getRecent", nil, nil, &out)
	return out, err
}

// Search finds transactions by client name or hull id.
func (c *Client) Search(ctx context.Context, searchFor string) ([]models.Transaction, error) {
	var out []models.Transaction
	err := c.doJSON(ctx, http.MethodGet, "/api/get", url.Values{"searchFor": {searchFor}}, nil, &out)
	return out, err
}

// ByDate lists transactions saved on date (YYYY-MM-DD).
func (c *Client) ByDate(ctx context.Context, date string) ([]models.Transaction, error) {
	var out []models.Transaction
	err := c.doJSON(ctx, http.MethodGet, "/api/getByDate", url.Values{"date": {date}}, nil, &out)
	return out, err
}

// ByTransaction lists transactions of one type.
func (c *Client) ByTransaction(ctx context.Context, transactionType string) ([]models.Transaction, error) {
	var out []models.Transaction
	err := c.doJSON(ctx, http.MethodGet, "/api/getByTransaction", url.Values{"transactionType": {transactionType}}, nil, &out)
	return out, err
}

// Delete removes a transaction.
func (c *Client) Delete(ctx context.Context, clientID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/delete", url.Values{"clientId": {clientID}}, nil, nil)
}

// Put replaces the form data of a transaction.
func (c *Client) Put(ctx context.Context, clientID string, tx models.Transaction) (*models.Transaction, error) {
	var out models.Transaction
	if err := c.doJSON(ctx, http.MethodPut, "/api/put", url.Values{"clientId": {clientID}}, tx, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", nil, body, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// Register creates an agent account and returns its bearer token.
func (c *Client) Register(ctx context.Context, email, password, name string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password, "name": name}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/register", nil, body, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}
