package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/formmatic/formmatic/internal/apiclient"
	"github.com/formmatic/formmatic/internal/db"
	"github.com/formmatic/formmatic/internal/formcodes"
	"github.com/formmatic/formmatic/internal/formdoc/formdoctest"
	"github.com/formmatic/formmatic/internal/formstate"
	"github.com/formmatic/formmatic/internal/handler"
	mw "github.com/formmatic/formmatic/internal/middleware"
	"github.com/formmatic/formmatic/internal/models"
	"github.com/formmatic/formmatic/internal/orchestrator"
	"github.com/formmatic/formmatic/internal/pdfmerge"
	"github.com/formmatic/formmatic/internal/persist"
	"github.com/formmatic/formmatic/internal/repository"
	"github.com/formmatic/formmatic/internal/scenario"
	"github.com/formmatic/formmatic/internal/sections"
	"github.com/formmatic/formmatic/internal/service"
	"github.com/formmatic/formmatic/pkg/oxidb/oxidbtest"
)

const secret = "router-test-secret"

type generator struct {
	mu   sync.Mutex
	fail map[string]bool
}

func (g *generator) Generate(_ context.Context, template string, data map[string]any) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail[template] {
		return nil, errors.New("template offline")
	}
	return []byte("%PDF-" + template), nil
}

// joinEngine accepts anything starting with %PDF- except "%PDF-Reg256",
// which it refuses to append.
type joinEngine struct{}

func (joinEngine) PageCount(data []byte) (int, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return 0, errors.New("not a pdf")
	}
	return 1, nil
}

func (joinEngine) Append(acc, next []byte) ([]byte, error) {
	if string(next) == "%PDF-Reg256" {
		return nil, errors.New("broken xref")
	}
	return append(append(append([]byte{}, acc...), '|'), next...), nil
}

type server struct {
	url string
	gen *generator
}

func newServer(t *testing.T) *server {
	t.Helper()
	return newLimitedServer(t, mw.NewRateLimiter(1000, 1000, zap.NewNop()))
}

func newLimitedServer(t *testing.T, limiter *mw.RateLimiter) *server {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()

	odb := oxidbtest.New(t)
	pool, err := db.NewPool(ctx, odb.Host, odb.Port, 2, log)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	users := repository.NewUserRepo(pool)
	require.NoError(t, users.EnsureIndexes(ctx))
	txRepo := repository.NewTransactionRepo(pool)
	require.NoError(t, txRepo.EnsureTextIndex(ctx))
	docRepo := repository.NewDocumentRepo(pool)
	require.NoError(t, docRepo.EnsureBucket(ctx))

	gen := &generator{}
	drafts := persist.NewMemory()
	fillSvc := service.NewFillService(txRepo, docRepo, gen, log)
	txSvc := service.NewTransactionService(txRepo, fillSvc, log)
	printSvc := service.NewPrintService(txRepo, fillSvc, drafts, orchestrator.PrinterOptions{
		Merger:      pdfmerge.New(joinEngine{}, log),
		Concurrency: 2,
	}, log)

	r := New(Handlers{
		Auth:        handler.NewAuthHandler(service.NewAuthService(users, secret), log),
		Transaction: handler.NewTransactionHandler(txSvc, log),
		Fill:        handler.NewFillHandler(fillSvc, printSvc, log),
		Draft:       handler.NewDraftHandler(service.NewDraftService(drafts), log),
		Catalog:     handler.NewCatalogHandler(scenario.Default(), formcodes.Default()),
	}, Options{
		JWTSecret:   secret,
		CORSOrigins: []string{"*"},
		RateLimiter: limiter,
		Logger:      log,
	})
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return &server{url: ts.URL, gen: gen}
}

func (s *server) register(t *testing.T, email string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": "password1", "name": "Agent"})
	resp, err := http.Post(s.url+"/api/auth/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out service.AuthResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.Token
}

func (s *server) client(t *testing.T, email string) *apiclient.Client {
	return apiclient.New(apiclient.Config{BaseURL: s.url, Token: s.register(t, email)})
}

func TestLoginIsRateLimitedPerClient(t *testing.T) {
	s := newLimitedServer(t, mw.NewRateLimiter(0.001, 2, zap.NewNop()))
	c := s.client(t, "agent@dmv.test")
	ctx := context.Background()

	login := func() *http.Response {
		body, _ := json.Marshal(map[string]string{"email": "agent@dmv.test", "password": "wrong"})
		resp, err := http.Post(s.url+"/api/auth/login", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}
	assert.Equal(t, http.StatusUnauthorized, login().StatusCode)
	resp := login()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1000", resp.Header.Get("Retry-After"))

	// Authenticated calls are counted per user, not per address.
	_, err := c.Recent(ctx)
	require.NoError(t, err)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newServer(t)
	anon := apiclient.New(apiclient.Config{BaseURL: s.url})

	_, err := anon.Recent(context.Background())
	assert.True(t, apiclient.IsStatus(err, http.StatusUnauthorized), "got %v", err)

	resp, err := http.Get(s.url + "/api/scenarios")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(s.url + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTransactionEndpoints(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	c := s.client(t, "agent@dmv.test")
	stranger := s.client(t, "other@dmv.test")

	id, err := c.Save(ctx, models.SaveRequest{TransactionType: "Simple Transfer", FormData: formdoctest.SimpleTransfer()})
	require.NoError(t, err)

	doc := formdoctest.SimpleTransfer()
	doc.SetID(id)
	got, err := c.Update(ctx, models.SaveRequest{TransactionType: "Simple Transfer", FormData: doc})
	require.NoError(t, err)
	assert.Equal(t, id, got)

	recent, err := c.Recent(ctx)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Ana Diaz", recent[0].ClientName)

	found, err := c.Search(ctx, "1hgcm82633a004352")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	none, err := stranger.ByTransaction(ctx, "Simple Transfer")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = c.ByTransaction(ctx, "Boat Swap")
	assert.True(t, apiclient.IsStatus(err, http.StatusBadRequest), "got %v", err)

	_, err = stranger.Update(ctx, models.SaveRequest{TransactionID: id, FormData: doc})
	assert.True(t, apiclient.IsStatus(err, http.StatusForbidden), "got %v", err)

	put, err := c.Put(ctx, id, models.Transaction{TransactionType: "Name Change", FormData: formdoctest.SimpleTransfer()})
	require.NoError(t, err)
	assert.Equal(t, "Name Change", put.TransactionType)

	require.NoError(t, c.Delete(ctx, id))
	err = c.Delete(ctx, id)
	assert.True(t, apiclient.IsStatus(err, http.StatusNotFound), "got %v", err)
}

func TestFillEndpoint(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	c := s.client(t, "agent@dmv.test")
	id, err := c.Save(ctx, models.SaveRequest{TransactionType: "Simple Transfer", FormData: formdoctest.SimpleTransfer()})
	require.NoError(t, err)

	pdf, err := c.FillPDF(ctx, models.FillRequest{TransactionID: id, FormType: "Reg138", TransactionType: "Simple Transfer"})
	require.NoError(t, err)
	assert.Equal(t, "%PDF-Reg138", string(pdf))

	_, err = c.FillPDF(ctx, models.FillRequest{TransactionID: id, FormType: "Reg999"})
	assert.True(t, apiclient.IsStatus(err, http.StatusBadRequest), "got %v", err)

	s.gen.mu.Lock()
	s.gen.fail = map[string]bool{"Reg227": true}
	s.gen.mu.Unlock()
	_, err = c.FillPDF(ctx, models.FillRequest{TransactionID: id, FormType: "Reg227"})
	var se *apiclient.StatusError
	require.ErrorAs(t, err, &se)
	assert.GreaterOrEqual(t, se.Code, http.StatusInternalServerError)
}

func TestDraftsOverHTTP(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	drafts := s.client(t, "agent@dmv.test").Drafts()

	_, err := drafts.Get(ctx, persist.KeyFormData)
	assert.ErrorIs(t, err, persist.ErrNotFound)

	store := formstate.New(drafts, nil)
	require.NoError(t, store.Load(formdoctest.SimpleTransfer()))
	require.NoError(t, store.Persist(ctx))

	restored := formstate.New(drafts, nil)
	require.NoError(t, restored.Hydrate(ctx))
	assert.Equal(t, "Diaz", restored.FormData().String("owners.0.lastName"))

	require.NoError(t, restored.ClearAllFormData(ctx))
	_, err = drafts.Get(ctx, persist.KeyFormData)
	assert.ErrorIs(t, err, persist.ErrNotFound)

	err = drafts.Set(ctx, "k", []byte("{not json"))
	assert.True(t, apiclient.IsStatus(err, http.StatusBadRequest), "got %v", err)
}

// TestClientAndServerPrintAgree drives the orchestrator through the API
// client and checks the server-side print of the same transaction, with
// the scenario selection shared through the draft store.
func TestClientAndServerPrintAgree(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	c := s.client(t, "agent@dmv.test")

	sel := scenario.NewSelection(scenario.Default())
	_, err := sel.Open("Simple Transfer")
	require.NoError(t, err)
	require.NoError(t, sel.ToggleScenario("Statement of Facts", true))
	require.NoError(t, sel.Persist(ctx, c.Drafts()))

	store := formstate.New(c.Drafts(), nil)
	require.NoError(t, store.Load(formdoctest.SimpleTransfer()))

	var opened []string
	o := orchestrator.New(store, sel, c, orchestrator.Options{
		Confirmer: orchestrator.ConfirmFunc(func(context.Context, []sections.FieldError) (bool, error) {
			return true, nil
		}),
		Printer: orchestrator.NewPrinter(c, orchestrator.PrinterOptions{Merger: pdfmerge.New(joinEngine{}, nil)}),
		Opener: openFunc(func(title string) {
			opened = append(opened, title)
		}),
	})
	local, err := o.HandlePrint(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, store.ID())
	assert.Contains(t, local.Included, "Reg138")
	require.Len(t, local.Failed, 1)
	assert.Equal(t, "Reg256", local.Failed[0].Title)
	assert.Len(t, opened, 2)

	remote, err := c.Print(ctx, models.PrintRequest{TransactionID: store.ID()})
	require.NoError(t, err)
	assert.Equal(t, string(local.Merged), string(remote.PDF))
	assert.Equal(t, []string{"Reg256"}, remote.Failed)
}

type openFunc func(title string)

func (f openFunc) Open(_ context.Context, title string, _ []byte) error {
	f(title)
	return nil
}
