package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formmatic/formmatic/internal/db"
	"github.com/formmatic/formmatic/internal/formdoc"
	"github.com/formmatic/formmatic/internal/formdoc/formdoctest"
	"github.com/formmatic/formmatic/internal/models"
	"github.com/formmatic/formmatic/internal/orchestrator"
	"github.com/formmatic/formmatic/internal/pdfmerge"
	"github.com/formmatic/formmatic/internal/persist"
	"github.com/formmatic/formmatic/internal/repository"
	"github.com/formmatic/formmatic/internal/scenario"
	"github.com/formmatic/formmatic/pkg/oxidb/oxidbtest"
)

var (
	agent = Caller{UserID: "u1"}
	other = Caller{UserID: "u2"}
	admin = Caller{UserID: "root", Admin: true}
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (g *fakeGenerator) Generate(_ context.Context, template string, data map[string]any) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, template)
	if err := g.fail[template]; err != nil {
		return nil, err
	}
	return []byte("%PDF-" + template + "-" + data["transactionType"].(string)), nil
}

func (g *fakeGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type joinEngine struct{}

func (joinEngine) PageCount(data []byte) (int, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return 0, errors.New("not a pdf")
	}
	return 1, nil
}

func (joinEngine) Append(acc, next []byte) ([]byte, error) {
	return append(append(append([]byte{}, acc...), '|'), next...), nil
}

type env struct {
	srv    *oxidbtest.Server
	txRepo *repository.TransactionRepo
	gen    *fakeGenerator
	fill   *FillService
	txs    *TransactionService
	drafts *persist.Memory
	print  *PrintService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	srv := oxidbtest.New(t)
	pool, err := db.NewPool(context.Background(), srv.Host, srv.Port, 2, nil)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	ctx := context.Background()
	txRepo := repository.NewTransactionRepo(pool)
	require.NoError(t, txRepo.EnsureTextIndex(ctx))
	docRepo := repository.NewDocumentRepo(pool)
	require.NoError(t, docRepo.EnsureBucket(ctx))

	e := &env{srv: srv, txRepo: txRepo, gen: &fakeGenerator{}, drafts: persist.NewMemory()}
	e.fill = NewFillService(txRepo, docRepo, e.gen, nil)
	e.txs = NewTransactionService(txRepo, e.fill, nil)
	e.print = NewPrintService(txRepo, e.fill, e.drafts, orchestrator.PrinterOptions{
		Merger:      pdfmerge.New(joinEngine{}, nil),
		Concurrency: 2,
	}, nil)
	return e
}

func (e *env) save(t *testing.T, c Caller, tt string, doc formdoc.Document) string {
	t.Helper()
	id, err := e.txs.Save(context.Background(), c, models.SaveRequest{TransactionType: tt, FormData: doc})
	require.NoError(t, err)
	return id
}

func TestSaveValidatesAndOwns(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.txs.now = func() time.Time { return time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC) }

	doc := formdoctest.SimpleTransfer()
	doc.SetID("ignored")
	doc["notes"] = "kept as sent"
	id := e.save(t, agent, "Simple Transfer", doc)

	tx, err := e.txs.Get(ctx, agent, id)
	require.NoError(t, err)
	assert.Equal(t, "u1", tx.UserID)
	assert.Equal(t, "2024-03-14", tx.Date)
	assert.Equal(t, "Ana Diaz", tx.ClientName)
	assert.Equal(t, id, tx.FormData.ID())
	assert.Equal(t, "kept as sent", tx.FormData["notes"])

	_, err = e.txs.Get(ctx, other, id)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = e.txs.Get(ctx, admin, id)
	assert.NoError(t, err)
	_, err = e.txs.Get(ctx, agent, "999")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.txs.Save(ctx, agent, models.SaveRequest{TransactionType: "Boat Swap"})
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorIs(t, err, scenario.ErrUnknownTransactionType)

	_, err = e.txs.Save(ctx, agent, models.SaveRequest{TransactionType: "Simple Transfer", FormData: formdoc.Document{"owners": "Ana"}})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = e.txs.Save(ctx, agent, models.SaveRequest{UserID: "u2", TransactionType: "Simple Transfer"})
	assert.ErrorIs(t, err, ErrForbidden)

	id2, err := e.txs.Save(ctx, admin, models.SaveRequest{UserID: "u2", TransactionType: "Simple Transfer"})
	require.NoError(t, err)
	tx, err = e.txs.Get(ctx, other, id2)
	require.NoError(t, err)
	assert.Equal(t, "u2", tx.UserID)
}

func TestUpdateAndPut(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.save(t, agent, "Simple Transfer", formdoctest.SimpleTransfer())

	doc := formdoctest.SimpleTransfer()
	doc["owners"] = []any{map[string]any{"firstName": "Luis", "lastName": "Mora", "purchaseValue": "100"}}
	got, err := e.txs.Update(ctx, agent, models.SaveRequest{TransactionID: id, FormData: doc})
	require.NoError(t, err)
	assert.Equal(t, id, got)

	tx, err := e.txs.Get(ctx, agent, id)
	require.NoError(t, err)
	assert.Equal(t, "Luis Mora", tx.ClientName)
	assert.Equal(t, "Simple Transfer", tx.TransactionType)

	_, err = e.txs.Update(ctx, other, models.SaveRequest{TransactionID: id, FormData: doc})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = e.txs.Update(ctx, agent, models.SaveRequest{FormData: doc})
	assert.ErrorIs(t, err, ErrNotFound)

	put, err := e.txs.Put(ctx, agent, id, models.Transaction{TransactionType: "Name Change", FormData: formdoctest.LienHolderRemoval()})
	require.NoError(t, err)
	assert.Equal(t, "Name Change", put.TransactionType)
	assert.Equal(t, id, put.FormData.ID())

	require.NoError(t, e.txs.Delete(ctx, agent, id))
	_, err = e.txs.Get(ctx, agent, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	day := 10
	e.txs.now = func() time.Time {
		day++
		return time.Date(2024, 3, day, 9, 0, 0, 0, time.UTC)
	}
	first := e.save(t, agent, "Simple Transfer", formdoctest.SimpleTransfer())
	second := e.save(t, agent, "Lien Holder Removal", formdoctest.LienHolderRemoval())
	e.save(t, other, "Simple Transfer", formdoctest.SimpleTransfer())

	recent, err := e.txs.Recent(ctx, agent)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, second, recent[0].ID)

	byDate, err := e.txs.ByDate(ctx, agent, "2024-03-11")
	require.NoError(t, err)
	require.Len(t, byDate, 1)
	assert.Equal(t, first, byDate[0].ID)
	_, err = e.txs.ByDate(ctx, agent, "03/11/2024")
	assert.ErrorIs(t, err, ErrInvalid)

	byType, err := e.txs.ByTransaction(ctx, agent, "Lien Holder Removal")
	require.NoError(t, err)
	require.Len(t, byType, 1)
	_, err = e.txs.ByTransaction(ctx, agent, "Nope")
	assert.ErrorIs(t, err, ErrInvalid)

	found, err := e.txs.Search(ctx, agent, "1hgcm82633a004352")
	require.NoError(t, err)
	assert.Len(t, found, 2, "hull match, each listed once")

	found, err = e.txs.Search(ctx, agent, "diaz")
	require.NoError(t, err)
	assert.Len(t, found, 2)
	for _, tx := range found {
		assert.Equal(t, "u1", tx.UserID)
	}

	_, err = e.txs.Search(ctx, agent, "  ")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestFillCachesUntilChanged(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.save(t, agent, "Simple Transfer", formdoctest.SimpleTransfer())
	req := models.FillRequest{TransactionID: id, FormType: "Reg138", TransactionType: "Simple Transfer"}

	pdf, err := e.fill.FillPDF(ctx, agent, req)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-Reg138-Simple Transfer", string(pdf))
	again, err := e.fill.FillPDF(ctx, agent, req)
	require.NoError(t, err)
	assert.Equal(t, pdf, again)
	assert.Equal(t, 1, e.gen.count())
	assert.Len(t, e.srv.Objects(repository.BlobBucket), 1)

	_, err = e.txs.Update(ctx, agent, models.SaveRequest{TransactionID: id, FormData: formdoctest.SimpleTransfer()})
	require.NoError(t, err)
	assert.Empty(t, e.srv.Objects(repository.BlobBucket))

	_, err = e.fill.FillPDF(ctx, agent, req)
	require.NoError(t, err)
	assert.Equal(t, 2, e.gen.count())

	_, err = e.fill.FillPDF(ctx, agent, models.FillRequest{TransactionID: id, FormType: "Reg999"})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = e.fill.FillPDF(ctx, other, req)
	assert.ErrorIs(t, err, ErrForbidden)

	e.gen.fail = map[string]error{"Reg227": errors.New("template offline")}
	_, err = e.fill.FillPDF(ctx, agent, models.FillRequest{TransactionID: id, FormType: "Reg227"})
	assert.ErrorContains(t, err, "template offline")
}

func TestPrintUsesDraftSelection(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.save(t, agent, "Simple Transfer", formdoctest.SimpleTransfer())

	res, err := e.print.Print(ctx, agent, models.PrintRequest{TransactionID: id})
	require.NoError(t, err)
	assert.Equal(t, []string{"DMVREG262", "Reg138"}, res.Included)

	sel := scenario.NewSelection(scenario.Default())
	_, err = sel.Open("Simple Transfer")
	require.NoError(t, err)
	require.NoError(t, sel.ToggleScenario("Statement of Facts", true))
	require.NoError(t, sel.Persist(ctx, persist.Namespaced(e.drafts, draftNamespace("u1"))))

	res, err = e.print.Print(ctx, agent, models.PrintRequest{TransactionID: id})
	require.NoError(t, err)
	assert.Equal(t, []string{"DMVREG262", "Reg138", "Reg256"}, res.Included)
	assert.Equal(t, "%PDF-DMVREG262-Simple Transfer|%PDF-Reg138-Simple Transfer|%PDF-Reg256-Simple Transfer", string(res.Merged))
}

func TestPrintMultipleAndErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.save(t, agent, "Multiple Transfer", formdoctest.SimpleTransfer())
	b := e.save(t, agent, "Multiple Transfer", formdoctest.SimpleTransfer())
	c := e.save(t, agent, "Simple Transfer", formdoctest.SimpleTransfer())

	res, err := e.print.Print(ctx, agent, models.PrintRequest{TransactionIDs: []string{a, b}})
	require.NoError(t, err)
	assert.Equal(t, []string{"DMVREG262 #1", "Reg138 #1", "DMVREG262 #2", "Reg138 #2"}, res.Included)

	_, err = e.print.Print(ctx, agent, models.PrintRequest{TransactionIDs: []string{a, c}})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = e.print.Print(ctx, agent, models.PrintRequest{})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = e.print.Print(ctx, other, models.PrintRequest{TransactionID: a})
	assert.ErrorIs(t, err, ErrForbidden)

	e.gen.fail = map[string]error{"DMVREG262": errors.New("down"), "Reg138": errors.New("down")}
	_, err = e.print.Print(ctx, agent, models.PrintRequest{TransactionID: c})
	assert.ErrorIs(t, err, orchestrator.ErrNoForms)
}

func TestDrafts(t *testing.T) {
	mem := persist.NewMemory()
	s := NewDraftService(mem)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, agent, persist.KeyFormData, []byte(`{"owners":[]}`)))
	got, err := s.Get(ctx, agent, persist.KeyFormData)
	require.NoError(t, err)
	assert.JSONEq(t, `{"owners":[]}`, string(got))

	_, err = s.Get(ctx, other, persist.KeyFormData)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Set(ctx, agent, "bad key!", []byte(`{}`)), ErrInvalid)
	assert.ErrorIs(t, s.Set(ctx, agent, "k", []byte(`{not json`)), ErrInvalid)
	assert.ErrorIs(t, s.Set(ctx, Caller{}, "k", []byte(`{}`)), ErrForbidden)
	assert.ErrorIs(t, s.Delete(ctx, agent), ErrInvalid)

	require.NoError(t, s.Delete(ctx, agent, persist.KeyFormData, persist.KeyMultipleTransfer))
	_, err = s.Get(ctx, agent, persist.KeyFormData)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, mem.Len())
}

func TestAuth(t *testing.T) {
	srv := oxidbtest.New(t)
	pool, err := db.NewPool(context.Background(), srv.Host, srv.Port, 1, nil)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	users := repository.NewUserRepo(pool)
	ctx := context.Background()
	require.NoError(t, users.EnsureIndexes(ctx))
	s := NewAuthService(users, "s3cret")

	res, err := s.Register(ctx, " Agent@DMV.test ", "password1", "Agent")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "agent@dmv.test", res.User.Email)
	assert.Equal(t, models.RoleAgent, res.User.Role)

	_, err = s.Register(ctx, "agent@dmv.test", "password1", "Again")
	assert.ErrorIs(t, err, ErrConflict)
	_, err = s.Register(ctx, "new@dmv.test", "short", "New")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = s.Login(ctx, "agent@dmv.test", "wrong-pass")
	assert.ErrorIs(t, err, ErrUnauthorized)
	res, err = s.Login(ctx, "AGENT@dmv.test", "password1")
	require.NoError(t, err)

	me, err := s.Me(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Agent", me.Name)

	require.NoError(t, s.SeedAdmin(ctx, "admin@dmv.test", "admin123"))
	require.NoError(t, s.SeedAdmin(ctx, "admin@dmv.test", "admin123"))
	res, err = s.Login(ctx, "admin@dmv.test", "admin123")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, res.User.Role)
}
