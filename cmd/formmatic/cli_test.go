package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
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
	"github.com/formmatic/formmatic/internal/orchestrator"
	"github.com/formmatic/formmatic/internal/pdfmerge"
	"github.com/formmatic/formmatic/internal/persist"
	"github.com/formmatic/formmatic/internal/repository"
	"github.com/formmatic/formmatic/internal/router"
	"github.com/formmatic/formmatic/internal/scenario"
	"github.com/formmatic/formmatic/internal/sections"
	"github.com/formmatic/formmatic/internal/service"
	"github.com/formmatic/formmatic/pkg/oxidb/oxidbtest"
)

type generator struct{}

func (generator) Generate(_ context.Context, template string, _ map[string]any) ([]byte, error) {
	return []byte("%PDF-" + template), nil
}

type joinEngine struct{}

func (joinEngine) PageCount(data []byte) (int, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return 0, errors.New("not a pdf")
	}
	return bytes.Count(data, []byte("%PDF-")), nil
}

func (joinEngine) Append(acc, next []byte) ([]byte, error) {
	return append(append(append([]byte{}, acc...), '|'), next...), nil
}

// startServer runs a formmatic server over an in-memory OxiDB and returns
// its URL and a token for a fresh agent.
func startServer(t *testing.T) (string, string) {
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

	drafts := persist.NewMemory()
	fillSvc := service.NewFillService(txRepo, docRepo, generator{}, log)
	printSvc := service.NewPrintService(txRepo, fillSvc, drafts, orchestrator.PrinterOptions{
		Merger: pdfmerge.New(joinEngine{}, log),
	}, log)
	r := router.New(router.Handlers{
		Auth:        handler.NewAuthHandler(service.NewAuthService(users, "cli-secret"), log),
		Transaction: handler.NewTransactionHandler(service.NewTransactionService(txRepo, fillSvc, log), log),
		Fill:        handler.NewFillHandler(fillSvc, printSvc, log),
		Draft:       handler.NewDraftHandler(service.NewDraftService(drafts), log),
		Catalog:     handler.NewCatalogHandler(scenario.Default(), formcodes.Default()),
	}, router.Options{JWTSecret: "cli-secret", Logger: log})
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	token, err := apiclient.New(apiclient.Config{BaseURL: ts.URL}).Register(ctx, "agent@dmv.test", "password1", "Agent")
	require.NoError(t, err)
	return ts.URL, token
}

// run executes one command line the way main does.
func run(t *testing.T, url, token, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := newApp(strings.NewReader(stdin), &out)
	a.engine = joinEngine{}
	cmd := newRootCmd(a)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--api", url, "--token", token}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Simple-Transfer.pdf", fileName("Simple Transfer"))
	assert.Equal(t, "DMVREG262-1.pdf", fileName("DMVREG262 #1"))
	assert.Equal(t, "form.pdf", fileName(" ## "))
}

func TestTerminalConfirmer(t *testing.T) {
	errs := []sections.FieldError{{Section: "Address", Field: "address.zip", Message: "ZIP is required"}}
	ctx := context.Background()

	var out bytes.Buffer
	c := &terminalConfirmer{in: bufio.NewReader(strings.NewReader("y\n")), out: &out}
	ok, err := c.Confirm(ctx, errs)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "ZIP is required (address.zip)")

	c = &terminalConfirmer{in: bufio.NewReader(strings.NewReader("")), out: &out}
	ok, err = c.Confirm(ctx, errs)
	require.NoError(t, err)
	assert.False(t, ok)

	c = &terminalConfirmer{in: bufio.NewReader(strings.NewReader("")), out: &out, yes: true}
	ok, err = c.Confirm(ctx, errs)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoadDocFileMultipleTransfer(t *testing.T) {
	first := formdoctest.SimpleTransfer()
	first.SetID("7")
	path := writeJSON(t, map[string]any{"transfersData": []any{first, formdoctest.SimpleTransfer()}})

	store := formstate.New(nil, nil)
	require.NoError(t, loadDocFile(store, path))
	assert.Equal(t, 2, store.TransferCount())
	assert.Equal(t, []string{"7", ""}, store.TransferIDs())

	bad := writeJSON(t, map[string]any{"transfersData": []any{}})
	assert.Error(t, loadDocFile(formstate.New(nil, nil), bad))
}

func TestOfflineCatalogCommands(t *testing.T) {
	// No server is contacted by these commands.
	url := "http://127.0.0.1:1"

	out, err := run(t, url, "", "", "scenarios")
	require.NoError(t, err)
	assert.Contains(t, out, "Simple Transfer")

	out, err = run(t, url, "", "", "sections")
	require.NoError(t, err)
	assert.Contains(t, out, "owners")

	out, err = run(t, url, "", "", "codes", "--possible", "--open", "Simple Transfer")
	require.NoError(t, err)
	assert.Contains(t, out, "Reg138")

	_, err = run(t, url, "", "", "codes", "--possible", "--open", "Boat Swap")
	assert.ErrorIs(t, err, scenario.ErrUnknownTransactionType)
}

func TestSavePrintAndClear(t *testing.T) {
	url, token := startServer(t)
	doc := writeJSON(t, formdoctest.SimpleTransfer())

	out, err := run(t, url, token, "", "scenario", "open", "Simple Transfer")
	require.NoError(t, err)
	assert.Contains(t, out, "transaction: Simple Transfer")

	out, err = run(t, url, token, "", "validate", "--doc", doc)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)

	out, err = run(t, url, token, "", "save", "--doc", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "transaction: ")

	dir := t.TempDir()
	out, err = run(t, url, token, "", "print", "--out", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Reg138")
	packet, err := os.ReadFile(filepath.Join(dir, "Simple-Transfer.pdf"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(packet, []byte("%PDF-")))
	assert.Contains(t, string(packet), "%PDF-Reg138")

	out, err = run(t, url, token, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Ana Diaz")
	assert.Equal(t, 2, strings.Count(out, "\n"), "header and one row")

	_, err = run(t, url, token, "", "clear")
	require.NoError(t, err)
	out, err = run(t, url, token, "", "scenario", "show")
	require.NoError(t, err)
	assert.Equal(t, "transaction: (none)\n", out)
}

func TestSaveIncompleteFormAsks(t *testing.T) {
	url, token := startServer(t)
	doc := writeJSON(t, map[string]any{"owners": []any{map[string]any{"firstName": "Ana"}}})

	out, err := run(t, url, token, "n\n", "save", "--open", "Simple Transfer", "--doc", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "Save anyway?")
	assert.Contains(t, out, "not saved")

	out, err = run(t, url, token, "", "save", "--open", "Simple Transfer", "--doc", doc, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "transaction: ")

	_, err = run(t, url, token, "", "validate", "--open", "Simple Transfer", "--doc", doc)
	assert.ErrorContains(t, err, "need attention")
}

func TestResaveKeepsEverySection(t *testing.T) {
	url, token := startServer(t)
	doc := writeJSON(t, formdoctest.LienHolderRemoval())

	out, err := run(t, url, token, "", "save", "--open", "Lien Holder Removal", "--doc", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "transaction: ")

	// The second run rebuilds the form from the server draft alone.
	out, err = run(t, url, token, "", "save")
	require.NoError(t, err)
	assert.NotContains(t, out, "Save anyway?")
	assert.Contains(t, out, "transaction: ")

	txs, err := apiclient.New(apiclient.Config{BaseURL: url, Token: token}).Recent(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 1, "the second save updates the record")
	assert.Equal(t, "Ana", txs[0].FormData.String("registeredOwnerOfRecord.firstName"))
	assert.Equal(t, "Golden State Credit Union", txs[0].FormData.String("releaseOfOwnership.name"))
}

func TestSeed(t *testing.T) {
	url, token := startServer(t)

	out, err := run(t, url, token, "", "seed", "-n", "5", "--concurrency", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "saved 5 transactions")

	out, err = run(t, url, token, "", "list")
	require.NoError(t, err)
	assert.Equal(t, 6, strings.Count(out, "\n"))
}

func TestMergeLocalFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "Reg227.pdf")
	b := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(a, []byte("%PDF-Reg227"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("plain text"), 0o644))
	packet := filepath.Join(dir, "packet.pdf")

	out, err := run(t, "http://127.0.0.1:1", "", "", "merge", "-o", packet, a, b)
	assert.ErrorContains(t, err, "could not merge notes")
	assert.Contains(t, out, "Reg227")
	data, err := os.ReadFile(packet)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-Reg227", string(data))
}
