package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/formmatic/formmatic/internal/formdoc"
	"github.com/formmatic/formmatic/internal/formstate"
	"github.com/formmatic/formmatic/internal/scenario"
	"github.com/formmatic/formmatic/internal/sections"
)

// session is the draft a command works on: the form store and the
// scenario selection, both backed by the server's draft store.
type session struct {
	store *formstate.Store
	sel   *scenario.Selection
}

// openSession restores the persisted selection, then either loads docPath
// or hydrates the persisted draft. A non-empty subsection is opened on top.
func (a *app) openSession(ctx context.Context, docPath, subsection string) (*session, error) {
	sel := scenario.NewSelection(scenario.Default())
	if err := sel.Restore(ctx, a.drafts()); err != nil {
		return nil, err
	}
	if subsection != "" {
		if _, err := sel.Open(subsection); err != nil {
			return nil, err
		}
	}

	store := formstate.New(a.drafts(), a.log, formstate.WithFullDraft())
	if docPath == "" {
		if err := store.Hydrate(ctx); err != nil {
			return nil, err
		}
	} else if err := loadDocFile(store, docPath); err != nil {
		return nil, err
	}
	return &session{store: store, sel: sel}, nil
}

// persist writes the store and the selection back to the draft store.
func (s *session) persist(ctx context.Context, a *app) error {
	if err := s.store.Persist(ctx); err != nil {
		return err
	}
	return s.sel.Persist(ctx, a.drafts())
}

// loadDocFile reads a form document. A document with a transfersData
// array is loaded as a multiple transfer.
func loadDocFile(store *formstate.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := formdoc.Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	transfers, ok := doc["transfersData"].([]any)
	if !ok {
		return store.Load(doc)
	}
	if len(transfers) == 0 {
		return fmt.Errorf("%s: transfersData is empty", path)
	}

	store.SetMultipleTransfer(len(transfers))
	for i, raw := range transfers {
		t, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: transfer %d is not an object", path, i+1)
		}
		for key, value := range t {
			if key == formdoc.IDKey {
				id, _ := value.(string)
				if err := store.SetTransferID(i, id); err != nil {
					return err
				}
				continue
			}
			if err := store.UpdateTransferField(i, key, value); err != nil {
				return fmt.Errorf("%s: transfer %d: %w", path, i+1, err)
			}
		}
	}
	return nil
}

// terminalConfirmer lists validation errors and asks before saving.
type terminalConfirmer struct {
	in  *bufio.Reader
	out io.Writer
	yes bool
}

func (c *terminalConfirmer) Confirm(_ context.Context, errs []sections.FieldError) (bool, error) {
	printFieldErrors(c.out, errs)
	if c.yes {
		return true, nil
	}
	fmt.Fprint(c.out, "The form is incomplete. Save anyway? [y/N] ")
	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func printFieldErrors(out io.Writer, errs []sections.FieldError) {
	for _, e := range errs {
		fmt.Fprintf(out, "  %s: %s (%s)\n", e.Section, e.Message, e.Field)
	}
}

// fileOpener writes each packet or quarantined form to dir.
type fileOpener struct {
	dir     string
	written []string
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9]+`)

func fileName(title string) string {
	name := strings.Trim(unsafeName.ReplaceAllString(title, "-"), "-")
	if name == "" {
		name = "form"
	}
	return name + ".pdf"
}

func (o *fileOpener) Open(_ context.Context, title string, pdf []byte) error {
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(o.dir, fileName(title))
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return err
	}
	o.written = append(o.written, path)
	return nil
}
