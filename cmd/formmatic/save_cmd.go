package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/formmatic/formmatic/internal/orchestrator"
	"github.com/formmatic/formmatic/internal/pdfmerge"
)

// draftFlags are shared by the commands that operate on the draft.
type draftFlags struct {
	doc  string
	open string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.doc, "doc", "", "form document JSON (default: the saved draft)")
	cmd.Flags().StringVar(&f.open, "open", "", "scenario or transaction type to open first")
}

func (a *app) orchestrator(s *session, opts orchestrator.Options) *orchestrator.Orchestrator {
	opts.UserID = a.cfg.UserID
	opts.Logger = a.log
	return orchestrator.New(s.store, s.sel, a.client, opts)
}

func newValidateCmd(a *app) *cobra.Command {
	var flags draftFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the draft against every mounted section",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context(), flags.doc, flags.open)
			if err != nil {
				return err
			}
			errs, err := a.orchestrator(s, orchestrator.Options{}).Validate()
			if err != nil {
				return err
			}
			if len(errs) == 0 {
				a.printf("ok\n")
				return nil
			}
			printFieldErrors(a.out, errs)
			return fmt.Errorf("%d field(s) need attention", len(errs))
		},
	}
	flags.register(cmd)
	return cmd
}

func newSaveCmd(a *app) *cobra.Command {
	var (
		flags draftFlags
		yes   bool
	)
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save the draft as a transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openSession(ctx, flags.doc, flags.open)
			if err != nil {
				return err
			}
			o := a.orchestrator(s, orchestrator.Options{
				Confirmer: &terminalConfirmer{in: bufio.NewReader(cmd.InOrStdin()), out: a.out, yes: yes},
			})
			saveErr := o.HandleSaveClick(ctx)
			if errors.Is(saveErr, orchestrator.ErrSaveCancelled) {
				a.printf("not saved\n")
				return nil
			}
			// Ids written back before a failure are kept in the draft.
			if err := s.persist(ctx, a); err != nil {
				a.log.Warn("cannot persist draft", zap.Error(err))
			}
			if saveErr != nil {
				return saveErr
			}
			a.printIDs(s)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "save without asking when the form is incomplete")
	return cmd
}

func (a *app) printIDs(s *session) {
	if ids := s.store.TransferIDs(); ids != nil {
		for i, id := range ids {
			a.printf("transfer %d: %s\n", i+1, id)
		}
		return
	}
	a.printf("transaction: %s\n", s.store.ID())
}

func newPrintCmd(a *app) *cobra.Command {
	var (
		flags       draftFlags
		outDir      string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "print",
		Short: "Save if needed, then fill and merge every required form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openSession(ctx, flags.doc, flags.open)
			if err != nil {
				return err
			}
			if concurrency < 1 {
				concurrency = a.cfg.PrintConcurrency
			}
			opener := &fileOpener{dir: outDir}
			printer := orchestrator.NewPrinter(a.client, orchestrator.PrinterOptions{
				Merger:      pdfmerge.New(a.engine, a.log),
				Concurrency: concurrency,
				FillRate:    rate.Limit(a.cfg.FillRatePerSec),
				Logger:      a.log,
			})
			o := a.orchestrator(s, orchestrator.Options{Printer: printer, Opener: opener})

			res, printErr := o.HandlePrint(ctx)
			if err := s.persist(ctx, a); err != nil {
				a.log.Warn("cannot persist draft", zap.Error(err))
			}
			if printErr != nil {
				return printErr
			}

			a.printf("printed %s (%d forms)\n", strings.Join(res.Included, ", "), len(res.Included))
			if len(res.Skipped) > 0 {
				a.printf("not generated: %s\n", strings.Join(res.Skipped, ", "))
			}
			if len(res.Failed) > 0 {
				a.printf("written separately: %s\n", strings.Join(pdfmerge.Titles(res.Failed), ", "))
			}
			for _, path := range opener.written {
				a.printf("wrote %s\n", path)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory for the packet and any unmerged forms")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel fill calls (default $FORMMATIC_PRINT_CONCURRENCY)")
	return cmd
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Discard the draft and the scenario selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openSession(ctx, "", "")
			if err != nil {
				return err
			}
			if err := s.store.ClearAllFormData(ctx); err != nil {
				return err
			}
			if err := s.sel.ClearPersisted(ctx, a.drafts()); err != nil {
				return err
			}
			a.printf("cleared\n")
			return nil
		},
	}
}
