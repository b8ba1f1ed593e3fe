package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/formmatic/formmatic/internal/composer"
	"github.com/formmatic/formmatic/internal/formcodes"
	"github.com/formmatic/formmatic/internal/scenario"
	"github.com/formmatic/formmatic/internal/sections"
)

func newCodesCmd(a *app) *cobra.Command {
	var (
		docPath  string
		open     string
		possible bool
	)
	cmd := &cobra.Command{
		Use:   "codes",
		Short: "List the DMV forms the current draft will print",
		RunE: func(cmd *cobra.Command, args []string) error {
			forms := formcodes.Default()
			if possible {
				t := scenario.TransactionType(open)
				if !t.Valid() {
					return fmt.Errorf("%w: %q", scenario.ErrUnknownTransactionType, open)
				}
				return a.printForms(forms.Possible(t))
			}

			s, err := a.openSession(cmd.Context(), docPath, open)
			if err != nil {
				return err
			}
			t := s.sel.TransactionType()
			if t == "" {
				return fmt.Errorf("no transaction selected; use --open")
			}
			docs := s.store.Transfers()
			if docs == nil {
				docs = append(docs, s.store.FormData())
			}
			// Every transfer of a multiple transfer prints the same set, the
			// first is representative.
			list, err := forms.Codes(t, docs[0], s.sel)
			if err != nil {
				return err
			}
			return a.printForms(list)
		},
	}
	cmd.Flags().StringVar(&docPath, "doc", "", "form document JSON (default: the saved draft)")
	cmd.Flags().StringVar(&open, "open", "", "scenario or transaction type to open first")
	cmd.Flags().BoolVar(&possible, "possible", false, "list every form the transaction type given by --open can print")
	return cmd
}

func (a *app) printForms(forms []formcodes.Form) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, f := range forms {
		fmt.Fprintf(tw, "%s\t%s\n", f.Code, f.Title)
	}
	return tw.Flush()
}

func newSectionsCmd(a *app) *cobra.Command {
	var (
		docPath string
		open    string
	)
	cmd := &cobra.Command{
		Use:   "sections",
		Short: "List form sections, or the ones mounted for the current draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			defer tw.Flush()
			if open == "" && docPath == "" {
				for _, s := range sections.All() {
					persisted := ""
					if s.Persisted {
						persisted = "persisted"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.Key, persisted)
				}
				return nil
			}

			s, err := a.openSession(cmd.Context(), docPath, open)
			if err != nil {
				return err
			}
			mounted, err := composer.Default().Mount(s.sel.TransactionType(), s.store.FormData(), s.sel)
			if err != nil {
				return err
			}
			for _, name := range composer.Names(mounted) {
				fmt.Fprintln(tw, name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&docPath, "doc", "", "form document JSON (default: the saved draft)")
	cmd.Flags().StringVar(&open, "open", "", "scenario or transaction type to open first")
	return cmd
}

func newScenariosCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "Print the scenario catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, g := range scenario.Default().Catalog() {
				a.printf("%s\n", g.TransactionType)
				for _, s := range g.Subsections {
					line := "  " + s.Name
					if len(s.SubOptions) > 0 {
						line += " [" + strings.Join(s.SubOptions, ", ") + "]"
					}
					a.printf("%s\n", line)
				}
			}
			return nil
		},
	}
}
