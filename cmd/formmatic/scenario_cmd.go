package main

import (
	"context"
	"sort"

	"github.com/spf13/cobra"

	"github.com/formmatic/formmatic/internal/scenario"
)

func newScenarioCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Change the scenario selection kept with the draft",
	}

	// edit restores the selection, applies fn and persists the result.
	edit := func(ctx context.Context, fn func(sel *scenario.Selection) error) error {
		sel := scenario.NewSelection(scenario.Default())
		if err := sel.Restore(ctx, a.drafts()); err != nil {
			return err
		}
		if err := fn(sel); err != nil {
			return err
		}
		if err := sel.Persist(ctx, a.drafts()); err != nil {
			return err
		}
		a.showSelection(sel)
		return nil
	}

	open := &cobra.Command{
		Use:   "open NAME",
		Short: "Open a scenario and select its transaction type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return edit(cmd.Context(), func(sel *scenario.Selection) error {
				_, err := sel.Open(args[0])
				return err
			})
		},
	}

	var off bool
	toggle := &cobra.Command{
		Use:   "toggle NAME",
		Short: "Turn a scenario on, or off with --off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return edit(cmd.Context(), func(sel *scenario.Selection) error {
				return sel.ToggleScenario(args[0], !off)
			})
		},
	}
	toggle.Flags().BoolVar(&off, "off", false, "deactivate instead")

	var subOff bool
	sub := &cobra.Command{
		Use:   "sub OPTION",
		Short: "Turn a sub-option of an active scenario on, or off with --off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return edit(cmd.Context(), func(sel *scenario.Selection) error {
				return sel.SetSubOption(args[0], !subOff)
			})
		},
	}
	sub.Flags().BoolVar(&subOff, "off", false, "deactivate instead")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the current selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := scenario.NewSelection(scenario.Default())
			if err := sel.Restore(cmd.Context(), a.drafts()); err != nil {
				return err
			}
			a.showSelection(sel)
			return nil
		},
	}

	cmd.AddCommand(open, toggle, sub, show)
	return cmd
}

func (a *app) showSelection(sel *scenario.Selection) {
	t := sel.TransactionType()
	if t == "" {
		a.printf("transaction: (none)\n")
		return
	}
	a.printf("transaction: %s\n", t)
	for _, name := range sel.ActiveNames() {
		a.printf("  %s\n", name)
	}
	var opts []string
	for opt, on := range sel.ActiveSubOptions() {
		if on {
			opts = append(opts, opt)
		}
	}
	sort.Strings(opts)
	for _, opt := range opts {
		a.printf("    + %s\n", opt)
	}
}
