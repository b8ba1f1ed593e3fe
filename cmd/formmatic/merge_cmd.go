package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/formmatic/formmatic/internal/pdfmerge"
)

func newMergeCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "merge FILE...",
		Short: "Merge PDF files into one packet without a server",
		Long: `Merge PDF files into one packet, in argument order.

A file that cannot be read or appended is left out of the packet and
reported; the command only fails when no file could be read at all.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arts := make([]pdfmerge.Artifact, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				arts = append(arts, pdfmerge.Artifact{Title: title, Data: data})
			}

			res, err := pdfmerge.New(a.engine, a.log).Merge(cmd.Context(), arts)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, res.Merged, 0o644); err != nil {
				return err
			}
			a.printf("wrote %s (%d pages): %s\n", out, res.Pages, strings.Join(res.Included, ", "))
			if len(res.Failed) > 0 {
				return fmt.Errorf("could not merge %s", strings.Join(pdfmerge.Titles(res.Failed), ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "packet.pdf", "output file")
	return cmd
}
