package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/formmatic/formmatic/internal/models"
)

func newLoginCmd(a *app) *cobra.Command {
	var (
		email    string
		password string
		name     string
		register bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Print a bearer token for FORMMATIC_TOKEN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			var (
				token string
				err   error
			)
			if register {
				token, err = a.client.Register(cmd.Context(), email, password, name)
			} else {
				token, err = a.client.Login(cmd.Context(), email, password)
			}
			if err != nil {
				return err
			}
			a.printf("%s\n", token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&name, "name", "Agent", "display name for --register")
	cmd.Flags().BoolVar(&register, "register", false, "create the account first")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var (
		search string
		date   string
		txType string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved transactions",
		Long: `List saved transactions, most recent first.

At most one filter applies: --search matches client names and hull ids,
--date takes YYYY-MM-DD and --type a transaction type.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var (
				txs []models.Transaction
				err error
			)
			switch {
			case search != "":
				txs, err = a.client.Search(ctx, search)
			case date != "":
				txs, err = a.client.ByDate(ctx, date)
			case txType != "":
				txs, err = a.client.ByTransaction(ctx, txType)
			default:
				txs, err = a.client.Recent(ctx)
			}
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tTYPE\tCLIENT\tHULL ID")
			for _, tx := range txs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", tx.ID, tx.Date, tx.TransactionType, tx.ClientName, tx.HullID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "client name or hull id")
	cmd.Flags().StringVar(&date, "date", "", "save date, YYYY-MM-DD")
	cmd.Flags().StringVar(&txType, "type", "", "transaction type")
	return cmd
}
