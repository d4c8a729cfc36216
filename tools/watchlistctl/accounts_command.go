package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"twowatch/models"
)

func newAccountsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List registered accounts, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.accounts()
			if err != nil {
				return err
			}
			list := svc.List()
			public := make([]models.Account, 0, len(list))
			for _, account := range list {
				public = append(public, account.Public())
			}
			if asJSON {
				return writeJSON(cmd, public)
			}
			if len(public) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No accounts registered")
				return nil
			}
			rows := make([][]string, 0, len(public))
			for _, account := range public {
				rows = append(rows, []string{account.ID, account.Email, account.DisplayName, account.CreatedAt.Format(time.DateTime)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(),
				[]string{"ID", "Email", "Name", "Created"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
