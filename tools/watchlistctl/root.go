package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "watchlistctl",
		Short:         "Inspect provider links and watchlists",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to backend settings.json")

	rootCmd.AddCommand(newProvidersCommand(ctx))
	rootCmd.AddCommand(newLinkCommand(ctx))
	rootCmd.AddCommand(newOpenCommand(ctx))
	rootCmd.AddCommand(newAccountsCommand(ctx))
	for _, cmd := range newWatchlistCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}

	return rootCmd
}
