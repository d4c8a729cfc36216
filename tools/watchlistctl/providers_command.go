package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"twowatch/internal/launcher"
	"twowatch/models"
	"twowatch/services/providers"
)

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List registered streaming providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := ctx.resolver()
			if err != nil {
				return err
			}
			list := resolver.Registry().Providers()
			if asJSON {
				return writeJSON(cmd, list)
			}
			rows := make([][]string, 0, len(list))
			for _, p := range list {
				rows = append(rows, []string{strconv.Itoa(p.ProviderID), p.Name, p.WebURL, p.Scheme})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(),
				[]string{"ID", "Name", "Web", "App scheme"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

type linkFlags struct {
	title  string
	imdbID string
	year   int
}

func (f *linkFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Title to search for")
	cmd.Flags().StringVar(&f.imdbID, "imdb", "", "IMDb id (tt...)")
	cmd.Flags().IntVar(&f.year, "year", 0, "Release year")
}

func (f *linkFlags) query() models.LinkQuery {
	return models.LinkQuery{Title: strings.TrimSpace(f.title), ImdbID: strings.TrimSpace(f.imdbID), Year: f.year}
}

func findProvider(resolver *providers.Resolver, ref string) (models.StreamingProvider, error) {
	provider, ok := resolver.Registry().Find(ref)
	if !ok {
		if guess, found := resolver.Registry().Suggest(ref); found {
			return models.StreamingProvider{}, fmt.Errorf("unknown provider %q, did you mean %q?", ref, guess.Name)
		}
		return models.StreamingProvider{}, fmt.Errorf("unknown provider %q", ref)
	}
	return provider, nil
}

func newLinkCommand(ctx *commandContext) *cobra.Command {
	var flags linkFlags
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "link <provider>",
		Short: "Show the web, app and fallback links for a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := ctx.resolver()
			if err != nil {
				return err
			}
			provider, err := findProvider(resolver, args[0])
			if err != nil {
				return err
			}

			query := flags.query()
			webURL, _ := resolver.ResolveWebURL(provider.ProviderID, query)
			deepLink, _ := resolver.Registry().DeepLink(provider.ProviderID, query.Title)
			fallback := ""
			if query.Title != "" {
				fallback = resolver.FallbackSearchURL(query.Title)
			}

			if asJSON {
				return writeJSON(cmd, map[string]string{
					"provider": provider.Name,
					"webUrl":   webURL,
					"deepLink": deepLink,
					"fallback": fallback,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Provider: %s (%d)\n", provider.Name, provider.ProviderID)
			fmt.Fprintf(out, "Web:      %s\n", webURL)
			fmt.Fprintf(out, "App:      %s\n", deepLink)
			if fallback != "" {
				fmt.Fprintf(out, "Fallback: %s\n", fallback)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newOpenCommand(ctx *commandContext) *cobra.Command {
	var flags linkFlags
	var page string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "open <provider>",
		Short: "Open a title with the system URL handler",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := ctx.resolver()
			if err != nil {
				return err
			}
			providerID := 0
			if provider, ok := resolver.Registry().Find(args[0]); ok {
				providerID = provider.ProviderID
			}

			system := launcher.NewSystemOpener()
			var opener providers.Opener = system
			capture := launcher.NewCaptureOpener()
			if dryRun {
				opener = capture
			}

			result := resolver.WithOpener(opener).Open(cmdContext(cmd), providerID, models.OpenRequest{
				LinkQuery:       flags.query(),
				ProviderPageURL: page,
			})
			if !result.Success {
				return fmt.Errorf("could not open a link for provider %q", args[0])
			}
			if !dryRun {
				fmt.Fprintln(cmd.OutOrStdout(), result.URL)
				return nil
			}

			target, _ := capture.Last()
			handler := "missing"
			if system.CanOpen(target) {
				handler = "available"
			}
			fmt.Fprintln(cmd.OutOrStdout(), target)
			fmt.Fprintf(cmd.OutOrStdout(), "System handler: %s\n", handler)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&page, "page", "", "Aggregator page for the title, tried before the search fallback")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the URL and whether a system handler exists, without opening it")
	return cmd
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
