package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"twowatch/models"
	"twowatch/services/watchlist"
)

type scopeFlags struct {
	user   string
	device string
}

func (f *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.user, "user", "", "Account id; empty acts as a guest")
	cmd.Flags().StringVar(&f.device, "device", "", "Device namespace for guest data")
}

func newWatchlistCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newListCommand(ctx),
		newAddCommand(ctx),
		newRemoveCommand(ctx),
		newMergeCommand(ctx),
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var scope scopeFlags
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List watchlist items, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmdContext(cmd), scope.user, scope.device, func(store *watchlist.Store) error {
				items := store.List(cmdContext(cmd))
				if asJSON {
					if items == nil {
						items = []models.WatchlistItem{}
					}
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Watchlist is empty")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						string(item.MediaType),
						strconv.FormatInt(item.ID, 10),
						item.Title,
						strconv.FormatFloat(item.VoteAverage, 'f', 1, 64),
						time.UnixMilli(item.AddedAt).Format(time.DateTime),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(),
					[]string{"Type", "ID", "Title", "Rating", "Added"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft}))
				return nil
			})
		},
	}
	scope.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func parseTitleArgs(args []string) (models.MediaType, int64, error) {
	mediaType, ok := models.ParseMediaType(args[0])
	if !ok {
		return "", 0, fmt.Errorf("unknown media type %q (want movie or tv)", args[0])
	}
	id, err := strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("invalid id %q", args[1])
	}
	return mediaType, id, nil
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var scope scopeFlags
	var title, poster string
	var vote float64
	cmd := &cobra.Command{
		Use:   "add <movie|tv> <id>",
		Short: "Add a title to a watchlist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaType, id, err := parseTitleArgs(args)
			if err != nil {
				return err
			}
			entry := models.WatchlistEntry{ID: id, MediaType: mediaType, Title: title, VoteAverage: vote}
			if poster != "" {
				entry.PosterPath = &poster
			}
			return ctx.withStore(cmdContext(cmd), scope.user, scope.device, func(store *watchlist.Store) error {
				if !store.Add(cmdContext(cmd), entry) {
					return fmt.Errorf("%s not added (already present or storage unavailable)", entry.Key())
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", entry.Key())
				return nil
			})
		},
	}
	scope.register(cmd)
	cmd.Flags().StringVar(&title, "title", "", "Display title")
	cmd.Flags().StringVar(&poster, "poster", "", "Poster path")
	cmd.Flags().Float64Var(&vote, "vote", 0, "Vote average")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	var scope scopeFlags
	cmd := &cobra.Command{
		Use:   "remove <movie|tv> <id>",
		Short: "Remove a title from a watchlist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaType, id, err := parseTitleArgs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(cmdContext(cmd), scope.user, scope.device, func(store *watchlist.Store) error {
				if !store.Remove(cmdContext(cmd), id, mediaType) {
					return fmt.Errorf("could not remove %s", models.WatchlistDocumentID(id, mediaType))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", models.WatchlistDocumentID(id, mediaType))
				return nil
			})
		},
	}
	scope.register(cmd)
	return cmd
}

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var scope scopeFlags
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Copy a device's guest watchlist into an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(scope.user) == "" {
				return errors.New("--user is required")
			}
			return ctx.withStore(cmdContext(cmd), scope.user, scope.device, func(store *watchlist.Store) error {
				merged := store.MergeLocalIntoRemote(cmdContext(cmd))
				fmt.Fprintf(cmd.OutOrStdout(), "Merged %d item(s)\n", merged)
				return nil
			})
		},
	}
	scope.register(cmd)
	return cmd
}
