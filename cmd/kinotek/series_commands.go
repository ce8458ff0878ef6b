package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"kinotek/internal/catalog"
	"kinotek/internal/config"
)

func newSeriesCommand(ctx *commandContext) *cobra.Command {
	seriesCmd := &cobra.Command{
		Use:   "series",
		Short: "Manage series",
	}

	seriesCmd.AddCommand(newSeriesAddCommand(ctx))
	seriesCmd.AddCommand(newSeriesListCommand(ctx))

	return seriesCmd
}

func newSeriesAddCommand(ctx *commandContext) *cobra.Command {
	var title string
	var description string

	cmd := &cobra.Command{
		Use:   "add <slug>",
		Short: "Register a new series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLockedStore(func(cfg *config.Config, store *catalog.Store) error {
				if title == "" {
					title = args[0]
				}
				series, err := store.CreateSeries(cmd.Context(), args[0], title, description)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created series %q (id %d)\n", series.Slug, series.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Display title (defaults to the slug)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Series description")
	return cmd
}

func newSeriesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all series",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				entries, err := store.ListSeries(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No series registered.")
					return nil
				}

				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						strconv.FormatInt(entry.ID, 10),
						entry.Slug,
						entry.Title,
						entry.CreatedAt.Format("2006-01-02"),
					})
				}
				printRows(out, []string{"ID", "Slug", "Title", "Created"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft})
				return nil
			})
		},
	}
}
