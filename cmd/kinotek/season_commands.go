package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"kinotek/internal/catalog"
	"kinotek/internal/config"
)

func newSeasonCommand(ctx *commandContext) *cobra.Command {
	seasonCmd := &cobra.Command{
		Use:   "season",
		Short: "Manage seasons",
	}

	seasonCmd.AddCommand(newSeasonAddCommand(ctx))
	seasonCmd.AddCommand(newSeasonListCommand(ctx))

	return seasonCmd
}

func newSeasonAddCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "add <series-slug> <order>",
		Short: "Add a season to a series",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("season order must be a number: %w", err)
			}
			return ctx.withLockedStore(func(cfg *config.Config, store *catalog.Store) error {
				series, err := store.GetSeriesBySlug(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if title == "" {
					title = fmt.Sprintf("Season %d", order)
				}
				season, err := store.CreateSeason(cmd.Context(), series.ID, order, title)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created season %d of %q (id %d)\n", season.Order, series.Slug, season.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Season title (defaults to \"Season <order>\")")
	return cmd
}

func newSeasonListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <series-slug>",
		Short: "List a series' seasons",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				series, err := store.GetSeriesBySlug(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				seasons, err := store.ListSeasons(cmd.Context(), series.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(seasons) == 0 {
					fmt.Fprintf(out, "Series %q has no seasons.\n", series.Slug)
					return nil
				}

				rows := make([][]string, 0, len(seasons))
				for _, season := range seasons {
					rows = append(rows, []string{
						strconv.FormatInt(season.ID, 10),
						strconv.Itoa(season.Order),
						season.Title,
					})
				}
				printRows(out, []string{"ID", "Order", "Title"}, rows,
					[]columnAlignment{alignRight, alignRight, alignLeft})
				return nil
			})
		},
	}
}
