package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kinotek/internal/catalog"
	"kinotek/internal/config"
	"kinotek/internal/episode"
	"kinotek/internal/fileutil"
)

func newEpisodeCommand(ctx *commandContext) *cobra.Command {
	episodeCmd := &cobra.Command{
		Use:   "episode",
		Short: "Manage episodes",
	}

	episodeCmd.AddCommand(newEpisodeIngestCommand(ctx))
	episodeCmd.AddCommand(newEpisodeListCommand(ctx))
	episodeCmd.AddCommand(newEpisodeShowCommand(ctx))
	episodeCmd.AddCommand(newEpisodeEditCommand(ctx))
	episodeCmd.AddCommand(newEpisodeDeleteCommand(ctx))

	return episodeCmd
}

func newEpisodeIngestCommand(ctx *commandContext) *cobra.Command {
	var title string
	var description string
	var releaseDate string
	var skipIntro, skipRecap, skipCredits string

	cmd := &cobra.Command{
		Use:   "ingest <series-slug> <season-order> <episode-order> <source-file>",
		Short: "Ingest a source file as a new episode",
		Long: "Probes the source, extracts thumbnails and subtitles, registers the " +
			"episode, then transcodes it into an adaptive HLS package. The command " +
			"waits for the encode to finish and reports the final status.",
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			seasonOrder, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("season order must be a number: %w", err)
			}
			episodeOrder, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("episode order must be a number: %w", err)
			}
			release, err := parseReleaseDate(releaseDate)
			if err != nil {
				return err
			}
			intro, err := parseSkipRegion(skipIntro)
			if err != nil {
				return fmt.Errorf("--skip-intro: %w", err)
			}
			recap, err := parseSkipRegion(skipRecap)
			if err != nil {
				return fmt.Errorf("--skip-recap: %w", err)
			}
			credits, err := parseSkipRegion(skipCredits)
			if err != nil {
				return fmt.Errorf("--skip-credits: %w", err)
			}

			return ctx.withLockedStore(func(cfg *config.Config, store *catalog.Store) error {
				season, err := lookupSeason(cmd, store, args[0], seasonOrder)
				if err != nil {
					return err
				}

				// Stage the upload in the tmp area; the pipeline consumes
				// and eventually deletes the staged copy, never the original.
				staged := filepath.Join(cfg.Paths.TmpDir, filepath.Base(args[3]))
				if err := fileutil.CopyFile(args[3], staged); err != nil {
					return fmt.Errorf("stage upload: %w", err)
				}

				reconciler, err := ctx.buildReconciler(cfg, store)
				if err != nil {
					return err
				}
				defer reconciler.Close()

				if title == "" {
					title = fmt.Sprintf("Episode %d", episodeOrder)
				}
				created, err := reconciler.Create(cmd.Context(), episode.CreateRequest{
					SeasonID:    season.ID,
					Order:       episodeOrder,
					Title:       title,
					Description: description,
					SourcePath:  staged,
					SkipIntro:   intro,
					SkipRecap:   recap,
					SkipCredits: credits,
					ReleaseDate: release,
				})
				if err != nil {
					_ = fileutil.RemoveIfExists(staged)
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Episode %d registered (id %d, %d thumbnails, %d subtitles). Encoding...\n",
					created.Order, created.ID, len(created.ThumbnailPaths), len(created.Subtitles))

				reconciler.Close()

				final, err := store.GetEpisode(cmd.Context(), created.ID)
				if err != nil {
					return err
				}
				switch final.Status {
				case catalog.EpisodeReady:
					fmt.Fprintf(out, "Encode complete: %s\n", final.ManifestPath)
				case catalog.EpisodeFailed:
					return fmt.Errorf("encode failed: %s", final.ErrorMessage)
				default:
					fmt.Fprintf(out, "Episode left in %s state.\n", final.Status)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Episode title (defaults to \"Episode <order>\")")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Episode description")
	cmd.Flags().StringVar(&releaseDate, "release-date", "", "Release date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&skipIntro, "skip-intro", "", "Intro skip region as <start>:<end> seconds")
	cmd.Flags().StringVar(&skipRecap, "skip-recap", "", "Recap skip region as <start>:<end> seconds")
	cmd.Flags().StringVar(&skipCredits, "skip-credits", "", "Credits skip region as <start>:<end> seconds")
	return cmd
}

func newEpisodeListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <series-slug> <season-order>",
		Short: "List a season's episodes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seasonOrder, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("season order must be a number: %w", err)
			}
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				season, err := lookupSeason(cmd, store, args[0], seasonOrder)
				if err != nil {
					return err
				}
				episodes, err := store.ListEpisodes(cmd.Context(), season.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(episodes) == 0 {
					fmt.Fprintln(out, "No episodes in this season.")
					return nil
				}

				rows := make([][]string, 0, len(episodes))
				for _, entry := range episodes {
					rows = append(rows, []string{
						strconv.FormatInt(entry.ID, 10),
						strconv.Itoa(entry.Order),
						entry.Title,
						string(entry.Status),
						formatDuration(entry.Duration),
						fmt.Sprintf("%dx%d", entry.Width, entry.Height),
					})
				}
				printRows(out, []string{"ID", "Order", "Title", "Status", "Duration", "Source"}, rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignLeft})
				return nil
			})
		},
	}
}

func newEpisodeShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <episode-id>",
		Short: "Show one episode in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("episode id must be a number: %w", err)
			}
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				entry, err := store.GetEpisode(cmd.Context(), id)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Episode %d: %s\n", entry.Order, entry.Title)
				fmt.Fprintf(out, "  id:        %d\n", entry.ID)
				fmt.Fprintf(out, "  status:    %s\n", entry.Status)
				if entry.ErrorMessage != "" {
					fmt.Fprintf(out, "  error:     %s\n", entry.ErrorMessage)
				}
				fmt.Fprintf(out, "  duration:  %s\n", formatDuration(entry.Duration))
				fmt.Fprintf(out, "  source:    %dx%d\n", entry.Width, entry.Height)
				fmt.Fprintf(out, "  poster:    %s\n", entry.PosterPath)
				if entry.ManifestPath != "" {
					fmt.Fprintf(out, "  manifest:  %s\n", entry.ManifestPath)
				}
				fmt.Fprintf(out, "  thumbnails: %d\n", len(entry.ThumbnailPaths))
				printSkipRegion(out, "intro", entry.SkipIntro)
				printSkipRegion(out, "recap", entry.SkipRecap)
				printSkipRegion(out, "credits", entry.SkipCredits)
				if !entry.ReleaseDate.IsZero() {
					fmt.Fprintf(out, "  released:  %s\n", entry.ReleaseDate.Format("2006-01-02"))
				}
				for _, subtitle := range entry.Subtitles {
					fmt.Fprintf(out, "  subtitle:  [%d] %s\n", subtitle.ID, subtitle.Src)
				}
				return nil
			})
		},
	}
}

func newEpisodeEditCommand(ctx *commandContext) *cobra.Command {
	var title string
	var description string
	var order int
	var poster string
	var releaseDate string
	var skipIntro, skipRecap, skipCredits string
	var dropSubtitles []int64
	var addSubtitles []string

	cmd := &cobra.Command{
		Use:   "edit <episode-id>",
		Short: "Edit episode metadata and subtitles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("episode id must be a number: %w", err)
			}

			return ctx.withLockedStore(func(cfg *config.Config, store *catalog.Store) error {
				current, err := store.GetEpisode(cmd.Context(), id)
				if err != nil {
					return err
				}

				req := episode.EditRequest{
					EpisodeID:   current.ID,
					Order:       current.Order,
					Title:       current.Title,
					Description: current.Description,
					Width:       current.Width,
					Height:      current.Height,
					PosterPath:  current.PosterPath,
					SkipIntro:   current.SkipIntro,
					SkipRecap:   current.SkipRecap,
					SkipCredits: current.SkipCredits,
					ReleaseDate: current.ReleaseDate,
				}
				flags := cmd.Flags()
				if flags.Changed("title") {
					req.Title = title
				}
				if flags.Changed("description") {
					req.Description = description
				}
				if flags.Changed("order") {
					req.Order = order
				}
				if flags.Changed("poster") {
					req.PosterPath = poster
				}
				if flags.Changed("release-date") {
					req.ReleaseDate, err = parseReleaseDate(releaseDate)
					if err != nil {
						return err
					}
				}
				if flags.Changed("skip-intro") {
					req.SkipIntro, err = parseSkipRegion(skipIntro)
					if err != nil {
						return fmt.Errorf("--skip-intro: %w", err)
					}
				}
				if flags.Changed("skip-recap") {
					req.SkipRecap, err = parseSkipRegion(skipRecap)
					if err != nil {
						return fmt.Errorf("--skip-recap: %w", err)
					}
				}
				if flags.Changed("skip-credits") {
					req.SkipCredits, err = parseSkipRegion(skipCredits)
					if err != nil {
						return fmt.Errorf("--skip-credits: %w", err)
					}
				}

				drop := make(map[int64]bool, len(dropSubtitles))
				for _, subtitleID := range dropSubtitles {
					drop[subtitleID] = true
				}
				for _, subtitle := range current.Subtitles {
					if !drop[subtitle.ID] {
						req.KeepSubtitleIDs = append(req.KeepSubtitleIDs, subtitle.ID)
					}
				}
				req.NewSubtitleFiles = addSubtitles

				reconciler, err := ctx.buildReconciler(cfg, store)
				if err != nil {
					return err
				}
				defer reconciler.Close()

				edited, err := reconciler.Edit(cmd.Context(), req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated episode %d (%d subtitles).\n", edited.ID, len(edited.Subtitles))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "New title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().IntVar(&order, "order", 0, "New order within the season")
	cmd.Flags().StringVar(&poster, "poster", "", "New poster path (relative to the static root)")
	cmd.Flags().StringVar(&releaseDate, "release-date", "", "Release date (YYYY-MM-DD, empty clears)")
	cmd.Flags().StringVar(&skipIntro, "skip-intro", "", "Intro skip region as <start>:<end> seconds (empty clears)")
	cmd.Flags().StringVar(&skipRecap, "skip-recap", "", "Recap skip region as <start>:<end> seconds (empty clears)")
	cmd.Flags().StringVar(&skipCredits, "skip-credits", "", "Credits skip region as <start>:<end> seconds (empty clears)")
	cmd.Flags().Int64SliceVar(&dropSubtitles, "drop-subtitle", nil, "Subtitle id to remove (repeatable)")
	cmd.Flags().StringArrayVar(&addSubtitles, "add-subtitle", nil, "WebVTT file to attach (repeatable)")
	return cmd
}

func newEpisodeDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <episode-id>",
		Short: "Delete an episode and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("episode id must be a number: %w", err)
			}
			return ctx.withLockedStore(func(cfg *config.Config, store *catalog.Store) error {
				reconciler, err := ctx.buildReconciler(cfg, store)
				if err != nil {
					return err
				}
				defer reconciler.Close()

				if err := reconciler.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted episode %d.\n", id)
				return nil
			})
		},
	}
}

func lookupSeason(cmd *cobra.Command, store *catalog.Store, slug string, order int) (*catalog.Season, error) {
	series, err := store.GetSeriesBySlug(cmd.Context(), slug)
	if err != nil {
		return nil, err
	}
	return store.GetSeason(cmd.Context(), series.ID, order)
}

// parseSkipRegion parses "<start>:<end>". An empty value clears the region.
func parseSkipRegion(value string) (*catalog.SkipRegion, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected <start>:<end>, got %q", value)
	}
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("invalid start offset %q", parts[0])
	}
	end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid end offset %q", parts[1])
	}
	if start < 0 || end <= start {
		return nil, fmt.Errorf("region %q must satisfy 0 <= start < end", value)
	}
	return &catalog.SkipRegion{Start: start, End: end}, nil
}

func parseReleaseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("release date must be YYYY-MM-DD: %w", err)
	}
	return parsed, nil
}

func formatDuration(seconds int) string {
	if seconds <= 0 {
		return "0:00"
	}
	d := time.Duration(seconds) * time.Second
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	secs := seconds % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

func printSkipRegion(out io.Writer, name string, region *catalog.SkipRegion) {
	if region == nil {
		return
	}
	fmt.Fprintf(out, "  skip %s: %d-%ds\n", name, region.Start, region.End)
}
