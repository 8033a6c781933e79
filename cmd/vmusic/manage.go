package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/veriloft/vmusic/internal/auth"
	"github.com/veriloft/vmusic/internal/database"
	"github.com/veriloft/vmusic/internal/downloader"
	"github.com/veriloft/vmusic/internal/history"
	providerhttp "github.com/veriloft/vmusic/internal/providers/http"
	"github.com/veriloft/vmusic/internal/tui/utils"
)

// downloadsCmd manages the persisted download queue
var downloadsCmd = &cobra.Command{
	Use:   "downloads",
	Short: "Manage the download queue",
}

var downloadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := downloader.NewManager(database.GetDB(), &cfg.Downloads, logger)
		if err != nil {
			return err
		}

		tasks, err := mgr.Tasks(cmd.Context())
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("No downloads")
			return nil
		}

		for _, task := range tasks {
			size := "?"
			if task.TotalBytes > 0 {
				size = humanize.IBytes(uint64(task.TotalBytes))
			}
			fmt.Printf("%s  %-11s %5.1f%%  %8s  %s  (%s)\n",
				task.ID[:8], task.Status, task.Progress, size,
				utils.TruncateWithWidth(task.DisplayName(), 50), humanize.Time(task.CreatedAt))
			if task.Error != "" {
				fmt.Printf("          %s\n", task.Error)
			}
		}
		return nil
	},
}

// taskCommand builds a subcommand applying action to the task matching an ID prefix
func taskCommand(use, short, done string, action func(*downloader.Manager, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mgr, err := downloader.NewManager(database.GetDB(), &cfg.Downloads, logger)
			if err != nil {
				return err
			}

			task, err := mgr.Find(ctx, args[0])
			if err != nil {
				return err
			}
			if err := action(mgr, ctx, task.ID); err != nil {
				return fmt.Errorf("failed to %s %s: %w", use, task.DisplayName(), err)
			}
			fmt.Printf("%s %s\n", done, task.DisplayName())
			return nil
		},
	}
}

var (
	downloadsRetryCmd = taskCommand("retry", "Queue a failed or cancelled download again",
		"Queued (resumes the next time vmusic runs)", (*downloader.Manager).Retry)
	downloadsCancelCmd = taskCommand("cancel", "Cancel a download", "Cancelled", (*downloader.Manager).Cancel)
	downloadsRemoveCmd = taskCommand("remove", "Remove a download from the list, keeping the file", "Removed", (*downloader.Manager).Remove)
	downloadsDeleteCmd = taskCommand("delete", "Remove a download and delete its file", "Deleted", (*downloader.Manager).Delete)
)

var downloadsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove finished, failed and cancelled downloads from the list",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := downloader.NewManager(database.GetDB(), &cfg.Downloads, logger)
		if err != nil {
			return err
		}
		return mgr.ClearFinished(cmd.Context())
	},
}

// tokenCmd manages the API token pair
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the API access token",
}

var tokenRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch a new token pair from the token endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		httpClient := providerhttp.NewClient(providerhttp.ClientConfig{
			Timeout:    cfg.API.Timeout,
			MaxRetries: cfg.API.MaxRetries,
			UserAgent:  cfg.API.UserAgent,
			Logger:     logger,
		})
		refresher := auth.NewRefresher(cfg.API.TokenURL, httpClient, auth.NewDBStore(database.GetDB()), logger)

		pair, err := refresher.Refresh(ctx)
		if err != nil {
			return fmt.Errorf("token refresh failed: %w", err)
		}
		fmt.Printf("Token refreshed: %s\n", mask(pair.VKToken))
		return nil
	},
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored tokens, masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		pair, err := auth.NewDBStore(database.GetDB()).Load(cmd.Context())
		if err != nil {
			return err
		}

		switch {
		case !pair.IsZero():
			fmt.Printf("VK token:     %s\n", mask(pair.VKToken))
			fmt.Printf("Last.fm token: %s\n", mask(pair.LastFMToken))
		case cfg.API.AccessToken != "":
			fmt.Printf("VK token:     %s (from config)\n", mask(cfg.API.AccessToken))
		default:
			fmt.Println("No token stored; run 'vmusic token refresh'")
		}
		return nil
	},
}

// mask keeps the first and last four characters of a secret
func mask(s string) string {
	switch {
	case s == "":
		return "(none)"
	case len(s) <= 8:
		return "********"
	default:
		return s[:4] + "…" + s[len(s)-4:]
	}
}

// historyCmd prints recorded searches and plays
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show search and play history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("limit")
		outcome, _ := cmd.Flags().GetString("outcome")
		plays, _ := cmd.Flags().GetBool("plays")
		stats, _ := cmd.Flags().GetBool("stats")
		clearAll, _ := cmd.Flags().GetBool("clear")

		svc := history.NewService(database.GetDB())

		switch {
		case clearAll:
			if err := svc.Clear(ctx); err != nil {
				return err
			}
			fmt.Println("History cleared")

		case stats:
			s, err := svc.GetStats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Searches:  %d\n", s.TotalSearches)
			for kind, n := range s.ByOutcome {
				fmt.Printf("  %-13s %d\n", kind, n)
			}
			fmt.Printf("Plays:     %d\n", s.TotalPlays)
			fmt.Printf("Listening: %s\n", s.TotalListening)

		case plays:
			items, err := svc.GetPlays(ctx, limit)
			if err != nil {
				return err
			}
			for _, item := range items {
				fmt.Printf("%-16s %7s  %s - %s\n", humanize.Time(item.PlayedAt),
					utils.FormatClock(item.Duration), item.Artist, item.Title)
			}

		default:
			items, err := svc.GetSearches(ctx, history.FilterOptions{Outcome: outcome, Limit: limit})
			if err != nil {
				return err
			}
			for _, item := range items {
				fmt.Printf("%-16s %-12s %4d  %s\n", humanize.Time(item.SearchedAt), item.Outcome, item.ResultCount, item.Query)
			}
		}
		return nil
	},
}

func init() {
	downloadsCmd.AddCommand(downloadsListCmd)
	downloadsCmd.AddCommand(downloadsRetryCmd)
	downloadsCmd.AddCommand(downloadsCancelCmd)
	downloadsCmd.AddCommand(downloadsRemoveCmd)
	downloadsCmd.AddCommand(downloadsDeleteCmd)
	downloadsCmd.AddCommand(downloadsClearCmd)

	tokenCmd.AddCommand(tokenRefreshCmd)
	tokenCmd.AddCommand(tokenShowCmd)

	historyCmd.Flags().IntP("limit", "n", 20, "number of entries")
	historyCmd.Flags().String("outcome", "", "only searches with this outcome: results, not_found, network, auth_expired, domain, unexpected")
	historyCmd.Flags().Bool("plays", false, "show played tracks instead of searches")
	historyCmd.Flags().Bool("stats", false, "show totals")
	historyCmd.Flags().Bool("clear", false, "delete all history")
}
