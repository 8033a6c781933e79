package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/veriloft/vmusic/internal/downloader"
	"github.com/veriloft/vmusic/internal/providers/vk"
	"github.com/veriloft/vmusic/internal/tui/utils"
)

// searchCmd prints the results of one query
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search for tracks and print the results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		showURLs, _ := cmd.Flags().GetBool("urls")

		svc, err := newServices(logger)
		if err != nil {
			return err
		}

		results, err := runSearch(cmd.Context(), svc, strings.Join(args, " "))
		if err != nil {
			return err
		}

		if limit > 0 && len(results) > limit {
			results = results[:limit]
		}
		for i, audio := range results {
			fmt.Printf("%3d  %7s  %s\n", i+1, audio.FormatDuration(), utils.TruncateWithWidth(audio.DisplayName(), 70))
			if showURLs && audio.URL != "" {
				fmt.Printf("     %s\n", audio.URL)
			}
		}
		return nil
	},
}

// playCmd plays a URL, or a search result, until it ends or is interrupted
var playCmd = &cobra.Command{
	Use:   "play <url|query>",
	Short: "Play a stream URL or a search result through mpv",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, _ := cmd.Flags().GetInt("index")
		ctx := cmd.Context()

		svc, err := newServices(logger)
		if err != nil {
			return err
		}

		arg := strings.Join(args, " ")
		audio := vk.Audio{URL: arg}
		name := arg
		if !isLocator(arg) {
			if audio, err = pickResult(ctx, svc, arg, index); err != nil {
				return err
			}
			name = audio.DisplayName()
		}

		fmt.Printf("Preparing %s...\n", name)
		res := <-svc.preparer.Prepare(ctx, audio.Source())
		if !res.Ready() {
			return fmt.Errorf("playback failed: %w", res.Err)
		}
		defer func() {
			if err := res.Handle.Release(); err != nil {
				logger.Warn("failed to release player", "error", err)
			}
		}()

		if audio.ID != 0 {
			if err := svc.history.RecordPlay(ctx, audio); err != nil {
				logger.Warn("failed to record play", "error", err)
			}
		}

		ended := make(chan error, 1)
		if p, ok := res.Handle.(interface {
			OnPlaybackEnd(func())
			OnError(func(error))
		}); ok {
			p.OnPlaybackEnd(func() { notify(ended, nil) })
			p.OnError(func(err error) { notify(ended, err) })
		}

		fmt.Printf("▶ Playing %s (ctrl+c to stop)\n", name)
		select {
		case err := <-ended:
			return err
		case <-ctx.Done():
			fmt.Println()
			return nil
		}
	},
}

// downloadCmd downloads one search result and waits for it to finish
var downloadCmd = &cobra.Command{
	Use:   "download <query>",
	Short: "Download a search result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, _ := cmd.Flags().GetInt("index")
		outputDir, _ := cmd.Flags().GetString("output")
		ctx := cmd.Context()

		svc, err := newServices(logger)
		if err != nil {
			return err
		}
		mgr := svc.downloads
		if outputDir != "" {
			mgr.SetOutputDir(outputDir)
		}

		audio, err := pickResult(ctx, svc, strings.Join(args, " "), index)
		if err != nil {
			return err
		}

		done := make(chan error, 1)
		var taskID string
		mgr.OnProgressUpdate(func(task downloader.DownloadTask) {
			if task.ID != taskID {
				return
			}
			fmt.Printf("\r%s %5.1f%%  %s/%s  %s/s   ", utils.ProgressBar(task.Progress, 30), task.Progress,
				humanize.IBytes(uint64(task.BytesDownloaded)), humanize.IBytes(uint64(task.TotalBytes)),
				humanize.IBytes(uint64(task.Speed)))
		})
		mgr.OnDownloadComplete(func(task downloader.DownloadTask) {
			if task.ID == taskID {
				notify(done, nil)
			}
		})
		mgr.OnDownloadError(func(task downloader.DownloadTask, err error) {
			if task.ID == taskID {
				notify(done, err)
			}
		})

		task, err := mgr.Enqueue(ctx, audio)
		switch {
		case errors.Is(err, downloader.ErrAlreadyCompleted):
			fmt.Printf("%s is already downloaded: %s\n", audio.DisplayName(), task.OutputPath)
			return nil
		case errors.Is(err, downloader.ErrAlreadyQueued), errors.Is(err, downloader.ErrResumingExisting):
			fmt.Printf("Continuing %s\n", audio.DisplayName())
		case err != nil:
			return fmt.Errorf("failed to queue download: %w", err)
		}
		taskID = task.ID

		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start download manager: %w", err)
		}
		defer func() { _ = mgr.Stop() }()

		fmt.Printf("Downloading %s\n", audio.DisplayName())
		select {
		case err := <-done:
			fmt.Println()
			if err != nil {
				return fmt.Errorf("download failed: %w", err)
			}
			fmt.Printf("Saved to %s\n", task.OutputPath)
			return nil
		case <-ctx.Done():
			fmt.Println("\nDownload paused; it resumes the next time vmusic runs")
			return nil
		}
	},
}

func runSearch(ctx context.Context, svc *services, query string) ([]vk.Audio, error) {
	out := svc.search.Search(ctx, query)
	svc.search.WaitRefresh()
	if !out.OK() {
		logger.Debug("search failed", "query", query, "error", out.Err)
		return nil, errors.New(out.Err.UserMessage())
	}
	return out.Results, nil
}

// pickResult searches query and returns the index-th result, counting from 1
func pickResult(ctx context.Context, svc *services, query string, index int) (vk.Audio, error) {
	results, err := runSearch(ctx, svc, query)
	if err != nil {
		return vk.Audio{}, err
	}
	if index < 1 || index > len(results) {
		return vk.Audio{}, fmt.Errorf("index %d out of range, %d results", index, len(results))
	}

	audio := results[index-1]
	if audio.Source() == "" {
		return vk.Audio{}, fmt.Errorf("%s has no stream URL", audio.DisplayName())
	}
	return audio, nil
}

// notify delivers the first result only
func notify(ch chan error, err error) {
	select {
	case ch <- err:
	default:
	}
}

// isLocator reports whether s can be handed to mpv as is
func isLocator(s string) bool {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return true
	}
	_, err := os.Stat(s)
	return err == nil
}

func init() {
	searchCmd.Flags().IntP("limit", "n", 0, "print at most n results")
	searchCmd.Flags().Bool("urls", false, "print stream URLs")

	playCmd.Flags().IntP("index", "i", 1, "result to play when given a query")

	downloadCmd.Flags().IntP("index", "i", 1, "result to download")
	downloadCmd.Flags().StringP("output", "o", "", "output directory (default: downloads.path)")
}
