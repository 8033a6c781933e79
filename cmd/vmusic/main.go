package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/veriloft/vmusic/internal/clipboard"
	"github.com/veriloft/vmusic/internal/config"
	"github.com/veriloft/vmusic/internal/database"
	"github.com/veriloft/vmusic/internal/media"
	"github.com/veriloft/vmusic/internal/tui"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	noColor   bool
	debugMode bool

	// Global config and logger
	cfg    *config.Config
	v      *viper.Viper
	logger *slog.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vmusic [query]",
	Short: "Search, play and download music from VK in the terminal",
	Long: `vmusic searches the VK audio catalogue and plays tracks through mpv.

Run it without a subcommand to open the interactive interface. A query given
on the command line is searched right away.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipsSetup(cmd) {
			return nil
		}

		if err := config.InitializeDirs(); err != nil {
			return fmt.Errorf("failed to initialize directories: %w", err)
		}

		var err error
		cfg, v, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if debugMode {
			cfg.Advanced.Debug = true
			if logLevel == "" {
				cfg.Logging.Level = "debug"
			}
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if noColor {
			cfg.Logging.Color = false
		}

		logger, err = config.InitLogger(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := database.Init(&cfg.Database); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if skipsSetup(cmd) {
			return
		}
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("the interactive interface needs a terminal; use 'vmusic search' in scripts")
		}

		logger.Info("vmusic starting", "version", version)
		ctx := cmd.Context()

		svc, err := newServices(logger)
		if err != nil {
			return err
		}
		watchConfig(svc)

		if err := svc.downloads.Start(ctx); err != nil {
			return fmt.Errorf("failed to start download manager: %w", err)
		}
		defer func() {
			if err := svc.downloads.Stop(); err != nil {
				logger.Error("failed to stop download manager", "error", err)
			}
		}()

		deps := tui.Deps{
			Search:       svc.search,
			Preparer:     svc.preparer,
			Session:      &media.Session{},
			Downloads:    svc.downloads,
			History:      svc.history,
			Clipboard:    clipboard.NewService(logger, cfg.Advanced.Clipboard.Command),
			OpenURL:      browser.OpenURL,
			Logger:       logger,
			RecentLimit:  cfg.UI.HistorySize,
			ShowHelpHint: cfg.UI.ShowHelp,
		}

		// the TUI owns the terminal; keep the browser helper quiet
		browser.Stdout = nil
		browser.Stderr = nil

		return tui.Start(ctx, deps, strings.Join(args, " "))
	},
}

// skipsSetup reports whether cmd runs without config, logger and database
func skipsSetup(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "completion":
		return true
	case "init", "path":
		return cmd.Parent() != nil && cmd.Parent().Name() == "config"
	}
	return false
}

// watchConfig applies search and download settings when the config file changes
func watchConfig(svc *services) {
	if v == nil || v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("config file changed", "name", e.Name)

		var next config.Config
		if err := v.Unmarshal(&next); err != nil {
			logger.Error("failed to reload config", "error", err)
			return
		}
		if err := next.Validate(); err != nil {
			logger.Error("ignoring invalid config", "error", err)
			return
		}

		svc.apply(&next)
		logger.Info("config reloaded")
	})
	v.WatchConfig()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/vmusic/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored log output")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug mode")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(downloadsCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(historyCmd)
}
