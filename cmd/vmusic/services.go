package main

import (
	"fmt"
	"log/slog"

	"github.com/veriloft/vmusic/internal/auth"
	"github.com/veriloft/vmusic/internal/config"
	"github.com/veriloft/vmusic/internal/database"
	"github.com/veriloft/vmusic/internal/downloader"
	"github.com/veriloft/vmusic/internal/history"
	"github.com/veriloft/vmusic/internal/media"
	"github.com/veriloft/vmusic/internal/player"
	"github.com/veriloft/vmusic/internal/player/mpv"
	providerhttp "github.com/veriloft/vmusic/internal/providers/http"
	"github.com/veriloft/vmusic/internal/providers/vk"
	"github.com/veriloft/vmusic/internal/search"
)

// services is everything the commands drive, built from the loaded config
type services struct {
	httpClient *providerhttp.Client
	tokens     auth.Store
	refresher  *auth.Refresher
	vk         *vk.Client
	history    *history.Service
	search     *search.Controller
	preparer   *media.Preparer
	downloads  *downloader.Manager
}

func newServices(logger *slog.Logger) (*services, error) {
	db := database.GetDB()
	if db == nil {
		return nil, fmt.Errorf("database is not initialized")
	}

	httpClient := providerhttp.NewClient(providerhttp.ClientConfig{
		Timeout:    cfg.API.Timeout,
		MaxRetries: cfg.API.MaxRetries,
		UserAgent:  cfg.API.UserAgent,
		Debug:      cfg.Advanced.Debug,
		Logger:     logger,
	})

	tokens := auth.NewDBStore(db)
	refresher := auth.NewRefresher(cfg.API.TokenURL, httpClient, tokens, logger)
	client := vk.NewClient(cfg.API, httpClient, logger)
	hist := history.NewService(db)

	controller := search.NewController(search.Config{
		Searcher:  client,
		Tokens:    &auth.Source{Store: tokens, Fallback: cfg.API.AccessToken},
		Refresher: refresher,
		Recorder:  hist,
		Logger:    logger,
	})

	acquirer := mpv.NewAcquirer(mpv.OptionsFromConfig(cfg, logger), player.PlayOptions{
		Volume:    cfg.Player.Volume,
		ExtraArgs: cfg.Player.Args,
	})

	downloads, err := downloader.NewManager(db, &cfg.Downloads, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize download manager: %w", err)
	}

	return &services{
		httpClient: httpClient,
		tokens:     tokens,
		refresher:  refresher,
		vk:         client,
		history:    hist,
		search:     controller,
		preparer:   media.NewPreparer(acquirer, logger),
		downloads:  downloads,
	}, nil
}

// apply carries the settings that can change at runtime over to the services
func (s *services) apply(next *config.Config) {
	s.httpClient.SetTimeout(next.API.Timeout)
	s.vk.SetOptions(vk.Options{
		Autocomplete: next.API.Autocomplete,
		Sort:         next.API.Sort,
		Count:        next.API.Count,
	})
	s.downloads.SetConcurrency(next.Downloads.Concurrent)
}
