package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"traktfm/api"
	"traktfm/bot"
	"traktfm/config"
	"traktfm/handlers"
	"traktfm/internal/database"
	"traktfm/internal/logging"
	"traktfm/internal/telemetry"
	"traktfm/services/grid"
	"traktfm/services/history"
	"traktfm/services/metadata"
	"traktfm/services/trakt"
	"traktfm/services/users"
	"traktfm/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("%v", err)
	}

	closer := logging.Setup(logging.Config{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer closer.Close()

	telemetry.Init()

	db, err := database.NewDB(database.Config{
		DatabasePath: cfg.Storage.DatabasePath,
		BusyTimeout:  cfg.Storage.BusyTimeout,
	})
	if err != nil {
		log.Fatalf("[main] database: %v", err)
	}
	store := database.NewHistoryRepository(db)

	traktClient := trakt.NewClient(cfg.Trakt.APIKey, cfg.Trakt.Timeout)

	resolver := metadata.NewPosterResolver(nil)
	if cfg.TMDB.APIKey != "" {
		tmdb := metadata.NewTMDBClient(cfg.TMDB.APIKey, &http.Client{Timeout: cfg.TMDB.Timeout})
		resolver = metadata.NewPosterResolver(tmdb)
	} else {
		log.Printf("[main] TMDB_API_KEY not set, posters missing on Trakt use the placeholder")
	}

	composer, err := grid.NewComposer(grid.Options{
		FetchTimeout:   cfg.Grid.FetchTimeout,
		MaxConcurrency: cfg.Grid.MaxConcurrency,
	})
	if err != nil {
		log.Fatalf("[main] grid composer: %v", err)
	}

	historySvc := history.NewService(traktClient, store, resolver, composer)
	links := users.NewService(afero.NewOsFs(), cfg.Storage.UsersFile)

	handler := handlers.NewCommandHandler(links, historySvc, nil, cfg.Discord.Prefix)
	if cfg.Trakt.VerifyUsers {
		handler.Accounts = traktClient
	}

	commandLimiter := api.NewKeyedRateLimiter(rate.Every(cfg.RateLimit.Interval), cfg.RateLimit.Burst)
	defer commandLimiter.Close()
	opsLimiter := api.NewKeyedRateLimiter(rate.Limit(5), 20)
	defer opsLimiter.Close()

	discord := bot.New(bot.Config{
		Token:          cfg.Discord.Token,
		Prefix:         cfg.Discord.Prefix,
		CommandTimeout: cfg.Discord.CommandTimeout,
	}, handler, commandLimiter)

	ops := api.NewServer(store, opsLimiter, map[string]utils.HealthCheck{
		"database": db.Ping,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return discord.Run(gctx)
	})
	g.Go(func() error {
		return api.Serve(gctx, cfg.Ops.Addr, ops.Routes())
	})

	if err := g.Wait(); err != nil {
		log.Printf("[main] exiting: %v", err)
		closer.Close()
		os.Exit(1)
	}
	log.Printf("[main] stopped")
}
