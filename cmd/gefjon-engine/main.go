// Package main initializes and runs the Gefjon engine.
//
// It acts as the composition root: it wires the storefront cart client, the
// campaign store and its caches, the reconciliation engine with its trigger
// loop, the periodic syncer and the two HTTP servers, and owns the process
// lifecycle.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rafaeljc/gefjon/internal/cache"
	"github.com/rafaeljc/gefjon/internal/campaign"
	"github.com/rafaeljc/gefjon/internal/cart"
	"github.com/rafaeljc/gefjon/internal/config"
	"github.com/rafaeljc/gefjon/internal/database"
	"github.com/rafaeljc/gefjon/internal/engine"
	"github.com/rafaeljc/gefjon/internal/giftstate"
	"github.com/rafaeljc/gefjon/internal/logger"
	"github.com/rafaeljc/gefjon/internal/observability"
	"github.com/rafaeljc/gefjon/internal/selection"
	"github.com/rafaeljc/gefjon/internal/store"
	"github.com/rafaeljc/gefjon/internal/storefront"
	"github.com/rafaeljc/gefjon/internal/storefrontapi"
	"github.com/rafaeljc/gefjon/internal/syncer"
	"github.com/rafaeljc/gefjon/internal/trigger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	startedAt := time.Now()

	// -------------------------------------------------------------------------
	// 1. Configuration & Logging
	// -------------------------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(&cfg.App)
	slog.SetDefault(log)
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	// -------------------------------------------------------------------------
	// 2. Infrastructure
	// -------------------------------------------------------------------------
	sf, err := storefront.New(log, &cfg.Storefront)
	if err != nil {
		return fmt.Errorf("failed to create storefront client: %w", err)
	}
	log.Info("storefront cart session", slog.Bool("pinned", sf.CartToken() != ""))
	checkers := []observability.Checker{sf}

	var source campaign.Source
	switch cfg.Campaigns.Source {
	case config.CampaignSourcePostgres:
		pool, err := database.NewPostgresPool(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		defer pool.Close()

		metafields := store.NewMetafieldSource(pool, cfg.Campaigns.MetafieldNamespace, cfg.Campaigns.MetafieldKey)
		source = metafields
		checkers = append(checkers, metafields)
	default:
		source = sf.Campaigns(cfg.Campaigns.Path)
	}

	l1, err := cache.NewMemoryCache[string, []campaign.Campaign]("campaigns", cfg.Campaigns.CacheCapacity, cfg.Campaigns.CacheInterval)
	if err != nil {
		return fmt.Errorf("failed to create campaign cache: %w", err)
	}
	defer l1.Close()

	var storeOpts []campaign.StoreOption
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		l2 := cache.NewRedisCache(client)
		defer l2.Close()

		storeOpts = append(storeOpts, campaign.WithDocumentCache(l2, cfg.Redis.DocumentTTL))
		checkers = append(checkers, l2)
	}

	campaigns := campaign.NewStore(log, source, l1, storeOpts...)

	// -------------------------------------------------------------------------
	// 3. Engine & Trigger loop
	// -------------------------------------------------------------------------
	mutator := cart.NewMutator(sf)
	coordinator := selection.NewCoordinator(log, mutator)
	state := giftstate.NewPublisher(log)

	eng := engine.New(log, engine.Deps{
		Campaigns:   campaigns,
		Cart:        cart.NewAccessor(sf),
		Mutator:     mutator,
		Collections: sf,
		Selection:   coordinator,
		Publisher:   state,
	})

	scheduler := trigger.NewScheduler(log, trigger.Config{
		Debounce:        cfg.Engine.Debounce,
		MinInterval:     cfg.Engine.MinInterval,
		SlowMinInterval: cfg.Engine.SlowMinInterval,
		SlowThreshold:   cfg.Engine.SlowThreshold,
	}, eng.Run)
	scheduler.Start(ctx)

	bus := trigger.NewBus()
	bus.Subscribe(scheduler.HandleEvent)
	mutator.Observe(trigger.MutationObserver(bus, scheduler.ObserveLatency))

	periodic := syncer.New(log, syncer.Config{Interval: cfg.Engine.PeriodicInterval}, campaigns, bus)

	// -------------------------------------------------------------------------
	// 4. Servers
	// -------------------------------------------------------------------------
	api := storefrontapi.NewAPI(log, state, coordinator, bus)
	apiServer := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           api.Router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
	}

	obsServer := observability.NewServer(log, &cfg.Observability, checkers...)
	obsServer.Start()

	serverErr := make(chan error, 1)
	go func() {
		log.Info("storefront api listening",
			slog.String("addr", apiServer.Addr),
			slog.Bool("tls", cfg.Server.TLSEnabled),
		)
		var err error
		if cfg.Server.TLSEnabled {
			err = apiServer.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			err = apiServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = periodic.Run(ctx)
	}()

	// -------------------------------------------------------------------------
	// 5. Graceful Shutdown
	// -------------------------------------------------------------------------
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		runErr = fmt.Errorf("storefront api failed: %w", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error("storefront api shutdown failed", slog.String("error", err.Error()))
	}

	wg.Wait()
	scheduler.Stop()

	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("observability server shutdown failed", slog.String("error", err.Error()))
	}

	log.Info("engine stopped", slog.Duration("uptime", time.Since(startedAt)))
	return runErr
}
