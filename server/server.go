package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geojournal/cache"
	"geojournal/config"
	"geojournal/core/timeline"
	"geojournal/db"
	"geojournal/logger"
	"geojournal/repository"
	"geojournal/storage"
)

// Start connects the backing services and serves until SIGINT or SIGTERM.
func Start(cfg *config.Config) error {
	if cfg.AuthEnabled() && cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required when OWNER_PASSWORD_HASH is set")
	}
	if !cfg.AuthEnabled() {
		logger.Warn("OWNER_PASSWORD_HASH is not set, authentication is disabled")
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		return err
	}
	defer db.CloseGormDB()

	if err := db.InitSchema(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	clips, err := storage.NewClipStore(ctx, cfg)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to initialize MinIO: %w", err)
	}

	hub := timeline.NewHub()
	go hub.Run()
	defer hub.Stop()

	opts := []timeline.Option{
		timeline.WithClipPurger(clips),
		timeline.WithRenderers(hub),
	}
	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis unavailable, timeline cache disabled", logger.ErrorField(err))
	} else {
		defer cache.CloseRedis()
		opts = append(opts, timeline.WithCache(cache.NewTimelineCache(cache.RedisClient, cfg.TimelineCacheSize, cfg.TimelineCacheTTL)))
		logger.Info("Successfully connected to Redis")
	}

	tl := timeline.New(repository.NewGormEntryRepository(db.GormDB), opts...)
	handler := NewHandler(cfg, tl, hub, clips, clips)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", logger.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-stop:
	}

	logger.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
