package cmd

import (
	"context"
	"fmt"
	"time"

	"geojournal/cache"
	"geojournal/core/timeline"
	"geojournal/db"
	"geojournal/logger"
	"geojournal/repository"
	"geojournal/storage"
)

// backend is the set of services a one-shot command writes through. It
// mirrors what the server wires, minus the live hub.
type backend struct {
	timeline *timeline.Timeline
	clips    *storage.ClipStore
	closers  []func() error
}

// openBackend connects MySQL and, when available, Redis. The clip store is
// only opened when withClips is set since text-only commands never touch it.
func openBackend(ctx context.Context, withClips bool) (*backend, error) {
	b := &backend{}

	if err := db.ConnectGormDB(cfg); err != nil {
		return nil, err
	}
	b.closers = append(b.closers, db.CloseGormDB)

	if err := db.InitSchema(); err != nil {
		b.Close()
		return nil, err
	}

	var opts []timeline.Option
	if withClips {
		storeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		clips, err := storage.NewClipStore(storeCtx, cfg)
		cancel()
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to initialize MinIO: %w", err)
		}
		b.clips = clips
		opts = append(opts, timeline.WithClipPurger(clips))
	}

	// keep the server's cached timeline in step with entries written here
	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis unavailable, timeline cache disabled", logger.ErrorField(err))
	} else {
		b.closers = append(b.closers, cache.CloseRedis)
		opts = append(opts, timeline.WithCache(cache.NewTimelineCache(cache.RedisClient, cfg.TimelineCacheSize, cfg.TimelineCacheTTL)))
	}

	b.timeline = timeline.New(repository.NewGormEntryRepository(db.GormDB), opts...)
	return b, nil
}

// Close releases connections in reverse order of opening.
func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			logger.Warn("failed to close connection", logger.ErrorField(err))
		}
	}
	b.closers = nil
}
