package timeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"geojournal/core/coords"
	"geojournal/core/geo"
	"geojournal/logger"
	"geojournal/model"
	"geojournal/repository"
)

var (
	ErrEmptyText   = errors.New("entry text is empty")
	ErrEmptyHandle = errors.New("clip handle is empty")
)

// Renderer is a view of the timeline. Entries arrive newest last; a renderer
// shows them newest first.
type Renderer interface {
	AddTextEntry(ctx context.Context, entry *model.Entry) error
	AddAudioEntry(ctx context.Context, entry *model.Entry) error
	Clear(ctx context.Context) error
}

// EntryCache holds a capped newest-first copy of the timeline.
type EntryCache interface {
	Size() int
	Push(ctx context.Context, entry *model.Entry) error
	Recent(ctx context.Context, limit int) ([]*model.Entry, bool, error)
	Fill(ctx context.Context, entries []*model.Entry) error
	Reset(ctx context.Context) error
	// Invalidate marks the cache cold so the next List refills it.
	Invalidate(ctx context.Context) error
}

// ClipPurger removes stored recordings when the timeline is cleared.
type ClipPurger interface {
	PurgeClips(ctx context.Context) error
}

// Timeline owns the ordered collection of entries. All mutations go through
// it so that every renderer sees entries in persistence order.
type Timeline struct {
	repo      repository.EntryRepository
	cache     EntryCache
	clips     ClipPurger
	renderers []Renderer
	now       func() time.Time

	mu sync.Mutex
}

type Option func(*Timeline)

func WithCache(c EntryCache) Option {
	return func(t *Timeline) { t.cache = c }
}

func WithClipPurger(p ClipPurger) Option {
	return func(t *Timeline) { t.clips = p }
}

func WithRenderers(r ...Renderer) Option {
	return func(t *Timeline) { t.renderers = append(t.renderers, r...) }
}

func withClock(now func() time.Time) Option {
	return func(t *Timeline) { t.now = now }
}

func New(repo repository.EntryRepository, opts ...Option) *Timeline {
	t := &Timeline{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AddText appends a text entry. Surrounding whitespace is dropped.
func (t *Timeline) AddText(ctx context.Context, text string, c coords.Coordinate) (*model.Entry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	return t.add(ctx, model.EntryKindText, text, c)
}

// AddAudio appends an audio entry referring to a stored clip.
func (t *Timeline) AddAudio(ctx context.Context, handle string, c coords.Coordinate) (*model.Entry, error) {
	if handle == "" {
		return nil, ErrEmptyHandle
	}
	return t.add(ctx, model.EntryKindAudio, handle, c)
}

func (t *Timeline) add(ctx context.Context, kind model.EntryKind, payload string, c coords.Coordinate) (*model.Entry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry := model.NewEntry(kind, payload, c, t.now().UTC())
	if cell, err := geo.CellOf(c); err != nil {
		logger.Warn("entry left out of the cell index", logger.ErrorField(err))
	} else {
		entry.Cell = cell
	}
	if err := t.repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("persist entry: %w", err)
	}

	if t.cache != nil {
		if err := t.cache.Push(ctx, entry); err != nil {
			logger.Warn("timeline cache push failed",
				logger.String("entry", entry.ID),
				logger.ErrorField(err))
			t.invalidateCache(ctx)
		}
	}

	for _, r := range t.renderers {
		var err error
		if kind == model.EntryKindAudio {
			err = r.AddAudioEntry(ctx, entry)
		} else {
			err = r.AddTextEntry(ctx, entry)
		}
		if err != nil {
			logger.Warn("timeline render failed",
				logger.String("entry", entry.ID),
				logger.ErrorField(err))
		}
	}

	logger.Info("timeline entry added",
		logger.String("id", entry.ID),
		logger.String("kind", string(kind)),
		logger.String("location", coords.Format(c.Latitude, c.Longitude)))
	return entry, nil
}

// List returns up to limit entries, newest first.
func (t *Timeline) List(ctx context.Context, limit int) ([]*model.Entry, error) {
	if limit <= 0 {
		return []*model.Entry{}, nil
	}

	if t.cache != nil {
		entries, ok, err := t.cache.Recent(ctx, limit)
		if err != nil {
			logger.Warn("timeline cache read failed", logger.ErrorField(err))
		} else if ok {
			return entries, nil
		}
	}

	warm := t.cache != nil && limit <= t.cache.Size()
	if !warm {
		entries, err := t.repo.ListRecent(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("list entries: %w", err)
		}
		return entries, nil
	}

	// writes wait until the snapshot is in the cache, otherwise Push would
	// skip the still-cold cache and Fill would drop the new entry
	t.mu.Lock()
	entries, err := t.repo.ListRecent(ctx, t.cache.Size())
	if err != nil {
		t.mu.Unlock()
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if err := t.cache.Fill(ctx, entries); err != nil {
		logger.Warn("timeline cache fill failed", logger.ErrorField(err))
	}
	t.mu.Unlock()

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// invalidateCache is the fallback when the cache missed a write. If it
// fails too, the cache's own expiry bounds how long stale rows are served.
func (t *Timeline) invalidateCache(ctx context.Context) {
	if err := t.cache.Invalidate(context.WithoutCancel(ctx)); err != nil {
		logger.Error("timeline cache invalidation failed", logger.ErrorField(err))
	}
}

// Near returns up to limit entries written within rings cells of c, newest
// first. Nearby lookups always go to the repository.
func (t *Timeline) Near(ctx context.Context, c coords.Coordinate, rings, limit int) ([]*model.Entry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []*model.Entry{}, nil
	}

	cells, err := geo.CellsNear(c, rings)
	if err != nil {
		return nil, err
	}
	entries, err := t.repo.ListInCells(ctx, cells, limit)
	if err != nil {
		return nil, fmt.Errorf("list nearby entries: %w", err)
	}
	return entries, nil
}

// Clear removes every entry and every stored clip.
func (t *Timeline) Clear(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed, err := t.repo.DeleteAll(ctx)
	if err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}

	if t.cache != nil {
		if err := t.cache.Reset(ctx); err != nil {
			logger.Warn("timeline cache reset failed", logger.ErrorField(err))
			t.invalidateCache(ctx)
		}
	}
	if t.clips != nil {
		if err := t.clips.PurgeClips(ctx); err != nil {
			logger.Warn("clip purge failed", logger.ErrorField(err))
		}
	}
	for _, r := range t.renderers {
		if err := r.Clear(ctx); err != nil {
			logger.Warn("timeline render clear failed", logger.ErrorField(err))
		}
	}

	logger.Info("timeline cleared", logger.Int64("entries", removed))
	return nil
}
