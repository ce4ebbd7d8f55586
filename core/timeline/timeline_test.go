package timeline

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"geojournal/core/coords"
	"geojournal/model"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu        sync.Mutex
	entries   []*model.Entry
	createErr error
	lists     int

	// when set, ListRecent reports on listed and then waits for gate
	// before returning its snapshot
	listed chan struct{}
	gate   chan struct{}
}

func (r *memoryRepo) Create(ctx context.Context, entry *model.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memoryRepo) ListRecent(ctx context.Context, limit int) ([]*model.Entry, error) {
	r.mu.Lock()
	r.lists++
	out := make([]*model.Entry, len(r.entries))
	copy(out, r.entries)
	listed, gate := r.listed, r.gate
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	if gate != nil {
		listed <- struct{}{}
		<-gate
	}
	return out, nil
}

func (r *memoryRepo) ListInCells(ctx context.Context, cells []int64, limit int) ([]*model.Entry, error) {
	all, _ := r.ListRecent(ctx, 1<<30)
	out := []*model.Entry{}
	for _, e := range all {
		if len(out) < limit && slices.Contains(cells, e.Cell) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetByID(ctx context.Context, id string) (*model.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) DeleteAll(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.entries))
	r.entries = nil
	return n, nil
}

func (r *memoryRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.entries)), nil
}

type fakeCache struct {
	mu            sync.Mutex
	size          int
	warm          bool
	entries       []*model.Entry
	pushErr       error
	resetErr      error
	resets        int
	invalidations int
}

func (c *fakeCache) Size() int { return c.size }

func (c *fakeCache) Push(ctx context.Context, entry *model.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pushErr != nil {
		return c.pushErr
	}
	if c.warm {
		c.entries = append([]*model.Entry{entry}, c.entries...)
	}
	return nil
}

func (c *fakeCache) Recent(ctx context.Context, limit int) ([]*model.Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.warm || limit > c.size {
		return nil, false, nil
	}
	if len(c.entries) > limit {
		return c.entries[:limit], true, nil
	}
	return c.entries, true, nil
}

func (c *fakeCache) Fill(ctx context.Context, entries []*model.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = entries
	c.warm = true
	return nil
}

func (c *fakeCache) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
	if c.resetErr != nil {
		return c.resetErr
	}
	c.entries = nil
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidations++
	c.warm = false
	c.entries = nil
	return nil
}

type recordingRenderer struct {
	events []string
	err    error
}

func (r *recordingRenderer) AddTextEntry(ctx context.Context, e *model.Entry) error {
	r.events = append(r.events, "text:"+e.Payload)
	return r.err
}

func (r *recordingRenderer) AddAudioEntry(ctx context.Context, e *model.Entry) error {
	r.events = append(r.events, "audio:"+e.Payload)
	return r.err
}

func (r *recordingRenderer) Clear(ctx context.Context) error {
	r.events = append(r.events, "clear")
	return r.err
}

type countingPurger struct{ calls int }

func (p *countingPurger) PurgeClips(ctx context.Context) error {
	p.calls++
	return nil
}

func steppingClock() func() time.Time {
	t := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

var berlin = coords.Coordinate{Latitude: 52.52, Longitude: 13.405}

func TestAddTextTrimsAndRenders(t *testing.T) {
	repo := &memoryRepo{}
	r := &recordingRenderer{}
	tl := New(repo, WithRenderers(r), withClock(steppingClock()))

	entry, err := tl.AddText(context.Background(), "  hello world \n", berlin)
	require.NoError(t, err)

	assert.Equal(t, model.EntryKindText, entry.Kind)
	assert.Equal(t, "hello world", entry.Payload)
	assert.Equal(t, berlin, entry.Coordinate())
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, []string{"text:hello world"}, r.events)
	assert.Len(t, repo.entries, 1)
}

func TestAddRejectsEmptyInput(t *testing.T) {
	repo := &memoryRepo{}
	r := &recordingRenderer{}
	tl := New(repo, WithRenderers(r))

	_, err := tl.AddText(context.Background(), " \t\n", berlin)
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = tl.AddAudio(context.Background(), "", berlin)
	assert.ErrorIs(t, err, ErrEmptyHandle)

	_, err = tl.AddText(context.Background(), "off the map", coords.Coordinate{Latitude: 91})
	assert.ErrorIs(t, err, coords.ErrInvalidRange)

	assert.Empty(t, repo.entries)
	assert.Empty(t, r.events)
}

func TestAddAudioUsesHandle(t *testing.T) {
	repo := &memoryRepo{}
	r := &recordingRenderer{}
	tl := New(repo, WithRenderers(r))

	entry, err := tl.AddAudio(context.Background(), "clips/abc.webm", berlin)
	require.NoError(t, err)
	assert.Equal(t, model.EntryKindAudio, entry.Kind)
	assert.Equal(t, "/clips/abc.webm", entry.AudioURL())
	assert.Equal(t, []string{"audio:clips/abc.webm"}, r.events)
}

func TestPersistFailureRendersNothing(t *testing.T) {
	repo := &memoryRepo{createErr: errors.New("db down")}
	r := &recordingRenderer{}
	cache := &fakeCache{size: 10, warm: true}
	tl := New(repo, WithRenderers(r), WithCache(cache))

	_, err := tl.AddText(context.Background(), "lost", berlin)
	require.Error(t, err)
	assert.Empty(t, r.events)
	assert.Empty(t, cache.entries)
}

func TestRendererAndCacheFailuresAreNotReturned(t *testing.T) {
	repo := &memoryRepo{}
	failing := &recordingRenderer{err: errors.New("socket closed")}
	healthy := &recordingRenderer{}
	cache := &fakeCache{size: 10, pushErr: errors.New("redis down")}
	tl := New(repo, WithRenderers(failing, healthy), WithCache(cache))

	entry, err := tl.AddText(context.Background(), "kept", berlin)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []string{"text:kept"}, healthy.events)
	assert.Len(t, repo.entries, 1)
	assert.Equal(t, 1, cache.invalidations)
}

func TestFailedPushInvalidatesCache(t *testing.T) {
	repo := &memoryRepo{}
	cache := &fakeCache{size: 5}
	tl := New(repo, WithCache(cache), withClock(steppingClock()))
	ctx := context.Background()

	_, err := tl.AddText(ctx, "first", berlin)
	require.NoError(t, err)
	_, err = tl.List(ctx, 5)
	require.NoError(t, err)
	require.True(t, cache.warm)

	cache.pushErr = errors.New("redis down")
	_, err = tl.AddText(ctx, "second", berlin)
	require.NoError(t, err)
	cache.pushErr = nil

	entries, err := tl.List(ctx, 5)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Payload)
}

func TestAddDuringCacheWarmupIsKept(t *testing.T) {
	repo := &memoryRepo{listed: make(chan struct{}), gate: make(chan struct{})}
	cache := &fakeCache{size: 5}
	tl := New(repo, WithCache(cache), withClock(steppingClock()))
	ctx := context.Background()

	listDone := make(chan error, 1)
	go func() {
		_, err := tl.List(ctx, 5)
		listDone <- err
	}()
	<-repo.listed

	added := make(chan error, 1)
	go func() {
		_, err := tl.AddText(ctx, "written while warming", berlin)
		added <- err
	}()
	// give the write a chance to overtake the warm-up
	select {
	case err := <-added:
		added <- err
	case <-time.After(50 * time.Millisecond):
	}

	repo.mu.Lock()
	gate := repo.gate
	repo.gate, repo.listed = nil, nil
	repo.mu.Unlock()
	close(gate)
	require.NoError(t, <-listDone)
	require.NoError(t, <-added)

	entries, err := tl.List(ctx, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "written while warming", entries[0].Payload)
}

func TestListNewestFirst(t *testing.T) {
	repo := &memoryRepo{}
	tl := New(repo, withClock(steppingClock()))

	for _, text := range []string{"first", "second", "third"} {
		_, err := tl.AddText(context.Background(), text, berlin)
		require.NoError(t, err)
	}

	entries, err := tl.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "third", entries[0].Payload)
	assert.Equal(t, "second", entries[1].Payload)

	entries, err = tl.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListWarmsCache(t *testing.T) {
	repo := &memoryRepo{}
	cache := &fakeCache{size: 5}
	tl := New(repo, WithCache(cache), withClock(steppingClock()))

	_, err := tl.AddText(context.Background(), "before warm", berlin)
	require.NoError(t, err)

	entries, err := tl.List(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, cache.warm)
	assert.Equal(t, 1, repo.lists)

	_, err = tl.AddText(context.Background(), "after warm", berlin)
	require.NoError(t, err)

	entries, err = tl.List(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "after warm", entries[0].Payload)
	assert.Equal(t, 1, repo.lists, "served from cache")

	// larger than the cache can answer
	_, err = tl.List(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.lists)
}

func TestClear(t *testing.T) {
	repo := &memoryRepo{}
	r := &recordingRenderer{}
	cache := &fakeCache{size: 5, warm: true}
	purger := &countingPurger{}
	tl := New(repo, WithRenderers(r), WithCache(cache), WithClipPurger(purger))

	_, err := tl.AddAudio(context.Background(), "clips/x.webm", berlin)
	require.NoError(t, err)

	require.NoError(t, tl.Clear(context.Background()))
	assert.Empty(t, repo.entries)
	assert.Equal(t, 1, cache.resets)
	assert.Equal(t, 1, purger.calls)
	assert.Equal(t, []string{"audio:clips/x.webm", "clear"}, r.events)

	entries, err := tl.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClearWithFailedResetDropsCachedEntries(t *testing.T) {
	repo := &memoryRepo{}
	cache := &fakeCache{size: 5}
	tl := New(repo, WithCache(cache), withClock(steppingClock()))
	ctx := context.Background()

	_, err := tl.List(ctx, 5)
	require.NoError(t, err)
	_, err = tl.AddText(ctx, "gone soon", berlin)
	require.NoError(t, err)

	cache.resetErr = errors.New("redis down")
	require.NoError(t, tl.Clear(ctx))
	assert.Equal(t, 1, cache.invalidations)

	entries, err := tl.List(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNearFiltersByCell(t *testing.T) {
	repo := &memoryRepo{}
	tl := New(repo, withClock(steppingClock()))
	ctx := context.Background()

	mitte := coords.Coordinate{Latitude: 52.5206, Longitude: 13.4094}
	paris := coords.Coordinate{Latitude: 48.8566, Longitude: 2.3522}

	for _, note := range []struct {
		text string
		at   coords.Coordinate
	}{
		{"brandenburger tor", berlin},
		{"louvre", paris},
		{"fernsehturm", mitte},
	} {
		entry, err := tl.AddText(ctx, note.text, note.at)
		require.NoError(t, err)
		assert.NotZero(t, entry.Cell)
	}

	entries, err := tl.Near(ctx, berlin, 2, 10)
	require.NoError(t, err)

	var got []string
	for _, e := range entries {
		got = append(got, e.Payload)
	}
	if diff := cmp.Diff([]string{"fernsehturm", "brandenburger tor"}, got); diff != "" {
		t.Errorf("Near() mismatch (-want +got):\n%s", diff)
	}

	entries, err = tl.Near(ctx, berlin, 2, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fernsehturm", entries[0].Payload)

	_, err = tl.Near(ctx, coords.Coordinate{Latitude: 100}, 1, 10)
	assert.ErrorIs(t, err, coords.ErrInvalidRange)

	entries, err = tl.Near(ctx, berlin, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
