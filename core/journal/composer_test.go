package journal

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"geojournal/core/audio"
	"geojournal/core/coords"
	"geojournal/core/device"
	"geojournal/core/geo"
	"geojournal/core/timeline"
	"geojournal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	mu      sync.Mutex
	results []geo.Resolution
	err     error
	calls   int
}

func (r *stubResolver) Resolve(ctx context.Context) (geo.Resolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return geo.Resolution{}, r.err
	}
	res := r.results[0]
	if len(r.results) > 1 {
		r.results = r.results[1:]
	}
	return res, nil
}

type entryStore struct {
	mu      sync.Mutex
	entries []*model.Entry
}

func (s *entryStore) Create(ctx context.Context, e *model.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *entryStore) ListRecent(ctx context.Context, limit int) ([]*model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Entry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

func (s *entryStore) ListInCells(ctx context.Context, cells []int64, limit int) ([]*model.Entry, error) {
	return nil, nil
}

func (s *entryStore) GetByID(ctx context.Context, id string) (*model.Entry, error) {
	return nil, nil
}

func (s *entryStore) DeleteAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.entries))
	s.entries = nil
	return n, nil
}

func (s *entryStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.entries)), nil
}

// micHandle yields queued chunks until capture stops.
type micHandle struct {
	chunks chan []byte
}

func (h *micHandle) ReadChunk(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c, ok := <-h.chunks:
		if !ok {
			return nil, io.EOF
		}
		return c, nil
	}
}

// Flush hands over chunks the capture loop has not read yet.
func (h *micHandle) Flush(ctx context.Context) ([]byte, error) {
	var tail []byte
	for {
		select {
		case c := <-h.chunks:
			tail = append(tail, c...)
		default:
			return tail, nil
		}
	}
}

func (h *micHandle) Release() error { return nil }

type mic struct {
	mu       sync.Mutex
	err      error
	acquired int
	last     *micHandle
}

func (m *mic) Acquire(ctx context.Context) (audio.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.acquired++
	m.last = &micHandle{chunks: make(chan []byte, 8)}
	return m.last, nil
}

type harness struct {
	resolver *stubResolver
	mic      *mic
	store    *audio.MemoryStore
	entries  *entryStore
	composer *Composer
}

func newHarness(results ...geo.Resolution) *harness {
	h := &harness{
		resolver: &stubResolver{results: results},
		mic:      &mic{},
		store:    audio.NewMemoryStore(),
		entries:  &entryStore{},
	}
	session := audio.NewSession(h.mic, audio.WithClipStore(h.store), audio.WithTickInterval(time.Hour))
	h.composer = NewComposer(h.resolver, session, timeline.New(h.entries))
	return h
}

var (
	paris = coords.Coordinate{Latitude: 48.8566, Longitude: 2.3522}
	tokyo = coords.Coordinate{Latitude: 35.6762, Longitude: 139.6503}
)

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSubmitText(t *testing.T) {
	h := newHarness(geo.Resolved(paris))

	entry, err := h.composer.SubmitText(testCtx(t), "  croissant  ")
	require.NoError(t, err)
	assert.Equal(t, "croissant", entry.Payload)
	assert.Equal(t, paris, entry.Coordinate())
	assert.Len(t, h.entries.entries, 1)
}

func TestSubmitEmptyTextSkipsLookup(t *testing.T) {
	h := newHarness(geo.Resolved(paris))

	_, err := h.composer.SubmitText(testCtx(t), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Zero(t, h.resolver.calls)
	assert.Empty(t, h.entries.entries)
}

func TestSubmitTextCancelledCreatesNothing(t *testing.T) {
	h := newHarness(geo.Cancelled())

	entry, err := h.composer.SubmitText(testCtx(t), "never saved")
	assert.Nil(t, entry)
	assert.ErrorIs(t, err, ErrAborted)
	assert.Empty(t, h.entries.entries)
}

func TestSubmitTextResolveError(t *testing.T) {
	h := newHarness()
	h.resolver.err = device.Wrap(geo.DeviceName, geo.ErrPermissionDenied)

	_, err := h.composer.SubmitText(testCtx(t), "hello")
	assert.ErrorIs(t, err, device.ErrAccess)
	assert.Empty(t, h.entries.entries)
}

func TestStartAudioCancelledNeverOpensMicrophone(t *testing.T) {
	h := newHarness(geo.Cancelled())

	draft, err := h.composer.StartAudio(testCtx(t))
	assert.Nil(t, draft)
	assert.ErrorIs(t, err, ErrAborted)
	assert.Zero(t, h.mic.acquired)
	assert.False(t, h.composer.Recording())
}

func TestStartAudioMicrophoneDenied(t *testing.T) {
	h := newHarness(geo.Resolved(paris))
	h.mic.err = errors.New("NotAllowedError")

	_, err := h.composer.StartAudio(testCtx(t))
	assert.ErrorIs(t, err, device.ErrAccess)
	assert.Empty(t, h.entries.entries)
}

func TestAudioEntryUsesCoordinatesFromStart(t *testing.T) {
	h := newHarness(geo.Resolved(paris), geo.Resolved(tokyo))

	draft, err := h.composer.StartAudio(testCtx(t))
	require.NoError(t, err)
	assert.Equal(t, paris, draft.Coordinate)
	assert.True(t, h.composer.Recording())

	h.mic.last.chunks <- []byte("opus")

	// a text note while recording resolves afresh
	_, err = h.composer.SubmitText(testCtx(t), "meanwhile")
	require.NoError(t, err)

	require.NoError(t, h.composer.StopAudio(testCtx(t)))
	entry, err := draft.Commit(testCtx(t))
	require.NoError(t, err)

	assert.Equal(t, model.EntryKindAudio, entry.Kind)
	assert.Equal(t, paris, entry.Coordinate())
	clip, ok := h.store.Get(entry.Payload)
	require.True(t, ok)
	assert.Equal(t, []byte("opus"), clip.Data)
	assert.Len(t, h.entries.entries, 2)
}

func TestCancelledRecordingCommitsNothing(t *testing.T) {
	h := newHarness(geo.Resolved(paris))

	draft, err := h.composer.StartAudio(testCtx(t))
	require.NoError(t, err)

	h.composer.CancelAudio()
	entry, err := draft.Commit(testCtx(t))
	assert.Nil(t, entry)
	assert.ErrorIs(t, err, ErrAborted)
	assert.Empty(t, h.entries.entries)
	assert.Zero(t, h.store.Len())

	// stop after cancel is harmless
	require.NoError(t, h.composer.StopAudio(testCtx(t)))
}
