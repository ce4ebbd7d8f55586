// Package audio captures short voice clips from an input device.
//
// A Session moves Idle -> Recording on Start and back to Idle on Stop (audio
// kept, clip delivered) or Cancel (audio discarded). The device handle and the
// elapsed-time ticker live exactly as long as the Recording state. While the
// device is being acquired the session is Starting; Cancel then aborts the
// acquisition.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"geojournal/core/device"
	"geojournal/logger"

	"github.com/google/uuid"
)

// DeviceName is used in device.AccessError for audio input failures.
const DeviceName = "audio"

var (
	ErrAlreadyRecording = errors.New("a recording is already in progress")
	ErrCancelled        = errors.New("recording cancelled")
)

// Device hands out exclusive access to an audio input.
type Device interface {
	Acquire(ctx context.Context) (Handle, error)
}

// Handle streams captured bytes until released.
type Handle interface {
	// ReadChunk blocks until bytes are available, ctx ends, or the input is
	// exhausted (io.EOF).
	ReadChunk(ctx context.Context) ([]byte, error)
	Release() error
}

// Flusher is implemented by handles that buffer audio internally and can hand
// over the tail once capture stops.
type Flusher interface {
	Flush(ctx context.Context) ([]byte, error)
}

// State of a Session.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRecording
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session records one clip at a time from its device.
type Session struct {
	device       Device
	store        ClipStore
	mimeType     string
	tickInterval time.Duration
	now          func() time.Time
	newID        func() string

	mu         sync.Mutex
	state      State
	current    *Recording
	abortStart context.CancelFunc
}

// Option configures a Session.
type Option func(*Session)

func WithClipStore(store ClipStore) Option {
	return func(s *Session) { s.store = store }
}

func WithMIMEType(mimeType string) Option {
	return func(s *Session) { s.mimeType = mimeType }
}

func WithTickInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession returns an idle session. Clips go to a MemoryStore unless
// WithClipStore is given.
func NewSession(dev Device, opts ...Option) *Session {
	s := &Session{
		device:       dev,
		store:        NewMemoryStore(),
		mimeType:     DefaultMIMEType,
		tickInterval: time.Second,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Recording is one capture attempt. Its outcome resolves exactly once.
type Recording struct {
	StartedAt time.Time

	ticks chan string
	done  chan struct{}
	clip  *Clip
	err   error

	handle      Handle
	bufMu       sync.Mutex
	buf         bytes.Buffer
	stopCapture context.CancelFunc
	captureDone chan struct{}
	stopTimer   chan struct{}
	timerDone   chan struct{}
}

// Ticks yields the elapsed time as MM:SS once per tick interval. The channel
// is closed when the recording leaves the Recording state. Slow readers miss
// ticks rather than stall the timer.
func (r *Recording) Ticks() <-chan string {
	return r.ticks
}

// Done is closed once the outcome is known.
func (r *Recording) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the recording is stopped, cancelled or fails. A cancelled
// recording returns ErrCancelled and never a clip.
func (r *Recording) Wait(ctx context.Context) (*Clip, error) {
	select {
	case <-r.done:
		return r.clip, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Start acquires the device and begins recording. The session lock is not
// held while the device is acquired, so a slow permission prompt does not
// block State, Stop or Cancel. A Cancel in the meantime makes Start return
// ErrCancelled.
func (s *Session) Start(ctx context.Context) (*Recording, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, ErrAlreadyRecording
	}
	acquireCtx, abort := context.WithCancel(ctx)
	defer abort()
	s.state = StateStarting
	s.abortStart = abort
	s.mu.Unlock()

	handle, err := s.device.Acquire(acquireCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortStart = nil
	aborted := acquireCtx.Err() != nil && ctx.Err() == nil
	if err != nil || aborted {
		s.state = StateIdle
		if err == nil {
			if rerr := handle.Release(); rerr != nil {
				logger.Warn("releasing audio input failed", logger.ErrorField(rerr))
			}
		}
		if aborted {
			logger.Info("recording cancelled while acquiring the audio input")
			return nil, ErrCancelled
		}
		logger.Warn("audio input acquisition failed", logger.ErrorField(err))
		return nil, device.Wrap(DeviceName, err)
	}

	captureCtx, stopCapture := context.WithCancel(context.Background())
	rec := &Recording{
		StartedAt:   s.now(),
		ticks:       make(chan string, 1),
		done:        make(chan struct{}),
		handle:      handle,
		stopCapture: stopCapture,
		captureDone: make(chan struct{}),
		stopTimer:   make(chan struct{}),
		timerDone:   make(chan struct{}),
	}
	s.state = StateRecording
	s.current = rec

	go s.capture(captureCtx, rec)
	go s.runTimer(rec)

	logger.Info("recording started", logger.String("startedAt", rec.StartedAt.Format(time.RFC3339)))
	return rec, nil
}

// Stop finalizes the current recording into a clip. It is a no-op unless a
// recording is in progress.
func (s *Session) Stop(ctx context.Context) error {
	rec := s.recording()
	if rec == nil {
		return nil
	}
	return s.finish(ctx, rec, true, nil)
}

// Cancel discards the current recording, or aborts a Start that is still
// acquiring the device. Otherwise it is a no-op.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.state == StateStarting && s.abortStart != nil {
		s.abortStart()
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if rec := s.recording(); rec != nil {
		_ = s.finish(context.Background(), rec, false, nil)
	}
}

func (s *Session) recording() *Recording {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		return nil
	}
	return s.current
}

func (s *Session) capture(ctx context.Context, rec *Recording) {
	var cause error
	for {
		chunk, err := rec.handle.ReadChunk(ctx)
		if err != nil {
			if ctx.Err() == nil {
				cause = err
			}
			break
		}
		if len(chunk) > 0 {
			rec.bufMu.Lock()
			rec.buf.Write(chunk)
			rec.bufMu.Unlock()
		}
	}
	close(rec.captureDone)

	switch {
	case cause == nil:
		// stopped by finish
	case errors.Is(cause, io.EOF):
		logger.Info("audio input ended, finalizing recording")
		if err := s.finish(context.Background(), rec, true, nil); err != nil {
			logger.Error("finalizing recording failed", logger.ErrorField(err))
		}
	default:
		logger.Warn("audio capture failed", logger.ErrorField(cause))
		_ = s.finish(context.Background(), rec, false, fmt.Errorf("audio capture: %w", cause))
	}
}

func (s *Session) runTimer(rec *Recording) {
	ticker := time.NewTicker(s.tickInterval)
	defer func() {
		ticker.Stop()
		close(rec.ticks)
		close(rec.timerDone)
	}()

	for {
		select {
		case <-rec.stopTimer:
			return
		case <-ticker.C:
			elapsed := int(s.now().Sub(rec.StartedAt) / time.Second)
			select {
			case rec.ticks <- FormatElapsed(elapsed):
			default:
			}
		}
	}
}

// finish leaves the Recording state. keep selects Stop semantics; cause marks
// an internal failure. Only the first caller for a recording does any work.
func (s *Session) finish(ctx context.Context, rec *Recording, keep bool, cause error) error {
	s.mu.Lock()
	if s.current != rec || s.state != StateRecording {
		s.mu.Unlock()
		return nil
	}
	s.state = StateFinalizing
	s.mu.Unlock()

	close(rec.stopTimer)
	<-rec.timerDone
	rec.stopCapture()
	<-rec.captureDone

	var result error
	switch {
	case keep:
		rec.clip, rec.err = s.finalize(ctx, rec)
		result = rec.err
	case cause != nil:
		rec.err = cause
	default:
		rec.err = ErrCancelled
	}
	if !keep {
		rec.bufMu.Lock()
		rec.buf.Reset()
		rec.bufMu.Unlock()
	}
	close(rec.done)

	if err := rec.handle.Release(); err != nil {
		logger.Warn("releasing audio input failed", logger.ErrorField(err))
	}

	s.mu.Lock()
	s.state = StateIdle
	s.current = nil
	s.mu.Unlock()

	switch {
	case rec.clip != nil:
		logger.Info("recording finished",
			logger.String("clip", rec.clip.Handle),
			logger.Int("bytes", rec.clip.Size),
			logger.Duration("duration", rec.clip.Duration))
	case errors.Is(rec.err, ErrCancelled):
		logger.Info("recording cancelled")
	}
	return result
}

func (s *Session) finalize(ctx context.Context, rec *Recording) (*Clip, error) {
	duration := s.now().Sub(rec.StartedAt)

	if f, ok := rec.handle.(Flusher); ok {
		tail, err := f.Flush(ctx)
		if err != nil {
			logger.Warn("flushing audio input failed", logger.ErrorField(err))
		}
		if len(tail) > 0 {
			rec.bufMu.Lock()
			rec.buf.Write(tail)
			rec.bufMu.Unlock()
		}
	}

	rec.bufMu.Lock()
	data := bytes.Clone(rec.buf.Bytes())
	rec.bufMu.Unlock()

	clip := &Clip{
		ID:        s.newID(),
		MIMEType:  s.mimeType,
		Data:      data,
		Size:      len(data),
		StartedAt: rec.StartedAt,
		Duration:  duration,
	}
	handle, err := s.store.Put(ctx, clip)
	if err != nil {
		return nil, fmt.Errorf("store clip: %w", err)
	}
	clip.Handle = handle
	return clip, nil
}
