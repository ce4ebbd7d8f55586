package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"geojournal/core/audio"
	"geojournal/core/coords"
	"geojournal/core/geo"
	"geojournal/core/timeline"
	"geojournal/logger"
	"geojournal/model"
)

var (
	// ErrEmptyText is returned before any location lookup for blank notes.
	ErrEmptyText = timeline.ErrEmptyText
	// ErrAborted means the user cancelled coordinate entry or the recording;
	// nothing was created.
	ErrAborted = errors.New("submission aborted")
)

// Composer drives a submission: resolve where the user is, then create the
// entry. Entries are never created without coordinates.
type Composer struct {
	resolver geo.Resolver
	session  *audio.Session
	timeline *timeline.Timeline
}

func NewComposer(resolver geo.Resolver, session *audio.Session, tl *timeline.Timeline) *Composer {
	return &Composer{resolver: resolver, session: session, timeline: tl}
}

func (c *Composer) resolve(ctx context.Context) (coords.Coordinate, error) {
	res, err := c.resolver.Resolve(ctx)
	if err != nil {
		return coords.Coordinate{}, err
	}
	if res.Cancelled() {
		return coords.Coordinate{}, ErrAborted
	}
	return res.Coordinate, nil
}

// SubmitText geotags and appends a text note.
func (c *Composer) SubmitText(ctx context.Context, text string) (*model.Entry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	at, err := c.resolve(ctx)
	if err != nil {
		if errors.Is(err, ErrAborted) {
			logger.Info("text submission cancelled at coordinate entry")
		}
		return nil, err
	}
	return c.timeline.AddText(ctx, text, at)
}

// Draft is a recording in progress together with the place it started.
type Draft struct {
	Coordinate coords.Coordinate

	rec      *audio.Recording
	timeline *timeline.Timeline
}

// Ticks yields elapsed MM:SS while recording.
func (d *Draft) Ticks() <-chan string {
	return d.rec.Ticks()
}

// Done is closed once the recording has an outcome.
func (d *Draft) Done() <-chan struct{} {
	return d.rec.Done()
}

// Commit waits for the recording outcome and appends the audio entry at the
// coordinates captured when recording started.
func (d *Draft) Commit(ctx context.Context) (*model.Entry, error) {
	clip, err := d.rec.Wait(ctx)
	if err != nil {
		if errors.Is(err, audio.ErrCancelled) {
			return nil, ErrAborted
		}
		return nil, err
	}
	return d.timeline.AddAudio(ctx, clip.Handle, d.Coordinate)
}

// StartAudio resolves coordinates and only then opens the microphone.
// A cancelled lookup never starts a recording.
func (c *Composer) StartAudio(ctx context.Context) (*Draft, error) {
	at, err := c.resolve(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := c.session.Start(ctx)
	if errors.Is(err, audio.ErrCancelled) {
		return nil, ErrAborted
	}
	if err != nil {
		return nil, fmt.Errorf("start recording: %w", err)
	}
	return &Draft{Coordinate: at, rec: rec, timeline: c.timeline}, nil
}

// StopAudio finalizes the recording in progress, if any.
func (c *Composer) StopAudio(ctx context.Context) error {
	return c.session.Stop(ctx)
}

// CancelAudio discards the recording in progress, if any.
func (c *Composer) CancelAudio() {
	c.session.Cancel()
}

// Recording reports whether a capture is in progress.
func (c *Composer) Recording() bool {
	return c.session.State() == audio.StateRecording
}
