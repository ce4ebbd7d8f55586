// Package geo resolves the coordinates attached to a journal entry: a device
// fix when one is available, manual entry otherwise.
package geo

import (
	"context"
	"errors"
	"time"

	"geojournal/core/coords"
	"geojournal/core/device"
	"geojournal/logger"
)

// DeviceName is used in device.AccessError for geolocation failures.
const DeviceName = "geolocation"

var (
	ErrUnsupported         = errors.New("geolocation is not supported")
	ErrPermissionDenied    = errors.New("geolocation permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("geolocation query timed out")
)

// QueryOptions mirrors the knobs of a one-shot position query.
type QueryOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	// MaximumAge is how old a cached fix may be. Zero accepts only fresh fixes.
	MaximumAge time.Duration
}

// DefaultQueryOptions asks for a fresh high-accuracy fix within ten seconds.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{HighAccuracy: true, Timeout: 10 * time.Second}
}

// Locator performs a single position query.
type Locator interface {
	Locate(ctx context.Context, opts QueryOptions) (coords.Coordinate, error)
}

// Action is what the user did in the manual-entry modal.
type Action int

const (
	ActionConfirm Action = iota + 1
	ActionCancel
)

// Submission is one interaction with the manual-entry modal.
type Submission struct {
	Action Action
	Text   string
}

// ManualEntry is the modal surface used when no device fix is available.
type ManualEntry interface {
	Open(ctx context.Context) error
	// Next blocks until the user confirms or cancels.
	Next(ctx context.Context) (Submission, error)
	// Reject shows a transient validation indication without closing the modal.
	Reject(ctx context.Context, err error) error
	Close(ctx context.Context) error
}

// Status tags a Resolution.
type Status int

const (
	StatusResolved Status = iota + 1
	StatusCancelled
)

// Resolution is either a resolved Coordinate or an explicit cancellation.
type Resolution struct {
	Status     Status
	Coordinate coords.Coordinate
}

func Resolved(c coords.Coordinate) Resolution {
	return Resolution{Status: StatusResolved, Coordinate: c}
}

func Cancelled() Resolution {
	return Resolution{Status: StatusCancelled}
}

// Cancelled reports whether the user abandoned coordinate entry.
func (r Resolution) Cancelled() bool {
	return r.Status == StatusCancelled
}

// Resolver is implemented by Provider; submission flows depend on this.
type Resolver interface {
	Resolve(ctx context.Context) (Resolution, error)
}

// Provider tries the device first and falls back to manual entry.
type Provider struct {
	locator Locator
	manual  ManualEntry
	opts    QueryOptions
}

// Option configures a Provider.
type Option func(*Provider)

func WithQueryOptions(opts QueryOptions) Option {
	return func(p *Provider) { p.opts = opts }
}

// NewProvider builds a Provider. Either collaborator may be nil: without a
// locator the modal opens immediately, without a modal a failed query is an
// access error.
func NewProvider(locator Locator, manual ManualEntry, opts ...Option) *Provider {
	p := &Provider{
		locator: locator,
		manual:  manual,
		opts:    DefaultQueryOptions(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Resolve returns the coordinates for a new entry.
func (p *Provider) Resolve(ctx context.Context) (Resolution, error) {
	c, err := p.query(ctx)
	if err == nil {
		return Resolved(c), nil
	}
	if ctx.Err() != nil {
		return Resolution{}, ctx.Err()
	}

	if p.manual == nil {
		return Resolution{}, device.Wrap(DeviceName, err)
	}

	logger.Info("device geolocation unavailable, falling back to manual entry", logger.ErrorField(err))
	return p.prompt(ctx)
}

func (p *Provider) query(ctx context.Context) (coords.Coordinate, error) {
	if p.locator == nil {
		return coords.Coordinate{}, ErrUnsupported
	}

	qctx := ctx
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	c, err := p.locator.Locate(qctx, p.opts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return coords.Coordinate{}, ErrTimeout
		}
		return coords.Coordinate{}, err
	}
	if err := c.Validate(); err != nil {
		return coords.Coordinate{}, ErrPositionUnavailable
	}
	return c, nil
}

func (p *Provider) prompt(ctx context.Context) (res Resolution, err error) {
	if err := p.manual.Open(ctx); err != nil {
		return Resolution{}, err
	}
	defer func() {
		// the modal is closed on every exit, including context cancellation
		if cerr := p.manual.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for {
		sub, err := p.manual.Next(ctx)
		if err != nil {
			return Resolution{}, err
		}

		switch sub.Action {
		case ActionCancel:
			return Cancelled(), nil
		case ActionConfirm:
			c, perr := coords.Parse(sub.Text)
			if perr == nil {
				return Resolved(c), nil
			}
			logger.Debug("manual coordinates rejected",
				logger.String("input", sub.Text),
				logger.ErrorField(perr))
			if err := p.manual.Reject(ctx, perr); err != nil {
				return Resolution{}, err
			}
		}
	}
}
