// Package poller drives the periodic environment refresh. One loop consumes
// both the interval ticker and on-demand requests, so refresh cycles never
// run concurrently with each other.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Ticker is the minimal interface needed for driving the poll loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

// Cycle is one refresh pass. Errors are logged and the loop keeps going.
type Cycle func(context.Context) error

// Poller runs the refresh cycle on an interval and on demand.
type Poller struct {
	logger        zerolog.Logger
	pollInterval  time.Duration
	tickerFactory func(time.Duration) Ticker
	cycle         Cycle
	requests      chan struct{}
}

// Option customizes poller behavior.
type Option func(*Poller)

// WithTickerFactory overrides how tickers are created.
func WithTickerFactory(factory func(time.Duration) Ticker) Option {
	return func(p *Poller) {
		p.tickerFactory = factory
	}
}

// New constructs a Poller running the given cycle at the given interval.
func New(logger zerolog.Logger, pollInterval time.Duration, cycle Cycle, opts ...Option) *Poller {
	p := &Poller{
		logger:       logger,
		pollInterval: pollInterval,
		cycle:        cycle,
		tickerFactory: func(d time.Duration) Ticker {
			return timeTicker{ticker: time.NewTicker(d)}
		},
		requests: make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// RequestRefresh asks the loop to run a cycle as soon as it is free. The
// request never blocks; while one is already pending, further requests
// coalesce into it.
func (p *Poller) RequestRefresh() {
	select {
	case p.requests <- struct{}{}:
	default:
	}
}

// Run starts the poll loop and blocks until the context is canceled.
func (p *Poller) Run(ctx context.Context) error {
	if p.pollInterval <= 0 {
		return errors.New("poll interval must be greater than zero")
	}

	// Run immediately on startup
	if err := p.RunOnce(ctx); err != nil {
		p.logger.Error().Err(err).Msg("initial refresh cycle failed")
	}

	ticker := p.tickerFactory(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("poller stopped")
			return nil
		case <-ticker.C():
			if err := p.RunOnce(ctx); err != nil {
				p.logger.Error().Err(err).Msg("refresh cycle failed")
			}
		case <-p.requests:
			if err := p.RunOnce(ctx); err != nil {
				p.logger.Error().Err(err).Msg("requested refresh cycle failed")
			}
		}
	}
}

// RunOnce executes a single refresh cycle.
func (p *Poller) RunOnce(ctx context.Context) error {
	return p.cycle(ctx)
}
