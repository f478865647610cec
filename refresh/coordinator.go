package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/MrEthical07/goSession/credential"
)

// DefaultTimeout bounds a single renewal when no timeout is configured.
const DefaultTimeout = 15 * time.Second

const flightKey = "renew"

var (
	// ErrNoRenewalCredential is reported when a refresh is requested without a
	// renewal credential.
	ErrNoRenewalCredential = errors.New("no renewal credential")
	// ErrDiscarded is reported when a renewal finished after the session was
	// cleared.
	ErrDiscarded = errors.New("renewal result discarded after clear")
)

// Renewer exchanges a renewal credential for a fresh session payload.
type Renewer interface {
	Renew(ctx context.Context, renewalCredential string) (credential.Payload, error)
}

// RenewerFunc adapts a function to [Renewer].
type RenewerFunc func(ctx context.Context, renewalCredential string) (credential.Payload, error)

// Renew calls f.
func (f RenewerFunc) Renew(ctx context.Context, renewalCredential string) (credential.Payload, error) {
	return f(ctx, renewalCredential)
}

// Store is the part of [credential.Store] the coordinator commits to.
type Store interface {
	Epoch() uint64
	SetFromPayloadIfEpoch(ctx context.Context, epoch uint64, p credential.Payload) (bool, error)
}

// Outcome classifies a finished renewal.
type Outcome uint8

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
	OutcomeDiscarded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Result describes one network renewal.
type Result struct {
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Option configures a [Coordinator].
type Option func(*Coordinator)

// WithTimeout bounds each renewal.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *Coordinator) {
		if clk != nil {
			c.clock = clk
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.log = l.With().Str("component", "refresh").Logger()
	}
}

// WithResultHook is called once per network renewal, before callers are
// resolved.
func WithResultHook(fn func(Result)) Option {
	return func(c *Coordinator) {
		c.onResult = fn
	}
}

// WithJoinHook is called for every caller that joined a renewal already in
// flight instead of starting one.
func WithJoinHook(fn func()) Option {
	return func(c *Coordinator) {
		c.onJoin = fn
	}
}

// Coordinator runs at most one renewal at a time.
type Coordinator struct {
	renewer Renewer
	store   Store
	timeout time.Duration
	clock   clock.Clock
	log     zerolog.Logger

	onResult func(Result)
	onJoin   func()

	group singleflight.Group
}

// NewCoordinator wires a coordinator to its collaborators.
func NewCoordinator(renewer Renewer, store Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		renewer: renewer,
		store:   store,
		timeout: DefaultTimeout,
		clock:   clock.New(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh renews the session with renewalCredential, or joins the renewal
// already in flight. Every caller sharing a renewal gets the same result. A
// caller whose ctx ends first gets false; the renewal itself keeps going.
func (c *Coordinator) Refresh(ctx context.Context, renewalCredential string) bool {
	if renewalCredential == "" {
		c.report(Result{Outcome: OutcomeFailed, Err: ErrNoRenewalCredential})
		return false
	}

	leader := false
	ch := c.group.DoChan(flightKey, func() (interface{}, error) {
		leader = true
		return c.run(ctx, renewalCredential), nil
	})

	select {
	case res := <-ch:
		if !leader && c.onJoin != nil {
			c.onJoin()
		}
		ok, _ := res.Val.(bool)
		return ok
	case <-ctx.Done():
		return false
	}
}

func (c *Coordinator) run(parent context.Context, renewalCredential string) (ok bool) {
	start := c.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("renewal panicked")
			c.report(Result{Outcome: OutcomeFailed, Err: fmt.Errorf("renewal panicked: %v", r), Duration: c.clock.Since(start)})
			ok = false
		}
	}()

	epoch := c.store.Epoch()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), c.timeout)
	defer cancel()

	payload, err := c.renewer.Renew(ctx, renewalCredential)
	if err != nil {
		c.log.Info().Err(err).Msg("renewal failed")
		c.report(Result{Outcome: OutcomeFailed, Err: err, Duration: c.clock.Since(start)})
		return false
	}

	applied, err := c.store.SetFromPayloadIfEpoch(ctx, epoch, payload)
	if err != nil {
		c.log.Warn().Err(err).Msg("renewal returned an unusable payload")
		c.report(Result{Outcome: OutcomeFailed, Err: err, Duration: c.clock.Since(start)})
		return false
	}
	if !applied {
		c.log.Debug().Uint64("epoch", epoch).Msg("renewal finished after clear")
		c.report(Result{Outcome: OutcomeDiscarded, Err: ErrDiscarded, Duration: c.clock.Since(start)})
		return false
	}

	c.report(Result{Outcome: OutcomeSucceeded, Duration: c.clock.Since(start)})
	return true
}

func (c *Coordinator) report(r Result) {
	if c.onResult != nil {
		c.onResult(r)
	}
}
