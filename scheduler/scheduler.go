package scheduler

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

const (
	DefaultInterval = 60 * time.Second
	DefaultMargin   = 5 * time.Minute
)

// Session is read on every tick.
type Session interface {
	IsAuthenticated() bool
	ExpiresAt() time.Time
}

// Trigger starts a renewal and reports whether it succeeded.
type Trigger func(ctx context.Context) bool

// Decision records what a tick did.
type Decision uint8

const (
	// DecisionIdle means no authenticated session.
	DecisionIdle Decision = iota
	// DecisionNotDue means the credential lives longer than the margin.
	DecisionNotDue
	// DecisionExpired means the credential already expired; nothing was done.
	DecisionExpired
	DecisionRefreshed
	DecisionRefreshFailed
)

func (d Decision) String() string {
	switch d {
	case DecisionIdle:
		return "idle"
	case DecisionNotDue:
		return "not_due"
	case DecisionExpired:
		return "expired"
	case DecisionRefreshed:
		return "refreshed"
	case DecisionRefreshFailed:
		return "refresh_failed"
	default:
		return "unknown"
	}
}

// Config controls the tick cadence.
type Config struct {
	Interval time.Duration
	Margin   time.Duration
}

// Option configures a [Scheduler].
type Option func(*Scheduler)

func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.log = l.With().Str("component", "scheduler").Logger()
	}
}

// WithTickHook observes every tick decision.
func WithTickHook(fn func(Decision)) Option {
	return func(s *Scheduler) {
		s.onTick = fn
	}
}

// Scheduler is a periodic pre-emptive renewal loop.
type Scheduler struct {
	session  Session
	trigger  Trigger
	interval time.Duration
	margin   time.Duration
	clock    clock.Clock
	log      zerolog.Logger
	onTick   func(Decision)
}

// New returns a scheduler. Zero config values fall back to DefaultInterval
// and DefaultMargin.
func New(session Session, trigger Trigger, cfg Config, opts ...Option) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Margin <= 0 {
		cfg.Margin = DefaultMargin
	}
	s := &Scheduler{
		session:  session,
		trigger:  trigger,
		interval: cfg.Interval,
		margin:   cfg.Margin,
		clock:    clock.New(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tick evaluates the session once.
func (s *Scheduler) Tick(ctx context.Context) Decision {
	d := s.evaluate(ctx)
	if s.onTick != nil {
		s.onTick(d)
	}
	return d
}

func (s *Scheduler) evaluate(ctx context.Context) Decision {
	if !s.session.IsAuthenticated() {
		return DecisionIdle
	}
	expiresAt := s.session.ExpiresAt()
	if expiresAt.IsZero() {
		return DecisionIdle
	}

	remaining := expiresAt.Sub(s.clock.Now())
	switch {
	case remaining <= 0:
		return DecisionExpired
	case remaining > s.margin:
		return DecisionNotDue
	}

	s.log.Debug().Dur("remaining", remaining).Msg("credential inside renewal margin")
	if s.trigger(ctx) {
		return DecisionRefreshed
	}
	s.log.Info().Msg("pre-emptive renewal failed; session left as is")
	return DecisionRefreshFailed
}

// Run ticks every interval until ctx ends.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}
