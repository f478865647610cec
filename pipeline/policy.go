package pipeline

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultMaxRetries is the replay cap of one call.
const DefaultMaxRetries = 2

// Session is read by the injection stage.
type Session interface {
	AccessCredential() string
	TenantID() string
}

// Renewer renews the access credential; it reports success.
type Renewer interface {
	Renew(ctx context.Context) bool
}

// RenewerFunc adapts a function to [Renewer].
type RenewerFunc func(ctx context.Context) bool

func (f RenewerFunc) Renew(ctx context.Context) bool { return f(ctx) }

// Hooks receive pipeline events. All fields are optional.
type Hooks struct {
	// OnInject runs for every sent request, replays included.
	OnInject func(ctx context.Context)
	// OnReplay runs before a call is sent again; attempt is the new count.
	OnReplay func(ctx context.Context, f *Fault, attempt int)
	// OnSignOut must clear the session and send the user to sign-in. Several
	// calls sharing one failed renewal each report it; [RenewalEpoch] tells
	// them apart from a later session.
	OnSignOut func(ctx context.Context, f *Fault)
	// OnViolation receives every FORBIDDEN fault.
	OnViolation func(ctx context.Context, f *Fault)
}

// Headers names the metadata fields written by the injection stage.
type Headers struct {
	Authorization string
	Tenant        string
	RequestID     string
}

// DefaultHeaders returns the standard header names.
func DefaultHeaders() Headers {
	return Headers{
		Authorization: "Authorization",
		Tenant:        "X-Tenant-ID",
		RequestID:     "X-Request-ID",
	}
}

// Action is what interception decided for one fault.
type Action uint8

const (
	// ActionPropagate returns the result to the caller unchanged, or the
	// caller's context error when it ended while waiting for a renewal.
	ActionPropagate Action = iota
	// ActionReplay sends the call again with the renewed credential.
	ActionReplay
	// ActionSignedOut ends the call with [SignedOutError].
	ActionSignedOut
)

func (a Action) String() string {
	switch a {
	case ActionReplay:
		return "replay"
	case ActionSignedOut:
		return "signed_out"
	default:
		return "propagate"
	}
}

// Config tunes a [Policy].
type Config struct {
	MaxRetries int
	Headers    Headers
}

// Option configures a [Policy].
type Option func(*Policy)

func WithLogger(l zerolog.Logger) Option {
	return func(p *Policy) {
		p.log = l.With().Str("component", "pipeline").Logger()
	}
}

// WithRequestIDs replaces the request id generator.
func WithRequestIDs(gen func() string) Option {
	return func(p *Policy) {
		if gen != nil {
			p.newID = gen
		}
	}
}

// Policy holds both pipeline stages.
type Policy struct {
	session    Session
	renewer    Renewer
	hooks      Hooks
	maxRetries int
	headers    Headers
	log        zerolog.Logger
	newID      func() string
}

// NewPolicy wires the stages to their collaborators. A negative MaxRetries
// is treated as zero; empty header names take their defaults.
func NewPolicy(session Session, renewer Renewer, hooks Hooks, cfg Config, opts ...Option) *Policy {
	defaults := DefaultHeaders()
	if cfg.Headers.Authorization == "" {
		cfg.Headers.Authorization = defaults.Authorization
	}
	if cfg.Headers.Tenant == "" {
		cfg.Headers.Tenant = defaults.Tenant
	}
	if cfg.Headers.RequestID == "" {
		cfg.Headers.RequestID = defaults.RequestID
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	p := &Policy{
		session:    session,
		renewer:    renewer,
		hooks:      hooks,
		maxRetries: cfg.MaxRetries,
		headers:    cfg.Headers,
		log:        zerolog.Nop(),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxRetries returns the replay cap.
func (p *Policy) MaxRetries() int {
	return p.maxRetries
}

// Inject writes credential, tenant and request id headers into h.
func (p *Policy) Inject(ctx context.Context, h http.Header) {
	if access := p.session.AccessCredential(); access != "" {
		h.Set(p.headers.Authorization, "Bearer "+access)
	} else {
		h.Del(p.headers.Authorization)
	}

	tenant, ok := TenantIDFrom(ctx)
	if !ok {
		tenant = p.session.TenantID()
	}
	if tenant != "" {
		h.Set(p.headers.Tenant, tenant)
	} else {
		h.Del(p.headers.Tenant)
	}

	if p.headers.RequestID != "" {
		h.Set(p.headers.RequestID, p.newID())
	}
	if p.hooks.OnInject != nil {
		p.hooks.OnInject(ctx)
	}
}

// Decide runs interception for f on the call carried by ctx. It may block on
// a renewal.
func (p *Policy) Decide(ctx context.Context, f *Fault) Action {
	if f == nil {
		return ActionPropagate
	}
	if f.Operation == "" {
		f.Operation = OperationFrom(ctx)
	}

	switch f.Kind {
	case KindForbidden:
		p.log.Warn().
			Str("code", f.Code).
			Str("operation", f.Operation).
			Msg("authorization violation")
		if p.hooks.OnViolation != nil {
			p.hooks.OnViolation(ctx, f)
		}
		return ActionPropagate

	case KindUnauthenticated:
		attempt := Attempt(ctx)
		logger := p.log.With().Int("attempt", attempt).Str("operation", f.Operation).Logger()

		if _, ok := RenewalEpoch(ctx); !ok {
			ctx = p.markEpoch(ctx)
		}

		if attempt >= p.maxRetries {
			if p.renewer.Renew(ctx) {
				logger.Info().Msg("retries exhausted; last-resort renewal succeeded, call not replayed")
				return ActionPropagate
			}
			if err := ctx.Err(); err != nil {
				logger.Debug().Err(err).Msg("caller gave up while waiting for the renewal")
				return ActionPropagate
			}
			logger.Info().Msg("retries exhausted; signing out")
			p.signOut(ctx, f)
			return ActionSignedOut
		}

		if !p.renewer.Renew(ctx) {
			// The shared renewal outlives this caller; only its own result
			// may end the session.
			if err := ctx.Err(); err != nil {
				logger.Debug().Err(err).Msg("caller gave up while waiting for the renewal")
				return ActionPropagate
			}
			logger.Info().Msg("renewal failed; signing out")
			p.signOut(ctx, f)
			return ActionSignedOut
		}
		if p.hooks.OnReplay != nil {
			p.hooks.OnReplay(ctx, f, attempt+1)
		}
		logger.Debug().Msg("credential renewed; replaying call")
		return ActionReplay

	default:
		return ActionPropagate
	}
}

// next returns the context for the replay of the call carried by ctx.
func (p *Policy) next(ctx context.Context) context.Context {
	return withAttempt(ctx, Attempt(ctx)+1)
}

// markEpoch records the session epoch a call is sent under, when the session
// exposes one. OnSignOut reads it back with [RenewalEpoch].
func (p *Policy) markEpoch(ctx context.Context) context.Context {
	if es, ok := p.session.(interface{ Epoch() uint64 }); ok {
		return withRenewalEpoch(ctx, es.Epoch())
	}
	return ctx
}

func (p *Policy) signOut(ctx context.Context, f *Fault) {
	if p.hooks.OnSignOut != nil {
		p.hooks.OnSignOut(ctx, f)
	}
}
