package goSession

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/goSession/authapi"
	"github.com/MrEthical07/goSession/credential"
	"github.com/MrEthical07/goSession/crosstab"
	"github.com/MrEthical07/goSession/graphql"
	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/pipeline"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/MrEthical07/goSession/scheduler"
	"github.com/MrEthical07/goSession/storage"
)

// Builder assembles an [Engine]. It is single use: a second Build fails.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	backend    storage.Backend
	auth       Authenticator
	httpClient *http.Client
	auditSink  AuditSink
	clock      clock.Clock
	log        zerolog.Logger
	logSet     bool

	redirect  SignInRedirector
	violation ViolationHandler

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithAuthenticator replaces the GraphQL authentication client.
func (b *Builder) WithAuthenticator(a Authenticator) *Builder {
	b.auth = a
	return b
}

// WithStorage sets the persisted-record backend. It takes precedence over
// WithRedis and Config.Storage.FilePath.
func (b *Builder) WithStorage(backend storage.Backend) *Builder {
	b.backend = backend
	return b
}

// WithRedis persists the renewal credential under Config.Storage.Key and
// syncs through its pub/sub channel. The client stays owned by the caller.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithLogger(l zerolog.Logger) *Builder {
	b.log = l
	b.logSet = true
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithClock(c clock.Clock) *Builder {
	b.clock = c
	return b
}

func (b *Builder) WithSignInRedirector(fn SignInRedirector) *Builder {
	b.redirect = fn
	return b
}

func (b *Builder) WithViolationHandler(fn ViolationHandler) *Builder {
	b.violation = fn
	return b
}

// WithHTTPClient sets the client for authentication calls. Its Transport
// also becomes the base under the data pipeline.
func (b *Builder) WithHTTPClient(hc *http.Client) *Builder {
	b.httpClient = hc
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component. Background
// work does not begin until [Engine.Start].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clk := b.clock
	if clk == nil {
		clk = clock.New()
	}
	origin := uuid.NewString()
	log := zerolog.Nop()
	if b.logSet {
		log = b.log
	}

	// -------- TRANSPORT --------
	authHTTP := b.httpClient
	if authHTTP == nil {
		authHTTP = &http.Client{Timeout: cfg.Endpoint.Timeout}
	}

	inspector, err := jwt.NewInspector(0)
	if err != nil {
		return nil, err
	}

	auth := b.auth
	if auth == nil {
		client, err := authapi.NewClient(cfg.Endpoint.URL, authHTTP,
			authapi.WithLogger(log),
			authapi.WithInspector(inspector),
		)
		if err != nil {
			return nil, err
		}
		auth = client
	}

	// -------- STORAGE --------
	backend := b.backend
	if backend == nil {
		switch {
		case b.redis != nil:
			backend = storage.NewRedis(b.redis, cfg.Storage.Key, origin)
		case cfg.Storage.FilePath != "":
			f, err := storage.NewFile(cfg.Storage.FilePath)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrStorageRequired, err)
			}
			backend = f
		default:
			log.Warn().Msg("no storage configured; session will not survive the process")
			backend = storage.NewMemoryHub().Open(cfg.Storage.Key, origin)
		}
	}

	e := &Engine{
		config:    cfg,
		origin:    origin,
		clock:     clk,
		log:       log.With().Str("component", "engine").Str("origin", origin).Logger(),
		auth:      auth,
		backend:   backend,
		inspector: inspector,
		redirect:  b.redirect,
		violation: b.violation,
		metrics:   NewMetrics(cfg.Metrics),
	}

	e.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink, clk.Now)

	// -------- SESSION --------
	e.store = credential.NewStore(backend,
		credential.WithClock(clk),
		credential.WithLogger(log),
		credential.WithPersistErrorHook(e.onPersistError),
	)

	e.coordinator = refresh.NewCoordinator(refresh.RenewerFunc(auth.Renew), e.store,
		refresh.WithTimeout(cfg.Refresh.Timeout),
		refresh.WithClock(clk),
		refresh.WithLogger(log),
		refresh.WithResultHook(e.onRefreshResult),
		refresh.WithJoinHook(func() { e.metrics.Inc(MetricRefreshDeduplicated) }),
	)

	if cfg.Scheduler.Enabled {
		e.scheduler = scheduler.New(e.store, e.renew, scheduler.Config{
			Interval: cfg.Scheduler.Interval,
			Margin:   cfg.Scheduler.Margin,
		},
			scheduler.WithClock(clk),
			scheduler.WithLogger(log),
			scheduler.WithTickHook(e.onSchedulerTick),
		)
	}

	if cfg.Sync.Enabled {
		e.sync = crosstab.New(backend, e.store,
			crosstab.WithLogger(log),
			crosstab.WithMessageHook(e.onSyncMessage),
			crosstab.WithMalformedHook(func(error) { e.metrics.Inc(MetricSyncMalformed) }),
		)
	}

	// -------- PIPELINE --------
	e.policy = pipeline.NewPolicy(e.store, pipeline.RenewerFunc(e.renew), pipeline.Hooks{
		OnInject:    func(context.Context) { e.metrics.Inc(MetricPipelineInjected) },
		OnReplay:    e.onReplay,
		OnSignOut:   e.onForcedSignOut,
		OnViolation: e.onViolation,
	}, pipeline.Config{
		MaxRetries: cfg.Pipeline.MaxRetries,
		Headers: pipeline.Headers{
			Authorization: cfg.Pipeline.AuthorizationHeader,
			Tenant:        cfg.Pipeline.TenantHeader,
			RequestID:     cfg.Pipeline.RequestIDHeader,
		},
	}, pipeline.WithLogger(log))

	e.transport = pipeline.NewTransport(authHTTP.Transport, e.policy)
	e.httpClient = &http.Client{
		Transport: e.transport,
		Timeout:   cfg.Endpoint.Timeout,
	}
	e.interceptor = pipeline.NewInterceptor(e.policy)
	e.gql = graphql.NewClient(cfg.Endpoint.URL, e.httpClient,
		graphql.WithRequestContext(func(ctx context.Context, req graphql.Request) context.Context {
			if req.OperationName == "" || pipeline.OperationFrom(ctx) != "" {
				return ctx
			}
			return pipeline.WithOperation(ctx, req.OperationName)
		}),
	)

	b.built = true

	return e, nil
}
