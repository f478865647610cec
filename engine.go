package goSession

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/goSession/credential"
	"github.com/MrEthical07/goSession/crosstab"
	"github.com/MrEthical07/goSession/graphql"
	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/pipeline"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/MrEthical07/goSession/scheduler"
	"github.com/MrEthical07/goSession/storage"
)

// Engine owns one session: its credential store, renewal coordinator,
// scheduler, synchronizer and request pipeline. Build it with [New]. All
// methods are safe for concurrent use.
type Engine struct {
	config    Config
	origin    string
	clock     clock.Clock
	log       zerolog.Logger
	auth      Authenticator
	backend   storage.Backend
	inspector *jwt.Inspector

	store       *credential.Store
	coordinator *refresh.Coordinator
	scheduler   *scheduler.Scheduler
	sync        *crosstab.Synchronizer

	policy      *pipeline.Policy
	transport   *pipeline.Transport
	interceptor *pipeline.Interceptor
	httpClient  *http.Client
	gql         *graphql.Client

	redirect  SignInRedirector
	violation ViolationHandler

	audit   *internalaudit.Dispatcher
	metrics *Metrics

	lifecycleMu sync.Mutex
	started     bool
	closed      atomic.Bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// Start subscribes to other instances' changes, launches the renewal
// scheduler and runs the initialization pass. Background work stops when
// ctx ends or Close is called.
func (e *Engine) Start(ctx context.Context) error {
	e.lifecycleMu.Lock()
	if e.closed.Load() {
		e.lifecycleMu.Unlock()
		return ErrEngineClosed
	}
	if e.started {
		e.lifecycleMu.Unlock()
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)

	if e.sync != nil {
		msgs, err := e.sync.Subscribe(runCtx)
		if err != nil {
			cancel()
			e.lifecycleMu.Unlock()
			return err
		}
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			_ = e.sync.Consume(runCtx, msgs)
		}()
	}
	if e.scheduler != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.scheduler.Run(runCtx)
		}()
	}

	e.started = true
	e.cancel = cancel
	e.lifecycleMu.Unlock()

	e.log.Debug().Bool("sync", e.sync != nil).Bool("scheduler", e.scheduler != nil).Msg("engine started")
	e.Initialize(ctx)
	return nil
}

// Close stops background work, drains the audit buffer and closes the
// storage backend. It is idempotent.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.lifecycleMu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.lifecycleMu.Unlock()
	e.wg.Wait()

	if e.audit != nil {
		e.audit.Close()
	}
	if err := e.backend.Close(); err != nil {
		e.log.Warn().Err(err).Msg("closing storage backend")
	}
}

// Origin identifies this instance in storage notifications and audit events.
func (e *Engine) Origin() string {
	return e.origin
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

/*
====================================
SESSION STATE
====================================
*/

func (e *Engine) Snapshot() Snapshot {
	return e.store.Snapshot()
}

func (e *Engine) IsAuthenticated() bool {
	return e.store.IsAuthenticated()
}

// IsInitializing is true until the first renewal attempt after Start
// resolves.
func (e *Engine) IsInitializing() bool {
	return e.store.IsInitializing()
}

// Ready is closed once initialization has resolved.
func (e *Engine) Ready() <-chan struct{} {
	return e.store.Ready()
}

func (e *Engine) Identity() (Identity, bool) {
	return e.store.Identity()
}

func (e *Engine) TenantID() string {
	return e.store.TenantID()
}

func (e *Engine) Permissions() permission.Set {
	return e.store.Permissions()
}

// HasPermission reports whether the server granted name to the signed-in
// user. It is a display aid; the server enforces authorization.
func (e *Engine) HasPermission(name string) bool {
	return e.store.Permissions().Has(name)
}

// ExpiresAt returns the access credential expiry, zero when signed out.
func (e *Engine) ExpiresAt() time.Time {
	return e.store.ExpiresAt()
}

// Subscribe registers fn for every session change. fn runs synchronously
// on the mutating goroutine and must not call back into session mutations.
func (e *Engine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return e.store.Subscribe(fn)
}

/*
====================================
COMPONENT HOOKS
====================================
*/

func (e *Engine) onPersistError(op string, err error) {
	e.metrics.Inc(MetricPersistFailure)
	e.log.Warn().Err(err).Str("op", op).Msg("session record not persisted")
}

func (e *Engine) onRefreshResult(r refresh.Result) {
	ctx := context.Background()
	switch r.Outcome {
	case refresh.OutcomeSucceeded:
		e.metrics.Inc(MetricRefreshSuccess)
		e.metrics.Observe(MetricRefreshLatency, r.Duration)
		e.emitAudit(ctx, AuditRefreshed, true, nil, nil)
	case refresh.OutcomeDiscarded:
		e.metrics.Inc(MetricRefreshDiscarded)
		e.emitAudit(ctx, AuditRefreshFailed, false, r.Err, nil)
	default:
		e.metrics.Inc(MetricRefreshFailure)
		e.metrics.Observe(MetricRefreshLatency, r.Duration)
		e.emitAudit(ctx, AuditRefreshFailed, false, r.Err, nil)
	}
}

func (e *Engine) onSchedulerTick(d scheduler.Decision) {
	e.metrics.Inc(MetricSchedulerTick)
	if d == scheduler.DecisionRefreshed || d == scheduler.DecisionRefreshFailed {
		e.metrics.Inc(MetricSchedulerTriggered)
	}
}

func (e *Engine) onSyncMessage(msg crosstab.Message) {
	ctx := context.Background()
	meta := func() map[string]string { return map[string]string{"from": msg.Origin} }
	switch msg.Kind {
	case crosstab.KindCleared:
		e.metrics.Inc(MetricSyncCleared)
		e.emitAudit(ctx, AuditSyncCleared, true, nil, meta)
	case crosstab.KindRenewalUpdated:
		e.metrics.Inc(MetricSyncRenewalUpdated)
		e.emitAudit(ctx, AuditSyncRenewalUpdated, true, nil, meta)
	}
}

func (e *Engine) onReplay(ctx context.Context, f *pipeline.Fault, attempt int) {
	e.metrics.Inc(MetricPipelineReplay)
	e.log.Debug().Str("operation", f.Operation).Int("attempt", attempt).Msg("replaying call with renewed credential")
}

// onForcedSignOut ends the session after an unrecoverable credential fault.
// onForcedSignOut clears the session the failed call ran against. Calls that
// failed together on one renewal sign the user out once; the rest find the
// epoch already moved and only fail.
func (e *Engine) onForcedSignOut(ctx context.Context, f *pipeline.Fault) {
	epoch, ok := pipeline.RenewalEpoch(ctx)
	if !ok {
		epoch = e.store.Epoch()
	}
	const reason = "forced_sign_out"
	cleared := e.store.ClearIfEpoch(ctx, epoch, func() {
		e.emitAudit(ctx, AuditForcedSignOut, false, f, func() map[string]string {
			return map[string]string{"attempt": strconv.Itoa(pipeline.Attempt(ctx))}
		})
		e.emitAudit(ctx, AuditCleared, true, nil, func() map[string]string {
			return map[string]string{"reason": reason}
		})
	})
	if !cleared {
		e.log.Debug().Str("operation", f.Operation).Msg("session already cleared; skipping sign-out")
		return
	}
	e.metrics.Inc(MetricPipelineSignedOut)
	e.metrics.Inc(MetricSessionCleared)
	e.log.Info().Str("reason", reason).Msg("session cleared")
	if e.redirect != nil {
		e.redirect(ctx, &pipeline.SignedOutError{Fault: f})
	}
}

func (e *Engine) onViolation(ctx context.Context, f *pipeline.Fault) {
	e.metrics.Inc(MetricPipelineForbidden)
	e.emitAudit(ctx, AuditViolation, false, f, nil)
	e.log.Warn().Str("operation", f.Operation).Str("tenant_id", e.store.TenantID()).Msg("authorization violation")
	if e.violation != nil {
		e.violation(ctx, f)
	}
}

// clearSession empties the session everywhere it is persisted.
func (e *Engine) clearSession(ctx context.Context, reason string) {
	e.emitAudit(ctx, AuditCleared, true, nil, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	e.store.Clear(ctx)
	e.metrics.Inc(MetricSessionCleared)
	e.log.Info().Str("reason", reason).Msg("session cleared")
}
