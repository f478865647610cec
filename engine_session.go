package goSession

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goSession/credential"
)

// Initialize restores a persisted session: it reads the renewal credential
// from storage and renews it once. Only the first call does the work; later
// calls wait for that pass and report its outcome. A failed renewal clears
// the session. Start calls Initialize itself.
func (e *Engine) Initialize(ctx context.Context) bool {
	if !e.store.BeginInitialization() {
		select {
		case <-e.store.Ready():
			return e.store.IsAuthenticated()
		case <-ctx.Done():
			return false
		}
	}

	renewal, err := e.store.LoadPersisted(ctx)
	if err != nil {
		e.store.EndInitialization()
		e.emitAudit(ctx, AuditInitFailed, false, err, nil)
		return false
	}
	if renewal == "" {
		e.store.EndInitialization()
		e.emitAudit(ctx, AuditInitialized, true, nil, func() map[string]string {
			return map[string]string{"restored": "false"}
		})
		return false
	}

	if e.coordinator.Refresh(ctx, renewal) {
		e.emitAudit(ctx, AuditInitialized, true, nil, func() map[string]string {
			return map[string]string{"restored": "true"}
		})
		return true
	}
	if ctx.Err() != nil {
		e.store.EndInitialization()
		return false
	}

	e.emitAudit(ctx, AuditInitFailed, false, nil, nil)
	e.clearSession(ctx, "initial_renewal_failed")
	return false
}

// Refresh renews the session now. When the renewal fails the session is
// cleared and the sign-in redirector runs, unless ctx ended first.
func (e *Engine) Refresh(ctx context.Context) bool {
	if e.renew(ctx) {
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	e.clearSession(ctx, "renewal_failed")
	if e.redirect != nil {
		e.redirect(ctx, ErrSignedOut)
	}
	return false
}

// renew joins or starts the single shared renewal. It never clears.
func (e *Engine) renew(ctx context.Context) bool {
	return e.coordinator.Refresh(ctx, e.store.RenewalCredential())
}

// SignIn authenticates against the endpoint and replaces the session with
// the result. Failures leave the current session alone.
func (e *Engine) SignIn(ctx context.Context, in SignInInput) (Snapshot, error) {
	return e.establish(ctx, "sign_in", func(ctx context.Context) (credential.Payload, error) {
		return e.auth.SignIn(ctx, in)
	})
}

// SignUp creates an account and signs it in.
func (e *Engine) SignUp(ctx context.Context, in SignUpInput) (Snapshot, error) {
	return e.establish(ctx, "sign_up", func(ctx context.Context) (credential.Payload, error) {
		return e.auth.SignUp(ctx, in)
	})
}

func (e *Engine) establish(
	ctx context.Context,
	op string,
	call func(context.Context) (credential.Payload, error),
) (Snapshot, error) {
	if e.closed.Load() {
		return Snapshot{}, ErrEngineClosed
	}

	success, failure := MetricSignInSuccess, MetricSignInFailure
	okEvent, failEvent := AuditSignedIn, AuditSignInFailed
	if op == "sign_up" {
		success, failure = MetricSignUpSuccess, MetricSignUpFailure
		okEvent, failEvent = AuditSignedUp, AuditSignUpFailed
	}

	payload, err := call(ctx)
	if err == nil {
		err = e.store.SetFromPayload(ctx, payload)
	}
	if err != nil {
		e.metrics.Inc(failure)
		e.emitAudit(ctx, failEvent, false, err, nil)
		e.log.Info().Err(err).Str("op", op).Msg("authentication failed")
		return Snapshot{}, err
	}

	e.metrics.Inc(success)
	e.emitAudit(ctx, okEvent, true, nil, nil)
	snap := e.store.Snapshot()
	e.log.Info().
		Str("op", op).
		Str("user_id", snap.Identity.ID).
		Str("tenant_id", snap.TenantID()).
		Msg("session established")
	return snap, nil
}

// SignOut revokes the session on the server and clears it locally. The
// local session is cleared even when the server call fails; that failure
// is returned wrapped in [ErrSignOutIncomplete].
func (e *Engine) SignOut(ctx context.Context) error {
	var remoteErr error
	if access := e.store.AccessCredential(); access != "" {
		remoteErr = e.auth.SignOut(ctx, access)
	}

	e.metrics.Inc(MetricSignOut)
	e.emitAudit(ctx, AuditSignedOut, remoteErr == nil, remoteErr, nil)
	e.clearSession(ctx, "sign_out")

	if remoteErr != nil {
		e.log.Warn().Err(remoteErr).Msg("server-side sign-out failed")
		return fmt.Errorf("%w: %v", ErrSignOutIncomplete, remoteErr)
	}
	return nil
}
