package goSession

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/authapi"
	"github.com/MrEthical07/goSession/pipeline"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/MrEthical07/goSession/storage"
)

// AuditErrorCode is the stable error vocabulary of audit events. Raw error
// text never reaches a sink.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrMFARequired        AuditErrorCode = "mfa_required"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrEmailUnverified    AuditErrorCode = "email_unverified"
	auditErrRenewalRejected    AuditErrorCode = "renewal_rejected"
	auditErrNoRenewal          AuditErrorCode = "no_renewal_credential"
	auditErrDiscarded          AuditErrorCode = "discarded_after_clear"
	auditErrMalformedPayload   AuditErrorCode = "malformed_payload"
	auditErrUnauthenticated    AuditErrorCode = "unauthenticated"
	auditErrForbidden          AuditErrorCode = "forbidden"
	auditErrStorage            AuditErrorCode = "storage_unavailable"
	auditErrTimeout            AuditErrorCode = "timeout"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		EventType: eventType,
		Origin:    e.origin,
		Operation: pipeline.OperationFrom(ctx),
		Success:   success,
	}
	if id, ok := e.store.Identity(); ok {
		event.UserID = id.ID
		event.TenantID = id.TenantID
	}
	if metadataBuilder != nil {
		event.Metadata = metadataBuilder()
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	var f *pipeline.Fault
	switch {
	case errors.Is(err, authapi.ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, authapi.ErrMFARequired):
		return auditErrMFARequired
	case errors.Is(err, authapi.ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, authapi.ErrEmailUnverified):
		return auditErrEmailUnverified
	case errors.Is(err, authapi.ErrRenewalRejected):
		return auditErrRenewalRejected
	case errors.Is(err, refresh.ErrNoRenewalCredential):
		return auditErrNoRenewal
	case errors.Is(err, refresh.ErrDiscarded):
		return auditErrDiscarded
	case errors.Is(err, authapi.ErrMalformedPayload):
		return auditErrMalformedPayload
	case errors.Is(err, storage.ErrUnavailable), errors.Is(err, storage.ErrMalformedRecord):
		return auditErrStorage
	case errors.Is(err, context.DeadlineExceeded):
		return auditErrTimeout
	case errors.As(err, &f):
		switch f.Kind {
		case pipeline.KindUnauthenticated:
			return auditErrUnauthenticated
		case pipeline.KindForbidden:
			return auditErrForbidden
		}
	}
	return auditErrInternal
}
