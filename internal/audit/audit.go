package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event types emitted by the engine.
const (
	TypeSignedIn             = "signed_in"
	TypeSignedUp             = "signed_up"
	TypeSignedOut            = "signed_out"
	TypeRefreshed            = "session_refreshed"
	TypeRefreshFailed        = "session_refresh_failed"
	TypeCleared              = "session_cleared"
	TypeForcedSignOut        = "forced_sign_out"
	TypeViolation            = "authorization_violation"
	TypeSyncCleared          = "sync_cleared"
	TypeSyncRenewalUpdated   = "sync_renewal_updated"
	TypeSignInFailed         = "sign_in_failed"
	TypeSignUpFailed         = "sign_up_failed"
	TypeInitialized          = "session_initialized"
	TypeInitializationFailed = "session_initialization_failed"
)

// Event is one session lifecycle record. It never carries a credential.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Origin    string            `json:"origin,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	TenantID  string            `json:"tenant_id,omitempty"`
	Operation string            `json:"operation,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(append(data, '\n'))
}

// LogSink forwards events to a zerolog logger at info level, or warn when
// the event reports a failure.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(l zerolog.Logger) LogSink {
	return LogSink{log: l.With().Str("component", "audit").Logger()}
}

func (s LogSink) Emit(_ context.Context, event Event) {
	e := s.log.Info()
	if !event.Success {
		e = s.log.Warn()
	}
	if event.UserID != "" {
		e = e.Str("user_id", event.UserID)
	}
	if event.TenantID != "" {
		e = e.Str("tenant_id", event.TenantID)
	}
	if event.Operation != "" {
		e = e.Str("operation", event.Operation)
	}
	if event.Error != "" {
		e = e.Str("error", event.Error)
	}
	for k, v := range event.Metadata {
		e = e.Str(k, v)
	}
	e.Str("origin", event.Origin).Time("at", event.Timestamp).Msg(event.EventType)
}
