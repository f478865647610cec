package crosstab

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/goSession/storage"
)

// Session is the local store a synchronizer writes to.
type Session interface {
	Clear(ctx context.Context)
	ApplyRenewalCredential(value string) bool
}

// Source delivers raw notifications for the persisted key.
type Source interface {
	Watch(ctx context.Context) (<-chan storage.Notification, error)
}

// Option configures a [Synchronizer].
type Option func(*Synchronizer)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Synchronizer) {
		s.log = l.With().Str("component", "crosstab").Logger()
	}
}

// WithMessageHook observes every applied message.
func WithMessageHook(fn func(Message)) Option {
	return func(s *Synchronizer) {
		s.onMessage = fn
	}
}

// WithMalformedHook observes every skipped notification.
func WithMalformedHook(fn func(error)) Option {
	return func(s *Synchronizer) {
		s.onMalformed = fn
	}
}

// Synchronizer mirrors other instances' changes into the local session.
type Synchronizer struct {
	source  Source
	session Session
	log     zerolog.Logger

	onMessage   func(Message)
	onMalformed func(error)
}

// New returns a synchronizer reading from source.
func New(source Source, session Session, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		source:  source,
		session: session,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe starts watching and returns a channel of decoded messages. It is
// closed when ctx ends or the source stops. Malformed notifications are
// logged and dropped before they reach the channel.
func (s *Synchronizer) Subscribe(ctx context.Context) (<-chan Message, error) {
	raw, err := s.source.Watch(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-raw:
				if !ok {
					return
				}
				msg, err := Decode(n)
				if err != nil {
					s.malformed(err)
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Apply runs msg against the local session.
func (s *Synchronizer) Apply(ctx context.Context, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: apply panicked: %v", ErrMalformedMessage, r)
		}
	}()

	switch msg.Kind {
	case KindCleared:
		s.log.Info().Str("origin", msg.Origin).Msg("session cleared by another instance")
		s.session.Clear(ctx)
	case KindRenewalUpdated:
		if msg.RenewalCredential == "" {
			return fmt.Errorf("%w: empty renewal credential", ErrMalformedMessage)
		}
		if s.session.ApplyRenewalCredential(msg.RenewalCredential) {
			s.log.Debug().Str("origin", msg.Origin).Msg("renewal credential updated by another instance")
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedMessage, msg.Kind)
	}

	if s.onMessage != nil {
		s.onMessage(msg)
	}
	return nil
}

// Run subscribes and applies messages until ctx ends.
func (s *Synchronizer) Run(ctx context.Context) error {
	msgs, err := s.Subscribe(ctx)
	if err != nil {
		return err
	}
	return s.Consume(ctx, msgs)
}

// Consume applies messages from a channel returned by Subscribe until it
// closes.
func (s *Synchronizer) Consume(ctx context.Context, msgs <-chan Message) error {
	for msg := range msgs {
		if err := s.Apply(ctx, msg); err != nil {
			s.malformed(err)
		}
	}
	return ctx.Err()
}

func (s *Synchronizer) malformed(err error) {
	s.log.Warn().Err(err).Msg("skipping cross-instance notification")
	if s.onMalformed != nil {
		s.onMalformed(err)
	}
}
