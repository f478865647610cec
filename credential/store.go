package credential

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/storage"
)

// Option configures a [Store].
type Option func(*Store)

// WithClock replaces the wall clock used to validate expiry.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.log = l.With().Str("component", "credential").Logger()
	}
}

// WithPersistErrorHook is called with "save", "remove" or "load" whenever the
// backend fails.
func WithPersistErrorHook(fn func(op string, err error)) Option {
	return func(s *Store) {
		s.onPersistErr = fn
	}
}

type state struct {
	access      string
	renewal     string
	expiresAt   time.Time
	identity    *Identity
	customer    *CustomerSummary
	permissions permission.Set
}

// Store is the session of one engine instance. It is safe for concurrent use.
type Store struct {
	persist      storage.Backend
	clock        clock.Clock
	log          zerolog.Logger
	onPersistErr func(op string, err error)

	// writeMu orders mutations together with their persistence side effect,
	// so the backend sees writes in the same order as memory.
	writeMu sync.Mutex

	mu           sync.RWMutex
	st           state
	epoch        uint64
	initializing bool
	initBegun    bool
	initResolved bool
	ready        chan struct{}

	listenersMu  sync.Mutex
	listeners    map[uint64]func(Snapshot)
	nextListener uint64
}

// NewStore returns an empty store in the initializing state. persist may be
// nil, in which case nothing survives the process.
func NewStore(persist storage.Backend, opts ...Option) *Store {
	s := &Store{
		persist:      persist,
		clock:        clock.New(),
		log:          zerolog.Nop(),
		initializing: true,
		ready:        make(chan struct{}),
		listeners:    make(map[uint64]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetFromPayload replaces the whole session with p and persists the renewal
// credential. A payload without an access credential, identity or future
// expiry is rejected with [ErrInvalidPayload] and nothing changes.
func (s *Store) SetFromPayload(ctx context.Context, p Payload) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.setLocked(ctx, nil, p)
	return err
}

// SetFromPayloadIfEpoch behaves like SetFromPayload but only commits when no
// Clear happened since epoch was read. It reports whether p was applied.
func (s *Store) SetFromPayloadIfEpoch(ctx context.Context, epoch uint64, p Payload) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.setLocked(ctx, &epoch, p)
}

func (s *Store) setLocked(ctx context.Context, epoch *uint64, p Payload) (bool, error) {
	if err := p.validate(s.clock.Now()); err != nil {
		return false, err
	}

	next := state{
		access:      p.AccessCredential,
		renewal:     p.RenewalCredential,
		expiresAt:   p.ExpiresAt,
		permissions: permission.NewSet(p.Permissions...),
	}
	id := *p.Identity
	next.identity = &id
	if p.Customer != nil {
		c := *p.Customer
		next.customer = &c
	}

	s.mu.Lock()
	if epoch != nil && *epoch != s.epoch {
		current := s.epoch
		s.mu.Unlock()
		s.log.Debug().Uint64("expected_epoch", *epoch).Uint64("epoch", current).Msg("session payload discarded after clear")
		return false, nil
	}
	s.st = next
	s.resolveInitLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if s.persist != nil {
		var err error
		if next.renewal != "" {
			err = s.persist.Save(ctx, storage.Record{RenewalCredential: next.renewal})
			s.persistFailed("save", err)
		} else {
			err = s.persist.Remove(ctx)
			s.persistFailed("remove", err)
		}
	}

	s.notify(snap)
	return true, nil
}

// Clear empties the session, ends initialization, bumps the epoch and
// removes the persisted record.
func (s *Store) Clear(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.clearLocked(ctx)
}

// ClearIfEpoch clears the session only while the epoch still equals epoch.
// before runs first, with the session still readable and no other mutation
// able to interleave. It reports whether the clear happened.
func (s *Store) ClearIfEpoch(ctx context.Context, epoch uint64, before func()) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.Epoch() != epoch {
		return false
	}
	if before != nil {
		before()
	}
	s.clearLocked(ctx)
	return true
}

func (s *Store) clearLocked(ctx context.Context) {
	s.mu.Lock()
	s.st = state{}
	s.epoch++
	s.resolveInitLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if s.persist != nil {
		s.persistFailed("remove", s.persist.Remove(ctx))
	}
	s.notify(snap)
}

// BeginInitialization claims the single initialization pass. It returns false
// when the pass was already claimed or has resolved.
func (s *Store) BeginInitialization() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initBegun || s.initResolved {
		return false
	}
	s.initBegun = true
	s.initializing = true
	return true
}

// EndInitialization resolves the initialization pass without touching the
// session. It is a no-op once resolved.
func (s *Store) EndInitialization() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.initResolved {
		s.mu.Unlock()
		return
	}
	s.resolveInitLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Store) resolveInitLocked() {
	s.initializing = false
	if !s.initResolved {
		s.initResolved = true
		close(s.ready)
	}
}

// ApplyRenewalCredential overwrites only the in-memory renewal credential.
// The access credential and identity are left alone. It reports whether the
// value changed.
func (s *Store) ApplyRenewalCredential(value string) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.st.renewal == value {
		s.mu.Unlock()
		return false
	}
	s.st.renewal = value
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// LoadPersisted reads the persisted renewal credential into memory and
// returns it. An absent record yields "". A malformed record is removed and
// reported as an error.
func (s *Store) LoadPersisted(ctx context.Context) (string, error) {
	if s.persist == nil {
		return s.RenewalCredential(), nil
	}
	rec, ok, err := s.persist.Load(ctx)
	if err != nil {
		s.persistFailed("load", err)
		if errors.Is(err, storage.ErrMalformedRecord) {
			s.persistFailed("remove", s.persist.Remove(ctx))
		}
		return "", err
	}
	if !ok {
		return "", nil
	}
	s.ApplyRenewalCredential(rec.RenewalCredential)
	return rec.RenewalCredential, nil
}

func (s *Store) persistFailed(op string, err error) {
	if err == nil {
		return
	}
	s.log.Warn().Err(err).Str("op", op).Msg("session persistence failed")
	if s.onPersistErr != nil {
		s.onPersistErr(op, err)
	}
}

// AccessCredential returns the current access credential or "".
func (s *Store) AccessCredential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.access
}

// RenewalCredential returns the current renewal credential or "".
func (s *Store) RenewalCredential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.renewal
}

// ExpiresAt returns the access credential expiry; zero when absent.
func (s *Store) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.expiresAt
}

// Identity returns a copy of the signed-in identity.
func (s *Store) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.st.identity == nil {
		return Identity{}, false
	}
	return *s.st.identity, true
}

func (s *Store) Permissions() permission.Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.permissions
}

// TenantID returns the signed-in tenant or "".
func (s *Store) TenantID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.st.identity == nil {
		return ""
	}
	return s.st.identity.TenantID
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticatedLocked()
}

func (s *Store) IsInitializing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initializing
}

// Epoch returns the number of Clear calls so far.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Ready is closed once initialization resolves.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) authenticatedLocked() bool {
	return s.st.access != "" && s.st.identity != nil
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		AccessCredential:  s.st.access,
		RenewalCredential: s.st.renewal,
		ExpiresAt:         s.st.expiresAt,
		Permissions:       s.st.permissions,
		IsAuthenticated:   s.authenticatedLocked(),
		IsInitializing:    s.initializing,
		Epoch:             s.epoch,
	}
	if s.st.identity != nil {
		id := *s.st.identity
		snap.Identity = &id
	}
	if s.st.customer != nil {
		c := *s.st.customer
		snap.Customer = &c
	}
	return snap
}

// Subscribe registers fn to receive a snapshot after every mutation. fn runs
// synchronously on the mutating goroutine and must not mutate the store.
// The returned function removes the listener.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.listenersMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) notify(snap Snapshot) {
	s.listenersMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
