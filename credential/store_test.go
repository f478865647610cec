package credential

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goSession/storage"
)

const testKey = "erp.session"

func newTestStore(t *testing.T) (*Store, *storage.MemoryHub, *clock.Mock) {
	t.Helper()
	hub := storage.NewMemoryHub()
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	return NewStore(hub.Open(testKey, "tab-a"), WithClock(clk)), hub, clk
}

func samplePayload(clk clock.Clock) Payload {
	return Payload{
		AccessCredential:  "A1",
		RenewalCredential: "R1",
		ExpiresAt:         clk.Now().Add(time.Hour),
		Identity:          &Identity{ID: "u1", TenantID: "t1", Email: "ops@example.com", Role: "admin"},
		Customer:          &CustomerSummary{ID: "c1", Code: "ACME", Name: "Acme Corp"},
		Permissions:       []string{"crm.read", "finance.write"},
	}
}

func TestNewStoreStartsInitializing(t *testing.T) {
	s, _, _ := newTestStore(t)

	snap := s.Snapshot()
	require.True(t, snap.IsInitializing)
	require.False(t, snap.IsAuthenticated)
	require.Empty(t, snap.AccessCredential)

	select {
	case <-s.Ready():
		t.Fatal("ready closed before initialization resolved")
	default:
	}
}

func TestSetFromPayloadPersistsOnlyRenewalCredential(t *testing.T) {
	s, hub, clk := newTestStore(t)

	require.NoError(t, s.SetFromPayload(context.Background(), samplePayload(clk)))

	require.True(t, s.IsAuthenticated())
	require.False(t, s.IsInitializing())
	require.Equal(t, "A1", s.AccessCredential())
	require.Equal(t, "R1", s.RenewalCredential())
	require.Equal(t, "t1", s.TenantID())
	require.True(t, s.Permissions().Has("finance.write"))

	raw, ok := hub.Raw(testKey)
	require.True(t, ok)
	require.JSONEq(t, `{"renewalCredential":"R1"}`, string(raw))
	require.False(t, strings.Contains(string(raw), "A1"))

	<-s.Ready()
}

func TestSetFromPayloadRejectsInvalidPayloads(t *testing.T) {
	s, hub, clk := newTestStore(t)
	ctx := context.Background()

	cases := map[string]func(p *Payload){
		"empty access": func(p *Payload) { p.AccessCredential = "" },
		"no expiry":    func(p *Payload) { p.ExpiresAt = time.Time{} },
		"past expiry":  func(p *Payload) { p.ExpiresAt = clk.Now().Add(-time.Second) },
		"now expiry":   func(p *Payload) { p.ExpiresAt = clk.Now() },
		"no identity":  func(p *Payload) { p.Identity = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := samplePayload(clk)
			mutate(&p)
			require.ErrorIs(t, s.SetFromPayload(ctx, p), ErrInvalidPayload)
			require.False(t, s.IsAuthenticated())
			require.True(t, s.IsInitializing())
			_, ok := hub.Raw(testKey)
			require.False(t, ok)
		})
	}
}

func TestClearRemovesPersistedKey(t *testing.T) {
	s, hub, clk := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetFromPayload(ctx, samplePayload(clk)))
	before := s.Epoch()
	s.Clear(ctx)

	snap := s.Snapshot()
	require.False(t, snap.IsAuthenticated)
	require.False(t, snap.IsInitializing)
	require.Empty(t, snap.AccessCredential)
	require.Empty(t, snap.RenewalCredential)
	require.Nil(t, snap.Identity)
	require.Zero(t, snap.Permissions.Len())
	require.Equal(t, before+1, snap.Epoch)

	_, ok := hub.Raw(testKey)
	require.False(t, ok, "persisted key must be absent, not an empty object")
}

func TestSetFromPayloadIfEpochDiscardsAfterClear(t *testing.T) {
	s, hub, clk := newTestStore(t)
	ctx := context.Background()

	epoch := s.Epoch()
	s.Clear(ctx)

	applied, err := s.SetFromPayloadIfEpoch(ctx, epoch, samplePayload(clk))
	require.NoError(t, err)
	require.False(t, applied)
	require.False(t, s.IsAuthenticated())
	_, ok := hub.Raw(testKey)
	require.False(t, ok)

	applied, err = s.SetFromPayloadIfEpoch(ctx, s.Epoch(), samplePayload(clk))
	require.NoError(t, err)
	require.True(t, applied)
	require.True(t, s.IsAuthenticated())
}

func TestClearIfEpochClearsOnce(t *testing.T) {
	s, hub, clk := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetFromPayload(ctx, samplePayload(clk)))
	epoch := s.Epoch()

	var mu sync.Mutex
	var seen []string
	var wg sync.WaitGroup
	var cleared int
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok := s.ClearIfEpoch(ctx, epoch, func() {
				id, _ := s.Identity()
				mu.Lock()
				seen = append(seen, id.ID)
				mu.Unlock()
			})
			if ok {
				mu.Lock()
				cleared++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, cleared)
	require.Equal(t, []string{"u1"}, seen, "before runs once with the session still readable")
	require.Equal(t, epoch+1, s.Epoch())
	require.False(t, s.IsAuthenticated())
	_, ok := hub.Raw(testKey)
	require.False(t, ok)

	// A session established after the clear survives a stale request.
	require.NoError(t, s.SetFromPayload(ctx, samplePayload(clk)))
	require.False(t, s.ClearIfEpoch(ctx, epoch, nil))
	require.True(t, s.IsAuthenticated())
}

func TestInitializationResolvesOnce(t *testing.T) {
	s, _, clk := newTestStore(t)
	ctx := context.Background()

	require.True(t, s.BeginInitialization())
	require.False(t, s.BeginInitialization())
	s.EndInitialization()
	require.False(t, s.IsInitializing())

	require.False(t, s.BeginInitialization())
	require.False(t, s.IsInitializing())

	require.NoError(t, s.SetFromPayload(ctx, samplePayload(clk)))
	s.Clear(ctx)
	require.False(t, s.IsInitializing())
}

func TestApplyRenewalCredentialTouchesOnlyRenewal(t *testing.T) {
	s, hub, clk := newTestStore(t)
	require.NoError(t, s.SetFromPayload(context.Background(), samplePayload(clk)))

	require.True(t, s.ApplyRenewalCredential("R2"))
	require.False(t, s.ApplyRenewalCredential("R2"))

	require.Equal(t, "R2", s.RenewalCredential())
	require.Equal(t, "A1", s.AccessCredential())
	id, ok := s.Identity()
	require.True(t, ok)
	require.Equal(t, "u1", id.ID)

	// Not written back: the value came from storage in the first place.
	raw, _ := hub.Raw(testKey)
	require.JSONEq(t, `{"renewalCredential":"R1"}`, string(raw))
}

func TestLoadPersisted(t *testing.T) {
	hub := storage.NewMemoryHub()
	writer := NewStore(hub.Open(testKey, "tab-a"))
	reader := NewStore(hub.Open(testKey, "tab-b"))
	ctx := context.Background()

	got, err := reader.LoadPersisted(ctx)
	require.NoError(t, err)
	require.Empty(t, got)

	require.NoError(t, writer.SetFromPayload(ctx, samplePayload(clock.New())))

	got, err = reader.LoadPersisted(ctx)
	require.NoError(t, err)
	require.Equal(t, "R1", got)
	require.Equal(t, "R1", reader.RenewalCredential())
	require.False(t, reader.IsAuthenticated())
}

type failingBackend struct {
	storage.Backend
}

func (failingBackend) Save(context.Context, storage.Record) error { return storage.ErrUnavailable }
func (failingBackend) Remove(context.Context) error               { return storage.ErrUnavailable }

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	var ops []string
	clk := clock.NewMock()
	s := NewStore(failingBackend{}, WithClock(clk), WithPersistErrorHook(func(op string, err error) {
		require.ErrorIs(t, err, storage.ErrUnavailable)
		ops = append(ops, op)
	}))

	p := samplePayload(clk)
	require.NoError(t, s.SetFromPayload(context.Background(), p))
	require.True(t, s.IsAuthenticated())

	s.Clear(context.Background())
	require.False(t, s.IsAuthenticated())
	require.Equal(t, []string{"save", "remove"}, ops)
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	s, _, clk := newTestStore(t)
	ctx := context.Background()

	var mu sync.Mutex
	var seen []bool
	cancel := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		seen = append(seen, snap.IsAuthenticated)
		mu.Unlock()
	})

	require.NoError(t, s.SetFromPayload(ctx, samplePayload(clk)))
	s.Clear(ctx)
	cancel()
	require.NoError(t, s.SetFromPayload(ctx, samplePayload(clk)))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []bool{true, false}, seen)
}

func TestSnapshotIsDetached(t *testing.T) {
	s, _, clk := newTestStore(t)
	require.NoError(t, s.SetFromPayload(context.Background(), samplePayload(clk)))

	snap := s.Snapshot()
	snap.Identity.TenantID = "other"

	require.Equal(t, "t1", s.TenantID())
}

func TestConcurrentMutationsNeverTearSnapshot(t *testing.T) {
	s, _, clk := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = s.SetFromPayload(ctx, samplePayload(clk))
				s.Clear(ctx)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				snap := s.Snapshot()
				if snap.IsAuthenticated {
					assert.Equal(t, "A1", snap.AccessCredential)
					assert.Equal(t, "R1", snap.RenewalCredential)
					assert.NotNil(t, snap.Identity)
				} else {
					assert.Empty(t, snap.AccessCredential)
				}
			}
		}()
	}
	wg.Wait()
}
