package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu        sync.Mutex
	authed    bool
	expiresAt time.Time
}

func (f *fakeSession) IsAuthenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authed
}

func (f *fakeSession) ExpiresAt() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expiresAt
}

func (f *fakeSession) set(authed bool, exp time.Time) {
	f.mu.Lock()
	f.authed = authed
	f.expiresAt = exp
	f.mu.Unlock()
}

func newTestScheduler(sess Session, trigger Trigger) (*Scheduler, *clock.Mock) {
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	return New(sess, trigger, Config{Interval: time.Minute, Margin: 5 * time.Minute}, WithClock(clk)), clk
}

func TestTickRefreshesInsideMargin(t *testing.T) {
	var calls atomic.Int32
	sess := &fakeSession{}
	s, clk := newTestScheduler(sess, func(context.Context) bool {
		calls.Add(1)
		return true
	})
	sess.set(true, clk.Now().Add(4*time.Minute))

	require.Equal(t, DecisionRefreshed, s.Tick(context.Background()))
	require.EqualValues(t, 1, calls.Load())
}

func TestTickDecisions(t *testing.T) {
	cases := []struct {
		name    string
		authed  bool
		offset  time.Duration
		zeroExp bool
		result  bool
		want    Decision
		calls   int32
	}{
		{name: "signed out", authed: false, offset: time.Minute, want: DecisionIdle},
		{name: "no expiry", authed: true, zeroExp: true, want: DecisionIdle},
		{name: "far from expiry", authed: true, offset: 30 * time.Minute, want: DecisionNotDue},
		{name: "exactly margin", authed: true, offset: 5 * time.Minute, result: true, want: DecisionRefreshed, calls: 1},
		{name: "just past margin", authed: true, offset: 5*time.Minute + time.Second, want: DecisionNotDue},
		{name: "already expired", authed: true, offset: -time.Second, want: DecisionExpired},
		{name: "expires now", authed: true, offset: 0, want: DecisionExpired},
		{name: "renewal fails", authed: true, offset: time.Minute, result: false, want: DecisionRefreshFailed, calls: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			sess := &fakeSession{}
			s, clk := newTestScheduler(sess, func(context.Context) bool {
				calls.Add(1)
				return tc.result
			})
			exp := clk.Now().Add(tc.offset)
			if tc.zeroExp {
				exp = time.Time{}
			}
			sess.set(tc.authed, exp)

			require.Equal(t, tc.want, s.Tick(context.Background()))
			require.Equal(t, tc.calls, calls.Load())
		})
	}
}

type slidingSession struct {
	clk       clock.Clock
	refreshed atomic.Bool
}

func (s *slidingSession) IsAuthenticated() bool { return true }

// ExpiresAt stays four minutes ahead until a renewal lands.
func (s *slidingSession) ExpiresAt() time.Time {
	if s.refreshed.Load() {
		return s.clk.Now().Add(time.Hour)
	}
	return s.clk.Now().Add(4 * time.Minute)
}

func TestRunTicksOnInterval(t *testing.T) {
	var calls atomic.Int32
	decisions := make(chan Decision, 64)
	clk := clock.NewMock()
	sess := &slidingSession{clk: clk}

	s := New(sess, func(context.Context) bool {
		calls.Add(1)
		sess.refreshed.Store(true)
		return true
	}, Config{Interval: time.Minute, Margin: 5 * time.Minute}, WithClock(clk), WithTickHook(func(d Decision) { decisions <- d }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		clk.Add(time.Minute)
		select {
		case d := <-decisions:
			return d == DecisionRefreshed
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	clk.Add(time.Minute)
	require.Eventually(t, func() bool {
		select {
		case d := <-decisions:
			return d == DecisionNotDue
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	require.EqualValues(t, 1, calls.Load())
}

func TestDefaults(t *testing.T) {
	s := New(&fakeSession{}, func(context.Context) bool { return false }, Config{})
	require.Equal(t, DefaultInterval, s.interval)
	require.Equal(t, DefaultMargin, s.margin)
}
