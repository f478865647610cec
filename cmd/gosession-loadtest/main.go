package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/credential"
	"github.com/MrEthical07/goSession/graphql"
	"github.com/MrEthical07/goSession/internal/fakeserver"
)

const (
	loadEmail    = "load@acme.test"
	loadPassword = "load-test-password"
)

func main() {
	var (
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "data operations per phase")
		revokeEvery = flag.Int("revoke-every", 2000, "revoke access credentials every N operations in the revocation phase")
		accessTTL   = flag.Duration("access-ttl", 15*time.Minute, "access credential lifetime issued by the fake server")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *concurrency <= 0 || *ops <= 0 || *revokeEvery <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency, ops, and revoke-every must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	srv, err := fakeserver.New(fakeserver.Config{AccessTTL: *accessTTL})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fake server: %v\n", err)
		os.Exit(1)
	}
	endpoint := srv.Start()
	defer srv.Close()
	srv.AddUser(fakeserver.User{
		Identity: credential.Identity{ID: "load-1", TenantID: "t-load", Email: loadEmail, IsEmailVerified: true},
		Customer: credential.CustomerSummary{ID: "t-load", Code: "LOAD", Name: "Load Test"},
		Password: loadPassword,
	})

	cfg := goSession.DefaultConfig()
	cfg.Endpoint.URL = endpoint
	cfg.Storage.Key = "gosession:loadtest"
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := goSession.New().WithConfig(cfg).WithRedis(client).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()
	if err := engine.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "start engine: %v\n", err)
		os.Exit(1)
	}
	if _, err := engine.SignIn(ctx, goSession.SignInInput{Email: loadEmail, Password: loadPassword}); err != nil {
		fmt.Fprintf(os.Stderr, "sign in: %v\n", err)
		os.Exit(1)
	}

	steady := runPhase(ctx, engine, *ops, *concurrency, nil)

	renewalsBefore := srv.Renewals()
	revoked := runPhase(ctx, engine, *ops, *concurrency, func(i int) {
		if i > 0 && i%*revokeEvery == 0 {
			srv.RevokeAccess()
		}
	})

	m := engine.MetricsSnapshot().Counters
	fmt.Println("---- results ----")
	printStats("steady", steady)
	printStats("revoked", revoked)
	fmt.Printf("renewals=%d replays=%d deduplicated=%d signed_out=%d\n",
		srv.Renewals()-renewalsBefore,
		m[goSession.MetricPipelineReplay],
		m[goSession.MetricRefreshDeduplicated],
		m[goSession.MetricPipelineSignedOut],
	)
}

// runPhase issues ops data operations from concurrency workers. before runs
// with the operation index ahead of each call.
func runPhase(ctx context.Context, engine *goSession.Engine, ops, concurrency int, before func(i int)) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	gql := engine.GraphQL()
	req := graphql.Request{Query: "query Ping { ping }", OperationName: "Ping"}

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				if before != nil {
					before(i)
				}
				t0 := time.Now()
				err := gql.Do(ctx, req, nil)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
