//go:build integration
// +build integration

package test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/credential"
	"github.com/MrEthical07/goSession/internal/fakeserver"
)

const (
	testEmail    = "ops@acme.test"
	testPassword = "correct-horse"
)

func newIntegrationServer(t *testing.T) (*fakeserver.Server, string) {
	t.Helper()

	srv, err := fakeserver.New(fakeserver.Config{})
	if err != nil {
		t.Fatalf("fakeserver: %v", err)
	}
	endpoint := srv.Start()
	t.Cleanup(srv.Close)

	srv.AddUser(fakeserver.User{
		Identity:    credential.Identity{ID: "u1", TenantID: "t1", Email: testEmail, IsEmailVerified: true},
		Customer:    credential.CustomerSummary{ID: "t1", Code: "ACME", Name: "Acme"},
		Password:    testPassword,
		Permissions: []string{"crm.read"},
	})
	return srv, endpoint
}

// newRedisEngine starts an engine persisting under key through rdb.
func newRedisEngine(t *testing.T, rdb redis.UniversalClient, endpoint, key string) *goSession.Engine {
	t.Helper()

	cfg := goSession.DefaultConfig()
	cfg.Endpoint.URL = endpoint
	cfg.Storage.Key = key
	cfg.Scheduler.Enabled = false
	cfg.Metrics.Enabled = true

	e, err := goSession.New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(e.Close)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return e
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
