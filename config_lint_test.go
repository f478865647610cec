package goSession

import (
	"testing"
	"time"
)

func TestLint_DefaultConfigHasNoHighFindings(t *testing.T) {
	cfg := validTestConfig()
	ws := cfg.Lint()

	if err := ws.AsError(LintHigh); err != nil {
		t.Errorf("default config should not fail AsError(LintHigh): %v", err)
	}
	codes := ws.Codes()
	if !containsCode(codes, "audit_disabled") {
		t.Error("default config has audit off and should say so")
	}
	if containsCode(codes, "retries_disabled") || containsCode(codes, "sync_disabled") {
		t.Errorf("unexpected warnings for defaults: %v", codes)
	}
}

func TestLint_MarginNotGreaterThanInterval(t *testing.T) {
	cfg := validTestConfig()
	cfg.Scheduler.Interval = 5 * time.Minute
	cfg.Scheduler.Margin = 5 * time.Minute

	ws := cfg.Lint()
	if !containsCode(ws.Codes(), "margin_not_greater_than_interval") {
		t.Fatalf("expected margin_not_greater_than_interval, got %v", ws.Codes())
	}
	if len(ws.BySeverity(LintHigh)) == 0 {
		t.Fatal("margin finding should be HIGH")
	}
	if ws.AsError(LintHigh) == nil {
		t.Fatal("expected AsError(LintHigh) to return an error")
	}
}

func TestLint_RetriesDisabled(t *testing.T) {
	cfg := validTestConfig()
	cfg.Pipeline.MaxRetries = 0
	if !containsCode(cfg.Lint().Codes(), "retries_disabled") {
		t.Error("expected retries_disabled")
	}
}

func TestLint_SyncDisabled(t *testing.T) {
	cfg := validTestConfig()
	cfg.Sync.Enabled = false
	if !containsCode(cfg.Lint().Codes(), "sync_disabled") {
		t.Error("expected sync_disabled")
	}
}

func TestLint_SchedulerDisabledSkipsMarginCheck(t *testing.T) {
	cfg := validTestConfig()
	cfg.Scheduler.Enabled = false
	cfg.Scheduler.Margin = time.Second
	codes := cfg.Lint().Codes()
	if containsCode(codes, "margin_not_greater_than_interval") {
		t.Error("margin check applies only to an enabled scheduler")
	}
	if !containsCode(codes, "scheduler_disabled") {
		t.Error("expected scheduler_disabled")
	}
}

func TestLint_AuditBlocking(t *testing.T) {
	cfg := validTestConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	codes := cfg.Lint().Codes()
	if !containsCode(codes, "audit_blocking") || containsCode(codes, "audit_disabled") {
		t.Errorf("unexpected audit findings: %v", codes)
	}
}

func TestLint_BySeverity(t *testing.T) {
	cfg := validTestConfig()
	cfg.Scheduler.Margin = time.Second
	cfg.Sync.Enabled = false

	for _, w := range cfg.Lint().BySeverity(LintWarn) {
		if w.Severity < LintWarn {
			t.Errorf("BySeverity(LintWarn) returned %s", w.Severity)
		}
	}
}

// helpers

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
