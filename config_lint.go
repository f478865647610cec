package goSession

import (
	"errors"
	"fmt"
	"strings"
)

// LintSeverity ranks advisory findings.
type LintSeverity uint8

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintHigh:
		return "HIGH"
	case LintWarn:
		return "WARN"
	default:
		return "INFO"
	}
}

// LintWarning is one advisory finding. Lint never rejects a config that
// passes Validate.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintWarnings is the result of [Config.Lint].
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity keeps warnings at or above min.
func (ws LintWarnings) BySeverity(min LintSeverity) LintWarnings {
	var out LintWarnings
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins the warnings at or above min into one error, or returns nil.
func (ws LintWarnings) AsError(min LintSeverity) error {
	selected := ws.BySeverity(min)
	if len(selected) == 0 {
		return nil
	}
	parts := make([]string, 0, len(selected))
	for _, w := range selected {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return errors.New("config lint: " + strings.Join(parts, "; "))
}

// Lint reports settings that are valid but probably unintended.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.Scheduler.Enabled && c.Scheduler.Margin <= c.Scheduler.Interval {
		add("margin_not_greater_than_interval", LintHigh,
			"a credential can expire between two scheduler ticks; make Margin larger than Interval")
	}
	if !c.Scheduler.Enabled {
		add("scheduler_disabled", LintWarn,
			"renewal only happens after a request fails with UNAUTHENTICATED")
	}
	if c.Pipeline.MaxRetries == 0 {
		add("retries_disabled", LintWarn,
			"credential faults go straight to the last-resort renewal without replay")
	}
	if c.Refresh.Timeout > c.Endpoint.Timeout {
		add("refresh_timeout_exceeds_endpoint", LintInfo,
			"the HTTP client timeout cuts renewals short before Refresh Timeout")
	}
	if !c.Sync.Enabled {
		add("sync_disabled", LintWarn,
			"a sign-out in another instance will not end this session")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "session lifecycle events are not recorded")
	}
	if c.Audit.Enabled && !c.Audit.DropIfFull {
		add("audit_blocking", LintWarn, "a slow audit sink will stall sign-in and renewal")
	}

	return ws
}
