package goSession

import (
	"github.com/MrEthical07/goSession/internal/security"
	"github.com/MrEthical07/goSession/storage"
)

// SecurityReport describes the exposure of the running configuration.
type SecurityReport = security.Report

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	lint := e.config.Lint()
	return security.BuildReport(security.ReportInput{
		EndpointURL:       e.config.Endpoint.URL,
		StorageKind:       storageKind(e.backend),
		SyncEnabled:       e.config.Sync.Enabled,
		SchedulerEnabled:  e.config.Scheduler.Enabled,
		SchedulerMargin:   e.config.Scheduler.Margin,
		SchedulerInterval: e.config.Scheduler.Interval,
		MaxRetries:        e.config.Pipeline.MaxRetries,
		AuditEnabled:      e.config.Audit.Enabled,
		AuditDropIfFull:   e.config.Audit.DropIfFull,
		MetricsEnabled:    e.config.Metrics.Enabled,
		HighFindings:      lint.BySeverity(LintHigh).Codes(),
	})
}

func storageKind(b storage.Backend) string {
	switch b.(type) {
	case *storage.Redis:
		return "redis"
	case *storage.File:
		return "file"
	case *storage.Memory:
		return "memory"
	default:
		return "custom"
	}
}
