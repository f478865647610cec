package security

import (
	"net/url"
	"strings"
	"time"
)

// Report summarises how exposed a configured client is.
type Report struct {
	EndpointTLS         bool
	StorageKind         string
	PersistsAcrossRuns  bool
	SyncEnabled         bool
	PreemptiveRenewal   bool
	RenewalMargin       time.Duration
	RenewalInterval     time.Duration
	MarginCoversTick    bool
	MaxReplays          int
	AuditEnabled        bool
	AuditMayDropEvents  bool
	MetricsEnabled      bool
	HighSeverityFinding []string
}

type ReportInput struct {
	EndpointURL       string
	StorageKind       string
	SyncEnabled       bool
	SchedulerEnabled  bool
	SchedulerMargin   time.Duration
	SchedulerInterval time.Duration
	MaxRetries        int
	AuditEnabled      bool
	AuditDropIfFull   bool
	MetricsEnabled    bool
	HighFindings      []string
}

func BuildReport(input ReportInput) Report {
	tls := false
	if u, err := url.Parse(input.EndpointURL); err == nil {
		tls = strings.EqualFold(u.Scheme, "https")
	}

	return Report{
		EndpointTLS:         tls,
		StorageKind:         input.StorageKind,
		PersistsAcrossRuns:  input.StorageKind == "file" || input.StorageKind == "redis",
		SyncEnabled:         input.SyncEnabled,
		PreemptiveRenewal:   input.SchedulerEnabled,
		RenewalMargin:       input.SchedulerMargin,
		RenewalInterval:     input.SchedulerInterval,
		MarginCoversTick:    input.SchedulerEnabled && input.SchedulerMargin > input.SchedulerInterval,
		MaxReplays:          input.MaxRetries,
		AuditEnabled:        input.AuditEnabled,
		AuditMayDropEvents:  input.AuditEnabled && input.AuditDropIfFull,
		MetricsEnabled:      input.MetricsEnabled,
		HighSeverityFinding: input.HighFindings,
	}
}
