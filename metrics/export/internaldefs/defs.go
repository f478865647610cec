package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricSignInSuccess, Name: "gosession_sign_in_success_total", Help: "Successful sign-ins."},
	{ID: goSession.MetricSignInFailure, Name: "gosession_sign_in_failure_total", Help: "Failed sign-ins."},
	{ID: goSession.MetricSignUpSuccess, Name: "gosession_sign_up_success_total", Help: "Successful sign-ups."},
	{ID: goSession.MetricSignUpFailure, Name: "gosession_sign_up_failure_total", Help: "Failed sign-ups."},
	{ID: goSession.MetricSignOut, Name: "gosession_sign_out_total", Help: "Sign-out operations."},
	{ID: goSession.MetricSessionCleared, Name: "gosession_session_cleared_total", Help: "Local session clears for any reason."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Successful session renewals."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Failed session renewals."},
	{ID: goSession.MetricRefreshDeduplicated, Name: "gosession_refresh_deduplicated_total", Help: "Renewal requests that joined a renewal already in flight."},
	{ID: goSession.MetricRefreshDiscarded, Name: "gosession_refresh_discarded_total", Help: "Renewals discarded because the session was cleared meanwhile."},
	{ID: goSession.MetricSchedulerTick, Name: "gosession_scheduler_tick_total", Help: "Renewal scheduler ticks."},
	{ID: goSession.MetricSchedulerTriggered, Name: "gosession_scheduler_triggered_total", Help: "Scheduler ticks that started a renewal."},
	{ID: goSession.MetricPipelineInjected, Name: "gosession_pipeline_injected_total", Help: "Outbound calls that received session credentials."},
	{ID: goSession.MetricPipelineReplay, Name: "gosession_pipeline_replay_total", Help: "Calls replayed after a renewal."},
	{ID: goSession.MetricPipelineSignedOut, Name: "gosession_pipeline_signed_out_total", Help: "Forced sign-outs after an unrecoverable credential fault."},
	{ID: goSession.MetricPipelineForbidden, Name: "gosession_pipeline_forbidden_total", Help: "Authorization violations reported by the server."},
	{ID: goSession.MetricSyncCleared, Name: "gosession_sync_cleared_total", Help: "Session clears received from other instances."},
	{ID: goSession.MetricSyncRenewalUpdated, Name: "gosession_sync_renewal_updated_total", Help: "Renewal credential updates received from other instances."},
	{ID: goSession.MetricSyncMalformed, Name: "gosession_sync_malformed_total", Help: "Malformed storage notifications skipped."},
	{ID: goSession.MetricPersistFailure, Name: "gosession_persist_failure_total", Help: "Failed writes to persisted session storage."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricRefreshLatency, Name: "gosession_refresh_latency_seconds", Help: "Session renewal round-trip latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine buckets.
var HistogramBounds = []string{
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"+Inf",
}

// HistogramBoundSuffix names each bucket where a dot is not allowed.
var HistogramBoundSuffix = []string{
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, truncating or zero
// filling as needed.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
