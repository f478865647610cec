package pipeline

import "context"

type contextKey uint8

const (
	tenantKey contextKey = iota
	operationKey
	attemptKey
	epochKey
)

// WithTenantID overrides the tenant header for calls made with ctx.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

// TenantIDFrom returns the tenant override carried by ctx.
func TenantIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(tenantKey).(string)
	return v, ok && v != ""
}

// WithOperation names the operation for logs and fault reports.
func WithOperation(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operationKey, name)
}

// OperationFrom returns the operation name carried by ctx.
func OperationFrom(ctx context.Context) string {
	v, _ := ctx.Value(operationKey).(string)
	return v
}

// Attempt returns how many times the call carried by ctx was replayed.
func Attempt(ctx context.Context) int {
	v, _ := ctx.Value(attemptKey).(int)
	return v
}

func withAttempt(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, attemptKey, n)
}

// RenewalEpoch returns the session epoch the failing call was sent under, or
// read before its renewal when Decide is used directly. ok is false when the
// session does not track epochs.
func RenewalEpoch(ctx context.Context) (epoch uint64, ok bool) {
	epoch, ok = ctx.Value(epochKey).(uint64)
	return epoch, ok
}

func withRenewalEpoch(ctx context.Context, epoch uint64) context.Context {
	return context.WithValue(ctx, epochKey, epoch)
}
