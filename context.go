package goSession

import (
	"context"

	"github.com/MrEthical07/goSession/pipeline"
)

// WithTenantID overrides the tenant header for calls made with ctx. Without
// it, the signed-in identity's tenant is sent.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return pipeline.WithTenantID(ctx, tenantID)
}

// WithOperation names the data operation carried by ctx. The name shows up
// in faults, logs and audit events.
func WithOperation(ctx context.Context, name string) context.Context {
	return pipeline.WithOperation(ctx, name)
}

// Attempt returns how many times the call carried by ctx was replayed.
func Attempt(ctx context.Context) int {
	return pipeline.Attempt(ctx)
}
