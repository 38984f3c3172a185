package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type jobIDKey struct{}
type monthKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	return valueFrom(ctx, requestIDKey{})
}

// WithJobID tags the context with the billing job handle.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return withValue(ctx, jobIDKey{}, jobID)
}

func JobIDFromContext(ctx context.Context) string {
	return valueFrom(ctx, jobIDKey{})
}

func WithBillingMonth(ctx context.Context, month string) context.Context {
	return withValue(ctx, monthKey{}, month)
}

func BillingMonthFromContext(ctx context.Context) string {
	return valueFrom(ctx, monthKey{})
}

func withValue(ctx context.Context, key any, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueFrom(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
