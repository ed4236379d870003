package internal

import (
	"context"
	"time"
)

type ctxKey string

const (
	ContextStaffKey     ctxKey = "staffEmail"
	ContextReferenceKey ctxKey = "donationReference"
)

func StaffEmailFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if email, ok := ctx.Value(ContextStaffKey).(string); ok {
		return email
	}
	return ""
}

func ContextWithStaffEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ContextStaffKey, email)
}

// ReferenceFromContext returns the donation reference a request is working on, if any.
func ReferenceFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if ref, ok := ctx.Value(ContextReferenceKey).(string); ok {
		return ref
	}
	return ""
}

func ContextWithReference(ctx context.Context, reference string) context.Context {
	return context.WithValue(ctx, ContextReferenceKey, reference)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
