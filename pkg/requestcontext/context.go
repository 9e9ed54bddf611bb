// Package requestcontext provides HTTP-independent accessors for
// request-scoped values. Middleware sets them; services read them without
// importing net/http.
//
// Usage in services:
//
//	now := requestcontext.Now(ctx)
//	staffID := requestcontext.StaffID(ctx)
//
// Usage in tests:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "enrolld/pkg/domain"
)

type (
	staffIDKey     struct{}
	orgIDKey       struct{}
	clientIPKey    struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// StaffID retrieves the authenticated staff ID, zero when unauthenticated.
func StaffID(ctx context.Context) id.StaffID {
	if v, ok := ctx.Value(staffIDKey{}).(id.StaffID); ok {
		return v
	}
	return id.StaffID{}
}

// WithStaffID injects a staff ID into the context.
func WithStaffID(ctx context.Context, staffID id.StaffID) context.Context {
	return context.WithValue(ctx, staffIDKey{}, staffID)
}

// OrgID retrieves the organization scope of the authenticated staff member.
func OrgID(ctx context.Context) id.OrgID {
	if v, ok := ctx.Value(orgIDKey{}).(id.OrgID); ok {
		return v
	}
	return id.OrgID{}
}

// WithOrgID injects an organization ID into the context.
func WithOrgID(ctx context.Context, orgID id.OrgID) context.Context {
	return context.WithValue(ctx, orgIDKey{}, orgID)
}

// ClientIP retrieves the remote client IP recorded by middleware.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey{}).(string); ok {
		return v
	}
	return ""
}

// WithClientIP injects the client IP into the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// RequestID retrieves the correlation ID for the current request.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time. All domain timestamps within one
// request observe the same instant, which keeps expiry comparisons and audit
// entries consistent. Falls back to wall-clock time outside a request.
func Now(ctx context.Context) time.Time {
	if v, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return v
	}
	return time.Now()
}

// WithTime injects a specific time into the context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
