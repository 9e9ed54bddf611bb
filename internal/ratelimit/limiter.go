package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"enrolld/internal/ratelimit/metrics"
	"enrolld/pkg/platform/audit"
	"enrolld/pkg/platform/privacy"
	"enrolld/pkg/requestcontext"
)

// BucketStore manages the sliding window counters.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
	Reset(ctx context.Context, key string) error
}

// Limiter applies per-IP budgets and records violations.
type Limiter struct {
	store   BucketStore
	limits  Limits
	logger  *slog.Logger
	auditor audit.Publisher
	metrics *metrics.Metrics
}

type Option func(l *Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(l *Limiter) {
		l.auditor = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// WithLimits overrides the default budgets.
func WithLimits(limits Limits) Option {
	return func(l *Limiter) {
		l.limits = limits
	}
}

// NewLimiter constructs a Limiter over the given counter store.
func NewLimiter(store BucketStore, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		limits: DefaultLimits(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckIP consumes one slot of the IP's budget for the endpoint class.
// An unknown class is allowed through: a misconfigured route must not
// turn into an outage.
func (l *Limiter) CheckIP(ctx context.Context, ip string, class EndpointClass) (*Result, error) {
	limit, ok := l.limits[class]
	if !ok {
		return &Result{Allowed: true, Remaining: -1}, nil
	}

	key := fmt.Sprintf("%s:%s", string(class), ip)
	result, err := l.store.Allow(ctx, key, limit.Requests, limit.Window)
	if err != nil {
		return nil, err
	}

	if result.Allowed {
		l.metrics.IncrementCheck(string(class), "allowed")
		return result, nil
	}

	l.metrics.IncrementCheck(string(class), "blocked")
	l.logger.WarnContext(ctx, "rate limit exceeded",
		"class", string(class),
		"ip_prefix", privacy.AnonymizeIP(ip),
		"retry_after", result.RetryAfter,
	)
	l.emit(ctx, class)
	return result, nil
}

func (l *Limiter) emit(ctx context.Context, class EndpointClass) {
	if l.auditor == nil {
		return
	}
	_ = l.auditor.Publish(ctx, audit.Event{
		Category:  audit.CategoryOf(audit.EventRateLimitExceeded),
		Timestamp: requestcontext.Now(ctx),
		Action:    audit.EventRateLimitExceeded,
		Reason:    string(class),
		RequestID: requestcontext.RequestID(ctx),
	})
}
