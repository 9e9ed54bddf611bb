// Package ratelimit throttles the public surface. The verification
// protocol already carries a per-registration attempt ceiling; this layer
// sits in front of it and caps how fast any one client can hit the
// endpoints at all, so code guessing across many registrations is as
// bounded as guessing against one.
package ratelimit

import (
	"time"
)

// EndpointClass categorizes public endpoints for differentiated limits.
type EndpointClass string

const (
	// ClassStart covers registration creation, the cheapest way to make
	// the system write rows.
	ClassStart EndpointClass = "start"
	// ClassCode covers code request and resend, each of which sends a
	// real SMS or email.
	ClassCode EndpointClass = "code"
	// ClassVerify covers code verification attempts.
	ClassVerify EndpointClass = "verify"
	// ClassRead covers token-keyed reads and updates.
	ClassRead EndpointClass = "read"
)

// Limit is the request budget for one endpoint class.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Limits maps endpoint classes to budgets.
type Limits map[EndpointClass]Limit

// DefaultLimits returns the per-IP budgets used when nothing overrides
// them. Code delivery is the tightest: it spends money per request.
func DefaultLimits() Limits {
	return Limits{
		ClassStart:  {Requests: 10, Window: time.Minute},
		ClassCode:   {Requests: 5, Window: time.Minute},
		ClassVerify: {Requests: 15, Window: time.Minute},
		ClassRead:   {Requests: 60, Window: time.Minute},
	}
}

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is in seconds, set only when not allowed.
	RetryAfter int
}
