// Package session stores the short-lived tokens issued after a successful
// code verification. Whether the engine actually checks them on read/update
// is a deployment choice; see the access service's EnforceSessions flag.
package session

import (
	"context"
	"time"

	id "enrolld/pkg/domain"
)

// Store persists session tokens with a TTL.
type Store interface {
	// Issue binds token to a registration for ttl.
	Issue(ctx context.Context, token string, regID id.RegistrationID, ttl time.Duration) error
	// Resolve returns the registration a live token is bound to, or
	// sentinel.ErrNotFound for unknown or expired tokens.
	Resolve(ctx context.Context, token string) (id.RegistrationID, error)
	// Revoke removes a token. Revoking an unknown token is a no-op.
	Revoke(ctx context.Context, token string) error
}
