package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "enrolld/pkg/domain-errors"
)

// TestParseID_Invariants validates the trust-boundary invariant:
// IDs must be valid, non-empty, non-nil UUIDs.
func TestParseID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseRegistrationID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseRegistrationID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseOrgID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseRegistrationID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, RegistrationID(valid), id)
	})
}

// TestTypeDistinction documents the compile-time invariant. If typed IDs were
// replaced with aliases, cross-type assignment would compile and this
// distinction would be lost.
func TestTypeDistinction(t *testing.T) {
	orgID := NewOrgID()
	regID := NewRegistrationID()

	// var _ OrgID = regID  // would not compile
	assert.NotEqual(t, uuid.UUID(orgID), uuid.UUID(regID))
}

func TestIsZero(t *testing.T) {
	assert.True(t, RegistrationID{}.IsZero())
	assert.False(t, NewRegistrationID().IsZero())
}
