// Package audit captures key domain actions as structured events. Events are
// emitted from services, buffered through a publisher, and persisted or
// shipped to Kafka by background workers. Event payloads never contain
// verification codes or raw access tokens.
package audit

import (
	"context"
	"time"

	id "enrolld/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// registration decisions, submissions, deletions. Long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring:
	// verification failures, attempt lockouts, rate limiting.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility: code requests, reminders, routine staff activity. Can be
	// sampled, shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture a key action. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category       EventCategory
	Timestamp      time.Time
	Action         AuditEvent
	OrgID          id.OrgID
	RegistrationID id.RegistrationID
	// ActorID identifies the staff member for back-office actions; empty for
	// applicant-driven public flows.
	ActorID id.StaffID
	// Channel is the verification channel involved (sms, email), when relevant.
	Channel string
	// MaskedRecipient is the masked phone/email the action concerned. Only
	// masked forms are ever recorded.
	MaskedRecipient string
	// Reason carries rejection reasons and lockout causes.
	Reason string
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string
}

// AuditEvent names a recordable action.
type AuditEvent string

const (
	// Registration lifecycle
	EventRegistrationCreated   AuditEvent = "registration_created"
	EventRegistrationUpdated   AuditEvent = "registration_updated"
	EventRegistrationSubmitted AuditEvent = "registration_submitted"
	EventRegistrationValidated AuditEvent = "registration_validated"
	EventRegistrationRejected  AuditEvent = "registration_rejected"
	EventRegistrationCancelled AuditEvent = "registration_cancelled"
	EventRegistrationAssigned  AuditEvent = "registration_assigned"
	EventRegistrationCommented AuditEvent = "registration_commented"
	EventRegistrationDeleted   AuditEvent = "registration_deleted"

	// Verification protocol
	EventCodeRequested       AuditEvent = "verification_code_requested"
	EventCodeResent          AuditEvent = "verification_code_resent"
	EventChannelVerified     AuditEvent = "verification_channel_verified"
	EventVerificationFailed  AuditEvent = "verification_failed"
	EventVerificationLocked  AuditEvent = "verification_locked"
	EventAccessLinkGenerated AuditEvent = "access_link_generated"
	EventReminderSent        AuditEvent = "reminder_sent"

	// Organization lifecycle
	EventOrgCreated      AuditEvent = "organization_created"
	EventOrgDeactivated  AuditEvent = "organization_deactivated"
	EventOrgReactivated  AuditEvent = "organization_reactivated"
	EventTemplateCreated AuditEvent = "template_created"

	// Staff access
	EventStaffLoggedIn    AuditEvent = "staff_logged_in"
	EventStaffLoginFailed AuditEvent = "staff_login_failed"

	// Rate limiting
	EventRateLimitExceeded AuditEvent = "rate_limit_exceeded"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventRegistrationCreated:   CategoryCompliance,
	EventRegistrationSubmitted: CategoryCompliance,
	EventRegistrationValidated: CategoryCompliance,
	EventRegistrationRejected:  CategoryCompliance,
	EventRegistrationCancelled: CategoryCompliance,
	EventRegistrationDeleted:   CategoryCompliance,

	EventVerificationFailed: CategorySecurity,
	EventVerificationLocked: CategorySecurity,
	EventStaffLoginFailed:   CategorySecurity,
	EventRateLimitExceeded:  CategorySecurity,
	EventOrgDeactivated:     CategorySecurity,

	EventRegistrationUpdated:   CategoryOperations,
	EventRegistrationAssigned:  CategoryOperations,
	EventRegistrationCommented: CategoryOperations,
	EventCodeRequested:         CategoryOperations,
	EventCodeResent:            CategoryOperations,
	EventChannelVerified:       CategoryOperations,
	EventAccessLinkGenerated:   CategoryOperations,
	EventReminderSent:          CategoryOperations,
	EventOrgCreated:            CategoryOperations,
	EventOrgReactivated:        CategoryOperations,
	EventTemplateCreated:       CategoryOperations,
	EventStaffLoggedIn:         CategoryOperations,
}

// CategoryOf returns the category for an event, defaulting to operations for
// unrecognized actions so nothing is silently dropped.
func CategoryOf(action AuditEvent) EventCategory {
	if c, ok := eventCategories[action]; ok {
		return c
	}
	return CategoryOperations
}

// Publisher accepts events from domain services. Implementations must not
// block the hot path; a failed publish is logged, never surfaced to the
// applicant.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
