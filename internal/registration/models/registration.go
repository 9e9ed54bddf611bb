package models

import (
	"encoding/json"
	"time"

	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
)

// Status is the workflow state of a registration record.
type Status string

const (
	StatusDraft                Status = "draft"
	StatusPending              Status = "pending"
	StatusInProgress           Status = "in_progress"
	StatusWaitingForDocuments  Status = "waiting_for_documents"
	StatusWaitingForValidation Status = "waiting_for_validation"
	StatusValidated            Status = "validated"
	StatusRejected             Status = "rejected"
	StatusCancelled            Status = "cancelled"
	StatusCompleted            Status = "completed"
)

// AllStatuses lists every status, used by filters and tests.
var AllStatuses = []Status{
	StatusDraft, StatusPending, StatusInProgress, StatusWaitingForDocuments,
	StatusWaitingForValidation, StatusValidated, StatusRejected,
	StatusCancelled, StatusCompleted,
}

func (s Status) IsValid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsEditable reports whether the applicant may still modify the record.
// Only Draft and Pending are externally mutable; every later status freezes
// the record against self-service writes.
func (s Status) IsEditable() bool {
	return s == StatusDraft || s == StatusPending
}

// IsTerminal reports whether no further staff transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusCompleted
}

// statusTransitions encodes the legal staff-driven workflow moves.
var statusTransitions = map[Status][]Status{
	StatusDraft:                {StatusPending, StatusCancelled},
	StatusPending:              {StatusInProgress, StatusWaitingForDocuments, StatusWaitingForValidation, StatusValidated, StatusRejected, StatusCancelled},
	StatusInProgress:           {StatusWaitingForDocuments, StatusWaitingForValidation, StatusValidated, StatusRejected, StatusCancelled},
	StatusWaitingForDocuments:  {StatusInProgress, StatusWaitingForValidation, StatusValidated, StatusRejected, StatusCancelled},
	StatusWaitingForValidation: {StatusValidated, StatusRejected, StatusCancelled},
	StatusValidated:            {StatusCompleted},
}

// CanTransitionTo reports whether the workflow permits moving to target.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// ContactChannel identifies which channel a code or link is delivered on.
type ContactChannel string

const (
	ChannelSMS   ContactChannel = "sms"
	ChannelEmail ContactChannel = "email"
)

// CodeOrigin records which path issued the current one-time code. Verification
// selects the attempt ceiling from it: staff-issued codes tolerate more wrong
// guesses than publicly requested ones.
type CodeOrigin string

const (
	CodeOriginPublic CodeOrigin = "public"
	CodeOriginStaff  CodeOrigin = "staff"
)

// Comment is a staff note attached to a registration.
type Comment struct {
	AuthorID  id.StaffID `json:"author_id"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"created_at"`
}

// Registration is the aggregate root for one applicant's registration.
//
// Invariants:
//   - VerificationAttempts resets to 0 whenever a new code is issued or
//     verification succeeds.
//   - A one-time code is single use: once a channel is verified the stored
//     code is cleared.
//   - AccessTokenExpiry and CodeExpiry are independent; a valid link can
//     carry an expired code (the applicant then requests a resend).
//   - Self-service mutation requires Status.IsEditable().
//   - Deletion is always the DeletedAt flag, never physical removal.
type Registration struct {
	ID                 id.RegistrationID `json:"id"`
	OrgID              id.OrgID          `json:"org_id"`
	TemplateID         id.TemplateID     `json:"template_id"`
	RegistrationNumber string            `json:"registration_number"`

	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	BirthDate *time.Time `json:"birth_date,omitempty"`

	Status Status `json:"status"`

	// Verification state
	EmailVerified          bool       `json:"email_verified"`
	PhoneVerified          bool       `json:"phone_verified"`
	EmailVerificationToken string     `json:"-"`
	SMSVerificationCode    string     `json:"-"`
	CodeExpiry             *time.Time `json:"-"`
	CodeOrigin             CodeOrigin `json:"-"`
	VerificationAttempts   int        `json:"-"`

	// Access state
	AccessToken        string     `json:"-"`
	AccessTokenExpiry  *time.Time `json:"-"`
	LastReminderSentAt *time.Time `json:"last_reminder_sent_at,omitempty"`

	// FormData is the applicant's answers, schema defined by the template.
	FormData json.RawMessage `json:"form_data,omitempty"`

	AssignedTo *id.StaffID `json:"assigned_to,omitempty"`
	Comments   []Comment   `json:"comments,omitempty"`

	RejectionReason string `json:"rejection_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	DeletedAt   *time.Time `json:"-"`
}

// NewRegistration creates a Draft record owned by org, using the given
// template and pre-assigned registration number.
func NewRegistration(regID id.RegistrationID, orgID id.OrgID, templateID id.TemplateID, number string, now time.Time) (*Registration, error) {
	if orgID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "organization id is required")
	}
	if number == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "registration number is required")
	}
	return &Registration{
		ID:                 regID,
		OrgID:              orgID,
		TemplateID:         templateID,
		RegistrationNumber: number,
		Status:             StatusDraft,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// IsMinor reports whether the applicant is under 18 at the given instant.
// Unknown birth dates are treated as adult.
func (r *Registration) IsMinor(now time.Time) bool {
	if r.BirthDate == nil {
		return false
	}
	return r.BirthDate.AddDate(18, 0, 0).After(now)
}

// PreferredChannel selects where to deliver codes and links: SMS when a
// phone number is on file, otherwise email.
func (r *Registration) PreferredChannel() ContactChannel {
	if r.Phone != "" {
		return ChannelSMS
	}
	return ChannelEmail
}

// AccessExpired reports whether the access link is past its expiry. A
// missing expiry counts as expired: tokens are only honored inside an
// explicit window.
func (r *Registration) AccessExpired(now time.Time) bool {
	return r.AccessTokenExpiry == nil || r.AccessTokenExpiry.Before(now)
}

// CodeExpired reports whether the stored one-time code is past its window.
func (r *Registration) CodeExpired(now time.Time) bool {
	return r.CodeExpiry == nil || r.CodeExpiry.Before(now)
}

// IssueAccessToken installs a fresh access token valid for ttl.
func (r *Registration) IssueAccessToken(token string, now time.Time, ttl time.Duration) {
	expiry := now.Add(ttl)
	r.AccessToken = token
	r.AccessTokenExpiry = &expiry
}

// IssueCode installs a fresh one-time code valid for ttl and resets the
// attempt counter. The code counts as publicly requested.
func (r *Registration) IssueCode(code string, now time.Time, ttl time.Duration) {
	expiry := now.Add(ttl)
	r.SMSVerificationCode = code
	r.CodeExpiry = &expiry
	r.CodeOrigin = CodeOriginPublic
	r.VerificationAttempts = 0
}

// IssueStaffCode installs a fresh code issued on a staff member's behalf.
// Such codes verify against the higher resend attempt ceiling.
func (r *Registration) IssueStaffCode(code string, now time.Time, ttl time.Duration) {
	r.IssueCode(code, now, ttl)
	r.CodeOrigin = CodeOriginStaff
}

// ClearCode removes any pending one-time code, forcing a fresh request.
func (r *Registration) ClearCode() {
	r.SMSVerificationCode = ""
	r.CodeExpiry = nil
	r.CodeOrigin = ""
}

// RecordFailedAttempt increments the attempt counter and returns the number
// of attempts remaining under the given ceiling.
func (r *Registration) RecordFailedAttempt(ceiling int) (remaining int) {
	r.VerificationAttempts++
	remaining = ceiling - r.VerificationAttempts
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// MarkPhoneVerified consumes the code and flags the SMS channel verified.
func (r *Registration) MarkPhoneVerified(now time.Time) {
	r.PhoneVerified = true
	r.VerificationAttempts = 0
	r.ClearCode()
	r.UpdatedAt = now
}

// MarkEmailVerified consumes the email token and flags the channel verified.
func (r *Registration) MarkEmailVerified(now time.Time) {
	r.EmailVerified = true
	r.VerificationAttempts = 0
	r.EmailVerificationToken = ""
	r.UpdatedAt = now
}

// Submit transitions Draft to Pending and stamps the submission time.
// Submitting an already Pending record is a no-op rather than an error so a
// double-click on "submit" stays idempotent.
func (r *Registration) Submit(now time.Time) error {
	switch r.Status {
	case StatusDraft:
		r.Status = StatusPending
		r.SubmittedAt = &now
		r.UpdatedAt = now
		return nil
	case StatusPending:
		return nil
	default:
		return dErrors.Newf(dErrors.CodeForbidden, "registration in status %s cannot be submitted", r.Status)
	}
}

// CanValidate checks the workflow permits validation.
func (r *Registration) CanValidate() error {
	if !r.Status.CanTransitionTo(StatusValidated) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "registration in status %s cannot be validated", r.Status)
	}
	return nil
}

// ApplyValidation transitions to Validated. Call CanValidate first.
func (r *Registration) ApplyValidation(now time.Time) {
	r.Status = StatusValidated
	r.ValidatedAt = &now
	r.UpdatedAt = now
}

// CanReject checks the workflow permits rejection.
func (r *Registration) CanReject() error {
	if !r.Status.CanTransitionTo(StatusRejected) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "registration in status %s cannot be rejected", r.Status)
	}
	return nil
}

// ApplyRejection transitions to Rejected with the given reason.
func (r *Registration) ApplyRejection(reason string, now time.Time) {
	r.Status = StatusRejected
	r.RejectionReason = reason
	r.RejectedAt = &now
	r.UpdatedAt = now
}

// Cancel transitions any non-terminal status to Cancelled.
func (r *Registration) Cancel(now time.Time) error {
	if r.Status.IsTerminal() {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "registration in status %s cannot be cancelled", r.Status)
	}
	r.Status = StatusCancelled
	r.UpdatedAt = now
	return nil
}

// Assign sets the staff member responsible for this record.
func (r *Registration) Assign(staffID id.StaffID, now time.Time) {
	r.AssignedTo = &staffID
	r.UpdatedAt = now
}

// AddComment appends a staff note.
func (r *Registration) AddComment(authorID id.StaffID, body string, now time.Time) error {
	if body == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "comment body cannot be empty")
	}
	r.Comments = append(r.Comments, Comment{AuthorID: authorID, Body: body, CreatedAt: now})
	r.UpdatedAt = now
	return nil
}

// RecordReminder stamps an outbound reminder so the stale scan skips the
// record until it goes quiet again.
func (r *Registration) RecordReminder(now time.Time) {
	r.LastReminderSentAt = &now
	r.UpdatedAt = now
}

// SoftDelete flags the record deleted. Physical removal never happens.
func (r *Registration) SoftDelete(now time.Time) {
	r.DeletedAt = &now
	r.UpdatedAt = now
}

// IsDeleted reports whether the record carries the soft-delete flag.
func (r *Registration) IsDeleted() bool {
	return r.DeletedAt != nil
}

// Clone returns a deep copy so stores can hand out records without exposing
// internal state to caller mutation.
func (r *Registration) Clone() *Registration {
	cp := *r
	cp.BirthDate = copyTime(r.BirthDate)
	cp.CodeExpiry = copyTime(r.CodeExpiry)
	cp.AccessTokenExpiry = copyTime(r.AccessTokenExpiry)
	cp.LastReminderSentAt = copyTime(r.LastReminderSentAt)
	cp.SubmittedAt = copyTime(r.SubmittedAt)
	cp.ValidatedAt = copyTime(r.ValidatedAt)
	cp.RejectedAt = copyTime(r.RejectedAt)
	cp.DeletedAt = copyTime(r.DeletedAt)
	if r.AssignedTo != nil {
		assigned := *r.AssignedTo
		cp.AssignedTo = &assigned
	}
	cp.Comments = append([]Comment(nil), r.Comments...)
	cp.FormData = append(json.RawMessage(nil), r.FormData...)
	return &cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
