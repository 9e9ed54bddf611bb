package models

import dErrors "enrolld/pkg/domain-errors"

// StaffAction is the closed set of back-office operations on a registration.
// Handlers parse the wire string once at the trust boundary; everything past
// that point switches exhaustively on the enum, so an unrecognized action is
// a parse error, never a silently ignored default case.
type StaffAction string

const (
	ActionValidate StaffAction = "validate"
	ActionReject   StaffAction = "reject"
	ActionAssign   StaffAction = "assign"
	ActionComment  StaffAction = "comment"
	ActionCancel   StaffAction = "cancel"
	ActionDelete   StaffAction = "delete"
)

// ParseStaffAction validates a wire string into a StaffAction.
func ParseStaffAction(s string) (StaffAction, error) {
	switch a := StaffAction(s); a {
	case ActionValidate, ActionReject, ActionAssign, ActionComment, ActionCancel, ActionDelete:
		return a, nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown action %q", s)
	}
}
