package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so transports can map it to a status.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindAccessDenied    ErrorKind = "access_denied"
	KindNotFound        ErrorKind = "not_found"
	KindConflict        ErrorKind = "conflict"
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindInternal        ErrorKind = "internal"
)

// FieldViolation describes one invalid input field.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the typed outcome returned by every public operation.
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  []FieldViolation
}

func (e *Error) Error() string {
	return e.Message
}

// NewError creates a typed error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates a typed error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ValidationError creates a validation error carrying per-field violations.
func ValidationError(fields ...FieldViolation) *Error {
	msg := "invalid request"
	if len(fields) == 1 {
		msg = fields[0].Field + ": " + fields[0].Message
	}
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Membership errors
var (
	ErrNotMember          = NewError(KindAccessDenied, "you are not a member of this organization")
	ErrAccessDenied       = NewError(KindAccessDenied, "access denied")
	ErrMembershipNotFound = NewError(KindNotFound, "member not found")
	ErrAlreadyMember      = NewError(KindConflict, "user is already a member of this organization")
	ErrOwnerImmutable     = NewError(KindConflict, "cannot change owner role")
	ErrOwnerNotRemovable  = NewError(KindConflict, "cannot remove organization owner")
	ErrOwnerCannotLeave   = NewError(KindConflict, "owner cannot leave organization, delete the organization instead")
	ErrSelfRoleChange     = NewError(KindConflict, "you cannot change your own role")
	ErrSelfRemoval        = NewError(KindConflict, "use the leave endpoint to remove yourself")
	ErrMemberLimitReached = NewError(KindConflict, "organization has reached maximum member limit")
	ErrMemberLimitTooLow  = NewError(KindConflict, "maxMembers cannot be lower than the current member count")
)

// Organization errors
var (
	ErrOrganizationNotFound = NewError(KindNotFound, "organization not found")
	ErrOwnerOnly            = NewError(KindAccessDenied, "only the owner can delete the organization")
)

// Invitation errors
var (
	ErrInvitationNotFound     = NewError(KindNotFound, "invitation not found")
	ErrInvalidInvitationToken = NewError(KindNotFound, "invalid invitation token")
	ErrInvitationNotValid     = NewError(KindConflict, "invitation no longer valid")
	ErrInvitationExpired      = NewError(KindConflict, "invitation has expired or is no longer valid")
	ErrInvitationNotPending   = NewError(KindConflict, "invitation is no longer pending")
	ErrInvitationExists       = NewError(KindConflict, "an invitation has already been sent to this email")
)

// Task errors
var (
	ErrTaskNotFound = NewError(KindNotFound, "task not found")
)

// User and authentication errors
var (
	ErrUserNotFound    = NewError(KindNotFound, "user not found")
	ErrUnauthenticated = NewError(KindUnauthenticated, "authentication required")
	ErrInvalidToken    = NewError(KindUnauthenticated, "invalid or expired token")
)

// Storage errors
var (
	ErrConflict = NewError(KindConflict, "concurrent update conflict, please retry")
)
