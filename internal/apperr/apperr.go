package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the API layer can pick a status code and a
// safe message without inspecting backend error strings.
type Kind int

const (
	KindUnknown Kind = iota
	// LoadFailure means a catalog or order fetch failed; callers keep
	// whatever view they already had.
	LoadFailure
	// AuthFailure carries an AuthReason sub-kind.
	AuthFailure
	// ValidationFailure means a request was rejected locally, before any
	// network call.
	ValidationFailure
	// PersistenceCorruption means locally persisted state was unparsable.
	// The cart store absorbs this itself (treats as empty), so it rarely
	// escapes to callers.
	PersistenceCorruption
	// WriteFailure means a create/update/delete against the remote store
	// failed; dependent local state must not be cleared optimistically.
	WriteFailure
)

// AuthReason sub-classifies AuthFailure.
type AuthReason int

const (
	AuthUnknown AuthReason = iota
	AuthInvalidCredentials
	AuthEmailInUse
	AuthWeakPassword
	AuthThrottled
)

// Error is a classified application error.
type Error struct {
	Kind   Kind
	Reason AuthReason
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error without a cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Auth creates an AuthFailure with a sub-kind.
func Auth(reason AuthReason, err error) *Error {
	return &Error{Kind: AuthFailure, Reason: reason, Msg: "authentication failed", Err: err}
}

// KindOf extracts the Kind from an error chain; KindUnknown if unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ReasonOf extracts the AuthReason from an error chain.
func ReasonOf(err error) AuthReason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return AuthUnknown
}

// UserMessage maps a classified error to fixed human-readable text. Raw
// backend error strings are never shown to users.
func UserMessage(err error) string {
	switch KindOf(err) {
	case LoadFailure:
		return "Failed to load. Please check your connection and try again."
	case ValidationFailure:
		var e *Error
		if errors.As(err, &e) && e.Msg != "" {
			return e.Msg
		}
		return "Please check the form and try again."
	case WriteFailure:
		return "Failed to save. Please try again."
	case AuthFailure:
		switch ReasonOf(err) {
		case AuthInvalidCredentials:
			return "Incorrect email or password."
		case AuthEmailInUse:
			return "This email is already in use."
		case AuthWeakPassword:
			return "Password should be at least 6 characters."
		case AuthThrottled:
			return "Too many attempts. Please wait and try again."
		default:
			return "Failed to sign in. Please try again."
		}
	default:
		return "Something went wrong. Please try again."
	}
}
