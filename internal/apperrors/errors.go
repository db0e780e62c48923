package apperrors

import (
	"errors"
	"strings"
)

type Kind string

const (
	KindTransient           Kind = "transient"
	KindValidation          Kind = "validation"
	KindConcurrencyConflict Kind = "concurrency_conflict"
	KindConstraintViolation Kind = "constraint_violation"
	KindUnexpected          Kind = "unexpected"
)

type Error struct {
	Kind Kind
	// SafeMessage is intended for user-facing output and logs.
	SafeMessage string
	// Cause keeps the original internal error for troubleshooting.
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if msg := strings.TrimSpace(e.SafeMessage); msg != "" {
		return msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func defaultSafeMessage(kind Kind) string {
	switch kind {
	case KindTransient:
		return "Temporary storage error. Please try again."
	case KindValidation:
		return "The row contains an invalid value."
	case KindConcurrencyConflict:
		return "The record was changed or removed by someone else. Reload and try again."
	case KindConstraintViolation:
		return "The record breaks a catalogue rule."
	default:
		return "The change could not be saved."
	}
}

func New(kind Kind, safeMessage string, cause error) error {
	msg := strings.TrimSpace(safeMessage)
	if msg == "" {
		msg = defaultSafeMessage(kind)
	}
	return &Error{
		Kind:        kind,
		SafeMessage: msg,
		Cause:       cause,
	}
}

func Transient(err error) error {
	return New(KindTransient, "", err)
}

func Validation(msg string) error {
	return New(KindValidation, msg, nil)
}

func Conflict(err error) error {
	return New(KindConcurrencyConflict, "", err)
}

func Constraint(msg string, err error) error {
	return New(KindConstraintViolation, msg, err)
}

func Unexpected(err error) error {
	return New(KindUnexpected, "", err)
}

func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}

func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	// Conflicts are worth a retry once the user has reloaded the parent.
	return e.Kind == KindTransient || e.Kind == KindConcurrencyConflict
}

func IsValidation(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindValidation
}
