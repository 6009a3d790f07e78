package cron_feature

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindDuplicateName
	KindValidationFailed
	KindInvalidTransition
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindDuplicateName:
		return "duplicate_name"
	case KindValidationFailed:
		return "validation_failed"
	case KindInvalidTransition:
		return "invalid_transition"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against *Error values.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrDuplicateName     = &Error{Kind: KindDuplicateName}
	ErrValidationFailed  = &Error{Kind: KindValidationFailed}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
)

// Error is a structural or validation failure raised by the cron domain model.
// Problems is only populated for KindValidationFailed.
type Error struct {
	Kind     ErrorKind
	Message  string
	Problems []string
}

func (e *Error) Error() string {
	if len(e.Problems) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Problems, "; ")
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NotFoundError(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func DuplicateNameError(format string, args ...any) *Error {
	return &Error{Kind: KindDuplicateName, Message: fmt.Sprintf(format, args...)}
}

func ValidationError(message string, problems []string) *Error {
	return &Error{Kind: KindValidationFailed, Message: message, Problems: problems}
}

func TransitionError(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the ErrorKind carried by err, or 0 when err is not a domain error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

// ProblemsOf returns the collected validation messages carried by err.
func ProblemsOf(err error) []string {
	var de *Error
	if errors.As(err, &de) {
		return de.Problems
	}
	return nil
}
