// Package apperr defines the error taxonomy shared by the task lifecycle,
// trivia and leaderboard packages and mapped to HTTP statuses by the handlers.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Conflict codes let clients render "already done" instead of a generic error.
const (
	CodeAlreadySolved       = "ALREADY_SOLVED"
	CodeAlreadyAttempted    = "ALREADY_ATTEMPTED"
	CodeStaleQuestion       = "STALE_QUESTION"
	CodeTaskAlreadyApproved = "TASK_ALREADY_APPROVED"
	CodeTaskAlreadyRejected = "TASK_ALREADY_REJECTED"

	CodeValidation = "VALIDATION_FAILED"
	CodeNotFound   = "NOT_FOUND"
	CodeStorage    = "STORAGE_ERROR"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same kind and code, so sentinel values
// such as ErrAlreadySolved work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

var (
	ErrAlreadySolved       = Conflict(CodeAlreadySolved, "trivia already solved by the family today")
	ErrAlreadyAttempted    = Conflict(CodeAlreadyAttempted, "child already answered today's trivia")
	ErrStaleQuestion       = Conflict(CodeStaleQuestion, "question reference does not match today's question")
	ErrTaskAlreadyApproved = Conflict(CodeTaskAlreadyApproved, "task already approved")
	ErrTaskAlreadyRejected = Conflict(CodeTaskAlreadyRejected, "task already rejected")
)

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: message}
}

func Validationf(format string, args ...any) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: resource + " not found"}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// Storage wraps a transaction or connectivity failure. Callers may retry the
// whole operation.
func Storage(op string, cause error) *Error {
	return &Error{Kind: KindStorage, Code: CodeStorage, Message: op, Cause: cause}
}

// KindOf reports the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf reports the Code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool   { return KindOf(err) == KindConflict }
func IsValidation(err error) bool { return KindOf(err) == KindValidation }
