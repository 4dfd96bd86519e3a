// Package gameerr defines the error taxonomy shared by the progression engine
// and its collaborators.
package gameerr

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error classification.
type Code string

const (
	CodeGraphViolation          Code = "GRAPH_VIOLATION"
	CodeIneligibleChoice        Code = "INELIGIBLE_CHOICE"
	CodeInvalidTransition       Code = "INVALID_TRANSITION"
	CodeDuplicateActiveProgress Code = "DUPLICATE_ACTIVE_PROGRESS"
	CodeInvariantBreach         Code = "INVARIANT_BREACH"
	CodeInvalidInput            Code = "INVALID_INPUT"
	CodeNotFound                Code = "NOT_FOUND"
	CodeConflict                Code = "CONFLICT"
)

// GenericMessage is shown to end users in place of internal failure detail.
const GenericMessage = "internal error"

// Sentinels for errors.Is comparisons. Any *Error with the same Code matches.
var (
	ErrGraphViolation          = &Error{Code: CodeGraphViolation}
	ErrIneligibleChoice        = &Error{Code: CodeIneligibleChoice}
	ErrInvalidTransition       = &Error{Code: CodeInvalidTransition}
	ErrDuplicateActiveProgress = &Error{Code: CodeDuplicateActiveProgress}
	ErrInvariantBreach         = &Error{Code: CodeInvariantBreach}
	ErrInvalidInput            = &Error{Code: CodeInvalidInput}
	ErrNotFound                = &Error{Code: CodeNotFound}
	ErrConflict                = &Error{Code: CodeConflict}
)

// Classified is implemented by errors that carry a code and a reason safe to
// show to a player or author.
type Classified interface {
	error
	ErrorCode() Code
	PublicReason() string
}

// Error is the engine's structured error.
type Error struct {
	Code   Code
	Reason string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Reason != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Reason, e.Err)
	case e.Reason != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same code. A target with a reason must
// match the reason too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

func (e *Error) ErrorCode() Code { return e.Code }

func (e *Error) PublicReason() string { return e.Reason }

func New(code Code, reason string) *Error {
	return &Error{Code: code, Reason: reason}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Reason: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

func GraphViolation(reason string) *Error { return New(CodeGraphViolation, reason) }

func IneligibleChoice(reason string) *Error { return New(CodeIneligibleChoice, reason) }

func InvalidTransition(reason string) *Error { return New(CodeInvalidTransition, reason) }

func DuplicateActiveProgress(reason string) *Error {
	return New(CodeDuplicateActiveProgress, reason)
}

func InvariantBreach(reason string) *Error { return New(CodeInvariantBreach, reason) }

func InvalidInput(reason string) *Error { return New(CodeInvalidInput, reason) }

func NotFound(reason string) *Error { return New(CodeNotFound, reason) }

func Conflict(reason string) *Error { return New(CodeConflict, reason) }

// CodeOf returns the code of the first classified error in err's chain, or
// CodeInvariantBreach when err is unclassified.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var c Classified
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return CodeInvariantBreach
}

// PublicMessage returns the text a player or author may see for err.
// Invariant breaches and unclassified errors collapse to GenericMessage.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var c Classified
	if !errors.As(err, &c) || c.ErrorCode() == CodeInvariantBreach {
		return GenericMessage
	}
	if r := c.PublicReason(); r != "" {
		return r
	}
	return string(c.ErrorCode())
}

// IsUserFacing reports whether err is a rejection the caller caused, as
// opposed to an internal failure.
func IsUserFacing(err error) bool {
	switch CodeOf(err) {
	case CodeGraphViolation, CodeIneligibleChoice, CodeInvalidTransition,
		CodeDuplicateActiveProgress, CodeInvalidInput, CodeNotFound, CodeConflict:
		return true
	default:
		return false
	}
}
