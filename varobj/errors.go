// Copyright © 2024 The ELPS authors

package varobj

import (
	"errors"
	"fmt"
)

// Kind classifies command failures. The numeric value of a Kind is the
// code reported to front-ends.
type Kind int

const (
	// Internal errors indicate a broken engine invariant.
	Internal Kind = iota
	BadArgumentCount
	BadArgumentFormat
	NameCollision
	NotFound
	EvaluationFailed
	InvalidFormat
)

var kindStrings = []string{
	Internal:          "internal",
	BadArgumentCount:  "bad-argument-count",
	BadArgumentFormat: "bad-argument-format",
	NameCollision:     "name-collision",
	NotFound:          "not-found",
	EvaluationFailed:  "evaluation-failed",
	InvalidFormat:     "invalid-format",
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindStrings) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindStrings[k]
}

// Code is the numeric error code of k.
func (k Kind) Code() int { return int(k) }

// Error is a command failure with a front-end facing message.
type Error struct {
	Kind Kind
	Msg  string
	// Err is the underlying cause, typically an evaluator error.
	Err error
}

// Sentinels for use with errors.Is. Matching compares kinds only.
var (
	ErrBadArgumentCount  = &Error{Kind: BadArgumentCount}
	ErrBadArgumentFormat = &Error{Kind: BadArgumentFormat}
	ErrNameCollision     = &Error{Kind: NameCollision}
	ErrNotFound          = &Error{Kind: NotFound}
	ErrEvaluationFailed  = &Error{Kind: EvaluationFailed}
	ErrInvalidFormat     = &Error{Kind: InvalidFormat}
)

// NewError returns an error of the given kind.
func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Errorf returns an error of the given kind with a formatted message.
func Errorf(kind Kind, format string, v ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, v...)}
}

func (e *Error) Error() string {
	if e.Msg == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// evalError wraps an evaluator failure. The evaluator's own message is the
// message reported to the front-end.
func evalError(err error) *Error {
	var verr *Error
	if errors.As(err, &verr) {
		return verr
	}
	return &Error{Kind: EvaluationFailed, Msg: err.Error(), Err: err}
}

// KindOf returns the kind of err, or Internal when err is not an *Error.
func KindOf(err error) (Kind, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Kind, true
	}
	return Internal, false
}
