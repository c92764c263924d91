package toolresult

import (
	"encoding/json"
	"fmt"
)

// Status is the outcome class of a tool invocation.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
	StatusRetry Status = "retry"
)

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusError, StatusRetry:
		return true
	}
	return false
}

// Rollback hints carried by every envelope.
const (
	RollbackNone  = "none"
	RollbackState = "state"
	// RollbackTools is only produced by external orchestrators; Check accepts it.
	RollbackTools = "tools"
)

// Error codes the invocation template itself emits.
const (
	CodeBadArgs  = "BAD_ARGS"
	CodeToolFail = "TOOL_FAIL"
)

// ErrorDetail describes why an invocation did not succeed.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"msg"`
}

func (e ErrorDetail) String() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Envelope is the immutable result of one tool invocation.
//
// Envelopes are only built through Success, Failure and Retryable, which keeps
// status, data, error and rollback hint consistent with each other.
type Envelope[T any] struct {
	status   Status
	data     T
	hasData  bool
	err      *ErrorDetail
	rollback string
}

// Success wraps data in an OK envelope.
func Success[T any](data T) Envelope[T] {
	return Envelope[T]{
		status:   StatusOK,
		data:     data,
		hasData:  true,
		rollback: RollbackNone,
	}
}

// Failure builds a permanent error envelope.
func Failure[T any](code, message string) Envelope[T] {
	return Envelope[T]{
		status:   StatusError,
		err:      &ErrorDetail{Code: code, Message: message},
		rollback: RollbackState,
	}
}

// Retryable builds an error envelope the orchestrator may retry.
func Retryable[T any](code, message string) Envelope[T] {
	return Envelope[T]{
		status:   StatusRetry,
		err:      &ErrorDetail{Code: code, Message: message},
		rollback: RollbackState,
	}
}

// Status returns the envelope status. The zero Envelope has an empty status.
func (e Envelope[T]) Status() Status { return e.status }

// OK reports whether the invocation succeeded.
func (e Envelope[T]) OK() bool { return e.status == StatusOK }

// Data returns the payload and whether it is present.
func (e Envelope[T]) Data() (T, bool) { return e.data, e.hasData }

// Error returns a copy of the error detail, or nil on success.
func (e Envelope[T]) Error() *ErrorDetail {
	if e.err == nil {
		return nil
	}
	detail := *e.err
	return &detail
}

// Code returns the error code, or "" on success.
func (e Envelope[T]) Code() string {
	if e.err == nil {
		return ""
	}
	return e.err.Code
}

// RollbackHint returns "none" for successful results and "state" otherwise
// ("tools" only on envelopes decoded from an orchestrator).
func (e Envelope[T]) RollbackHint() string { return e.rollback }

// IsZero reports whether the envelope was never constructed.
func (e Envelope[T]) IsZero() bool { return e.status == "" }

// Erase converts the envelope to one with an untyped payload.
func (e Envelope[T]) Erase() Envelope[any] {
	out := Envelope[any]{
		status:   e.status,
		hasData:  e.hasData,
		err:      e.Error(),
		rollback: e.rollback,
	}
	if e.hasData {
		out.data = e.data
	}
	return out
}

// wire is the compact JSON form shared with the orchestrator.
type wire[T any] struct {
	S  Status       `json:"s"`
	D  *T           `json:"d"`
	E  *ErrorDetail `json:"e"`
	RB string       `json:"rb"`
}

// MarshalJSON emits {"s","d","e","rb"} with absent members as null.
func (e Envelope[T]) MarshalJSON() ([]byte, error) {
	w := wire[T]{S: e.status, E: e.err, RB: e.rollback}
	if e.hasData {
		d := e.data
		w.D = &d
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a wire envelope, rejecting payloads that break the
// status/data/error/rollback invariants. A decoded "tools" hint is kept.
func (e *Envelope[T]) UnmarshalJSON(b []byte) error {
	var w wire[T]
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.S {
	case StatusOK:
		if w.E != nil {
			return fmt.Errorf("ok envelope must not carry an error")
		}
		if w.RB != RollbackNone {
			return fmt.Errorf("ok envelope requires rb=%q, got %q", RollbackNone, w.RB)
		}
		var data T
		if w.D != nil {
			data = *w.D
		}
		*e = Success(data)
	case StatusError, StatusRetry:
		if w.E == nil {
			return fmt.Errorf("%s envelope requires an error", w.S)
		}
		if w.D != nil {
			return fmt.Errorf("%s envelope must not carry data", w.S)
		}
		if w.RB != RollbackState && w.RB != RollbackTools {
			return fmt.Errorf("%s envelope requires rb=%q or %q, got %q", w.S, RollbackState, RollbackTools, w.RB)
		}
		if w.S == StatusError {
			*e = Failure[T](w.E.Code, w.E.Message)
		} else {
			*e = Retryable[T](w.E.Code, w.E.Message)
		}
		e.rollback = w.RB
	default:
		return fmt.Errorf("invalid status %q", w.S)
	}
	return nil
}
