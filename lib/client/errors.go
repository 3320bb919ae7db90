package client

import (
	"errors"
	"fmt"
)

// Request-failure kinds. These abort the current flow operation; expected
// flow-level failures travel inside the success envelope instead.
var (
	// ErrDeserialization marks a response body that could not be decoded.
	ErrDeserialization = errors.New("response deserialization failed")

	// ErrPrecondition marks an expired permit or rejected arguments (412).
	ErrPrecondition = errors.New("precondition failed")

	// ErrInternal marks a provider-side failure (500). The permit state is
	// indeterminate.
	ErrInternal = errors.New("identity provider internal error")

	// ErrRequest marks a malformed request (400). The permit may still be
	// usable.
	ErrRequest = errors.New("malformed request")

	// ErrState marks an attempt to transition to an unauthorized state
	// (401). The source permit is dead.
	ErrState = errors.New("attempted to transition to an unauthorized state")

	// ErrUnexpectedStatus marks any other non-200 status, or a request
	// that got no response at all (Status 0).
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// RequestError is the fatal error surfaced by every flow operation whose
// request did not complete normally. Kind is one of the sentinel errors
// above, so callers can dispatch with errors.Is.
type RequestError struct {
	Kind   error
	Status int
	cause  error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("request failed: %v", e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *RequestError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

func (e *RequestError) Unwrap() error {
	return e.cause
}

func requestErr(kind error, status int, cause error) *RequestError {
	return &RequestError{Kind: kind, Status: status, cause: cause}
}

// deserializationErr wraps a JSON decode failure or a response that broke
// the at-most-one-slot contract.
func deserializationErr(cause error) *RequestError {
	return &RequestError{Kind: ErrDeserialization, cause: cause}
}
