package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Class categorizes a failed request attempt. The class decides whether an
// attempt is retried and how the failure is reported to callers.
type Class int

const (
	// ClassNetwork covers connection refused, DNS failures, and resets.
	ClassNetwork Class = iota
	// ClassTimeout covers call-level deadline expiry.
	ClassTimeout
	// ClassUpstreamServer covers 5xx responses from the peer.
	ClassUpstreamServer
	// ClassUpstreamClient covers 4xx responses from the peer.
	ClassUpstreamClient
	// ClassCircuitOpen is synthetic: the breaker rejected the call with no I/O.
	ClassCircuitOpen
	// ClassConfiguration covers missing or invalid call parameters.
	ClassConfiguration
)

// String returns the string representation of the class.
func (c Class) String() string {
	switch c {
	case ClassNetwork:
		return "network"
	case ClassTimeout:
		return "timeout"
	case ClassUpstreamServer:
		return "upstream_server"
	case ClassUpstreamClient:
		return "upstream_client"
	case ClassCircuitOpen:
		return "circuit_open"
	case ClassConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open. No network
// attempt has been made when a caller sees this error.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// Error is the single error type surfaced to business callers. It carries
// the failure class, the name of the service that was called, and the HTTP
// status for upstream errors.
type Error struct {
	Class   Class
	Service string
	Status  int
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resilience: %s: %s: %v", e.Service, e.Class, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("resilience: %s: %s: status %d", e.Service, e.Class, e.Status)
	}
	return fmt.Sprintf("resilience: %s: %s", e.Service, e.Class)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrCircuitOpen) match any circuit-open Error.
func (e *Error) Is(target error) bool {
	return target == ErrCircuitOpen && e.Class == ClassCircuitOpen
}

// NewError wraps err with a class and service context.
func NewError(class Class, service string, err error) *Error {
	return &Error{Class: class, Service: service, Err: err}
}

// NewUpstreamError builds an Error for a non-2xx response, classifying the
// status as a server (5xx, retryable) or client (4xx, not retryable) failure.
func NewUpstreamError(service string, status int, err error) *Error {
	return &Error{Class: ClassForStatus(status), Service: service, Status: status, Err: err}
}

// ClassForStatus maps an HTTP status code to an error class.
func ClassForStatus(status int) Class {
	if status >= 500 {
		return ClassUpstreamServer
	}
	return ClassUpstreamClient
}

// Classify maps a raw transport error to a class. Deadline expiry and
// net.Error timeouts are timeouts; everything else is a network failure.
func Classify(err error) Class {
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ClassTimeout
	}
	return ClassNetwork
}

// ClassOf returns the class recorded on err, falling back to Classify for
// raw transport errors.
func ClassOf(err error) Class {
	var re *Error
	if errors.As(err, &re) {
		return re.Class
	}
	if errors.Is(err, ErrCircuitOpen) {
		return ClassCircuitOpen
	}
	return Classify(err)
}

// Retryable reports whether a class represents a transient failure that may
// succeed on retry. Client errors, circuit rejections, and configuration
// problems never retry.
func Retryable(class Class) bool {
	switch class {
	case ClassNetwork, ClassTimeout, ClassUpstreamServer:
		return true
	default:
		return false
	}
}
