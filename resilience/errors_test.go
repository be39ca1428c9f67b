package resilience

import (
	"context"
	"errors"
	"net"
	"testing"
)

type timeoutNetError struct{}

func (timeoutNetError) Error() string   { return "i/o timeout" }
func (timeoutNetError) Timeout() bool   { return true }
func (timeoutNetError) Temporary() bool { return true }

var _ net.Error = timeoutNetError{}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"deadline", context.DeadlineExceeded, ClassTimeout},
		{"net_timeout", timeoutNetError{}, ClassTimeout},
		{"wrapped_deadline", &net.OpError{Op: "dial", Err: context.DeadlineExceeded}, ClassTimeout},
		{"refused", errors.New("dial tcp 127.0.0.1:80: connect: connection refused"), ClassNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Class
	}{
		{400, ClassUpstreamClient},
		{404, ClassUpstreamClient},
		{429, ClassUpstreamClient},
		{500, ClassUpstreamServer},
		{502, ClassUpstreamServer},
		{503, ClassUpstreamServer},
	}

	for _, tt := range tests {
		if got := ClassForStatus(tt.status); got != tt.want {
			t.Errorf("ClassForStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		class Class
		want  bool
	}{
		{ClassNetwork, true},
		{ClassTimeout, true},
		{ClassUpstreamServer, true},
		{ClassUpstreamClient, false},
		{ClassCircuitOpen, false},
		{ClassConfiguration, false},
	}

	for _, tt := range tests {
		t.Run(tt.class.String(), func(t *testing.T) {
			if got := Retryable(tt.class); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.class, got, tt.want)
			}
		})
	}
}

func TestError_IsCircuitOpen(t *testing.T) {
	err := NewError(ClassCircuitOpen, "auth-service", ErrCircuitOpen)

	if !errors.Is(err, ErrCircuitOpen) {
		t.Error("errors.Is(circuit-open Error, ErrCircuitOpen) = false, want true")
	}

	other := NewError(ClassNetwork, "auth-service", errors.New("refused"))
	if errors.Is(other, ErrCircuitOpen) {
		t.Error("errors.Is(network Error, ErrCircuitOpen) = true, want false")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := NewError(ClassNetwork, "payment-service", cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}

	var re *Error
	if !errors.As(err, &re) {
		t.Fatal("errors.As failed to extract *Error")
	}
	if re.Service != "payment-service" {
		t.Errorf("Service = %q, want payment-service", re.Service)
	}
}

func TestClassOf(t *testing.T) {
	if got := ClassOf(NewUpstreamError("svc", 502, nil)); got != ClassUpstreamServer {
		t.Errorf("ClassOf(upstream 502) = %v, want upstream_server", got)
	}
	if got := ClassOf(ErrCircuitOpen); got != ClassCircuitOpen {
		t.Errorf("ClassOf(ErrCircuitOpen) = %v, want circuit_open", got)
	}
	if got := ClassOf(context.DeadlineExceeded); got != ClassTimeout {
		t.Errorf("ClassOf(deadline) = %v, want timeout", got)
	}
}

func TestClass_String(t *testing.T) {
	tests := []struct {
		class Class
		want  string
	}{
		{ClassNetwork, "network"},
		{ClassTimeout, "timeout"},
		{ClassUpstreamServer, "upstream_server"},
		{ClassUpstreamClient, "upstream_client"},
		{ClassCircuitOpen, "circuit_open"},
		{ClassConfiguration, "configuration"},
		{Class(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.class.String(); got != tt.want {
			t.Errorf("Class.String() = %v, want %v", got, tt.want)
		}
	}
}
