package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// NetworkError is returned when the backend could not be reached or did not
// answer before the request deadline.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error at %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline expiring.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// ProtocolError is returned when the backend answered with a non-2xx status
// or a body that isn't the expected JSON.
type ProtocolError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error (%d) at %s: %s: %v", e.StatusCode, e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("protocol error (%d) at %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsNetworkError returns true if err is or wraps a *NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsProtocolError returns true if err is or wraps a *ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
