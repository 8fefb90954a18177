package apperr

import "fmt"

// TransportReason names a connectivity failure detected below HTTP.
type TransportReason int

const (
	NotConnected TransportReason = iota + 1
	ConnectionLost
	TimedOut
	HostUnreachable
)

func (r TransportReason) String() string {
	switch r {
	case NotConnected:
		return "not connected"
	case ConnectionLost:
		return "connection lost"
	case TimedOut:
		return "timed out"
	case HostUnreachable:
		return "host unreachable"
	default:
		return fmt.Sprintf("transport(%d)", int(r))
	}
}

// TransportError is raised by data-access code that already knows which
// connectivity failure occurred.
type TransportError struct {
	Reason TransportReason
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: %s: %v", e.Reason, e.Err)
	}
	return "transport: " + e.Reason.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is an HTTP-style failure without a recognised business code.
type StatusError struct {
	Code       int
	Resource   string // what was requested, for 404s
	RetryAfter int    // seconds, for 429s
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("status %d", e.Code)
}

// APIFault is a business error declared by the backend in its error envelope.
type APIFault struct {
	Status    int
	Code      string
	Message   string
	Required  int
	Available int

	Resource   string // as for StatusError
	RetryAfter int
}

func (e *APIFault) Error() string {
	return fmt.Sprintf("api %s: %s", e.Code, e.Message)
}

// DecodeError wraps a failure to parse a response body.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode response: %v", e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }
