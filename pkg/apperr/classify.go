package apperr

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

// DecodeFailureMessage is shown for any response that could not be parsed.
// Parser details never reach the user.
const DecodeFailureMessage = "Failed to process server response"

// Rule maps backend business codes starting with Prefix to a specific Error.
type Rule struct {
	Prefix string
	Map    func(f *APIFault) Error
}

// builtinRules is intentionally partial. Unmatched codes become APIError,
// except on statuses that carry their own meaning.
var builtinRules = []Rule{
	{Prefix: "INSUFFICIENT_CREDITS", Map: creditsRule},
	{Prefix: "CREDITS_", Map: creditsRule},
	{Prefix: "AUTH_TOKEN_EXPIRED", Map: func(*APIFault) Error { return TokenExpired() }},
	{Prefix: "TOKEN_EXPIRED", Map: func(*APIFault) Error { return TokenExpired() }},
	{Prefix: "VALIDATION_", Map: func(f *APIFault) Error { return ValidationFailed(f.Message) }},
}

func creditsRule(f *APIFault) Error { return InsufficientCredits(f.Required, f.Available) }

// Classifier maps raw faults to Errors. The zero value uses the built-in
// business-code table only.
type Classifier struct {
	rules []Rule
}

// NewClassifier returns a Classifier whose extra rules are consulted before
// the built-in table.
func NewClassifier(extra ...Rule) *Classifier {
	rules := make([]Rule, 0, len(extra)+len(builtinRules))
	rules = append(rules, extra...)
	rules = append(rules, builtinRules...)
	return &Classifier{rules: rules}
}

var std = NewClassifier()

// Classify maps err onto exactly one Error using the built-in table. It never
// fails and is idempotent: Classify(Classify(err)) == Classify(err).
func Classify(err error) Error { return std.Classify(err) }

// Classify maps err onto exactly one Error.
func (c *Classifier) Classify(err error) Error {
	if err == nil {
		return Unknown("An unexpected error occurred")
	}

	var classified Error
	if errors.As(err, &classified) {
		return classified
	}

	if e, ok := classifyConnectivity(err); ok {
		return e
	}

	var fault *APIFault
	if errors.As(err, &fault) {
		return c.classifyBusiness(fault)
	}

	var status *StatusError
	if errors.As(err, &status) {
		return classifyStatus(status)
	}

	if isDecodeFailure(err) {
		return Unknown(DecodeFailureMessage)
	}

	if errors.Is(err, context.Canceled) {
		return Unknown("Request was cancelled")
	}

	return Unknown(err.Error())
}

func (c *Classifier) classifyBusiness(f *APIFault) Error {
	rules := c.rules
	if rules == nil {
		rules = builtinRules
	}
	code := strings.ToUpper(f.Code)
	for _, r := range rules {
		if strings.HasPrefix(code, r.Prefix) {
			return r.Map(f)
		}
	}
	switch f.Status {
	case 401, 403, 404, 429:
		return classifyStatus(&StatusError{
			Code:       f.Status,
			Resource:   f.Resource,
			RetryAfter: f.RetryAfter,
			Message:    f.Message,
		})
	}
	return APIError(f.Code, f.Message)
}

func classifyStatus(s *StatusError) Error {
	switch s.Code {
	case 401:
		return Unauthorized()
	case 403:
		return Forbidden()
	case 404:
		return NotFound(s.Resource)
	case 429:
		return RateLimited(s.RetryAfter)
	default:
		return ServerError(s.Code)
	}
}

func classifyConnectivity(err error) (Error, bool) {
	var transport *TransportError
	if errors.As(err, &transport) {
		switch transport.Reason {
		case NotConnected, ConnectionLost:
			return NoConnection(), true
		case TimedOut:
			return Timeout(), true
		case HostUnreachable:
			return ServerError(0), true
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(), true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout(), true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ServerError(0), true
	}

	switch {
	case errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE):
		return NoConnection(), true
	case errors.Is(err, io.ErrUnexpectedEOF) && !isDecodeFailure(err):
		// body cut off mid-transfer; a truncated document is a decode failure
		return NoConnection(), true
	case errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ECONNREFUSED):
		return ServerError(0), true
	}

	return Error{}, false
}

func isDecodeFailure(err error) bool {
	var decodeErr *DecodeError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &decodeErr) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
