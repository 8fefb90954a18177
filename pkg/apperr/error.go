// Package apperr defines the closed set of user-facing failure kinds and the
// classifier that maps any raw fault (transport, backend business error,
// decode failure) onto exactly one of them.
//
// An Error is pure data. Its title, message, retryability and suggested
// recovery action are derived from the Kind, so two errors of the same
// variant with the same payload compare equal with ==.
package apperr

import "fmt"

// Kind tags an Error variant.
type Kind int

const (
	KindUnknown Kind = iota
	KindNoConnection
	KindTimeout
	KindServerError
	KindUnauthorized
	KindTokenExpired
	KindForbidden
	KindInsufficientCredits
	KindNotFound
	KindValidationFailed
	KindRateLimited
	KindAPIError
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindNoConnection:        "no_connection",
	KindTimeout:             "timeout",
	KindServerError:         "server_error",
	KindUnauthorized:        "unauthorized",
	KindTokenExpired:        "token_expired",
	KindForbidden:           "forbidden",
	KindInsufficientCredits: "insufficient_credits",
	KindNotFound:            "not_found",
	KindValidationFailed:    "validation_failed",
	KindRateLimited:         "rate_limited",
	KindAPIError:            "api_error",
}

// String returns the snake_case name used in logs and metric labels.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Action is the recovery a presentation layer should offer for an Error.
type Action int

const (
	ActionRetry Action = iota
	ActionWaitAndRetry
	ActionWaitForConnection
	ActionSignIn
	ActionGoBack
	ActionFixInput
	ActionUpgrade
	ActionContactSupport
)

var actionNames = [...]string{
	ActionRetry:             "retry",
	ActionWaitAndRetry:      "wait_and_retry",
	ActionWaitForConnection: "wait_for_connection",
	ActionSignIn:            "sign_in",
	ActionGoBack:            "go_back",
	ActionFixInput:          "fix_input",
	ActionUpgrade:           "upgrade",
	ActionContactSupport:    "contact_support",
}

func (a Action) String() string {
	if int(a) >= 0 && int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Error is a classified failure. Only the fields relevant to Kind are set;
// the rest stay at their zero value so equality is by variant and payload.
type Error struct {
	Kind Kind

	StatusCode int    // KindServerError
	Required   int    // KindInsufficientCredits
	Available  int    // KindInsufficientCredits
	Resource   string // KindNotFound
	RetryAfter int    // KindRateLimited, seconds
	Code       string // KindAPIError
	Message    string // KindValidationFailed, KindAPIError, KindUnknown
}

func NoConnection() Error { return Error{Kind: KindNoConnection} }
func Timeout() Error      { return Error{Kind: KindTimeout} }
func Unauthorized() Error { return Error{Kind: KindUnauthorized} }
func TokenExpired() Error { return Error{Kind: KindTokenExpired} }
func Forbidden() Error    { return Error{Kind: KindForbidden} }

// ServerError reports a failing backend. A status of 0 means the host could
// not be reached at all.
func ServerError(status int) Error { return Error{Kind: KindServerError, StatusCode: status} }

func InsufficientCredits(required, available int) Error {
	return Error{Kind: KindInsufficientCredits, Required: required, Available: available}
}

func NotFound(resource string) Error { return Error{Kind: KindNotFound, Resource: resource} }

func ValidationFailed(message string) Error {
	return Error{Kind: KindValidationFailed, Message: message}
}

func RateLimited(retryAfterSeconds int) Error {
	return Error{Kind: KindRateLimited, RetryAfter: retryAfterSeconds}
}

func APIError(code, message string) Error {
	return Error{Kind: KindAPIError, Code: code, Message: message}
}

func Unknown(message string) Error { return Error{Kind: KindUnknown, Message: message} }

// Error implements the error interface with a log-friendly description.
func (e Error) Error() string {
	switch e.Kind {
	case KindServerError:
		return fmt.Sprintf("%s (status %d)", e.Kind, e.StatusCode)
	case KindInsufficientCredits:
		return fmt.Sprintf("%s (required %d, available %d)", e.Kind, e.Required, e.Available)
	case KindNotFound:
		return fmt.Sprintf("%s: %s", e.Kind, e.Resource)
	case KindRateLimited:
		return fmt.Sprintf("%s (retry after %ds)", e.Kind, e.RetryAfter)
	case KindAPIError:
		return fmt.Sprintf("%s %s: %s", e.Kind, e.Code, e.Message)
	case KindValidationFailed, KindUnknown:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	default:
		return e.Kind.String()
	}
}

// Retryable reports whether repeating the same request may succeed without
// any user action.
func (e Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindServerError, KindRateLimited:
		return true
	default:
		return false
	}
}

// SuggestedAction is fixed per Kind so every screen offers the same recovery
// for the same failure.
func (e Error) SuggestedAction() Action {
	switch e.Kind {
	case KindNoConnection:
		return ActionWaitForConnection
	case KindTimeout, KindServerError:
		return ActionRetry
	case KindRateLimited:
		return ActionWaitAndRetry
	case KindUnauthorized, KindTokenExpired:
		return ActionSignIn
	case KindForbidden, KindNotFound:
		return ActionGoBack
	case KindValidationFailed:
		return ActionFixInput
	case KindInsufficientCredits:
		return ActionUpgrade
	default:
		return ActionContactSupport
	}
}

// Title is a short heading for an error banner.
func (e Error) Title() string {
	switch e.Kind {
	case KindNoConnection:
		return "No Connection"
	case KindTimeout:
		return "Request Timed Out"
	case KindServerError:
		return "Server Error"
	case KindUnauthorized:
		return "Sign In Required"
	case KindTokenExpired:
		return "Session Expired"
	case KindForbidden:
		return "Access Denied"
	case KindInsufficientCredits:
		return "Not Enough Credits"
	case KindNotFound:
		return "Not Found"
	case KindValidationFailed:
		return "Invalid Input"
	case KindRateLimited:
		return "Too Many Requests"
	case KindAPIError:
		return "Request Failed"
	default:
		return "Something Went Wrong"
	}
}

// UserMessage is the body text shown under Title.
func (e Error) UserMessage() string {
	switch e.Kind {
	case KindNoConnection:
		return "Check your internet connection and try again."
	case KindTimeout:
		return "The server took too long to respond. Please try again."
	case KindServerError:
		if e.StatusCode == 0 {
			return "The server could not be reached. Please try again later."
		}
		return fmt.Sprintf("The server returned an error (%d). Please try again later.", e.StatusCode)
	case KindUnauthorized:
		return "Please sign in to continue."
	case KindTokenExpired:
		return "Your session has expired. Please sign in again."
	case KindForbidden:
		return "You don't have permission to view this content."
	case KindInsufficientCredits:
		return fmt.Sprintf("This requires %d credits but you have %d.", e.Required, e.Available)
	case KindNotFound:
		if e.Resource == "" {
			return "The requested item could not be found."
		}
		return fmt.Sprintf("%s could not be found.", e.Resource)
	case KindValidationFailed:
		return e.Message
	case KindRateLimited:
		if e.RetryAfter > 0 {
			return fmt.Sprintf("Please wait %d seconds before trying again.", e.RetryAfter)
		}
		return "Please wait a moment before trying again."
	case KindAPIError:
		if e.Message != "" {
			return e.Message
		}
		return fmt.Sprintf("Request failed with code %s.", e.Code)
	default:
		if e.Message != "" {
			return e.Message
		}
		return "An unexpected error occurred."
	}
}
