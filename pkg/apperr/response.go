package apperr

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// FromResponse converts a non-2xx response into a raw fault. Bodies carrying
// a business code in the error envelope produce *APIFault; everything else
// produces *StatusError. resource names what was requested and is only used
// for 404s.
func FromResponse(status int, header http.Header, body []byte, resource string) error {
	env := gjson.ParseBytes(body)
	if !gjson.ValidBytes(body) {
		env = gjson.Result{}
	}

	code := firstString(env, "error.code", "code")
	message := firstString(env, "error.message", "message", "error_description", "error")

	if code != "" {
		return &APIFault{
			Status:     status,
			Code:       code,
			Message:    message,
			Required:   int(env.Get("error.details.required").Int()),
			Available:  int(env.Get("error.details.available").Int()),
			Resource:   resource,
			RetryAfter: retryAfterSeconds(header),
		}
	}

	if message == "" && len(body) > 0 && !gjson.ValidBytes(body) {
		message = strings.TrimSpace(string(body))
	}

	return &StatusError{
		Code:       status,
		Resource:   resource,
		RetryAfter: retryAfterSeconds(header),
		Message:    message,
	}
}

func firstString(env gjson.Result, paths ...string) string {
	for _, p := range paths {
		v := env.Get(p)
		if v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

// retryAfterSeconds reads Retry-After as either delta-seconds or an HTTP date.
func retryAfterSeconds(header http.Header) int {
	if header == nil {
		return 0
	}
	v := strings.TrimSpace(header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return n
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return int(d.Round(time.Second) / time.Second)
		}
	}
	return 0
}
