package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a failed Bot API call as reported by Telegram.
type APIError struct {
	Method      string
	ErrorCode   int
	Description string
	RetryAfter  int // seconds, set for 429 responses
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d: %s", e.Method, e.ErrorCode, e.Description)
}

// IsRateLimited reports whether err is a 429 from the Bot API.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == http.StatusTooManyRequests
}

// IsNotModified reports whether an edit was rejected because nothing
// changed, which callers usually treat as success.
func IsNotModified(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && strings.Contains(apiErr.Description, "message is not modified")
}
