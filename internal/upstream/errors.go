package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound    = errors.New("upstream: not found")
	ErrMalformed   = errors.New("upstream: malformed response")
	// ErrUnavailable wraps transport failures: the backend never answered.
	ErrUnavailable = errors.New("upstream: unavailable")
	ErrTooLarge    = errors.New("upstream: response too large")
)

// Error is a non-2xx answer from the backend.
type Error struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream %s: http %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("upstream %s: http %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

const maxMessageLen = 200

// serverMessage extracts a human readable reason from an error body.
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Title   string `json:"title"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, m := range []string{payload.Message, payload.Title, payload.Error} {
			if m = strings.TrimSpace(m); m != "" {
				return truncate(m)
			}
		}
	}
	return truncate(strings.TrimSpace(string(body)))
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxMessageLen {
		return s
	}
	return string(r[:maxMessageLen]) + "…"
}
