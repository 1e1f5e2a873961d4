package polymarket

import (
	"fmt"
	"net/http"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

// StatusError is a non-2xx upstream response. It matches domain.ErrNotFound
// for 404, domain.ErrRateLimited for 429 and domain.ErrUpstream otherwise.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, body)
}

func (e *StatusError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusTooManyRequests:
		return domain.ErrRateLimited
	default:
		return domain.ErrUpstream
	}
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	return &StatusError{Status: statusCode, Body: string(body)}
}
