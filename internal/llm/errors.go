package llm

import (
	"context"
	"errors"
	"net"

	"github.com/openai/openai-go/v2"

	"github.com/umeshdangat/workout-ai/internal/apperr"
)

// classify maps a transport or API error to an apperr kind. Timeouts are kept
// apart from outages so callers can tell "try again" from "bad input".
func classify(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.UpstreamTimeout, err, "%s timed out", what)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.Wrap(apperr.UpstreamTimeout, err, "%s timed out", what)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 408, 504:
			return apperr.Wrap(apperr.UpstreamTimeout, err, "%s timed out (status %d)", what, apiErr.StatusCode)
		case 400, 422:
			return apperr.Wrap(apperr.InvalidInput, err, "%s rejected the request (status %d)", what, apiErr.StatusCode)
		}
		return apperr.Wrap(apperr.UpstreamUnavailable, err, "%s failed (status %d)", what, apiErr.StatusCode)
	}
	return apperr.Wrap(apperr.UpstreamUnavailable, err, "%s failed", what)
}
