package llm

import (
	"fmt"
	"io"
	"net/http"

	"NarrativeScorer/internal/ports"
)

// statusError maps a non-2xx response onto the port sentinels. It reads at
// most 1KiB of the body for the message.
func statusError(vendor string, resp *http.Response) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	var kind error
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		kind = ports.ErrModelRateLimited
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		kind = ports.ErrModelUnauthorized
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= http.StatusInternalServerError:
		kind = ports.ErrModelUnavailable
	default:
		kind = ports.ErrModelBadRequest
	}
	return fmt.Errorf("%s error %s: %w: %s", vendor, resp.Status, kind, trimBody(payload))
}
