// Package workers contains background workers for formdesk.
package workers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/artpar/formdesk/internal/core/domain"
)

// UserAgent identifies webhook requests.
const UserAgent = "formdesk-webhooks"

// EventHeader carries the event name of a webhook request.
const EventHeader = "X-Formdesk-Event"

// maxErrorBody bounds how much of a failed response is kept as the error.
const maxErrorBody = 512

// =============================================================================
// Poster Interface
// =============================================================================

// Poster sends one webhook delivery.
type Poster interface {
	Post(ctx context.Context, d domain.WebhookDelivery) error
}

// =============================================================================
// HTTP Poster
// =============================================================================

// HTTPPoster POSTs deliveries as JSON.
type HTTPPoster struct {
	httpClient *http.Client
}

// NewHTTPPoster creates a poster whose requests time out after timeout.
func NewHTTPPoster(timeout time.Duration) *HTTPPoster {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPPoster{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Post sends the delivery payload to its URL. Any non-2xx status is an error.
func (p *HTTPPoster) Post(ctx context.Context, d domain.WebhookDelivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(d.Payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set(EventHeader, domain.WebhookEventSubmissionCreated)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("webhook target returned %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	io.Copy(io.Discard, resp.Body)
	return nil
}

// =============================================================================
// No-Op Poster (for development/testing)
// =============================================================================

// NoOpPoster accepts every delivery without sending it.
type NoOpPoster struct{}

// Post does nothing.
func (NoOpPoster) Post(ctx context.Context, d domain.WebhookDelivery) error {
	return nil
}
