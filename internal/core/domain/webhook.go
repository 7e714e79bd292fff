package domain

import (
	"encoding/json"
	"time"
)

// =============================================================================
// Webhook Deliveries
// =============================================================================

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// WebhookEventSubmissionCreated is the only event formdesk emits.
const WebhookEventSubmissionCreated = "submission.created"

// MaxRetryBackoff caps the delay between delivery attempts.
const MaxRetryBackoff = time.Hour

// WebhookDelivery is a queued notification of a new submission to the URL
// configured on its form.
type WebhookDelivery struct {
	ID            string          `json:"id"`
	FormID        string          `json:"formId"`
	SubmissionID  string          `json:"submissionId"`
	URL           string          `json:"url"`
	Payload       json.RawMessage `json:"payload"`
	Status        DeliveryStatus  `json:"status"`
	Attempts      int             `json:"attempts"`
	LastError     string          `json:"lastError,omitempty"`
	NextAttemptAt time.Time       `json:"nextAttemptAt"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// WebhookPayload is the JSON body POSTed to webhook targets.
type WebhookPayload struct {
	Event      string `json:"event"`
	FormID     string `json:"formId"`
	Submission any    `json:"submission"`
}

// NewWebhookDelivery creates a pending delivery due immediately.
func NewWebhookDelivery(formID, submissionID, url string, payload []byte) WebhookDelivery {
	now := time.Now().UTC()
	return WebhookDelivery{
		ID:            NewID(),
		FormID:        formID,
		SubmissionID:  submissionID,
		URL:           url,
		Payload:       payload,
		Status:        DeliveryPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Delivered returns d marked as successfully delivered.
func (d WebhookDelivery) Delivered(now time.Time) WebhookDelivery {
	d.Attempts++
	d.Status = DeliveryDelivered
	d.LastError = ""
	d.UpdatedAt = now
	return d
}

// Retry returns d after a failed attempt: rescheduled with backoff, or marked
// failed once maxAttempts is reached.
func (d WebhookDelivery) Retry(now time.Time, reason string, maxAttempts int, base time.Duration) WebhookDelivery {
	d.Attempts++
	d.LastError = reason
	d.UpdatedAt = now
	if d.Attempts >= maxAttempts {
		d.Status = DeliveryFailed
		return d
	}
	d.NextAttemptAt = now.Add(RetryBackoff(base, d.Attempts))
	return d
}

// RetryBackoff returns base * 2^(attempts-1), capped at MaxRetryBackoff.
func RetryBackoff(base time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= MaxRetryBackoff {
			return MaxRetryBackoff
		}
	}
	if delay > MaxRetryBackoff {
		return MaxRetryBackoff
	}
	return delay
}
