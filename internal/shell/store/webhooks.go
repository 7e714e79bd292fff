package store

import (
	"context"
	"time"

	"github.com/artpar/formdesk/internal/core/domain"
)

// =============================================================================
// Webhook Delivery Operations
// =============================================================================

// deliveryRow represents a webhook delivery row in the database.
type deliveryRow struct {
	ID            string  `db:"id"`
	FormID        string  `db:"form_id"`
	SubmissionID  string  `db:"submission_id"`
	URL           string  `db:"url"`
	Payload       string  `db:"payload"`
	Status        string  `db:"status"`
	Attempts      int     `db:"attempts"`
	LastError     *string `db:"last_error"`
	NextAttemptAt string  `db:"next_attempt_at"`
	CreatedAt     string  `db:"created_at"`
	UpdatedAt     string  `db:"updated_at"`
}

func deliveryParams(d *domain.WebhookDelivery) map[string]any {
	return map[string]any{
		"id":              d.ID,
		"form_id":         d.FormID,
		"submission_id":   d.SubmissionID,
		"url":             d.URL,
		"payload":         string(d.Payload),
		"status":          string(d.Status),
		"attempts":        d.Attempts,
		"last_error":      nullString(d.LastError),
		"next_attempt_at": formatTime(d.NextAttemptAt),
		"created_at":      formatTime(d.CreatedAt),
		"updated_at":      formatTime(d.UpdatedAt),
	}
}

func (s *SQLStore) CreateWebhookDelivery(ctx context.Context, d *domain.WebhookDelivery) error {
	query := `
		INSERT INTO webhook_deliveries (
			id, form_id, submission_id, url, payload, status, attempts,
			last_error, next_attempt_at, created_at, updated_at
		) VALUES (
			:id, :form_id, :submission_id, :url, :payload, :status, :attempts,
			:last_error, :next_attempt_at, :created_at, :updated_at
		)`

	if _, err := s.exec.NamedExecContext(ctx, query, deliveryParams(d)); err != nil {
		if foreignKeyViolation(err) {
			return NewStoreError("CreateWebhookDelivery", "webhook_delivery", d.ID, "submission does not exist", ErrForeignKey)
		}
		return NewStoreError("CreateWebhookDelivery", "webhook_delivery", d.ID, err.Error(), err)
	}
	return nil
}

// ListDueWebhookDeliveries returns pending deliveries whose next attempt is
// at or before now, oldest first.
func (s *SQLStore) ListDueWebhookDeliveries(ctx context.Context, now time.Time, limit int) ([]domain.WebhookDelivery, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []deliveryRow
	query := s.exec.Rebind(`
		SELECT * FROM webhook_deliveries
		WHERE status = ? AND next_attempt_at <= ?
		ORDER BY next_attempt_at, id
		LIMIT ?`)
	if err := s.exec.SelectContext(ctx, &rows, query, string(domain.DeliveryPending), formatTime(now), limit); err != nil {
		return nil, NewStoreError("ListDueWebhookDeliveries", "webhook_delivery", "", err.Error(), err)
	}

	out := make([]domain.WebhookDelivery, len(rows))
	for i := range rows {
		out[i] = rowToDelivery(&rows[i])
	}
	return out, nil
}

func (s *SQLStore) UpdateWebhookDelivery(ctx context.Context, d *domain.WebhookDelivery) error {
	query := `
		UPDATE webhook_deliveries SET
			status = :status,
			attempts = :attempts,
			last_error = :last_error,
			next_attempt_at = :next_attempt_at,
			updated_at = :updated_at
		WHERE id = :id`

	res, err := s.exec.NamedExecContext(ctx, query, deliveryParams(d))
	if err != nil {
		return NewStoreError("UpdateWebhookDelivery", "webhook_delivery", d.ID, err.Error(), err)
	}
	if affected(res) == 0 {
		return NewStoreError("UpdateWebhookDelivery", "webhook_delivery", d.ID, "delivery not found", ErrNotFound)
	}
	return nil
}

// rowToDelivery converts a database row to a domain.WebhookDelivery.
func rowToDelivery(row *deliveryRow) domain.WebhookDelivery {
	return domain.WebhookDelivery{
		ID:            row.ID,
		FormID:        row.FormID,
		SubmissionID:  row.SubmissionID,
		URL:           row.URL,
		Payload:       []byte(row.Payload),
		Status:        domain.DeliveryStatus(row.Status),
		Attempts:      row.Attempts,
		LastError:     derefString(row.LastError),
		NextAttemptAt: parseTime(row.NextAttemptAt),
		CreatedAt:     parseTime(row.CreatedAt),
		UpdatedAt:     parseTime(row.UpdatedAt),
	}
}
