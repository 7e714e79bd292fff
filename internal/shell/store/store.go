package store

import (
	"context"
	"time"

	"github.com/artpar/formdesk/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for formdesk entities.
type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// Form operations. Forms are returned with their fields in order.
	CreateForm(ctx context.Context, form *domain.Form) error
	GetForm(ctx context.Context, id string) (*domain.Form, error)
	GetFormByPublicID(ctx context.Context, publicID string) (*domain.Form, error)
	UpdateForm(ctx context.Context, form *domain.Form) error
	ReplaceFields(ctx context.Context, formID string, fields []domain.Field) error
	DeleteForm(ctx context.Context, id string) error
	// LockForm serializes writers on the form until the transaction ends.
	LockForm(ctx context.Context, id string) error
	ListFormsByOwner(ctx context.Context, ownerID string, opts ListOptions) ([]domain.FormSummary, error)

	// Submission operations
	CreateSubmission(ctx context.Context, sub *domain.Submission) error
	CountSubmissions(ctx context.Context, formID string) (int, error)
	ListSubmissions(ctx context.Context, formID string) ([]domain.Submission, error)
	ListFilePaths(ctx context.Context, formID string) ([]string, error)

	// Webhook delivery operations
	CreateWebhookDelivery(ctx context.Context, delivery *domain.WebhookDelivery) error
	ListDueWebhookDeliveries(ctx context.Context, now time.Time, limit int) ([]domain.WebhookDelivery, error)
	UpdateWebhookDelivery(ctx context.Context, delivery *domain.WebhookDelivery) error

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination and filtering options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
