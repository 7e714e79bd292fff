package store

import (
	"context"

	"github.com/artpar/formdesk/internal/core/domain"
)

// =============================================================================
// User Operations
// =============================================================================

// userRow represents a user row in the database.
type userRow struct {
	ID           string `db:"id"`
	Email        string `db:"email"`
	Name         string `db:"name"`
	PasswordHash string `db:"password_hash"`
	CreatedAt    string `db:"created_at"`
}

func (s *SQLStore) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, created_at)
		VALUES (:id, :email, :name, :password_hash, :created_at)`

	row := map[string]any{
		"id":            user.ID,
		"email":         domain.NormalizeEmail(user.Email),
		"name":          user.Name,
		"password_hash": user.PasswordHash,
		"created_at":    formatTime(user.CreatedAt),
	}

	if _, err := s.exec.NamedExecContext(ctx, query, row); err != nil {
		if uniqueViolation(err, "users.email") {
			return NewStoreError("CreateUser", "user", user.ID, "email already registered", ErrDuplicateEmail)
		}
		if uniqueViolation(err, "users.id") {
			return NewStoreError("CreateUser", "user", user.ID, "user with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateUser", "user", user.ID, err.Error(), err)
	}

	return nil
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, "GetUser", `SELECT * FROM users WHERE id = ?`, id)
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, "GetUserByEmail", `SELECT * FROM users WHERE email = ?`, domain.NormalizeEmail(email))
}

func (s *SQLStore) getUser(ctx context.Context, op, query, key string) (*domain.User, error) {
	var row userRow
	if err := s.exec.GetContext(ctx, &row, s.exec.Rebind(query), key); err != nil {
		if isNoRows(err) {
			return nil, NewStoreError(op, "user", key, "user not found", ErrNotFound)
		}
		return nil, NewStoreError(op, "user", key, err.Error(), err)
	}
	return rowToUser(&row), nil
}

// rowToUser converts a database row to a domain.User.
func rowToUser(row *userRow) *domain.User {
	return &domain.User{
		ID:           row.ID,
		Email:        row.Email,
		Name:         row.Name,
		PasswordHash: row.PasswordHash,
		CreatedAt:    parseTime(row.CreatedAt),
	}
}
