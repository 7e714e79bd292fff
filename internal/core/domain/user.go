package domain

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// =============================================================================
// User
// =============================================================================

// User is a form owner who signs in to the builder.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PublicUser is the subset of a user returned to clients.
type PublicUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Public returns the client-facing view of the user.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, Name: u.Name}
}

// NewUser creates a user with a fresh id. The password must already be hashed.
func NewUser(email, name, passwordHash string) User {
	return User{
		ID:           NewID(),
		Email:        NormalizeEmail(email),
		Name:         strings.TrimSpace(name),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
}

// =============================================================================
// Validation Functions (Pure)
// =============================================================================

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail trims and lowercases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail validates an e-mail address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	if len(email) > 254 || !emailRegex.MatchString(email) {
		return ErrEmailInvalid
	}
	return nil
}

// ValidatePassword checks password length: at least 6 characters, at most
// 72 bytes since bcrypt ignores the rest.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < 6 {
		return ErrPasswordTooShort
	}
	if len(password) > 72 {
		return ErrPasswordTooLong
	}
	return nil
}

// ValidateUserName validates a display name. An empty name is allowed.
func ValidateUserName(name string) error {
	if utf8.RuneCountInString(strings.TrimSpace(name)) > 100 {
		return ErrUserNameTooLong
	}
	return nil
}

// ValidateRegistration validates sign-up input and returns every problem found.
func ValidateRegistration(email, password, name string) ValidationErrors {
	errs := ValidationErrors{}
	errs.Add("email", ValidateEmail(email))
	errs.Add("password", ValidatePassword(password))
	errs.Add("name", ValidateUserName(name))
	return errs
}
