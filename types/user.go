package types

import (
	"strings"
	"time"
)

// DefaultUsername is assigned when a registration omits the username.
const DefaultUsername = "New User"

// DefaultRole is the role given to every self-registered account.
const DefaultRole = "user"

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user, generated by the store.
	ID string `json:"id" db:"id"`

	// Username is the display name chosen by the user. It is not unique.
	Username string `json:"username" db:"username"`

	// Email is the user's email address. It is unique across all users
	// and is the login identifier.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level or role
	// within the system (e.g., "admin", "user").
	Role string `json:"role" db:"role"`

	// PasswordHash stores the salted bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PublicUser is the subset of a user that may be shown to other users,
// for example as the owner of a book.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Public returns the public projection of the user.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, Email: u.Email}
}

// RegisterRequest is the payload accepted by the registration endpoint.
type RegisterRequest struct {
	Username string `json:"username" validate:"max=64"`
	Email    string `json:"email" validate:"required,email,max=254"`
	// bcrypt ignores everything past 72 bytes.
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest is the payload accepted by the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Normalize trims the identifying fields and lower-cases the email so that
// lookups are case-insensitive. The password is left untouched.
func (r *RegisterRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

// Normalize applies the same email normalization as registration.
func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}
