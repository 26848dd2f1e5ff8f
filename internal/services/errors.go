package services

import "errors"

var (
	// ErrConflict is returned when registering an email that is already taken.
	ErrConflict = errors.New("email already registered")

	// ErrUserNotFound is returned by Login for an unknown email.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials is returned by Login for a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidID is returned for identifiers the active store cannot parse.
	ErrInvalidID = errors.New("invalid id")

	// ErrNoCover is returned when a book has no uploaded cover.
	ErrNoCover = errors.New("book has no cover")

	// ErrStorageDisabled is returned by cover operations when no object
	// storage backend is configured.
	ErrStorageDisabled = errors.New("object storage is not configured")
)
