package core

import (
	"context"
	"errors"
)

// User represents an authenticated principal returned to handlers.
type User struct {
	ID       string
	Username string
}

var (
	// ErrInvalidCredentials is returned when username/password is wrong. It
	// does not say which of the two was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateUsername is returned when registering a taken username.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrStoreUnavailable wraps timeouts and driver failures of the backing stores.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrSessionInvalid means the session is unknown, expired or points at a missing user.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrUserNotFound is returned by repositories when no record matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidUsername rejects empty or oversized usernames at registration.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword rejects empty passwords and ones bcrypt cannot hash (over 72 bytes).
	ErrInvalidPassword = errors.New("invalid password")
)

// AuthService defines authentication behaviour.
type AuthService interface {
	Authenticate(ctx context.Context, username, password string) (User, error)
	Register(ctx context.Context, username, password string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
}
