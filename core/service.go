package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	maxUsernameLen    = 64
	maxPasswordBytes  = 72 // bcrypt input limit
	defaultStoreLimit = 3 * time.Second
)

// RepositoryAuthService implements AuthService over a UserRepository and bcrypt.
type RepositoryAuthService struct {
	users        UserRepository
	cost         int
	storeTimeout time.Duration

	dummyOnce sync.Once
	dummyHash string
}

// NewRepositoryAuthService wires the repository with the hashing cost and a
// per-call store timeout (zero picks a 3s default).
func NewRepositoryAuthService(users UserRepository, cost int, storeTimeout time.Duration) *RepositoryAuthService {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreLimit
	}
	return &RepositoryAuthService{users: users, cost: cost, storeTimeout: storeTimeout}
}

// Authenticate verifies username/password and returns the matching user.
// Wrong username and wrong password are indistinguishable to the caller.
func (s *RepositoryAuthService) Authenticate(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}

	u, err := s.findByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// burn comparable time so timing does not reveal whether the user exists
			VerifyPassword(password, s.dummy())
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	if !VerifyPassword(password, u.PasswordHash) {
		return User{}, ErrInvalidCredentials
	}
	return User{ID: u.ID, Username: u.Username}, nil
}

// Register hashes the password and inserts a new user. The existence check
// runs before the insert; a concurrent registration that slips between the two
// is caught by the store's unique constraint where one exists.
func (s *RepositoryAuthService) Register(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || utf8.RuneCountInString(username) > maxUsernameLen {
		return User{}, ErrInvalidUsername
	}
	if password == "" || len(password) > maxPasswordBytes {
		return User{}, ErrInvalidPassword
	}

	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	if _, err := s.findByUsername(ctx, username); err == nil {
		return User{}, ErrDuplicateUsername
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	id, err := s.users.Create(cctx, username, hash)
	if err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return User{}, ErrDuplicateUsername
		}
		return User{}, storeErr(err)
	}
	return User{ID: id, Username: username}, nil
}

// UserByID resolves a session identity. A missing record is ErrSessionInvalid.
func (s *RepositoryAuthService) UserByID(ctx context.Context, id string) (User, error) {
	if id == "" {
		return User{}, ErrSessionInvalid
	}
	cctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	u, err := s.users.FindByID(cctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrSessionInvalid
		}
		return User{}, storeErr(err)
	}
	return User{ID: u.ID, Username: u.Username}, nil
}

func (s *RepositoryAuthService) findByUsername(ctx context.Context, username string) (*UserRecord, error) {
	cctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	u, err := s.users.FindByUsername(cctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeErr(err)
	}
	return u, nil
}

func (s *RepositoryAuthService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := HashPassword(randomHex(16), s.cost)
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// storeErr folds any repository failure (timeouts included) into ErrStoreUnavailable
// while keeping the cause for logs.
func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
