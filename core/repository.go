package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UserRecord represents a minimal projection stored in persistence layer.
type UserRecord struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// UserRepository defines persistence operations for users.
//
// FindByUsername and FindByID return ErrUserNotFound when nothing matches.
// Create returns ErrDuplicateUsername when the username is taken.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*UserRecord, error)
	FindByID(ctx context.Context, id string) (*UserRecord, error)
	Create(ctx context.Context, username, passwordHash string) (string, error)
}

// MemoryUserRepository keeps users in process memory. Used for memory:// URLs and tests.
type MemoryUserRepository struct {
	mu         sync.RWMutex
	byID       map[string]*UserRecord
	byUsername map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:       make(map[string]*UserRecord),
		byUsername: make(map[string]string),
	}
}

func (r *MemoryUserRepository) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUsername[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *r.byID[id]
	return &u, nil
}

func (r *MemoryUserRepository) FindByID(ctx context.Context, id string) (*UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *rec
	return &u, nil
}

// Create checks and inserts under one lock, so uniqueness here is strict.
func (r *MemoryUserRepository) Create(ctx context.Context, username, passwordHash string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUsername[username]; ok {
		return "", ErrDuplicateUsername
	}
	id := uuid.NewString()
	r.byID[id] = &UserRecord{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	r.byUsername[username] = id
	return id, nil
}

// Delete removes a user. Not reachable over HTTP; lets tests produce dangling sessions.
func (r *MemoryUserRepository) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.byID[id]; ok {
		delete(r.byUsername, rec.Username)
		delete(r.byID, id)
	}
}

// Count returns the number of stored users.
func (r *MemoryUserRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
