package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPgUserRepositoryFindByIDRejectsForeignIDs(t *testing.T) {
	// a nil pool would panic if the lookup reached it
	repo := NewPgUserRepository(nil, "")
	for _, id := range []string{"abc", "", "65f0c0ffee0000000000abcd", "1.5"} {
		_, err := repo.FindByID(context.Background(), id)
		assert.ErrorIs(t, err, ErrUserNotFound, "id %q", id)
	}
}

func TestPgUserRepositoryTableIsQuoted(t *testing.T) {
	assert.Equal(t, `"users"`, NewPgUserRepository(nil, "").table)
	assert.Equal(t, `"app ""users"""`, NewPgUserRepository(nil, `app "users"`).table)
}

func TestPgErrorMapping(t *testing.T) {
	dup := fmt.Errorf("scan: %w", &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	assert.ErrorIs(t, insertErr(dup), ErrDuplicateUsername)

	other := &pgconn.PgError{Code: "23502", Message: "null value in column"}
	err := insertErr(other)
	assert.NotErrorIs(t, err, ErrDuplicateUsername)
	assert.ErrorIs(t, err, other)

	assert.ErrorIs(t, queryErr(pgx.ErrNoRows), ErrUserNotFound)

	down := errors.New("dial tcp 127.0.0.1:5432: connection refused")
	err = queryErr(down)
	assert.NotErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, err, down)
}
