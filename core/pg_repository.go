package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// PgUserRepository implements UserRepository using pgxpool.
type PgUserRepository struct {
	db    *pgxpool.Pool
	table string // sanitized identifier
}

func NewPgUserRepository(db *pgxpool.Pool, table string) *PgUserRepository {
	if table == "" {
		table = "users"
	}
	return &PgUserRepository{db: db, table: pgx.Identifier{table}.Sanitize()}
}

// EnsureSchema creates the users table with a UNIQUE username constraint if missing.
func (r *PgUserRepository) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id            BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`, r.table)
	_, err := r.db.Exec(ctx, q)
	return err
}

func (r *PgUserRepository) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	q := fmt.Sprintf(`SELECT id, username, password_hash, created_at FROM %s WHERE username=$1`, r.table)
	return r.scanOne(r.db.QueryRow(ctx, q, username))
}

func (r *PgUserRepository) FindByID(ctx context.Context, id string) (*UserRecord, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		// not an id this backend could have issued
		return nil, ErrUserNotFound
	}
	q := fmt.Sprintf(`SELECT id, username, password_hash, created_at FROM %s WHERE id=$1`, r.table)
	return r.scanOne(r.db.QueryRow(ctx, q, n))
}

func (r *PgUserRepository) Create(ctx context.Context, username, passwordHash string) (string, error) {
	q := fmt.Sprintf(`INSERT INTO %s (username, password_hash) VALUES ($1,$2) RETURNING id`, r.table)
	var id int64
	if err := r.db.QueryRow(ctx, q, username, passwordHash).Scan(&id); err != nil {
		return "", insertErr(err)
	}
	return strconv.FormatInt(id, 10), nil
}

// insertErr maps a unique violation to ErrDuplicateUsername.
func insertErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateUsername
	}
	return fmt.Errorf("insert user: %w", err)
}

// queryErr maps an empty result to ErrUserNotFound.
func queryErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}
	return fmt.Errorf("query user: %w", err)
}

func (r *PgUserRepository) scanOne(row pgx.Row) (*UserRecord, error) {
	var (
		u  UserRecord
		id int64
	)
	if err := row.Scan(&id, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, queryErr(err)
	}
	u.ID = strconv.FormatInt(id, 10)
	return &u, nil
}
