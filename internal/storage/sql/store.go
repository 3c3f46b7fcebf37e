package sql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bcnelson/facepoke-broker/internal/domain"
	"github.com/bcnelson/facepoke-broker/internal/storage"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// wrapUniqueError converts UNIQUE violations to domain.ErrAlreadyExists.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Store implements the storage.KeyStore interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

var _ storage.KeyStore = (*Store)(nil)

// New creates a new SQL store and applies pending migrations.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// SQLite serializes writers anyway; a single connection avoids "database is locked".
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	// Run migrations
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const keyColumns = `key, user_id, username, created_at, activated_at`

// rowsChanged reports whether a statement touched at least one row.
func rowsChanged(result sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *Store) CreateKey(ctx context.Context, key *domain.ActivationKey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activation_keys (key, user_id, username, created_at, activated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		key.Hash, key.OwnerID, key.OwnerName, key.CreatedAt.UTC(), key.ActivatedAt)
	return wrapUniqueError(err)
}

// ActivateKey relies on the WHERE clause for atomicity: of two racing
// activations only one can match user_id IS NULL.
func (s *Store) ActivateKey(ctx context.Context, keyHash, ownerID string, ownerName *string, at time.Time) (bool, error) {
	return rowsChanged(s.db.ExecContext(ctx,
		`UPDATE activation_keys
		 SET user_id = $1, username = $2, activated_at = COALESCE(activated_at, $3)
		 WHERE key = $4 AND user_id IS NULL`,
		ownerID, ownerName, at.UTC(), keyHash))
}

func (s *Store) HasKeyForOwner(ctx context.Context, ownerID string) (bool, error) {
	var one int
	err := s.db.GetContext(ctx, &one,
		`SELECT 1 FROM activation_keys WHERE user_id = $1 LIMIT 1`, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) DeactivateOwner(ctx context.Context, ownerID string) (bool, error) {
	return rowsChanged(s.db.ExecContext(ctx,
		`UPDATE activation_keys SET user_id = NULL, username = NULL WHERE user_id = $1`, ownerID))
}

func (s *Store) DeactivateKey(ctx context.Context, keyHash string) (bool, error) {
	return rowsChanged(s.db.ExecContext(ctx,
		`UPDATE activation_keys SET user_id = NULL, username = NULL
		 WHERE key = $1 AND user_id IS NOT NULL`, keyHash))
}

func (s *Store) DeleteUnusedKey(ctx context.Context, keyHash string) (bool, error) {
	return rowsChanged(s.db.ExecContext(ctx,
		`DELETE FROM activation_keys
		 WHERE key = $1 AND user_id IS NULL AND activated_at IS NULL`, keyHash))
}

func (s *Store) ListKeys(ctx context.Context) ([]*domain.ActivationKey, error) {
	var keys []*domain.ActivationKey
	err := s.db.SelectContext(ctx, &keys,
		`SELECT `+keyColumns+` FROM activation_keys ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// FindKeyByHashPrefix expects a validated hex prefix, so it cannot carry LIKE wildcards.
func (s *Store) FindKeyByHashPrefix(ctx context.Context, prefix string) (*domain.ActivationKey, error) {
	var key domain.ActivationKey
	err := s.db.GetContext(ctx, &key,
		`SELECT `+keyColumns+` FROM activation_keys
		 WHERE key LIKE $1 ORDER BY created_at DESC LIMIT 1`, prefix+"%")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}
