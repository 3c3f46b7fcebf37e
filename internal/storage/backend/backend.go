// Package backend opens the key store selected by configuration.
package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bcnelson/facepoke-broker/internal/storage"
	"github.com/bcnelson/facepoke-broker/internal/storage/bolt"
	"github.com/bcnelson/facepoke-broker/internal/storage/sql"
)

// Open returns the key store for driver ("sqlite3", "postgres" or "bbolt").
// File-backed stores get their parent directory created.
func Open(driver, dsn string) (storage.KeyStore, error) {
	switch driver {
	case "sqlite3":
		if isFilePath(dsn) {
			if err := ensureDir(dsn); err != nil {
				return nil, err
			}
		}
		return sql.New(driver, dsn)
	case "postgres":
		return sql.New(driver, dsn)
	case "bbolt":
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
		return bolt.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func isFilePath(dsn string) bool {
	return dsn != ":memory:" && !strings.HasPrefix(dsn, "file:")
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}
