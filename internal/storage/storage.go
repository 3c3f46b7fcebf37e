package storage

import (
	"context"
	"time"

	"github.com/bcnelson/facepoke-broker/internal/domain"
)

// KeyStore defines the interface for the activation key store.
// Implementations must be safe for concurrent use, and ActivateKey must be
// atomic: at most one concurrent activation of the same key may succeed.
type KeyStore interface {
	// Close closes the storage connection.
	Close() error

	// CreateKey inserts a new unowned key. Returns domain.ErrAlreadyExists
	// if the hash is already stored.
	CreateKey(ctx context.Context, key *domain.ActivationKey) error

	// ActivateKey binds an unowned key to an owner in a single conditional
	// write. Returns false when no unowned key with that hash exists.
	ActivateKey(ctx context.Context, keyHash, ownerID string, ownerName *string, at time.Time) (bool, error)

	// HasKeyForOwner reports whether any key is bound to ownerID.
	HasKeyForOwner(ctx context.Context, ownerID string) (bool, error)

	// DeactivateOwner clears ownership of every key bound to ownerID.
	DeactivateOwner(ctx context.Context, ownerID string) (bool, error)

	// DeactivateKey clears ownership of an owned key.
	DeactivateKey(ctx context.Context, keyHash string) (bool, error)

	// DeleteUnusedKey removes a key that was never activated.
	DeleteUnusedKey(ctx context.Context, keyHash string) (bool, error)

	// ListKeys returns all keys, newest first.
	ListKeys(ctx context.Context) ([]*domain.ActivationKey, error)

	// FindKeyByHashPrefix returns the newest key whose hash starts with
	// prefix, or domain.ErrNotFound.
	FindKeyByHashPrefix(ctx context.Context, prefix string) (*domain.ActivationKey, error)
}
