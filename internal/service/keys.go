package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/bcnelson/facepoke-broker/internal/domain"
	"github.com/bcnelson/facepoke-broker/internal/storage"
	"github.com/bcnelson/facepoke-broker/internal/validation"
)

const (
	keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// maxPrefixAttempts bounds regeneration when a new key's short hash
	// would collide with an existing one.
	maxPrefixAttempts = 5
)

// RevokeAction names what RevokeByPrefix did to a key.
type RevokeAction string

const (
	RevokeNone        RevokeAction = ""
	RevokeDeactivated RevokeAction = "deactivated"
	RevokeDeleted     RevokeAction = "deleted"
)

// KeyService owns the activation key lifecycle.
type KeyService struct {
	store     storage.KeyStore
	log       *slog.Logger
	now       func() time.Time
	newSecret func() (string, error)
	owners    ownerLocks
}

// ownerLocks hands out one mutex per owner id. Entries are dropped once no
// caller holds or waits on them.
type ownerLocks struct {
	mu    sync.Mutex
	locks map[string]*ownerLock
}

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

// lock blocks until ownerID is free and returns the matching unlock.
func (o *ownerLocks) lock(ownerID string) func() {
	o.mu.Lock()
	if o.locks == nil {
		o.locks = make(map[string]*ownerLock)
	}
	l, ok := o.locks[ownerID]
	if !ok {
		l = &ownerLock{}
		o.locks[ownerID] = l
	}
	l.refs++
	o.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		o.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(o.locks, ownerID)
		}
		o.mu.Unlock()
	}
}

// NewKeyService creates a new KeyService.
func NewKeyService(store storage.KeyStore, log *slog.Logger) *KeyService {
	return &KeyService{
		store:     store,
		log:       log,
		now:       time.Now,
		newSecret: randomSecret,
	}
}

// HashKey returns the hex SHA-256 of a raw secret.
// SHA-256 is enough here since secrets are high-entropy random strings.
func HashKey(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// ValidKey reports whether raw is exactly 24 ASCII letters or digits.
func ValidKey(raw string) bool {
	return validation.ValidateActivationKey(raw) == nil
}

func randomSecret() (string, error) {
	buf := make([]byte, domain.KeyLength)
	limit := big.NewInt(int64(len(keyAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = keyAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// Generate creates and stores a new key and returns the raw secret.
// The secret is not recoverable afterwards.
func (s *KeyService) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxPrefixAttempts; attempt++ {
		secret, err := s.newSecret()
		if err != nil {
			return "", fmt.Errorf("generating secret: %w", err)
		}
		hash := HashKey(secret)

		_, err = s.store.FindKeyByHashPrefix(ctx, hash[:domain.ShortHashLength])
		if err == nil {
			s.log.Warn("short hash collision, regenerating", "short_hash", hash[:domain.ShortHashLength])
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("checking short hash: %w", err)
		}

		key := &domain.ActivationKey{Hash: hash, CreatedAt: s.now().UTC()}
		if err := s.store.CreateKey(ctx, key); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				return "", domain.ErrDuplicateKey
			}
			return "", fmt.Errorf("storing key: %w", err)
		}
		s.log.Info("key generated", "short_hash", key.ShortHash())
		return secret, nil
	}
	return "", domain.ErrDuplicateKey
}

// Activate binds an unused key to ownerID. Malformed secrets return false
// without touching storage.
func (s *KeyService) Activate(ctx context.Context, raw, ownerID, ownerName string) (bool, error) {
	if !ValidKey(raw) {
		return false, nil
	}
	var name *string
	if ownerName != "" {
		name = &ownerName
	}
	ok, err := s.store.ActivateKey(ctx, HashKey(raw), ownerID, name, s.now())
	if err != nil {
		return false, fmt.Errorf("activating key: %w", err)
	}
	return ok, nil
}

// Redeem applies the activation policy: format first, then the
// one-key-per-user rule, then the conditional activation. Redemptions for
// the same owner run one at a time within this service.
func (s *KeyService) Redeem(ctx context.Context, raw, ownerID, ownerName string) error {
	if !ValidKey(raw) {
		return domain.ErrInvalidKeyFormat
	}
	unlock := s.owners.lock(ownerID)
	defer unlock()

	has, err := s.HasActiveKeyFor(ctx, ownerID)
	if err != nil {
		return err
	}
	if has {
		return domain.ErrAlreadyOwnsKey
	}
	ok, err := s.Activate(ctx, raw, ownerID, ownerName)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrActivationConflict
	}
	s.log.Info("key activated", "user_id", ownerID, "short_hash", HashKey(raw)[:domain.ShortHashLength])
	return nil
}

// HasActiveKeyFor reports whether userID currently owns a key.
func (s *KeyService) HasActiveKeyFor(ctx context.Context, userID string) (bool, error) {
	has, err := s.store.HasKeyForOwner(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("looking up owner: %w", err)
	}
	return has, nil
}

// Revoke clears ownership by owner identity, falling back to treating the
// argument as a raw secret. Prefer RevokeByOwner or RevokeBySecret when the
// caller knows which one it holds.
func (s *KeyService) Revoke(ctx context.Context, identifierOrOwner string) (bool, error) {
	ok, err := s.RevokeByOwner(ctx, identifierOrOwner)
	if err != nil || ok {
		return ok, err
	}
	return s.RevokeBySecret(ctx, identifierOrOwner)
}

// RevokeByOwner clears ownership of every key bound to ownerID.
func (s *KeyService) RevokeByOwner(ctx context.Context, ownerID string) (bool, error) {
	ok, err := s.store.DeactivateOwner(ctx, ownerID)
	if err != nil {
		return false, fmt.Errorf("revoking owner: %w", err)
	}
	if ok {
		s.log.Info("access revoked", "user_id", ownerID)
	}
	return ok, nil
}

// RevokeBySecret clears ownership of the key with the given raw secret.
func (s *KeyService) RevokeBySecret(ctx context.Context, raw string) (bool, error) {
	if !ValidKey(raw) {
		return false, nil
	}
	return s.DeactivateByHash(ctx, HashKey(raw))
}

// DeactivateByHash clears ownership if the key is currently owned.
func (s *KeyService) DeactivateByHash(ctx context.Context, hash string) (bool, error) {
	ok, err := s.store.DeactivateKey(ctx, hash)
	if err != nil {
		return false, fmt.Errorf("deactivating key: %w", err)
	}
	if ok {
		s.log.Info("key deactivated", "short_hash", shortHash(hash))
	}
	return ok, nil
}

// DeleteByHash removes a key only if it was never activated.
func (s *KeyService) DeleteByHash(ctx context.Context, hash string) (bool, error) {
	ok, err := s.store.DeleteUnusedKey(ctx, hash)
	if err != nil {
		return false, fmt.Errorf("deleting key: %w", err)
	}
	if ok {
		s.log.Info("key deleted", "short_hash", shortHash(hash))
	}
	return ok, nil
}

// ListAll returns every key, newest first.
func (s *KeyService) ListAll(ctx context.Context) ([]*domain.ActivationKey, error) {
	keys, err := s.store.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	return keys, nil
}

// FindByHashPrefix resolves a short hash to the newest matching key.
func (s *KeyService) FindByHashPrefix(ctx context.Context, prefix string) (*domain.ActivationKey, error) {
	if err := validation.ValidateHashPrefix(prefix); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return s.store.FindKeyByHashPrefix(ctx, prefix)
}

// RevokeByPrefix deactivates the key named by prefix if it is owned, and
// deletes it otherwise.
func (s *KeyService) RevokeByPrefix(ctx context.Context, prefix string) (RevokeAction, error) {
	key, err := s.FindByHashPrefix(ctx, prefix)
	if err != nil {
		return RevokeNone, err
	}
	if key.Owned() {
		ok, err := s.DeactivateByHash(ctx, key.Hash)
		if err != nil || !ok {
			return RevokeNone, err
		}
		return RevokeDeactivated, nil
	}
	ok, err := s.DeleteByHash(ctx, key.Hash)
	if err != nil || !ok {
		return RevokeNone, err
	}
	return RevokeDeleted, nil
}

func shortHash(hash string) string {
	if len(hash) < domain.ShortHashLength {
		return hash
	}
	return hash[:domain.ShortHashLength]
}
