package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bcnelson/facepoke-broker/internal/domain"
	"github.com/bcnelson/facepoke-broker/internal/storage"
)

// Store is an in-memory implementation of the key store for testing.
type Store struct {
	mu sync.RWMutex

	keys map[string]*entry // key: hash
	seq  uint64
}

// entry keeps insertion order so listing is stable for equal timestamps.
type entry struct {
	key *domain.ActivationKey
	seq uint64
}

var _ storage.KeyStore = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		keys: make(map[string]*entry),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateKey(ctx context.Context, key *domain.ActivationKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.keys[key.Hash]; exists {
		return domain.ErrAlreadyExists
	}
	s.seq++
	s.keys[key.Hash] = &entry{key: copyKey(key), seq: s.seq}
	return nil
}

func (s *Store) ActivateKey(ctx context.Context, keyHash, ownerID string, ownerName *string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, exists := s.keys[keyHash]
	if !exists || e.key.OwnerID != nil {
		return false, nil
	}
	owner := ownerID
	e.key.OwnerID = &owner
	e.key.OwnerName = copyString(ownerName)
	if e.key.ActivatedAt == nil {
		activated := at
		e.key.ActivatedAt = &activated
	}
	return true, nil
}

func (s *Store) HasKeyForOwner(ctx context.Context, ownerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.keys {
		if e.key.OwnerID != nil && *e.key.OwnerID == ownerID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DeactivateOwner(ctx context.Context, ownerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, e := range s.keys {
		if e.key.OwnerID != nil && *e.key.OwnerID == ownerID {
			e.key.OwnerID = nil
			e.key.OwnerName = nil
			changed = true
		}
	}
	return changed, nil
}

func (s *Store) DeactivateKey(ctx context.Context, keyHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, exists := s.keys[keyHash]
	if !exists || e.key.OwnerID == nil {
		return false, nil
	}
	e.key.OwnerID = nil
	e.key.OwnerName = nil
	return true, nil
}

func (s *Store) DeleteUnusedKey(ctx context.Context, keyHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, exists := s.keys[keyHash]
	if !exists || e.key.OwnerID != nil || e.key.ActivatedAt != nil {
		return false, nil
	}
	delete(s.keys, keyHash)
	return true, nil
}

func (s *Store) ListKeys(ctx context.Context) ([]*domain.ActivationKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(""), nil
}

func (s *Store) FindKeyByHashPrefix(ctx context.Context, prefix string) (*domain.ActivationKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := s.sortedLocked(prefix)
	if len(matches) == 0 {
		return nil, domain.ErrNotFound
	}
	return matches[0], nil
}

// sortedLocked returns copies of keys matching prefix, newest first.
func (s *Store) sortedLocked(prefix string) []*domain.ActivationKey {
	entries := make([]*entry, 0, len(s.keys))
	for hash, e := range s.keys {
		if strings.HasPrefix(hash, prefix) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].key.CreatedAt.Equal(entries[j].key.CreatedAt) {
			return entries[i].key.CreatedAt.After(entries[j].key.CreatedAt)
		}
		return entries[i].seq > entries[j].seq
	})
	keys := make([]*domain.ActivationKey, len(entries))
	for i, e := range entries {
		keys[i] = copyKey(e.key)
	}
	return keys
}

func copyKey(k *domain.ActivationKey) *domain.ActivationKey {
	c := *k
	c.OwnerID = copyString(k.OwnerID)
	c.OwnerName = copyString(k.OwnerName)
	if k.ActivatedAt != nil {
		t := *k.ActivatedAt
		c.ActivatedAt = &t
	}
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
