// Package bolt provides a BBolt-backed key store for single-node deployments
// that do not want a SQL server.
package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/bcnelson/facepoke-broker/internal/domain"
	"github.com/bcnelson/facepoke-broker/internal/storage"
	"go.etcd.io/bbolt"
)

var keysBucket = []byte("activation_keys")

// record is the stored form of a key; the hash is the bucket key.
type record struct {
	OwnerID     *string    `json:"user_id,omitempty"`
	OwnerName   *string    `json:"username,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}

// Store implements storage.KeyStore backed by a BBolt database.
// Every mutation runs in a single write transaction, which bbolt serializes.
type Store struct {
	db *bbolt.DB
}

var _ storage.KeyStore = (*Store)(nil)

// Open opens a BBolt database at the given path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(keysBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateKey(ctx context.Context, key *domain.ActivationKey) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(keysBucket)
		if b.Get([]byte(key.Hash)) != nil {
			return domain.ErrAlreadyExists
		}
		return put(b, key.Hash, &record{
			OwnerID:     key.OwnerID,
			OwnerName:   key.OwnerName,
			CreatedAt:   key.CreatedAt.UTC(),
			ActivatedAt: key.ActivatedAt,
		})
	})
}

func (s *Store) ActivateKey(ctx context.Context, keyHash, ownerID string, ownerName *string, at time.Time) (bool, error) {
	changed := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(keysBucket)
		rec, err := get(b, keyHash)
		if err != nil || rec == nil || rec.OwnerID != nil {
			return err
		}
		rec.OwnerID = &ownerID
		rec.OwnerName = ownerName
		if rec.ActivatedAt == nil {
			activated := at.UTC()
			rec.ActivatedAt = &activated
		}
		changed = true
		return put(b, keyHash, rec)
	})
	return changed, err
}

func (s *Store) HasKeyForOwner(ctx context.Context, ownerID string) (bool, error) {
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		return forEach(tx.Bucket(keysBucket), func(_ string, rec *record) (bool, error) {
			if rec.OwnerID != nil && *rec.OwnerID == ownerID {
				found = true
				return false, nil
			}
			return true, nil
		})
	})
	return found, err
}

func (s *Store) DeactivateOwner(ctx context.Context, ownerID string) (bool, error) {
	changed := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(keysBucket)
		var owned []string
		err := forEach(b, func(hash string, rec *record) (bool, error) {
			if rec.OwnerID != nil && *rec.OwnerID == ownerID {
				owned = append(owned, hash)
			}
			return true, nil
		})
		if err != nil {
			return err
		}
		// Mutating while iterating a bucket is not allowed in bbolt.
		for _, hash := range owned {
			rec, err := get(b, hash)
			if err != nil {
				return err
			}
			rec.OwnerID, rec.OwnerName = nil, nil
			if err := put(b, hash, rec); err != nil {
				return err
			}
			changed = true
		}
		return nil
	})
	return changed, err
}

func (s *Store) DeactivateKey(ctx context.Context, keyHash string) (bool, error) {
	changed := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(keysBucket)
		rec, err := get(b, keyHash)
		if err != nil || rec == nil || rec.OwnerID == nil {
			return err
		}
		rec.OwnerID, rec.OwnerName = nil, nil
		changed = true
		return put(b, keyHash, rec)
	})
	return changed, err
}

func (s *Store) DeleteUnusedKey(ctx context.Context, keyHash string) (bool, error) {
	changed := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(keysBucket)
		rec, err := get(b, keyHash)
		if err != nil || rec == nil || rec.OwnerID != nil || rec.ActivatedAt != nil {
			return err
		}
		changed = true
		return b.Delete([]byte(keyHash))
	})
	return changed, err
}

func (s *Store) ListKeys(ctx context.Context) ([]*domain.ActivationKey, error) {
	return s.list(nil)
}

func (s *Store) FindKeyByHashPrefix(ctx context.Context, prefix string) (*domain.ActivationKey, error) {
	keys, err := s.list([]byte(prefix))
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, domain.ErrNotFound
	}
	return keys[0], nil
}

// list returns keys whose hash starts with prefix, newest first.
func (s *Store) list(prefix []byte) ([]*domain.ActivationKey, error) {
	var keys []*domain.ActivationKey
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(keysBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decoding key %q: %w", k[:min(len(k), domain.ShortHashLength)], err)
			}
			keys = append(keys, &domain.ActivationKey{
				Hash:        string(k),
				OwnerID:     rec.OwnerID,
				OwnerName:   rec.OwnerName,
				CreatedAt:   rec.CreatedAt,
				ActivatedAt: rec.ActivatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return keys[i].CreatedAt.After(keys[j].CreatedAt)
	})
	return keys, nil
}

func get(b *bbolt.Bucket, hash string) (*record, error) {
	data := b.Get([]byte(hash))
	if data == nil {
		return nil, nil
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func put(b *bbolt.Bucket, hash string, rec *record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return b.Put([]byte(hash), data)
}

// forEach decodes every record; fn returns false to stop early.
func forEach(b *bbolt.Bucket, fn func(hash string, rec *record) (bool, error)) error {
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var rec record
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		more, err := fn(string(k), &rec)
		if err != nil || !more {
			return err
		}
	}
	return nil
}
