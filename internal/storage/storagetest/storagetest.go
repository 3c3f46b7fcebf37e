// Package storagetest holds a behavioural suite every storage.KeyStore
// implementation must pass.
package storagetest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bcnelson/facepoke-broker/internal/domain"
	"github.com/bcnelson/facepoke-broker/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func hashOf(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func addKey(t *testing.T, store storage.KeyStore, secret string, offset time.Duration) string {
	t.Helper()
	hash := hashOf(secret)
	err := store.CreateKey(context.Background(), &domain.ActivationKey{
		Hash:      hash,
		CreatedAt: base.Add(offset),
	})
	require.NoError(t, err)
	return hash
}

func name(s string) *string { return &s }

// Run executes the suite against stores created by newStore.
func Run(t *testing.T, newStore func(t *testing.T) storage.KeyStore) {
	ctx := context.Background()

	t.Run("create rejects duplicate hash", func(t *testing.T) {
		store := newStore(t)
		hash := addKey(t, store, "a", 0)
		err := store.CreateKey(ctx, &domain.ActivationKey{Hash: hash, CreatedAt: base})
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("activate only once", func(t *testing.T) {
		store := newStore(t)
		hash := addKey(t, store, "a", 0)

		ok, err := store.ActivateKey(ctx, hash, "u1", name("alice"), base)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.ActivateKey(ctx, hash, "u2", name("bob"), base)
		require.NoError(t, err)
		assert.False(t, ok)

		keys, err := store.ListKeys(ctx)
		require.NoError(t, err)
		require.Len(t, keys, 1)
		require.NotNil(t, keys[0].OwnerID)
		assert.Equal(t, "u1", *keys[0].OwnerID)
		require.NotNil(t, keys[0].OwnerName)
		assert.Equal(t, "alice", *keys[0].OwnerName)
		assert.NotNil(t, keys[0].ActivatedAt)
	})

	t.Run("activate unknown hash", func(t *testing.T) {
		store := newStore(t)
		ok, err := store.ActivateKey(ctx, hashOf("missing"), "u1", nil, base)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("concurrent activation has one winner", func(t *testing.T) {
		store := newStore(t)
		hash := addKey(t, store, "a", 0)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := store.ActivateKey(ctx, hash, fmt.Sprintf("u%d", i), nil, base)
				if err == nil && ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("owner lookup", func(t *testing.T) {
		store := newStore(t)
		hash := addKey(t, store, "a", 0)

		has, err := store.HasKeyForOwner(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, has)

		_, err = store.ActivateKey(ctx, hash, "u1", nil, base)
		require.NoError(t, err)

		has, err = store.HasKeyForOwner(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("deactivate key", func(t *testing.T) {
		store := newStore(t)
		hash := addKey(t, store, "a", 0)

		ok, err := store.DeactivateKey(ctx, hash)
		require.NoError(t, err)
		assert.False(t, ok, "unowned key must not deactivate")

		_, err = store.ActivateKey(ctx, hash, "u1", name("alice"), base)
		require.NoError(t, err)

		ok, err = store.DeactivateKey(ctx, hash)
		require.NoError(t, err)
		assert.True(t, ok)

		has, err := store.HasKeyForOwner(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, has)

		ok, err = store.DeactivateKey(ctx, hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("deactivate owner", func(t *testing.T) {
		store := newStore(t)
		h1 := addKey(t, store, "a", 0)
		h2 := addKey(t, store, "b", time.Second)
		_, err := store.ActivateKey(ctx, h1, "u1", nil, base)
		require.NoError(t, err)
		_, err = store.ActivateKey(ctx, h2, "u2", nil, base)
		require.NoError(t, err)

		ok, err := store.DeactivateOwner(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.DeactivateOwner(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, ok)

		has, err := store.HasKeyForOwner(ctx, "u2")
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("delete only never activated keys", func(t *testing.T) {
		store := newStore(t)
		unused := addKey(t, store, "a", 0)
		used := addKey(t, store, "b", time.Second)

		_, err := store.ActivateKey(ctx, used, "u1", nil, base)
		require.NoError(t, err)

		ok, err := store.DeleteUnusedKey(ctx, used)
		require.NoError(t, err)
		assert.False(t, ok, "owned key must not be deleted")

		_, err = store.DeactivateKey(ctx, used)
		require.NoError(t, err)

		ok, err = store.DeleteUnusedKey(ctx, used)
		require.NoError(t, err)
		assert.False(t, ok, "previously owned key must not be deleted")

		ok, err = store.DeleteUnusedKey(ctx, unused)
		require.NoError(t, err)
		assert.True(t, ok)

		keys, err := store.ListKeys(ctx)
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.Equal(t, used, keys[0].Hash)
	})

	t.Run("list newest first", func(t *testing.T) {
		store := newStore(t)
		older := addKey(t, store, "a", 0)
		newer := addKey(t, store, "b", time.Minute)

		keys, err := store.ListKeys(ctx)
		require.NoError(t, err)
		require.Len(t, keys, 2)
		assert.Equal(t, newer, keys[0].Hash)
		assert.Equal(t, older, keys[1].Hash)
	})

	t.Run("find by prefix", func(t *testing.T) {
		store := newStore(t)
		hash := addKey(t, store, "a", 0)

		key, err := store.FindKeyByHashPrefix(ctx, hash[:domain.ShortHashLength])
		require.NoError(t, err)
		assert.Equal(t, hash, key.Hash)

		_, err = store.FindKeyByHashPrefix(ctx, "zzzz")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
