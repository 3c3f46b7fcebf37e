package domain

import (
	"fmt"
	"time"
)

// KeyLength is the length of a raw activation secret.
const KeyLength = 24

// ShortHashLength is the number of hash characters shown to operators.
const ShortHashLength = 8

// ActivationKey is a stored activation key.
// The raw secret is only returned once on generation; only its hash persists.
type ActivationKey struct {
	Hash        string     `json:"-" db:"key"` // Never expose full hash
	OwnerID     *string    `json:"owner_id,omitempty" db:"user_id"`
	OwnerName   *string    `json:"owner_name,omitempty" db:"username"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ActivatedAt *time.Time `json:"activated_at,omitempty" db:"activated_at"`
}

// Owned reports whether the key is currently bound to a user.
func (k *ActivationKey) Owned() bool {
	return k.OwnerID != nil
}

// ShortHash returns the display prefix of the stored hash.
func (k *ActivationKey) ShortHash() string {
	if len(k.Hash) < ShortHashLength {
		return k.Hash
	}
	return k.Hash[:ShortHashLength]
}

// KeyView is the operator-facing representation of a key.
type KeyView struct {
	ShortHash   string     `json:"short_hash"`
	Status      string     `json:"status"`
	OwnerID     string     `json:"owner_id,omitempty"`
	OwnerName   string     `json:"owner_name,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}

// View converts a key into its operator-facing form.
func (k *ActivationKey) View() KeyView {
	v := KeyView{
		ShortHash:   k.ShortHash(),
		Status:      "free",
		CreatedAt:   k.CreatedAt,
		ActivatedAt: k.ActivatedAt,
	}
	if k.OwnerID != nil {
		v.Status = "active"
		v.OwnerID = *k.OwnerID
	}
	if k.OwnerName != nil {
		v.OwnerName = *k.OwnerName
	}
	return v
}

// GenerateKeyResponse is returned when generating a key.
// The key is only shown once.
type GenerateKeyResponse struct {
	Key        string `json:"key"`
	ShortHash  string `json:"short_hash"`
	ActivateAt string `json:"activation_link,omitempty"`
}

// RevokeKeyRequest is the request body for revoking access.
// Exactly one of OwnerID and Key must be set.
type RevokeKeyRequest struct {
	OwnerID string `json:"owner_id,omitempty"`
	Key     string `json:"key,omitempty"`
}

// RevokeKeyResponse reports whether anything changed.
type RevokeKeyResponse struct {
	Changed bool   `json:"changed"`
	Action  string `json:"action,omitempty"`
}

// ActivationLink returns the bot deep link that redeems key, or "" when the
// bot username is unknown.
func ActivationLink(botUsername, key string) string {
	if botUsername == "" {
		return ""
	}
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, key)
}
