// Package validation checks the shape of activation keys, key prefixes and
// owner identities before they reach the key service.
package validation

import (
	"fmt"

	"github.com/bcnelson/facepoke-broker/internal/domain"
)

// maxPrefixLength is the length of a hex-encoded SHA-256.
const maxPrefixLength = 64

// maxOwnerIDLength fits any int64 in decimal.
const maxOwnerIDLength = 20

// isAlpha returns true if the byte is an ASCII letter.
func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// isNum returns true if the byte is an ASCII digit.
func isNum(b byte) bool {
	return b >= '0' && b <= '9'
}

// isAlphaNum returns true if the byte is an ASCII letter or digit.
func isAlphaNum(b byte) bool {
	return isAlpha(b) || isNum(b)
}

func isLowerHex(b byte) bool {
	return isNum(b) || (b >= 'a' && b <= 'f')
}

// ValidateActivationKey validates a raw activation secret.
// Keys are exactly 24 ASCII letters or digits.
func ValidateActivationKey(key string) error {
	if len(key) != domain.KeyLength {
		return fmt.Errorf("key must be %d characters, got %d", domain.KeyLength, len(key))
	}
	for _, b := range []byte(key) {
		if !isAlphaNum(b) {
			return fmt.Errorf("key can only contain letters and digits")
		}
	}
	return nil
}

// ValidateHashPrefix validates a short hash as shown to operators.
func ValidateHashPrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("prefix must not be empty")
	}
	if len(prefix) > maxPrefixLength {
		return fmt.Errorf("prefix must be at most %d characters", maxPrefixLength)
	}
	for _, b := range []byte(prefix) {
		if !isLowerHex(b) {
			return fmt.Errorf("prefix can only contain lowercase hex digits")
		}
	}
	return nil
}

// ValidateOwnerID validates a messaging-platform user ID.
func ValidateOwnerID(id string) error {
	if id == "" {
		return fmt.Errorf("owner id must not be empty")
	}
	if len(id) > maxOwnerIDLength {
		return fmt.Errorf("owner id must be at most %d digits", maxOwnerIDLength)
	}
	for _, b := range []byte(id) {
		if !isNum(b) {
			return fmt.Errorf("owner id can only contain digits")
		}
	}
	return nil
}

// ValidateRevokeRequest checks that exactly one of owner_id and key is set
// and well formed.
func ValidateRevokeRequest(req *domain.RevokeKeyRequest) FieldErrors {
	var errs FieldErrors
	switch {
	case req.OwnerID == "" && req.Key == "":
		errs.Add("owner_id", "", "one of owner_id or key is required")
	case req.OwnerID != "" && req.Key != "":
		errs.Add("key", "", "owner_id and key are mutually exclusive")
	case req.OwnerID != "":
		if err := ValidateOwnerID(req.OwnerID); err != nil {
			errs.Add("owner_id", req.OwnerID, err.Error())
		}
	default:
		// The secret itself is never echoed back.
		if err := ValidateActivationKey(req.Key); err != nil {
			errs.Add("key", "", err.Error())
		}
	}
	return errs
}
