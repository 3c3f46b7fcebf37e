package service

import (
	"context"
	"strings"

	"github.com/bcnelson/facepoke-broker/internal/domain"
)

// KeyChecker answers whether a user holds an active key.
type KeyChecker interface {
	HasActiveKeyFor(ctx context.Context, userID string) (bool, error)
}

// AccessPolicy decides who may generate images and who may administer keys.
type AccessPolicy struct {
	admins map[string]struct{}
	keys   KeyChecker
}

// NewAccessPolicy creates a policy with a static admin allow-list.
func NewAccessPolicy(adminIDs []string, keys KeyChecker) *AccessPolicy {
	admins := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		if id = strings.TrimSpace(id); id != "" {
			admins[id] = struct{}{}
		}
	}
	return &AccessPolicy{admins: admins, keys: keys}
}

// IsAdmin reports whether userID is on the allow-list.
func (p *AccessPolicy) IsAdmin(userID string) bool {
	_, ok := p.admins[userID]
	return ok
}

// RequireAdmin returns domain.ErrPermissionDenied for non-admins.
func (p *AccessPolicy) RequireAdmin(userID string) error {
	if !p.IsAdmin(userID) {
		return domain.ErrPermissionDenied
	}
	return nil
}

// CanGenerate reports whether userID holds an active key.
func (p *AccessPolicy) CanGenerate(ctx context.Context, userID string) (bool, error) {
	return p.keys.HasActiveKeyFor(ctx, userID)
}
