package handler

import (
	"log/slog"
	"net/http"

	"github.com/bcnelson/facepoke-broker/internal/domain"
	"github.com/bcnelson/facepoke-broker/internal/service"
	"github.com/bcnelson/facepoke-broker/internal/validation"
	"github.com/go-chi/chi/v5"
)

// KeyHandler handles activation key endpoints.
type KeyHandler struct {
	keys        *service.KeyService
	log         *slog.Logger
	botUsername string
}

// NewKeyHandler creates a new KeyHandler. botUsername may be empty, in which
// case no activation link is returned.
func NewKeyHandler(keys *service.KeyService, log *slog.Logger, botUsername string) *KeyHandler {
	return &KeyHandler{keys: keys, log: log, botUsername: botUsername}
}

// Create generates a new key. The raw secret is only returned here.
func (h *KeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	key, err := h.keys.Generate(r.Context())
	if err != nil {
		h.log.Error("generating key", "error", err)
		handleError(w, err)
		return
	}

	resp := &domain.GenerateKeyResponse{
		Key:        key, // Only returned on creation
		ShortHash:  service.HashKey(key)[:domain.ShortHashLength],
		ActivateAt: domain.ActivationLink(h.botUsername, key),
	}

	respondJSON(w, http.StatusCreated, resp)
}

// List lists all keys without their hashes.
func (h *KeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.ListAll(r.Context())
	if err != nil {
		h.log.Error("listing keys", "error", err)
		handleError(w, err)
		return
	}

	views := make([]domain.KeyView, 0, len(keys))
	for _, k := range keys {
		views = append(views, k.View())
	}
	respondJSON(w, http.StatusOK, views)
}

// Delete deactivates the key named by a hash prefix if it is owned, and
// deletes it otherwise.
func (h *KeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	prefix := chi.URLParam(r, "prefix")
	if err := validation.ValidateHashPrefix(prefix); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	action, err := h.keys.RevokeByPrefix(r.Context(), prefix)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, &domain.RevokeKeyResponse{
		Changed: action != service.RevokeNone,
		Action:  string(action),
	})
}

// Revoke clears ownership by owner ID or by raw secret.
func (h *KeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req domain.RevokeKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validation.ValidateRevokeRequest(&req); errs.HasErrors() {
		respondFieldErrors(w, errs)
		return
	}

	var (
		changed bool
		err     error
	)
	if req.OwnerID != "" {
		changed, err = h.keys.RevokeByOwner(r.Context(), req.OwnerID)
	} else {
		changed, err = h.keys.RevokeBySecret(r.Context(), req.Key)
	}
	if err != nil {
		h.log.Error("revoking access", "error", err)
		handleError(w, err)
		return
	}

	resp := &domain.RevokeKeyResponse{Changed: changed}
	if changed {
		resp.Action = string(service.RevokeDeactivated)
	}
	respondJSON(w, http.StatusOK, resp)
}
