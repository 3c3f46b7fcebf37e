package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bcnelson/facepoke-broker/internal/api"
	"github.com/bcnelson/facepoke-broker/internal/domain"
	"github.com/bcnelson/facepoke-broker/internal/service"
	"github.com/bcnelson/facepoke-broker/internal/storage/memory"
)

// testServer creates a test server with in-memory storage
type testServer struct {
	handler http.Handler
	keys    *service.KeyService
	token   string
}

func newTestServer() *testServer {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	keys := service.NewKeyService(memory.New(), log)
	token := "test-admin-token"

	handler := api.NewRouter(keys, log, api.Options{AdminToken: token, BotUsername: "facepoke_bot"})

	return &testServer{
		handler: handler,
		keys:    keys,
		token:   token,
	}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) generate(t *testing.T) domain.GenerateKeyResponse {
	t.Helper()
	rr := ts.request("POST", "/api/v1/keys", nil, ts.token)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp domain.GenerateKeyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer()

	rr := ts.request("GET", "/health", nil, "")

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	var resp map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["status"] != "ok" {
		t.Errorf("Expected status ok, got %s", resp["status"])
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer()

	// Request without auth header
	rr := ts.request("GET", "/api/v1/keys", nil, "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}

	// Request with invalid auth header format
	req := httptest.NewRequest("GET", "/api/v1/keys", nil)
	req.Header.Set("Authorization", "Basic invalid")
	rr = httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}

	// Request with wrong token
	rr = ts.request("GET", "/api/v1/keys", nil, "wrong-token")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}

	rr = ts.request("GET", "/api/v1/keys", nil, ts.token)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
}

func TestAPIDisabledWithoutToken(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	keys := service.NewKeyService(memory.New(), log)
	handler := api.NewRouter(keys, log, api.Options{})

	req := httptest.NewRequest("POST", "/api/v1/keys", nil)
	req.Header.Set("Authorization", "Bearer ")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}

	list, err := keys.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("Expected no keys, got %d", len(list))
	}
}

func TestKeyLifecycle(t *testing.T) {
	ts := newTestServer()
	ctx := context.Background()

	created := ts.generate(t)
	if !service.ValidKey(created.Key) {
		t.Fatalf("Generated key %q is malformed", created.Key)
	}
	if created.ShortHash != service.HashKey(created.Key)[:domain.ShortHashLength] {
		t.Errorf("Unexpected short hash %q", created.ShortHash)
	}
	if created.ActivateAt != "https://t.me/facepoke_bot?start="+created.Key {
		t.Errorf("Unexpected activation link %q", created.ActivateAt)
	}

	// List never exposes the secret or the full hash
	rr := ts.request("GET", "/api/v1/keys", nil, ts.token)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if strings.Contains(body, created.Key) || strings.Contains(body, service.HashKey(created.Key)) {
		t.Errorf("List leaked key material: %s", body)
	}
	var views []domain.KeyView
	if err := json.Unmarshal(rr.Body.Bytes(), &views); err != nil {
		t.Fatalf("Failed to decode list: %v", err)
	}
	if len(views) != 1 || views[0].Status != "free" || views[0].ShortHash != created.ShortHash {
		t.Errorf("Unexpected list: %+v", views)
	}

	// Activate through the service and check the view
	if err := ts.keys.Redeem(ctx, created.Key, "42", "alice"); err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	rr = ts.request("GET", "/api/v1/keys", nil, ts.token)
	_ = json.Unmarshal(rr.Body.Bytes(), &views)
	if views[0].Status != "active" || views[0].OwnerID != "42" || views[0].OwnerName != "alice" {
		t.Errorf("Unexpected view after activation: %+v", views[0])
	}

	// Deleting an owned key deactivates it
	rr = ts.request("DELETE", "/api/v1/keys/"+created.ShortHash, nil, ts.token)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var revoked domain.RevokeKeyResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &revoked)
	if !revoked.Changed || revoked.Action != string(service.RevokeDeactivated) {
		t.Errorf("Unexpected revoke response: %+v", revoked)
	}

	// The deactivated key is kept and cannot be deleted
	rr = ts.request("DELETE", "/api/v1/keys/"+created.ShortHash, nil, ts.token)
	_ = json.Unmarshal(rr.Body.Bytes(), &revoked)
	if revoked.Changed {
		t.Errorf("Expected no change for a previously activated key: %+v", revoked)
	}
}

func TestDeleteUnusedKey(t *testing.T) {
	ts := newTestServer()

	created := ts.generate(t)

	rr := ts.request("DELETE", "/api/v1/keys/"+created.ShortHash, nil, ts.token)
	var revoked domain.RevokeKeyResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &revoked)
	if !revoked.Changed || revoked.Action != string(service.RevokeDeleted) {
		t.Errorf("Unexpected revoke response: %+v", revoked)
	}

	rr = ts.request("DELETE", "/api/v1/keys/"+created.ShortHash, nil, ts.token)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestDeleteRejectsBadPrefix(t *testing.T) {
	ts := newTestServer()

	for _, prefix := range []string{"ABCD", "zz", "ab%25"} {
		rr := ts.request("DELETE", "/api/v1/keys/"+prefix, nil, ts.token)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("prefix %q: expected status 400, got %d", prefix, rr.Code)
		}
	}
}

func TestRevokeEndpoint(t *testing.T) {
	ts := newTestServer()
	ctx := context.Background()

	first := ts.generate(t)
	second := ts.generate(t)
	if err := ts.keys.Redeem(ctx, first.Key, "1", ""); err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if err := ts.keys.Redeem(ctx, second.Key, "2", ""); err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	tests := []struct {
		name        string
		body        any
		wantStatus  int
		wantChanged bool
	}{
		{"by owner", domain.RevokeKeyRequest{OwnerID: "1"}, http.StatusOK, true},
		{"by owner again", domain.RevokeKeyRequest{OwnerID: "1"}, http.StatusOK, false},
		{"by key", domain.RevokeKeyRequest{Key: second.Key}, http.StatusOK, true},
		{"unknown key", domain.RevokeKeyRequest{Key: "abcDEF123456ghiJKL789012"}, http.StatusOK, false},
		{"empty body", domain.RevokeKeyRequest{}, http.StatusBadRequest, false},
		{"both fields", domain.RevokeKeyRequest{OwnerID: "1", Key: second.Key}, http.StatusBadRequest, false},
		{"malformed key", domain.RevokeKeyRequest{Key: "short"}, http.StatusBadRequest, false},
		{"not json", "nope", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.request("POST", "/api/v1/keys/revoke", tt.body, ts.token)
			if rr.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if rr.Code != http.StatusOK {
				return
			}
			var resp domain.RevokeKeyResponse
			_ = json.Unmarshal(rr.Body.Bytes(), &resp)
			if resp.Changed != tt.wantChanged {
				t.Errorf("Expected changed=%v, got %+v", tt.wantChanged, resp)
			}
		})
	}

	for _, owner := range []string{"1", "2"} {
		has, err := ts.keys.HasActiveKeyFor(ctx, owner)
		if err != nil {
			t.Fatalf("HasActiveKeyFor: %v", err)
		}
		if has {
			t.Errorf("Owner %s still has an active key", owner)
		}
	}
}

func TestContentTypeIsJSON(t *testing.T) {
	ts := newTestServer()

	rr := ts.request("GET", "/api/v1/keys", nil, ts.token)
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}
}
