package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bcnelson/facepoke-broker/internal/domain"
	"github.com/bcnelson/facepoke-broker/internal/inference"
)

func newInferenceServer(t *testing.T, status int, body []byte, got *domain.InferenceRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if got != nil {
			if err := json.NewDecoder(r.Body).Decode(got); err != nil {
				t.Errorf("Decoding request: %v", err)
			}
		}
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDispatchSuccess(t *testing.T) {
	var req domain.InferenceRequest
	srv := newInferenceServer(t, http.StatusOK, []byte("PNGDATA"), &req)
	dir := t.TempDir()

	d := NewDispatcher(inference.New(srv.URL, 0), dir, discardLogger())
	job, err := d.Dispatch(context.Background(), "https://files/src.jpg", "https://files/expr.jpg")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if job.Status != domain.JobSucceeded {
		t.Errorf("Expected succeeded, got %s", job.Status)
	}
	if req.ID != job.ID {
		t.Errorf("Request id %q does not match job id %q", req.ID, job.ID)
	}
	if req.Input.SourceImageFile != "https://files/src.jpg" || req.Input.DrivingImageFile != "https://files/expr.jpg" {
		t.Errorf("Unexpected payload input: %+v", req.Input)
	}
	if job.ImagePath != filepath.Join(dir, job.ID+".png") {
		t.Errorf("Unexpected image path %q", job.ImagePath)
	}
	data, err := os.ReadFile(job.ImagePath)
	if err != nil || string(data) != "PNGDATA" {
		t.Errorf("Result file = %q, %v", data, err)
	}
}

func TestDispatchFreshIDs(t *testing.T) {
	srv := newInferenceServer(t, http.StatusOK, []byte("x"), nil)
	d := NewDispatcher(inference.New(srv.URL, 0), t.TempDir(), discardLogger())

	j1, _ := d.Dispatch(context.Background(), "a", "b")
	j2, _ := d.Dispatch(context.Background(), "a", "b")
	if j1.ID == j2.ID {
		t.Error("Expected distinct job ids")
	}
}

func TestDispatchFailureWritesNothing(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"server error", http.StatusInternalServerError},
		{"accepted is not success", http.StatusAccepted},
		{"bad request", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newInferenceServer(t, tt.status, []byte("oops"), nil)
			dir := t.TempDir()
			d := NewDispatcher(inference.New(srv.URL, 0), dir, discardLogger())

			job, err := d.Dispatch(context.Background(), "a", "b")
			if !errors.Is(err, domain.ErrRemoteService) {
				t.Fatalf("Expected ErrRemoteService, got %v", err)
			}
			if job.Status != domain.JobFailed || job.ImagePath != "" {
				t.Errorf("Unexpected job state: %+v", job)
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Errorf("Expected empty results dir, found %d entries", len(entries))
			}
		})
	}
}

func TestDispatchRejectsOversizeImage(t *testing.T) {
	body := bytes.Repeat([]byte{0x89}, inference.MaxImageSize+1000)
	srv := newInferenceServer(t, http.StatusOK, body, nil)
	dir := t.TempDir()
	d := NewDispatcher(inference.New(srv.URL, 0), dir, discardLogger())

	job, err := d.Dispatch(context.Background(), "a", "b")
	if !errors.Is(err, domain.ErrRemoteService) {
		t.Fatalf("Expected ErrRemoteService, got %v", err)
	}
	if job.Status != domain.JobFailed || job.ImagePath != "" {
		t.Errorf("Unexpected job state: %+v", job)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected empty results dir, found %d entries", len(entries))
	}
}

func TestDispatchAcceptsMaxSizeImage(t *testing.T) {
	body := bytes.Repeat([]byte{0x89}, inference.MaxImageSize)
	srv := newInferenceServer(t, http.StatusOK, body, nil)
	d := NewDispatcher(inference.New(srv.URL, 0), t.TempDir(), discardLogger())

	job, err := d.Dispatch(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	info, err := os.Stat(job.ImagePath)
	if err != nil || info.Size() != inference.MaxImageSize {
		t.Errorf("Result file = %v, %v", info, err)
	}
}

func TestDispatchTransportError(t *testing.T) {
	srv := newInferenceServer(t, http.StatusOK, nil, nil)
	url := srv.URL
	srv.Close()

	d := NewDispatcher(inference.New(url, 0), t.TempDir(), discardLogger())
	job, err := d.Dispatch(context.Background(), "a", "b")
	if !errors.Is(err, domain.ErrRemoteService) {
		t.Fatalf("Expected ErrRemoteService, got %v", err)
	}
	if job.Status != domain.JobFailed {
		t.Errorf("Expected failed, got %s", job.Status)
	}
}

func TestDispatchWithFileShim(t *testing.T) {
	dir := t.TempDir()
	shimImage := filepath.Join(dir, "shim.png")
	if err := os.WriteFile(shimImage, []byte("SHIM"), 0644); err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	shim := inference.NewFileShim(shimImage, slog.New(slog.NewTextHandler(&logs, nil)))
	d := NewDispatcher(shim, filepath.Join(dir, "results"), discardLogger())
	source := "https://api.telegram.org/file/bot123:SECRET/photos/src.jpg"
	job, err := d.Dispatch(context.Background(), source, "b")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	data, _ := os.ReadFile(job.ImagePath)
	if string(data) != "SHIM" {
		t.Errorf("Expected shim image, got %q", data)
	}
	if strings.Contains(logs.String(), "SECRET") {
		t.Errorf("Shim logged a file URL: %s", logs.String())
	}
	if !strings.Contains(logs.String(), job.ID) {
		t.Errorf("Expected job id in shim log: %s", logs.String())
	}
}
