package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bcnelson/facepoke-broker/internal/domain"
	"github.com/bcnelson/facepoke-broker/internal/inference"
	"github.com/google/uuid"
)

// Dispatcher submits synthesis jobs to the inference service.
// Each job gets exactly one remote call; failures are never retried.
type Dispatcher struct {
	client     inference.Client
	resultsDir string
	log        *slog.Logger
	newID      func() string
}

// NewDispatcher creates a new Dispatcher writing results under resultsDir.
func NewDispatcher(client inference.Client, resultsDir string, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client:     client,
		resultsDir: resultsDir,
		log:        log,
		newID:      func() string { return uuid.New().String() },
	}
}

// Dispatch runs one job and returns it in a terminal state. On failure the
// returned error wraps domain.ErrRemoteService and no file is written.
func (d *Dispatcher) Dispatch(ctx context.Context, sourceImage, expressionImage string) (*domain.SynthesisJob, error) {
	job := &domain.SynthesisJob{
		ID:              d.newID(),
		SourceImage:     sourceImage,
		ExpressionImage: expressionImage,
		Status:          domain.JobPending,
	}

	req := &domain.InferenceRequest{
		ID: job.ID,
		Input: domain.InferenceInput{
			SourceImageFile:  sourceImage,
			DrivingImageFile: expressionImage,
		},
	}

	image, err := d.client.Generate(ctx, req)
	if err != nil {
		return d.fail(ctx, job, err)
	}

	path, err := d.save(job.ID, image)
	if err != nil {
		return d.fail(ctx, job, err)
	}

	job.Status = domain.JobSucceeded
	job.ImagePath = path
	d.log.InfoContext(ctx, "job succeeded", "job_id", job.ID, "path", path, "bytes", len(image))
	return job, nil
}

func (d *Dispatcher) fail(ctx context.Context, job *domain.SynthesisJob, err error) (*domain.SynthesisJob, error) {
	if !errors.Is(err, domain.ErrRemoteService) {
		err = fmt.Errorf("%w: %v", domain.ErrRemoteService, err)
	}
	job.Status = domain.JobFailed
	job.FailureReason = err.Error()
	d.log.ErrorContext(ctx, "job failed", "job_id", job.ID, "error", err)
	return job, err
}

// save writes the image as <resultsDir>/<jobID>.png through a temp file and
// a rename.
func (d *Dispatcher) save(jobID string, image []byte) (string, error) {
	if err := os.MkdirAll(d.resultsDir, 0755); err != nil {
		return "", fmt.Errorf("creating results directory: %w", err)
	}
	path := filepath.Join(d.resultsDir, jobID+".png")
	tmp, err := os.CreateTemp(d.resultsDir, jobID+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating result file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing result: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("moving result: %w", err)
	}
	return path, nil
}
