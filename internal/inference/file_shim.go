package inference

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bcnelson/facepoke-broker/internal/domain"
)

// FileShim is a local stand-in for the inference service that answers
// every job with the contents of a fixed image file.
type FileShim struct {
	filePath string
	log      *slog.Logger
}

// Ensure FileShim implements Client.
var _ Client = (*FileShim)(nil)

// NewFileShim creates a new file-based shim for development.
func NewFileShim(filePath string, log *slog.Logger) *FileShim {
	return &FileShim{filePath: filePath, log: log}
}

// Generate returns the shim image.
func (f *FileShim) Generate(ctx context.Context, req *domain.InferenceRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading shim image: %v", domain.ErrRemoteService, err)
	}
	f.log.Info("[FileShim] job answered", "job_id", req.ID)
	return data, nil
}
