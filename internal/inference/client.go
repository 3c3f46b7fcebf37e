package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bcnelson/facepoke-broker/internal/domain"
)

// MaxImageSize is the largest result image accepted from the service.
const MaxImageSize = 32 << 20

// Client defines the interface for submitting jobs to the synthesis service.
type Client interface {
	Generate(ctx context.Context, req *domain.InferenceRequest) ([]byte, error)
}

// HTTPClient posts jobs to the inference HTTP endpoint.
type HTTPClient struct {
	endpoint string
	http     *http.Client
}

// Ensure HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

// New creates a new inference client. A zero timeout keeps the transport default.
func New(endpoint string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// Generate sends one job and returns the produced image bytes.
// Any status other than 200 is a failure; the error body is not parsed.
func (c *HTTPClient) Generate(ctx context.Context, req *domain.InferenceRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling job: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d", domain.ErrRemoteService, resp.StatusCode)
	}

	image, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", domain.ErrRemoteService, err)
	}
	if len(image) > MaxImageSize {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrRemoteService, MaxImageSize)
	}
	return image, nil
}
