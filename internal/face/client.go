package face

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Client calls the remote face embedding service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// NewClient creates a client with a bounded request timeout.
func NewClient(baseURL string, timeout time.Duration, skip bool) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second // face processing can take time
	}
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Extract posts raw image bytes to the embedding service and returns the face
// embedding. Returns *ExtractionError when the service saw no single usable
// face, and *TransientError for network failures, timeouts, non-2xx status
// codes and malformed payloads.
func (c *Client) Extract(ctx context.Context, imageData []byte) (Embedding, error) {
	if c.Skip {
		return Embedding{0.1, 0.2, 0.3}, nil
	}
	if len(imageData) == 0 {
		return nil, &ExtractionError{Reason: "empty image payload"}
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "photo.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/embed", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &TransientError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	// 422 is the service's "no face in image" answer
	if resp.StatusCode == http.StatusUnprocessableEntity {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ExtractionError{Reason: string(body)}
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &TransientError{Op: "request", Err: fmt.Errorf("status %s: %s", resp.Status, string(body))}
	}

	var out struct {
		Embedding     []float64 `json:"embedding"`
		FacesDetected int       `json:"faces_detected"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &TransientError{Op: "decode", Err: err}
	}

	if out.FacesDetected > 1 {
		return nil, &ExtractionError{Reason: "multiple faces in image", Faces: out.FacesDetected}
	}
	if len(out.Embedding) == 0 {
		return nil, &ExtractionError{Reason: "no face detected in image", Faces: out.FacesDetected}
	}
	return Embedding(out.Embedding), nil
}

// Health checks if the embedding service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}
