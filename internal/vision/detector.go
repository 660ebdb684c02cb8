// Package vision holds the HTTP clients for the engine's external
// collaborators: the face detection/encoding service and the camera
// snapshot service.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/engine"
)

const defaultDetectorURL = "http://localhost:8000"

// DetectorClient calls the face detection service: it posts a frame and
// gets back bounding boxes with embedding vectors.
type DetectorClient struct {
	baseURL string
	client  *http.Client
}

// NewDetectorClient creates a detector client.
func NewDetectorClient(baseURL string) *DetectorClient {
	if baseURL == "" {
		baseURL = defaultDetectorURL
	}
	return &DetectorClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// detectResponse is the JSON reply from the detection service.
type detectResponse struct {
	Faces []struct {
		Box       engine.Box `json:"box"`
		Embedding []float64  `json:"embedding"`
	} `json:"faces"`
}

// DetectFaces encodes the frame as JPEG and posts it to the detection
// service. Faces with a wrong-sized embedding are dropped with a
// warning, matching the size checks on the identity store side.
func (c *DetectorClient) DetectFaces(ctx context.Context, frame image.Image) ([]engine.Detection, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if err := jpeg.Encode(part, frame, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var detectResp detectResponse
	if err := json.Unmarshal(body, &detectResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	detections := make([]engine.Detection, 0, len(detectResp.Faces))
	for _, face := range detectResp.Faces {
		if len(face.Embedding) != config.EmbeddingDim {
			log.Printf("Skipping detection with %d-dim embedding, want %d", len(face.Embedding), config.EmbeddingDim)
			continue
		}
		detections = append(detections, engine.Detection{Box: face.Box, Embedding: face.Embedding})
	}

	return detections, nil
}
