package vision

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"time"
)

// SnapshotSource captures frames from an HTTP still-image endpoint, the
// interface the camera service on the robot exposes. Each Capture is a
// fresh GET of the snapshot URL.
type SnapshotSource struct {
	url    string
	client *http.Client
}

// NewSnapshotSource creates a capture source for the given snapshot URL.
func NewSnapshotSource(url string) *SnapshotSource {
	return &SnapshotSource{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Capture fetches and decodes one frame.
func (s *SnapshotSource) Capture(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot returned status %d", resp.StatusCode)
	}

	frame, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}

	return frame, nil
}

// Reinit drops idle connections and probes the snapshot endpoint once.
// The camera service recycles its device handle on a fresh connection.
func (s *SnapshotSource) Reinit(ctx context.Context) error {
	s.client.CloseIdleConnections()
	if _, err := s.Capture(ctx); err != nil {
		return fmt.Errorf("capture source probe failed: %w", err)
	}
	return nil
}

// Close releases idle connections.
func (s *SnapshotSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
