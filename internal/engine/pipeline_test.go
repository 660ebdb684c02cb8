package engine

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/kozaktomas/face-gate/internal/identity"
)

type fakeEmbeddingSource struct {
	detections []Detection
	err        error
	calls      int
}

func (f *fakeEmbeddingSource) DetectFaces(_ context.Context, _ image.Image) ([]Detection, error) {
	f.calls++
	return f.detections, f.err
}

type staticKnownSet identity.KnownSet

func (s staticKnownSet) Snapshot() identity.KnownSet {
	return identity.KnownSet(s)
}

func testFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 640, 480))
}

func singleIdentitySet() staticKnownSet {
	return staticKnownSet{
		{ID: "B001", DisplayName: "Ada Lovelace", Embedding: zeroEmbedding()},
	}
}

func TestPipeline_FrameSkipping(t *testing.T) {
	source := &fakeEmbeddingSource{}
	pipeline := NewPipeline(source, singleIdentitySet(), 0.65, 0.5, 3)

	for i := 1; i <= 9; i++ {
		pipeline.Analyze(context.Background(), testFrame(), false)
	}

	if source.calls != 3 {
		t.Errorf("expected every 3rd of 9 frames analyzed (3 calls), got %d", source.calls)
	}
}

func TestPipeline_ForceProcessBypassesSkipping(t *testing.T) {
	source := &fakeEmbeddingSource{}
	pipeline := NewPipeline(source, singleIdentitySet(), 0.65, 0.5, 3)

	for i := 1; i <= 4; i++ {
		pipeline.Analyze(context.Background(), testFrame(), true)
	}

	if source.calls != 4 {
		t.Errorf("expected all 4 forced frames analyzed, got %d calls", source.calls)
	}
}

func TestPipeline_RescalesBoxesToSourceCoordinates(t *testing.T) {
	source := &fakeEmbeddingSource{
		detections: []Detection{
			{Box: Box{Top: 10, Right: 60, Bottom: 50, Left: 20}, Embedding: embeddingAt(0.1)},
		},
	}
	pipeline := NewPipeline(source, singleIdentitySet(), 0.65, 0.5, 1)

	results := pipeline.Analyze(context.Background(), testFrame(), false)

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	// Detector coordinates are in the half-resolution frame; results
	// must be back in source pixels.
	expected := Box{Top: 20, Right: 120, Bottom: 100, Left: 40}
	if results[0].Box != expected {
		t.Errorf("expected box %+v, got %+v", expected, results[0].Box)
	}
}

func TestPipeline_MatchesEachDetection(t *testing.T) {
	source := &fakeEmbeddingSource{
		detections: []Detection{
			{Box: Box{Top: 0, Right: 50, Bottom: 50, Left: 0}, Embedding: embeddingAt(0.1)},
			{Box: Box{Top: 0, Right: 300, Bottom: 50, Left: 250}, Embedding: embeddingAt(0.9)},
		},
	}
	pipeline := NewPipeline(source, singleIdentitySet(), 0.65, 1, 1)

	results := pipeline.Analyze(context.Background(), testFrame(), false)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Matched || results[0].Name != "Ada Lovelace" {
		t.Errorf("expected first detection matched as Ada, got %+v", results[0])
	}
	if results[1].Matched || results[1].Name != UnknownName {
		t.Errorf("expected second detection Unknown, got %+v", results[1])
	}
}

func TestPipeline_EmptyKnownSetSkipsDetection(t *testing.T) {
	source := &fakeEmbeddingSource{}
	pipeline := NewPipeline(source, staticKnownSet{}, 0.65, 0.5, 1)

	results := pipeline.Analyze(context.Background(), testFrame(), true)

	if results != nil {
		t.Errorf("expected nil results with empty known set, got %v", results)
	}
	if source.calls != 0 {
		t.Errorf("expected no detector calls with empty known set, got %d", source.calls)
	}
}

func TestPipeline_DetectorErrorReturnsNoResults(t *testing.T) {
	source := &fakeEmbeddingSource{err: errors.New("detector offline")}
	pipeline := NewPipeline(source, singleIdentitySet(), 0.65, 0.5, 1)

	results := pipeline.Analyze(context.Background(), testFrame(), false)

	if len(results) != 0 {
		t.Errorf("expected no results on detector error, got %d", len(results))
	}
}

func TestPipeline_NilFrame(t *testing.T) {
	source := &fakeEmbeddingSource{}
	pipeline := NewPipeline(source, singleIdentitySet(), 0.65, 0.5, 1)

	if results := pipeline.Analyze(context.Background(), nil, true); results != nil {
		t.Errorf("expected nil results for nil frame, got %v", results)
	}
}

func TestDownsample_HalvesDimensions(t *testing.T) {
	small := downsample(testFrame(), 0.5)

	bounds := small.Bounds()
	if bounds.Dx() != 320 || bounds.Dy() != 240 {
		t.Errorf("expected 320x240, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestDownsample_ScaleOneIsIdentity(t *testing.T) {
	frame := testFrame()
	if downsample(frame, 1) != frame {
		t.Error("expected scale 1 to return the frame unchanged")
	}
}
