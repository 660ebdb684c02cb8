package engine

import (
	"context"
	"image"
	"log"

	"golang.org/x/image/draw"

	"github.com/kozaktomas/face-gate/internal/identity"
)

// Detection is one face found in a frame: its bounding box in the
// analyzed (downsampled) frame plus its embedding vector.
type Detection struct {
	Box       Box
	Embedding []float64
}

// EmbeddingSource wraps the external face detector/encoder. Given a
// frame it returns zero or more detections.
type EmbeddingSource interface {
	DetectFaces(ctx context.Context, frame image.Image) ([]Detection, error)
}

// KnownSetSource provides the current known-identity snapshot.
type KnownSetSource interface {
	Snapshot() identity.KnownSet
}

// Pipeline turns camera frames into per-frame match results. It
// downsamples frames before detection, skips frames for throughput, and
// rescales boxes back into source-frame coordinates.
type Pipeline struct {
	source    EmbeddingSource
	known     KnownSetSource
	threshold float64
	scale     float64
	skip      int
	counter   int
}

// NewPipeline creates a pipeline. A skip factor below 1 is clamped to 1
// (analyze every frame); a scale outside (0, 1] is clamped to 1 (no
// downsampling).
func NewPipeline(source EmbeddingSource, known KnownSetSource, threshold, scale float64, skip int) *Pipeline {
	if skip < 1 {
		skip = 1
	}
	if scale <= 0 || scale > 1 {
		scale = 1
	}
	return &Pipeline{
		source:    source,
		known:     known,
		threshold: threshold,
		scale:     scale,
		skip:      skip,
	}
}

// Analyze runs detection and matching on one frame. Unless forceProcess
// is set, only every Nth call does real work; the rest return nil
// immediately. Results are in detection order with boxes in source-frame
// pixel coordinates.
func (p *Pipeline) Analyze(ctx context.Context, frame image.Image, forceProcess bool) []MatchResult {
	if frame == nil {
		return nil
	}

	set := p.known.Snapshot()
	if len(set) == 0 {
		// Nothing to match against; skip the expensive detection call.
		return nil
	}

	p.counter++
	if !forceProcess && p.counter%p.skip != 0 {
		return nil
	}

	small := downsample(frame, p.scale)

	detections, err := p.source.DetectFaces(ctx, small)
	if err != nil {
		log.Printf("Face detection failed: %v", err)
		return nil
	}

	results := make([]MatchResult, 0, len(detections))
	for _, det := range detections {
		r := Match(det.Embedding, set, p.threshold)
		r.Box = det.Box.Scale(1 / p.scale)
		results = append(results, r)
	}

	return results
}

// downsample resizes the frame by the given factor using a cheap
// bilinear scaler. Factor 1 returns the frame untouched.
func downsample(frame image.Image, scale float64) image.Image {
	if scale == 1 {
		return frame
	}

	bounds := frame.Bounds()
	w := int(float64(bounds.Dx()) * scale)
	h := int(float64(bounds.Dy()) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), frame, bounds, draw.Over, nil)
	return dst
}
