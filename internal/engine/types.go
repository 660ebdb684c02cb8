// Package engine contains the identity matching and multi-frame tracking
// pipeline: per-frame detection and matching, temporal fusion of
// detections into stable tracks, and the cooperative capture loop that
// drives both and decides when to dispatch recognition events.
package engine

import (
	"math"
	"time"
)

// UnknownName is reported for faces that do not match any enrolled identity.
const UnknownName = "Unknown"

// Box is a face bounding box in (top, right, bottom, left) order, in
// source-frame pixel coordinates.
type Box struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Center returns the box center point.
func (b Box) Center() (float64, float64) {
	return float64(b.Left+b.Right) / 2, float64(b.Top+b.Bottom) / 2
}

// Scale returns the box scaled by the given factor, rounding to pixels.
func (b Box) Scale(factor float64) Box {
	return Box{
		Top:    int(float64(b.Top) * factor),
		Right:  int(float64(b.Right) * factor),
		Bottom: int(float64(b.Bottom) * factor),
		Left:   int(float64(b.Left) * factor),
	}
}

// MatchResult is the outcome of matching one detected face against the
// known set. IdentityID is empty when the face did not match.
type MatchResult struct {
	Name       string  `json:"name"`
	Matched    bool    `json:"matched"`
	Confidence float64 `json:"confidence"`
	IdentityID string  `json:"identity_id,omitempty"`
	Box        Box     `json:"box"`
}

// TrackedFace is a temporally-stitched face spanning multiple frames.
// FirstRecognizedAt is zero until the track first transitions into a
// matched state.
type TrackedFace struct {
	TrackID           string
	Box               Box
	CenterX           float64
	CenterY           float64
	Name              string
	Matched           bool
	Confidence        float64
	IdentityID        string
	LastSeen          time.Time
	FirstRecognizedAt time.Time
}

// RecognitionEvent is the immutable payload handed to the dispatcher
// when a tracked face is confirmed. It carries copies, never references
// into live tracker state.
type RecognitionEvent struct {
	Name       string
	IdentityID string
	Confidence float64
	Timestamp  time.Time
}

func centerDistance(x1, y1, x2, y2 float64) float64 {
	dx := x1 - x2
	dy := y1 - y2
	return math.Sqrt(dx*dx + dy*dy)
}
