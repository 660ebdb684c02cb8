package engine

import (
	"math"

	"github.com/kozaktomas/face-gate/internal/identity"
)

// EuclideanDistance computes the distance between two embeddings.
// Mismatched or empty vectors return +Inf so they can never match.
func EuclideanDistance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Match compares a query embedding against every identity in the known
// set and returns the best candidate. Confidence is 1 minus the minimum
// distance, clamped to [0, 1]. A face matches when the minimum distance
// is within the threshold. Ties on the minimum distance resolve to the
// first identity in set order.
//
// The caller fills in the bounding box; matching is geometry-free.
func Match(embedding []float64, set identity.KnownSet, threshold float64) MatchResult {
	if len(set) == 0 {
		return MatchResult{Name: UnknownName, Matched: false, Confidence: 0}
	}

	bestIdx := 0
	minDistance := math.Inf(1)
	for i := range set {
		if d := EuclideanDistance(embedding, set[i].Embedding); d < minDistance {
			minDistance = d
			bestIdx = i
		}
	}

	confidence := 1 - minDistance
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	if minDistance <= threshold {
		best := &set[bestIdx]
		return MatchResult{
			Name:       best.Name(),
			Matched:    true,
			Confidence: confidence,
			IdentityID: best.ID,
		}
	}

	return MatchResult{Name: UnknownName, Matched: false, Confidence: confidence}
}
