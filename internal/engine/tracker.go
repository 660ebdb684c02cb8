package engine

import (
	"fmt"
	"time"
)

// Tracker stitches per-frame match results into persistent tracked
// faces so downstream consumers do not flicker between recognized and
// unknown on momentary detection dropout.
//
// Association is first-fit by center distance, not nearest-fit: the
// first existing track within tolerance claims the detection. Two
// detections inside tolerance of the same track in one frame both map
// to it, last one winning the upsert. Both behaviors are intentional.
type Tracker struct {
	tolerance float64
	window    time.Duration
	tracks    []TrackedFace
}

// NewTracker creates a tracker with the given association tolerance in
// pixels and track persistence window.
func NewTracker(tolerance float64, window time.Duration) *Tracker {
	return &Tracker{tolerance: tolerance, window: window}
}

// Update folds one frame of match results into the track set and
// returns the resulting snapshot. Tracks not refreshed within the
// persistence window are expired; expiry is the only removal path, so a
// track survives frames where its face briefly disappears.
func (t *Tracker) Update(results []MatchResult, now time.Time) []TrackedFace {
	upserts := make(map[string]TrackedFace, len(results))
	var newOrder []string

	for _, r := range results {
		cx, cy := r.Box.Center()

		trackID := ""
		for i := range t.tracks {
			if centerDistance(cx, cy, t.tracks[i].CenterX, t.tracks[i].CenterY) < t.tolerance {
				trackID = t.tracks[i].TrackID
				break
			}
		}
		if trackID == "" {
			trackID = fmt.Sprintf("face_%d_%d_%d", now.UnixNano(), int(cx), int(cy))
		}

		// Prior state is an earlier upsert from this same frame if one
		// exists, otherwise the surviving track from previous frames.
		prev, hadPrev := upserts[trackID]
		if !hadPrev {
			prev, hadPrev = t.find(trackID)
		}

		face := TrackedFace{
			TrackID:    trackID,
			Box:        r.Box,
			CenterX:    cx,
			CenterY:    cy,
			Name:       r.Name,
			Matched:    r.Matched,
			Confidence: r.Confidence,
			IdentityID: r.IdentityID,
			LastSeen:   now,
		}

		if hadPrev {
			face.FirstRecognizedAt = prev.FirstRecognizedAt
		}
		if r.Matched && (!hadPrev || !prev.Matched) {
			face.FirstRecognizedAt = now
		}

		if _, exists := upserts[trackID]; !exists {
			newOrder = append(newOrder, trackID)
		}
		upserts[trackID] = face
	}

	// Rebuild: refreshed tracks keep their position, stale ones expire,
	// brand-new tracks append in encounter order.
	next := t.tracks[:0]
	for _, existing := range t.tracks {
		if updated, ok := upserts[existing.TrackID]; ok {
			next = append(next, updated)
			delete(upserts, existing.TrackID)
			continue
		}
		if now.Sub(existing.LastSeen) <= t.window {
			next = append(next, existing)
		}
	}
	for _, id := range newOrder {
		if face, ok := upserts[id]; ok {
			next = append(next, face)
		}
	}
	t.tracks = next

	return t.Snapshot()
}

// Snapshot returns a copy of the current track set.
func (t *Tracker) Snapshot() []TrackedFace {
	out := make([]TrackedFace, len(t.tracks))
	copy(out, t.tracks)
	return out
}

// Count returns the number of live tracks.
func (t *Tracker) Count() int {
	return len(t.tracks)
}

func (t *Tracker) find(trackID string) (TrackedFace, bool) {
	for i := range t.tracks {
		if t.tracks[i].TrackID == trackID {
			return t.tracks[i], true
		}
	}
	return TrackedFace{}, false
}
