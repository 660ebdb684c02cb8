package engine

import (
	"testing"
	"time"
)

func matchAt(left, top int, matched bool) MatchResult {
	name := UnknownName
	id := ""
	if matched {
		name = "Ada Lovelace"
		id = "B001"
	}
	return MatchResult{
		Name:       name,
		Matched:    matched,
		Confidence: 0.9,
		IdentityID: id,
		Box:        Box{Top: top, Right: left + 100, Bottom: top + 100, Left: left},
	}
}

func TestTracker_CreatesTrackForNewFace(t *testing.T) {
	tracker := NewTracker(50, 3*time.Second)
	now := time.Now()

	tracks := tracker.Update([]MatchResult{matchAt(100, 100, true)}, now)

	if len(tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(tracks))
	}
	if !tracks[0].Matched {
		t.Error("expected track to be matched")
	}
	if tracks[0].FirstRecognizedAt != now {
		t.Error("expected firstRecognizedAt set on first matched frame")
	}
	if !tracks[0].LastSeen.Equal(now) {
		t.Error("expected lastSeen set to now")
	}
}

func TestTracker_IdempotentUnderNoMotion(t *testing.T) {
	tracker := NewTracker(50, 3*time.Second)
	start := time.Now()

	first := tracker.Update([]MatchResult{matchAt(100, 100, true)}, start)
	firstRecognized := first[0].FirstRecognizedAt
	trackID := first[0].TrackID

	for i := 1; i <= 10; i++ {
		now := start.Add(time.Duration(i) * 100 * time.Millisecond)
		tracks := tracker.Update([]MatchResult{matchAt(100, 100, true)}, now)

		if len(tracks) != 1 {
			t.Fatalf("frame %d: expected 1 track, got %d", i, len(tracks))
		}
		if tracks[0].TrackID != trackID {
			t.Fatalf("frame %d: track id changed from %s to %s", i, trackID, tracks[0].TrackID)
		}
		if !tracks[0].FirstRecognizedAt.Equal(firstRecognized) {
			t.Errorf("frame %d: firstRecognizedAt drifted", i)
		}
	}
}

func TestTracker_SmallMovementKeepsTrackID(t *testing.T) {
	tracker := NewTracker(50, 3*time.Second)
	start := time.Now()

	first := tracker.Update([]MatchResult{matchAt(100, 100, true)}, start)
	second := tracker.Update([]MatchResult{matchAt(105, 100, true)}, start.Add(100*time.Millisecond))

	if len(second) != 1 {
		t.Fatalf("expected 1 track, got %d", len(second))
	}
	if second[0].TrackID != first[0].TrackID {
		t.Errorf("expected 5px movement to keep track id %s, got %s", first[0].TrackID, second[0].TrackID)
	}
}

func TestTracker_DistantFaceGetsNewTrack(t *testing.T) {
	tracker := NewTracker(50, 3*time.Second)
	start := time.Now()

	first := tracker.Update([]MatchResult{matchAt(100, 100, true)}, start)
	second := tracker.Update([]MatchResult{
		matchAt(100, 100, true),
		matchAt(400, 400, false),
	}, start.Add(100*time.Millisecond))

	if len(second) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(second))
	}
	if second[0].TrackID != first[0].TrackID {
		t.Errorf("expected existing track to survive")
	}
	if second[1].TrackID == first[0].TrackID {
		t.Error("expected distant face to mint a new track id")
	}
}

func TestTracker_ExpiryAfterPersistenceWindow(t *testing.T) {
	tracker := NewTracker(50, 3*time.Second)
	start := time.Now()

	tracker.Update([]MatchResult{matchAt(100, 100, true)}, start)

	// Within the window the track survives empty frames.
	tracks := tracker.Update(nil, start.Add(2*time.Second))
	if len(tracks) != 1 {
		t.Fatalf("expected track to survive within window, got %d tracks", len(tracks))
	}

	// Past the window it expires.
	tracks = tracker.Update(nil, start.Add(3100*time.Millisecond))
	if len(tracks) != 0 {
		t.Fatalf("expected track to expire past window, got %d tracks", len(tracks))
	}
}

func TestTracker_ExpiredTrackIDNeverReused(t *testing.T) {
	tracker := NewTracker(50, 3*time.Second)
	start := time.Now()

	first := tracker.Update([]MatchResult{matchAt(100, 100, true)}, start)
	tracker.Update(nil, start.Add(4*time.Second))

	reappeared := tracker.Update([]MatchResult{matchAt(100, 100, true)}, start.Add(5*time.Second))

	if len(reappeared) != 1 {
		t.Fatalf("expected 1 track, got %d", len(reappeared))
	}
	if reappeared[0].TrackID == first[0].TrackID {
		t.Error("expected a reappearing face to get a fresh track id")
	}
	if !reappeared[0].FirstRecognizedAt.Equal(start.Add(5 * time.Second)) {
		t.Error("expected firstRecognizedAt reset on the fresh track")
	}
}

func TestTracker_FirstRecognizedSetOnTransitionOnly(t *testing.T) {
	tracker := NewTracker(50, 3*time.Second)
	start := time.Now()

	// Unmatched track first.
	unmatched := tracker.Update([]MatchResult{matchAt(100, 100, false)}, start)
	if !unmatched[0].FirstRecognizedAt.IsZero() {
		t.Error("expected zero firstRecognizedAt while unmatched")
	}

	// Transition into matched stamps the time.
	matchedAt := start.Add(500 * time.Millisecond)
	matched := tracker.Update([]MatchResult{matchAt(100, 100, true)}, matchedAt)
	if !matched[0].FirstRecognizedAt.Equal(matchedAt) {
		t.Error("expected firstRecognizedAt stamped on transition into matched")
	}

	// Staying matched preserves it.
	later := tracker.Update([]MatchResult{matchAt(100, 100, true)}, start.Add(time.Second))
	if !later[0].FirstRecognizedAt.Equal(matchedAt) {
		t.Error("expected firstRecognizedAt preserved while matched")
	}
}

func TestTracker_UnmatchedFrameDoesNotRemoveTrack(t *testing.T) {
	tracker := NewTracker(50, 3*time.Second)
	start := time.Now()

	tracker.Update([]MatchResult{matchAt(100, 100, true)}, start)

	// The same face drops to unmatched for one frame; the track stays.
	tracks := tracker.Update([]MatchResult{matchAt(100, 100, false)}, start.Add(100*time.Millisecond))

	if len(tracks) != 1 {
		t.Fatalf("expected track to survive an unmatched frame, got %d", len(tracks))
	}
	if tracks[0].Matched {
		t.Error("expected track state to reflect the unmatched frame")
	}
}

func TestTracker_FirstFitAssociation(t *testing.T) {
	tracker := NewTracker(50, 3*time.Second)
	start := time.Now()

	first := tracker.Update([]MatchResult{matchAt(100, 100, true)}, start)

	// Two detections both within tolerance of the same track: first-fit
	// maps both onto it and the last upsert wins.
	tracks := tracker.Update([]MatchResult{
		matchAt(95, 100, true),
		matchAt(110, 100, false),
	}, start.Add(100*time.Millisecond))

	if len(tracks) != 1 {
		t.Fatalf("expected both detections to collapse onto 1 track, got %d", len(tracks))
	}
	if tracks[0].TrackID != first[0].TrackID {
		t.Error("expected the existing track to claim both detections")
	}
	if tracks[0].Matched {
		t.Error("expected the last upsert (unmatched) to win")
	}
}

func TestTracker_NoDuplicateTrackIDs(t *testing.T) {
	tracker := NewTracker(50, 3*time.Second)
	now := time.Now()

	tracks := tracker.Update([]MatchResult{
		matchAt(100, 100, true),
		matchAt(400, 100, false),
		matchAt(100, 400, true),
	}, now)

	seen := make(map[string]bool)
	for _, tr := range tracks {
		if seen[tr.TrackID] {
			t.Errorf("duplicate track id %s", tr.TrackID)
		}
		seen[tr.TrackID] = true
		if tr.LastSeen.After(now) {
			t.Errorf("track %s lastSeen is in the future", tr.TrackID)
		}
	}
}
