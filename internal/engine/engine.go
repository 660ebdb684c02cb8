package engine

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/identity"
)

// captureFailureLimit is how many consecutive capture failures trigger
// a capture source reinit; reinitAttemptLimit bounds how many reinits
// are attempted before the loop gives up.
const (
	captureFailureLimit = 5
	reinitAttemptLimit  = 3
)

// CaptureSource supplies frames to the engine loop. Capture blocks until
// a frame is available or fails; Reinit recovers a wedged source.
type CaptureSource interface {
	Capture(ctx context.Context) (image.Image, error)
	Reinit(ctx context.Context) error
	Close() error
}

// EventDispatcher receives confirmed recognition events. Dispatch must
// not block the capture loop.
type EventDispatcher interface {
	Dispatch(event RecognitionEvent)
}

// IdentityRefresher is the store surface the loop needs: the periodic
// refresh plus the snapshot served to the status API.
type IdentityRefresher interface {
	Refresh(ctx context.Context, forceOnline bool) identity.KnownSet
	Snapshot() identity.KnownSet
}

// Status is a read-only view of the loop for operator surfaces.
type Status struct {
	Running         bool          `json:"running"`
	KnownFaces      int           `json:"known_faces"`
	ActiveTracks    int           `json:"active_tracks"`
	FramesAnalyzed  uint64        `json:"frames_analyzed"`
	EventsSent      uint64        `json:"events_sent"`
	LastFrameAt     time.Time     `json:"last_frame_at"`
	LastRefreshAt   time.Time     `json:"last_refresh_at"`
	Tracks          []TrackedFace `json:"-"`
	CaptureFailures int           `json:"capture_failures"`
}

// Engine is the cooperative loop tying the pipeline, tracker, dispatcher
// and periodic identity refresh together. All tracker state is owned by
// the loop goroutine; other goroutines only read copies via Status.
type Engine struct {
	store      IdentityRefresher
	pipeline   *Pipeline
	tracker    *Tracker
	dispatcher EventDispatcher
	capture    CaptureSource
	cfg        config.EngineConfig

	lastRefresh time.Time
	lastEvent   time.Time
	failures    int
	reinits     int

	// frameMu serializes frame capture and pipeline analysis between
	// the loop and one-shot recognize. The pipeline's skip counter is
	// not safe for concurrent use.
	frameMu sync.Mutex

	statusMu sync.RWMutex
	status   Status
}

// New wires up an engine. The identity store should already hold its
// initial snapshot; the loop only refreshes it periodically.
func New(store IdentityRefresher, pipeline *Pipeline, tracker *Tracker, dispatcher EventDispatcher, capture CaptureSource, cfg config.EngineConfig) *Engine {
	return &Engine{
		store:       store,
		pipeline:    pipeline,
		tracker:     tracker,
		dispatcher:  dispatcher,
		capture:     capture,
		cfg:         cfg,
		lastRefresh: time.Now(),
	}
}

// Run drives the capture loop until the context is cancelled. The
// capture source is released on exit. Only an unrecoverable capture
// source ends the loop with an error; everything else is logged and
// retried on the next iteration.
func (e *Engine) Run(ctx context.Context) error {
	defer func() {
		if err := e.capture.Close(); err != nil {
			log.Printf("Error closing capture source: %v", err)
		}
	}()

	e.setRunning(true)
	defer e.setRunning(false)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := e.step(ctx, time.Now()); err != nil {
			return err
		}

		// Small delay to keep a tight loop from pegging the CPU.
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// step runs one loop iteration: capture, analyze, track, decide, and
// the elapsed-time refresh check.
func (e *Engine) step(ctx context.Context, now time.Time) error {
	e.frameMu.Lock()
	frame, err := e.capture.Capture(ctx)
	if err != nil {
		e.frameMu.Unlock()
		return e.handleCaptureFailure(ctx, err)
	}
	results := e.pipeline.Analyze(ctx, frame, false)
	e.frameMu.Unlock()

	e.failures = 0
	e.reinits = 0
	tracks := e.tracker.Update(results, now)

	for i := range tracks {
		track := &tracks[i]
		if !track.Matched || track.IdentityID == "" {
			continue
		}
		// The cooldown is global across all visible faces; a burst of
		// simultaneous matches produces a single event.
		if now.Sub(e.lastEvent) <= e.cfg.Cooldown {
			continue
		}

		log.Printf("[ACCESS GRANTED] Recognized: %s (ID: %s) - Confidence: %.2f",
			track.Name, track.IdentityID, track.Confidence)
		e.dispatcher.Dispatch(RecognitionEvent{
			Name:       track.Name,
			IdentityID: track.IdentityID,
			Confidence: track.Confidence,
			Timestamp:  now,
		})
		e.lastEvent = now
		e.bumpEvents()
	}

	if now.Sub(e.lastRefresh) >= e.cfg.RefreshInterval {
		e.store.Refresh(ctx, false)
		e.lastRefresh = now
	}

	e.publishStatus(now, len(results) > 0)
	return nil
}

// handleCaptureFailure logs the failure and reinitializes the capture
// source after repeated consecutive failures. Reinit attempts are
// bounded; exhausting them ends the loop.
func (e *Engine) handleCaptureFailure(ctx context.Context, err error) error {
	e.failures++
	log.Printf("Failed to grab frame (%d consecutive): %v", e.failures, err)

	e.statusMu.Lock()
	e.status.CaptureFailures++
	e.statusMu.Unlock()

	if e.failures < captureFailureLimit {
		return nil
	}

	if e.reinits >= reinitAttemptLimit {
		return fmt.Errorf("capture source unrecoverable after %d reinit attempts: %w", e.reinits, err)
	}

	e.reinits++
	log.Printf("Reinitializing capture source (attempt %d/%d)", e.reinits, reinitAttemptLimit)
	if rerr := e.capture.Reinit(ctx); rerr != nil {
		log.Printf("Capture reinit failed: %v", rerr)
	}
	e.failures = 0
	return nil
}

// RecognizeOnce captures a single frame and analyzes it with frame
// skipping bypassed. Used by the one-shot recognize command and the
// status API; safe to call while the loop is running.
func (e *Engine) RecognizeOnce(ctx context.Context) ([]MatchResult, error) {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()

	frame, err := e.capture.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("capturing frame: %w", err)
	}

	return e.pipeline.Analyze(ctx, frame, true), nil
}

// Status returns a copy of the current loop status.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

func (e *Engine) setRunning(running bool) {
	e.statusMu.Lock()
	e.status.Running = running
	e.statusMu.Unlock()
}

func (e *Engine) bumpEvents() {
	e.statusMu.Lock()
	e.status.EventsSent++
	e.statusMu.Unlock()
}

func (e *Engine) publishStatus(now time.Time, analyzed bool) {
	tracks := e.tracker.Snapshot()

	e.statusMu.Lock()
	e.status.KnownFaces = len(e.store.Snapshot())
	e.status.ActiveTracks = len(tracks)
	e.status.Tracks = tracks
	e.status.LastFrameAt = now
	e.status.LastRefreshAt = e.lastRefresh
	if analyzed {
		e.status.FramesAnalyzed++
	}
	e.statusMu.Unlock()
}
