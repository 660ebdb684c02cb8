package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/engine"
	"github.com/kozaktomas/face-gate/internal/identity"
	"github.com/kozaktomas/face-gate/internal/vision"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize",
	Short: "Capture one frame and report who is in it",
	Long: `Grab a single snapshot from the camera service, run detection and
matching with frame skipping bypassed, and print the results. Useful
for checking enrollment and camera placement without starting the loop.`,
	RunE: runRecognize,
}

func init() {
	recognizeCmd.Flags().String("snapshot", "", "Snapshot URL to capture from (overrides CAPTURE_URL)")
	rootCmd.AddCommand(recognizeCmd)
}

func runRecognize(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if url := mustGetString(cmd, "snapshot"); url != "" {
		cfg.Vision.CaptureURL = url
	}
	if cfg.Vision.CaptureURL == "" {
		return errors.New("CAPTURE_URL environment variable is required or use --snapshot")
	}

	store := identity.NewStore(cfg.Database, cfg.CachePath, false)
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	set := store.Load(ctx)
	if len(set) == 0 {
		fmt.Println("No known faces loaded; everything will be Unknown")
	}

	capture := vision.NewSnapshotSource(cfg.Vision.CaptureURL)
	defer capture.Close()

	frame, err := capture.Capture(ctx)
	if err != nil {
		return fmt.Errorf("capturing frame: %w", err)
	}

	detector := vision.NewDetectorClient(cfg.Vision.DetectorURL)
	pipeline := engine.NewPipeline(detector, store, cfg.Engine.MatchThreshold, cfg.Engine.FrameScale, cfg.Engine.FrameSkip)

	results := pipeline.Analyze(ctx, frame, true)
	if len(results) == 0 {
		fmt.Println("No face detected")
		return nil
	}

	for _, r := range results {
		status := "denied"
		if r.Matched {
			status = "granted"
		}
		fmt.Printf("Face %s: %s - Confidence: %.2f\n", status, r.Name, r.Confidence)
	}
	return nil
}
