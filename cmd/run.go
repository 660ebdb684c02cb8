package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/dispatch"
	"github.com/kozaktomas/face-gate/internal/engine"
	"github.com/kozaktomas/face-gate/internal/identity"
	"github.com/kozaktomas/face-gate/internal/vision"
	"github.com/kozaktomas/face-gate/internal/web"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the recognition engine loop",
	Long: `Start the capture loop: frames are analyzed against the enrolled
identity set, detections are fused into stable tracks, and confirmed
recognitions are dispatched to the verification and order API.
An operator API is served alongside the loop unless --no-api is set.`,
	RunE: runEngine,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("no-api", false, "Disable the operator API server")
	runCmd.Flags().Bool("cache-first", false, "Prefer the local cache over the database on startup")
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Vision.CaptureURL == "" {
		return errors.New("CAPTURE_URL environment variable is required")
	}

	store := identity.NewStore(cfg.Database, cfg.CachePath, mustGetBool(cmd, "cache-first"))
	defer store.Close()

	set := store.Load(context.Background())
	fmt.Printf("Known faces loaded: %d\n", len(set))

	detector := vision.NewDetectorClient(cfg.Vision.DetectorURL)
	capture := vision.NewSnapshotSource(cfg.Vision.CaptureURL)
	dispatcher := dispatch.New(cfg.Dispatch)
	// Let in-flight dispatches drain before exit, even when the loop
	// ends with an error.
	defer dispatcher.Wait()
	pipeline := engine.NewPipeline(detector, store, cfg.Engine.MatchThreshold, cfg.Engine.FrameScale, cfg.Engine.FrameSkip)
	tracker := engine.NewTracker(cfg.Engine.PositionTolerance, cfg.Engine.PersistenceWindow)

	eng := engine.New(store, pipeline, tracker, dispatcher, capture, cfg.Engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var server *web.Server
	if !mustGetBool(cmd, "no-api") {
		server = web.NewServer(cfg.Web, eng, store, dispatcher)
		go func() {
			if err := server.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Operator API error: %v\n", err)
			}
		}()
	}

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()

		if server != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				fmt.Printf("Error during shutdown: %v\n", err)
			}
		}
	}()

	fmt.Println("Engine running. Press Ctrl+C to stop")

	if err := eng.Run(ctx); err != nil {
		return fmt.Errorf("engine loop: %w", err)
	}
	return nil
}
