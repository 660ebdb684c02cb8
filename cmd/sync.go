package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/identity"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the known-face cache from the database",
	Long: `Force an online reload of the enrolled identity set and rewrite the
local cache file. Use this after enrollment changes, or before taking
the device somewhere without network access.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if !cfg.Database.Configured() {
		return fmt.Errorf("database credentials are not fully configured")
	}

	store := identity.NewStore(cfg.Database, cfg.CachePath, false)
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("Syncing known faces from %s...\n", cfg.Database.Host)
	set, err := store.SyncOnline(ctx)
	if err != nil {
		return fmt.Errorf("syncing from database: %w", err)
	}

	if len(set) == 0 {
		fmt.Println("No identities loaded; cache left unchanged")
		return nil
	}

	// Read the cache file back to confirm the write round-trips.
	cached, err := identity.LoadCache(cfg.CachePath)
	if err != nil {
		return fmt.Errorf("verifying cache: %w", err)
	}

	bar := progressbar.Default(int64(len(cached)), "verifying cache")
	for _, id := range cached {
		if len(id.Embedding) != config.EmbeddingDim {
			return fmt.Errorf("verifying cache: %s has a %d-value embedding", id.ID, len(id.Embedding))
		}
		_ = bar.Add(1)
	}

	if len(cached) != len(set) {
		return fmt.Errorf("verifying cache: wrote %d identities, read back %d", len(set), len(cached))
	}

	fmt.Printf("Synced %d identit(ies), cache written to %s\n", len(set), cfg.CachePath)
	return nil
}
