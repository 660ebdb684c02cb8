package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/identity"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "List the enrolled identities the engine knows about",
	RunE:  runIdentities,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)

	identitiesCmd.Flags().Bool("cache-only", false, "Read from the local cache without touching the database")
}

func runIdentities(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if mustGetBool(cmd, "cache-only") {
		set, err := identity.LoadCache(cfg.CachePath)
		if err != nil {
			return fmt.Errorf("reading cache: %w", err)
		}
		printIdentities(set)
		return nil
	}

	store := identity.NewStore(cfg.Database, cfg.CachePath, false)
	defer store.Close()

	printIdentities(store.Load(context.Background()))
	return nil
}

func printIdentities(set identity.KnownSet) {
	if len(set) == 0 {
		fmt.Println("No enrolled identities")
		return
	}

	fmt.Printf("%d enrolled identit(ies):\n", len(set))
	for i := range set {
		fmt.Printf("  %-12s %s\n", set[i].ID, set[i].Name())
	}
}
