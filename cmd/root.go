package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-gate",
	Short: "Identity matching and tracking engine for delivery verification",
	Long: `Face Gate matches live camera faces against a small enrolled-identity
set and dispatches recognition events to the verification and order
fulfillment API. It keeps operating from a local cache when the
identity database or network is unreachable.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
