package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lumeo",
	Short: "Incremental face clustering and photo organization engine",
	Long: `Lumeo maintains a library of face embeddings produced by an external
detector, groups them into per-person clusters with density-based
clustering, and keeps cluster identities and names stable as new
photos arrive. Organized folder-per-person exports can be generated
from the clustered library at any time.`,
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
