package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumeo/lumeo/internal/config"
	"github.com/lumeo/lumeo/internal/database"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show library statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	photos, err := store.CountPhotos(ctx)
	if err != nil {
		return fmt.Errorf("failed to count photos: %w", err)
	}
	faces, err := store.CountFaces(ctx)
	if err != nil {
		return fmt.Errorf("failed to count faces: %w", err)
	}
	unclustered, err := store.AllUnclustered(ctx)
	if err != nil {
		return fmt.Errorf("failed to load unclustered faces: %w", err)
	}
	clusters, err := store.ListClusters(ctx)
	if err != nil {
		return fmt.Errorf("failed to list clusters: %w", err)
	}

	named := 0
	for _, c := range clusters {
		if c.Name != database.DefaultClusterName {
			named++
		}
	}

	fmt.Printf("Photos:            %d\n", photos)
	fmt.Printf("Faces:             %d\n", faces)
	fmt.Printf("Unclustered faces: %d\n", len(unclustered))
	fmt.Printf("Clusters:          %d (%d named)\n", len(clusters), named)
	return nil
}
