package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumeo/lumeo/internal/config"
	"github.com/lumeo/lumeo/internal/database"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run clustering and reconciliation over all ingested faces",
	Long: `Re-clusters every face embedding in the library and reconciles the
result against existing clusters. Clusters that keep their members keep
their identity and name; faces that moved are reassigned.`,
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	engine := newEngine(cfg, store)

	faces, err := store.CountFaces(ctx)
	if err != nil {
		return fmt.Errorf("failed to count faces: %w", err)
	}
	fmt.Printf("Clustering %d faces (eps=%.2f, min_samples=%d)...\n",
		faces, cfg.Tuning.Clustering.Eps, cfg.Tuning.Clustering.MinSamples)

	clusters, err := engine.Process(ctx)
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			return errors.New("another clustering run is already in progress")
		}
		return fmt.Errorf("clustering failed: %w", err)
	}

	fmt.Printf("\n%d clusters:\n", len(clusters))
	for _, c := range clusters {
		fmt.Printf("  %-36s  %-20s  %d faces in %d photos\n", c.ID, c.Name, c.FaceCount, c.PhotoCount)
	}
	return nil
}
