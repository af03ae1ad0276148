package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumeo/lumeo/internal/config"
	"github.com/lumeo/lumeo/internal/organizer"
)

var organizeCmd = &cobra.Command{
	Use:   "organize",
	Short: "Export photos into one folder per person",
	Long: `Copies every clustered photo into a folder named after its cluster
under the destination root. Photos with faces from several people are
copied into each person's folder. Folders for renamed or removed
clusters are cleaned up.`,
	RunE: runOrganize,
}

func init() {
	rootCmd.AddCommand(organizeCmd)

	organizeCmd.Flags().String("dest", "", "Destination root (overrides ORGANIZE_DEST)")
}

func runOrganize(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	dest := mustGetString(cmd, "dest")
	if dest == "" {
		dest = cfg.Organizer.DestRoot
	}

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	results, err := organizer.New(store).Organize(ctx, dest)
	if err != nil {
		return fmt.Errorf("failed to organize: %w", err)
	}

	total := 0
	for _, res := range results {
		fmt.Printf("%-40s  %d photos\n", res.FolderPath, res.PhotoCount)
		total += res.PhotoCount
	}
	fmt.Printf("\nOrganized %d photos into %d folders under %s\n", total, len(results), dest)
	return nil
}
