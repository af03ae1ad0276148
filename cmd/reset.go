package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumeo/lumeo/internal/config"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Destroy all faces and clusters",
	Long: `Removes every face, cluster and photo-cluster link from the store.
Registered photos are kept. Requires --force.`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().Bool("force", false, "Confirm the destructive reset")
}

func runReset(cmd *cobra.Command, args []string) error {
	if !mustGetBool(cmd, "force") {
		return errors.New("reset destroys all faces and clusters; re-run with --force to confirm")
	}

	cfg := config.Load()

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := newEngine(cfg, store).Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset: %w", err)
	}
	fmt.Println("All faces and clusters removed. Photos were kept.")
	return nil
}
