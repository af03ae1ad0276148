package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumeo/lumeo/internal/config"
)

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "List all person clusters",
	RunE:  runClusters,
}

var renameCmd = &cobra.Command{
	Use:   "rename [cluster-id] [name]",
	Short: "Rename a person cluster",
	Long: `Assigns a display name to a cluster. The name survives future
clustering runs as long as the cluster keeps some of its members.`,
	Args: cobra.ExactArgs(2),
	RunE: runRename,
}

func init() {
	rootCmd.AddCommand(clustersCmd)
	clustersCmd.AddCommand(renameCmd)
}

func runClusters(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	clusters, err := newEngine(cfg, store).ListClusters(ctx)
	if err != nil {
		return fmt.Errorf("failed to list clusters: %w", err)
	}

	if len(clusters) == 0 {
		fmt.Println("No clusters. Run 'lumeo process' first.")
		return nil
	}
	for _, c := range clusters {
		fmt.Printf("%-36s  %-20s  %d faces in %d photos\n", c.ID, c.Name, c.FaceCount, c.PhotoCount)
	}
	return nil
}

func runRename(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := newEngine(cfg, store).RenameCluster(ctx, args[0], args[1]); err != nil {
		return fmt.Errorf("failed to rename cluster: %w", err)
	}
	fmt.Printf("Cluster %s renamed to %q\n", args[0], args[1])
	return nil
}
