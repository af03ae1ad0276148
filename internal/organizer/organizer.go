// Package organizer materializes the cluster registry as a folder-per-person
// export. Photos are copied, never moved; the source library stays the
// system of record.
package organizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/lumeo/lumeo/internal/database"
)

// stateFile records which folder each cluster was exported to on the last
// run, keyed by cluster id. It is how a renamed cluster's old folder gets
// cleaned up instead of lingering as a silent duplicate.
const stateFile = ".folders.json"

// Result describes one exported cluster folder.
type Result struct {
	ClusterID  string `json:"cluster_id"`
	FolderPath string `json:"folder_path"`
	PhotoCount int    `json:"photo_count"`
}

// Organizer reads the cluster registry and writes the export tree.
type Organizer struct {
	store database.ClusterStore
}

// New creates an organizer over the given cluster store.
func New(store database.ClusterStore) *Organizer {
	return &Organizer{store: store}
}

// Organize exports every cluster with at least one linked photo into a
// folder under destRoot named after the cluster's display name. Folder
// names are sanitized; two clusters sanitizing to the same name are
// disambiguated with the cluster id. A failed copy of a single photo is
// logged and skipped, never fatal. The context is honored at photo
// boundaries.
func (o *Organizer) Organize(ctx context.Context, destRoot string) ([]Result, error) {
	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating destination root: %w", err)
	}

	clusters, err := o.store.ListClusters(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing clusters: %w", err)
	}

	folders := assignFolders(clusters)

	previous := loadState(destRoot)
	o.removeStale(destRoot, previous, folders)

	results := make([]Result, 0, len(clusters))
	for _, cluster := range clusters {
		photos, err := o.store.PhotosForCluster(ctx, cluster.ID)
		if err != nil {
			log.Printf("warning: failed to list photos for cluster %s: %v", cluster.ID, err)
			continue
		}
		if len(photos) == 0 {
			continue
		}

		folder := filepath.Join(destRoot, folders[cluster.ID])
		if err := os.MkdirAll(folder, 0o755); err != nil {
			log.Printf("warning: failed to create folder for cluster %s: %v", cluster.ID, err)
			continue
		}

		copied := 0
		for _, photo := range photos {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			dst := filepath.Join(folder, filepath.Base(photo.Path))
			if err := copyFile(photo.Path, dst); err != nil {
				log.Printf("warning: failed to copy photo %s for cluster %s: %v",
					photo.ID, cluster.ID, err)
				continue
			}
			copied++
		}

		results = append(results, Result{
			ClusterID:  cluster.ID,
			FolderPath: folder,
			PhotoCount: copied,
		})
	}

	if err := saveState(destRoot, folders); err != nil {
		log.Printf("warning: failed to record folder state: %v", err)
	}
	return results, nil
}

// assignFolders maps cluster ids to sanitized folder names. When two
// clusters collide on the sanitized name, each gets the cluster id
// appended so neither silently absorbs the other's photos.
func assignFolders(clusters []database.Cluster) map[string]string {
	names := make(map[string][]string) // sanitized name -> cluster ids
	for _, c := range clusters {
		name := sanitizeFolderName(c.Name)
		names[name] = append(names[name], c.ID)
	}

	folders := make(map[string]string, len(clusters))
	for name, ids := range names {
		if len(ids) == 1 {
			folders[ids[0]] = name
			continue
		}
		for _, id := range ids {
			folders[id] = name + "-" + id
		}
	}
	return folders
}

// removeStale deletes folders recorded for a cluster on a previous run
// when the cluster is gone or now maps to a different folder name.
func (o *Organizer) removeStale(destRoot string, previous, current map[string]string) {
	for clusterID, oldFolder := range previous {
		if current[clusterID] == oldFolder {
			continue
		}
		// Only touch paths we recorded ourselves, and never outside the
		// destination root.
		path := filepath.Join(destRoot, filepath.Base(oldFolder))
		if err := os.RemoveAll(path); err != nil {
			log.Printf("warning: failed to remove stale folder %s: %v", path, err)
		}
	}
}

// copyFile copies src to dst atomically: the content lands in a temp file
// in the destination directory and is renamed into place, so readers never
// observe a half-written photo. Overwrites an existing destination.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".copy-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func loadState(destRoot string) map[string]string {
	data, err := os.ReadFile(filepath.Join(destRoot, stateFile))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("warning: failed to read folder state: %v", err)
		}
		return nil
	}
	var state map[string]string
	if err := json.Unmarshal(data, &state); err != nil {
		log.Printf("warning: ignoring corrupt folder state: %v", err)
		return nil
	}
	return state
}

func saveState(destRoot string, folders map[string]string) error {
	data, err := json.MarshalIndent(folders, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(destRoot, stateFile), data, 0o644)
}
