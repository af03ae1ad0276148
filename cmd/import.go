package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/lumeo/lumeo/internal/config"
	"github.com/lumeo/lumeo/internal/database"
	"github.com/lumeo/lumeo/internal/quality"
	"github.com/lumeo/lumeo/internal/registry"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Bulk import detector output from a JSON Lines file",
	Long: `Imports face records produced by the external detector. Each line is
one JSON object with photo_id, path, embedding, bbox and quality.
Photos are registered on first sight; faces are appended to the
library. Run 'lumeo process' afterwards to cluster them.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Int("concurrency", 4, "Number of concurrent ingest workers")
	importCmd.Flags().Bool("process", false, "Run clustering after the import")
}

// faceRecord is one line of detector output.
type faceRecord struct {
	PhotoID   string                  `json:"photo_id"`
	Path      string                  `json:"path"`
	Embedding []float32               `json:"embedding"`
	BBox      [4]int                  `json:"bbox"`
	Quality   database.QualityMetrics `json:"quality"`
}

func readFaceRecords(path string) ([]faceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var records []faceRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec faceRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}

// registerPhotos registers every distinct photo in the batch. Photos that
// already exist are left untouched.
func registerPhotos(ctx context.Context, store database.Store, records []faceRecord) error {
	seen := make(map[string]bool)
	for _, rec := range records {
		if rec.PhotoID == "" || seen[rec.PhotoID] {
			continue
		}
		seen[rec.PhotoID] = true

		if _, err := store.GetPhoto(ctx, rec.PhotoID); err == nil {
			continue
		} else if !errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("failed to look up photo %s: %w", rec.PhotoID, err)
		}

		err := store.AddPhoto(ctx, database.Photo{
			ID:         rec.PhotoID,
			Path:       rec.Path,
			UploadedAt: time.Now(),
			Status:     database.PhotoPending,
		})
		if err != nil {
			return fmt.Errorf("failed to register photo %s: %w", rec.PhotoID, err)
		}
	}
	return nil
}

// faceQuality returns the detector-supplied quality, or scores the face
// region from the photo file when the detector left it out.
func faceQuality(rec faceRecord) database.QualityMetrics {
	if rec.Quality != (database.QualityMetrics{}) {
		return rec.Quality
	}

	f, err := os.Open(rec.Path)
	if err != nil {
		return database.QualityMetrics{}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return database.QualityMetrics{}
	}
	return quality.Score(img, rec.BBox)
}

func ingestRecords(ctx context.Context, engine *registry.Engine, records []faceRecord, concurrency int) (int64, int64) {
	bar := progressbar.NewOptions(len(records),
		progressbar.OptionSetDescription("Importing faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("faces"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var imported int64
	var failed int64
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, rec := range records {
		wg.Add(1)
		go func(rec faceRecord) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			_, err := engine.IngestFace(ctx, rec.PhotoID, rec.Embedding, rec.BBox, faceQuality(rec))
			if err != nil {
				atomic.AddInt64(&failed, 1)
			} else {
				atomic.AddInt64(&imported, 1)
			}
			_ = bar.Add(1)
		}(rec)
	}
	wg.Wait()
	_ = bar.Finish()

	return imported, failed
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	concurrency := mustGetInt(cmd, "concurrency")
	if concurrency < 1 {
		concurrency = 1
	}

	records, err := readFaceRecords(args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("Nothing to import.")
		return nil
	}

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := registerPhotos(ctx, store, records); err != nil {
		return err
	}

	engine := newEngine(cfg, store)
	imported, failed := ingestRecords(ctx, engine, records, concurrency)

	fmt.Printf("\nImported %d faces", imported)
	if failed > 0 {
		fmt.Printf(" (%d failed)", failed)
	}
	fmt.Println()

	if mustGetBool(cmd, "process") {
		fmt.Println("Running clustering...")
		clusters, err := engine.Process(ctx)
		if err != nil {
			return fmt.Errorf("clustering failed: %w", err)
		}
		fmt.Printf("%d clusters\n", len(clusters))
	}
	return nil
}
