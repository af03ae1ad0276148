package organizer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lumeo/lumeo/internal/database"
	"github.com/lumeo/lumeo/internal/database/memory"
)

func writePhotoFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("photo:"+name), 0o644); err != nil {
		t.Fatalf("writing source photo %s: %v", name, err)
	}
	return path
}

// seedStore builds the Bob/Carol fixture: Bob appears in P1 and P2, Carol
// in P2 and P3.
func seedStore(t *testing.T, srcDir string) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	base := time.Now()
	for i, id := range []string{"P1", "P2", "P3"} {
		path := writePhotoFile(t, srcDir, id+".jpg")
		err := store.AddPhoto(ctx, database.Photo{
			ID:         id,
			Path:       path,
			UploadedAt: base.Add(time.Duration(i) * time.Minute),
			Status:     database.PhotoProcessed,
		})
		if err != nil {
			t.Fatalf("adding photo %s: %v", id, err)
		}
	}

	err := store.ApplyReconciliation(ctx, database.ReconcileChangeSet{
		NewClusters: []database.Cluster{
			{ID: "c-bob", Name: "Bob", CreatedAt: base},
			{ID: "c-carol", Name: "Carol", CreatedAt: base.Add(time.Second)},
		},
		Links: []database.PhotoClusterLink{
			{PhotoID: "P1", ClusterID: "c-bob", FaceCount: 1, IsPrimary: true},
			{PhotoID: "P2", ClusterID: "c-bob", FaceCount: 1, IsPrimary: true},
			{PhotoID: "P2", ClusterID: "c-carol", FaceCount: 1},
			{PhotoID: "P3", ClusterID: "c-carol", FaceCount: 1, IsPrimary: true},
		},
	})
	if err != nil {
		t.Fatalf("seeding clusters: %v", err)
	}
	return store
}

// folderFiles lists regular files in a folder, excluding organizer state.
func folderFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.Name() == stateFile {
			continue
		}
		names = append(names, e.Name())
	}
	return names
}

func assertFiles(t *testing.T, dir string, want ...string) {
	t.Helper()
	got := folderFiles(t, dir)
	if len(got) != len(want) {
		t.Fatalf("folder %s: expected files %v, got %v", dir, want, got)
	}
	wanted := make(map[string]struct{}, len(want))
	for _, w := range want {
		wanted[w] = struct{}{}
	}
	for _, g := range got {
		if _, ok := wanted[g]; !ok {
			t.Errorf("folder %s: unexpected file %s", dir, g)
		}
	}
}

func TestOrganizeManyToMany(t *testing.T) {
	srcDir := t.TempDir()
	destRoot := t.TempDir()
	store := seedStore(t, srcDir)

	results, err := New(store).Organize(context.Background(), destRoot)
	if err != nil {
		t.Fatalf("organize: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 exported clusters, got %d", len(results))
	}

	assertFiles(t, filepath.Join(destRoot, "Bob"), "P1.jpg", "P2.jpg")
	assertFiles(t, filepath.Join(destRoot, "Carol"), "P2.jpg", "P3.jpg")

	// P2 lives in both folders and matches the source, copied not moved.
	src, err := os.ReadFile(filepath.Join(srcDir, "P2.jpg"))
	if err != nil {
		t.Fatalf("reading source: %v", err)
	}
	for _, folder := range []string{"Bob", "Carol"} {
		data, err := os.ReadFile(filepath.Join(destRoot, folder, "P2.jpg"))
		if err != nil {
			t.Fatalf("reading copy in %s: %v", folder, err)
		}
		if string(data) != string(src) {
			t.Errorf("copy in %s differs from source", folder)
		}
	}
}

func TestOrganizeIdempotent(t *testing.T) {
	srcDir := t.TempDir()
	destRoot := t.TempDir()
	store := seedStore(t, srcDir)
	org := New(store)

	first, err := org.Organize(context.Background(), destRoot)
	if err != nil {
		t.Fatalf("first organize: %v", err)
	}
	second, err := org.Organize(context.Background(), destRoot)
	if err != nil {
		t.Fatalf("second organize: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("result count changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("result %d changed: %+v vs %+v", i, first[i], second[i])
		}
	}
	assertFiles(t, filepath.Join(destRoot, "Bob"), "P1.jpg", "P2.jpg")
}

func TestOrganizeRenameRemovesStaleFolder(t *testing.T) {
	srcDir := t.TempDir()
	destRoot := t.TempDir()
	store := seedStore(t, srcDir)
	org := New(store)
	ctx := context.Background()

	if _, err := org.Organize(ctx, destRoot); err != nil {
		t.Fatalf("first organize: %v", err)
	}
	if err := store.RenameCluster(ctx, "c-bob", "Robert"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := org.Organize(ctx, destRoot); err != nil {
		t.Fatalf("second organize: %v", err)
	}

	assertFiles(t, filepath.Join(destRoot, "Robert"), "P1.jpg", "P2.jpg")
	if _, err := os.Stat(filepath.Join(destRoot, "Bob")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("stale Bob folder should be removed, stat err: %v", err)
	}
}

func TestOrganizeSanitizesNames(t *testing.T) {
	srcDir := t.TempDir()
	destRoot := t.TempDir()
	store := seedStore(t, srcDir)
	ctx := context.Background()

	if err := store.RenameCluster(ctx, "c-bob", "Jiří/Novák?"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	if _, err := New(store).Organize(ctx, destRoot); err != nil {
		t.Fatalf("organize: %v", err)
	}

	assertFiles(t, filepath.Join(destRoot, "Jiri_Novak_"), "P1.jpg", "P2.jpg")
}

func TestOrganizeNameCollision(t *testing.T) {
	srcDir := t.TempDir()
	destRoot := t.TempDir()
	store := seedStore(t, srcDir)
	ctx := context.Background()

	if err := store.RenameCluster(ctx, "c-bob", "Alex"); err != nil {
		t.Fatalf("rename bob: %v", err)
	}
	if err := store.RenameCluster(ctx, "c-carol", "Alex"); err != nil {
		t.Fatalf("rename carol: %v", err)
	}

	if _, err := New(store).Organize(ctx, destRoot); err != nil {
		t.Fatalf("organize: %v", err)
	}

	assertFiles(t, filepath.Join(destRoot, "Alex-c-bob"), "P1.jpg", "P2.jpg")
	assertFiles(t, filepath.Join(destRoot, "Alex-c-carol"), "P2.jpg", "P3.jpg")
	if _, err := os.Stat(filepath.Join(destRoot, "Alex")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("undisambiguated Alex folder should not exist, stat err: %v", err)
	}
}

func TestOrganizeSkipsFailedCopies(t *testing.T) {
	srcDir := t.TempDir()
	destRoot := t.TempDir()
	store := seedStore(t, srcDir)

	// Break one of Bob's sources.
	if err := os.Remove(filepath.Join(srcDir, "P1.jpg")); err != nil {
		t.Fatalf("removing source: %v", err)
	}

	results, err := New(store).Organize(context.Background(), destRoot)
	if err != nil {
		t.Fatalf("organize should not fail on a single bad copy: %v", err)
	}

	for _, r := range results {
		if r.ClusterID == "c-bob" && r.PhotoCount != 1 {
			t.Errorf("bob should have 1 successful copy, got %d", r.PhotoCount)
		}
		if r.ClusterID == "c-carol" && r.PhotoCount != 2 {
			t.Errorf("carol should have 2 successful copies, got %d", r.PhotoCount)
		}
	}
	assertFiles(t, filepath.Join(destRoot, "Bob"), "P2.jpg")
}

func TestOrganizeCancelledAtPhotoBoundary(t *testing.T) {
	srcDir := t.TempDir()
	destRoot := t.TempDir()
	store := seedStore(t, srcDir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(store).Organize(ctx, destRoot)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestOrganizeSkipsEmptyClusters(t *testing.T) {
	destRoot := t.TempDir()
	store := memory.NewStore()
	ctx := context.Background()

	err := store.ApplyReconciliation(ctx, database.ReconcileChangeSet{
		NewClusters: []database.Cluster{
			{ID: "c-empty", Name: "Nobody", CreatedAt: time.Now()},
		},
	})
	if err != nil {
		t.Fatalf("seeding: %v", err)
	}

	results, err := New(store).Organize(ctx, destRoot)
	if err != nil {
		t.Fatalf("organize: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results for empty cluster, got %d", len(results))
	}
	if _, err := os.Stat(filepath.Join(destRoot, "Nobody")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("no folder should exist for empty cluster, stat err: %v", err)
	}
}

func TestSanitizeFolderName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Alice", "Alice"},
		{"Jiří Novák", "Jiri Novak"},
		{"a/b\\c:d", "a_b_c_d"},
		{"  trimmed  ", "trimmed"},
		{"dots...", "dots"},
		{"", "unnamed"},
		{"...", "unnamed"},
	}

	for _, tc := range tests {
		if got := sanitizeFolderName(tc.in); got != tc.want {
			t.Errorf("sanitizeFolderName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
