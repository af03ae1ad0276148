// Package registry is the durable record of identity clusters. It owns the
// reconciliation step that maps fresh clustering output onto previously
// named clusters so user-assigned names survive full re-clustering runs.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumeo/lumeo/internal/clustering"
	"github.com/lumeo/lumeo/internal/database"
)

// Engine coordinates face ingest, clustering and reconciliation on top of a
// database.Store. A single coarse mutex guards the cluster + reconcile
// phase; reads and renames proceed without it.
type Engine struct {
	store        database.Store
	embeddingDim int
	opts         clustering.Options

	// mu serializes clustering + reconciliation. TryLock keeps a second
	// concurrent run a fast failure instead of a queued surprise.
	mu sync.Mutex
}

// New creates an engine over the given store. embeddingDim is the expected
// vector length for ingested faces; opts are the default clustering
// parameters used by Process.
func New(store database.Store, embeddingDim int, opts clustering.Options) *Engine {
	return &Engine{
		store:        store,
		embeddingDim: embeddingDim,
		opts:         opts,
	}
}

// IngestFace validates and stores one face embedding for a photo. The
// vector must match the configured dimensionality exactly.
func (e *Engine) IngestFace(ctx context.Context, photoID string, vector []float32, bbox [4]int, quality database.QualityMetrics) (int64, error) {
	if len(vector) != e.embeddingDim {
		return 0, fmt.Errorf("embedding has %d dimensions, expected %d: %w",
			len(vector), e.embeddingDim, database.ErrValidation)
	}

	return e.store.AddFace(ctx, database.StoredFace{
		PhotoID:   photoID,
		Embedding: vector,
		BBox:      bbox,
		Quality:   quality,
	})
}

// RunClustering partitions the full current embedding set with the given
// parameters. It is a pure read: no cluster state changes until the result
// is reconciled.
func (e *Engine) RunClustering(ctx context.Context, opts clustering.Options) (clustering.Result, error) {
	faces, err := e.store.AllFaces(ctx)
	if err != nil {
		return clustering.Result{}, fmt.Errorf("loading faces: %w", err)
	}

	points := make([]clustering.Point, len(faces))
	for i, face := range faces {
		points[i] = clustering.Point{ID: face.ID, Vector: face.Embedding}
	}
	return clustering.Cluster(points, opts), nil
}

// Reconcile maps a clustering result onto the existing cluster set and
// persists the outcome atomically. Fails with database.ErrConflict if
// another clustering or reconciliation run is in flight.
func (e *Engine) Reconcile(ctx context.Context, result clustering.Result) ([]database.ClusterSummary, error) {
	if !e.mu.TryLock() {
		return nil, fmt.Errorf("reconciliation already running: %w", database.ErrConflict)
	}
	defer e.mu.Unlock()

	return e.reconcile(ctx, result)
}

// Process runs clustering with the engine's default parameters and
// reconciles the result, as one exclusive phase.
func (e *Engine) Process(ctx context.Context) ([]database.ClusterSummary, error) {
	if !e.mu.TryLock() {
		return nil, fmt.Errorf("clustering already running: %w", database.ErrConflict)
	}
	defer e.mu.Unlock()

	result, err := e.RunClustering(ctx, e.opts)
	if err != nil {
		return nil, err
	}
	return e.reconcile(ctx, result)
}

// RenameCluster updates a cluster's display name. Pure metadata update, no
// re-clustering.
func (e *Engine) RenameCluster(ctx context.Context, id, name string) error {
	return e.store.RenameCluster(ctx, id, name)
}

// ListClusters returns summaries of all clusters ordered by creation time.
func (e *Engine) ListClusters(ctx context.Context) ([]database.ClusterSummary, error) {
	clusters, err := e.store.ListClusters(ctx)
	if err != nil {
		return nil, err
	}
	return summaries(clusters), nil
}

// PhotosInCluster returns the photos linked to a cluster.
func (e *Engine) PhotosInCluster(ctx context.Context, id string) ([]database.PhotoSummary, error) {
	return e.store.PhotosForCluster(ctx, id)
}

// Reset destroys all clusters, faces and junction rows. It waits for any
// in-flight reconciliation to finish first.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Reset(ctx)
}

// clusterMembership is the working state of one cluster during
// reconciliation: its (kept or freshly minted) identity plus the faces the
// new partition places in it.
type clusterMembership struct {
	id        string
	name      string
	createdAt time.Time
	isNew     bool
	faces     []database.StoredFace
}

// reconcile computes and applies the reconciliation change set. Caller
// holds e.mu.
//
// Matching is greedy: existing clusters ordered by descending live member
// count (ties by creation time, then id) each claim the unclaimed
// algorithmic group holding most of their current members. Unclaimed groups
// become new clusters with the placeholder name; existing clusters that
// claim nothing are deleted. Deterministic, not globally optimal.
func (e *Engine) reconcile(ctx context.Context, result clustering.Result) ([]database.ClusterSummary, error) {
	faces, err := e.store.AllFaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading faces: %w", err)
	}
	facesByID := make(map[int64]database.StoredFace, len(faces))
	for _, face := range faces {
		facesByID[face.ID] = face
	}

	// Drop ids the store no longer knows; the clustering snapshot may
	// predate a reset or photo removal.
	groups := make([][]database.StoredFace, 0, len(result.Groups))
	for _, group := range result.Groups {
		members := make([]database.StoredFace, 0, len(group))
		for _, id := range group {
			if face, ok := facesByID[id]; ok {
				members = append(members, face)
			}
		}
		if len(members) > 0 {
			groups = append(groups, members)
		}
	}

	existing, err := e.store.ListClusters(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading clusters: %w", err)
	}

	memberships, deleted := matchGroups(existing, groups, faces)

	photos, err := e.loadPhotos(ctx, faces)
	if err != nil {
		return nil, err
	}

	changes := buildChangeSet(memberships, deleted, faces, photos)
	if err := e.store.ApplyReconciliation(ctx, changes); err != nil {
		return nil, fmt.Errorf("applying reconciliation: %w", err)
	}

	clusters, err := e.store.ListClusters(ctx)
	if err != nil {
		return nil, err
	}
	return summaries(clusters), nil
}

// matchGroups performs the greedy cluster-to-group assignment. Returns one
// membership per surviving or new cluster, plus the ids of existing
// clusters left with no group.
func matchGroups(existing []database.Cluster, groups [][]database.StoredFace, faces []database.StoredFace) ([]clusterMembership, []string) {
	// Live member counts, not the denormalized ones: reconciliation must
	// order clusters by what they own right now.
	liveCount := make(map[string]int)
	for _, face := range faces {
		if face.ClusterID != "" {
			liveCount[face.ClusterID]++
		}
	}

	ordered := append([]database.Cluster(nil), existing...)
	sort.Slice(ordered, func(i, j int) bool {
		ci, cj := liveCount[ordered[i].ID], liveCount[ordered[j].ID]
		if ci != cj {
			return ci > cj
		}
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	claimed := make(map[int]database.Cluster)
	claimedBy := make(map[string]int)
	for _, cluster := range ordered {
		bestGroup := -1
		bestOverlap := 0
		for gi, group := range groups {
			if _, taken := claimed[gi]; taken {
				continue
			}
			overlap := 0
			for _, face := range group {
				if face.ClusterID == cluster.ID {
					overlap++
				}
			}
			if overlap > bestOverlap {
				bestOverlap = overlap
				bestGroup = gi
			}
		}
		if bestGroup >= 0 {
			claimed[bestGroup] = cluster
			claimedBy[cluster.ID] = bestGroup
		}
	}

	now := time.Now()
	memberships := make([]clusterMembership, 0, len(groups))
	for gi, group := range groups {
		if cluster, ok := claimed[gi]; ok {
			memberships = append(memberships, clusterMembership{
				id:        cluster.ID,
				name:      cluster.Name,
				createdAt: cluster.CreatedAt,
				faces:     group,
			})
			continue
		}
		memberships = append(memberships, clusterMembership{
			id:        uuid.NewString(),
			name:      database.DefaultClusterName,
			createdAt: now,
			isNew:     true,
			faces:     group,
		})
	}

	var deleted []string
	for _, cluster := range existing {
		if _, ok := claimedBy[cluster.ID]; !ok {
			deleted = append(deleted, cluster.ID)
		}
	}
	return memberships, deleted
}

// loadPhotos fetches the photo records referenced by the given faces,
// keyed by photo id. Upload times drive thumbnail tie-breaks and link
// ordering.
func (e *Engine) loadPhotos(ctx context.Context, faces []database.StoredFace) (map[string]database.Photo, error) {
	photos := make(map[string]database.Photo)
	for _, face := range faces {
		if _, ok := photos[face.PhotoID]; ok {
			continue
		}
		photo, err := e.store.GetPhoto(ctx, face.PhotoID)
		if err != nil {
			return nil, fmt.Errorf("loading photo %s: %w", face.PhotoID, err)
		}
		photos[face.PhotoID] = *photo
	}
	return photos, nil
}

// buildChangeSet derives the full persistence delta from the matched
// memberships: assignments for every face, per-cluster counts and
// thumbnails, and the recomputed photo/cluster junction.
func buildChangeSet(memberships []clusterMembership, deleted []string, faces []database.StoredFace, photos map[string]database.Photo) database.ReconcileChangeSet {
	changes := database.ReconcileChangeSet{
		DeletedClusterIDs: deleted,
		FaceAssignments:   make(map[int64]string, len(faces)),
	}

	// Default every face to unassigned; group members overwrite below.
	// Noise faces and members of deleted clusters end up cleared.
	for _, face := range faces {
		changes.FaceAssignments[face.ID] = ""
	}

	clusterMeta := make(map[string]clusterMembership, len(memberships))
	for _, m := range memberships {
		clusterMeta[m.id] = m
		for _, face := range m.faces {
			changes.FaceAssignments[face.ID] = m.id
		}

		photoSet := make(map[string]struct{})
		for _, face := range m.faces {
			photoSet[face.PhotoID] = struct{}{}
		}
		thumb := selectThumbnail(m.faces, photos)

		if m.isNew {
			changes.NewClusters = append(changes.NewClusters, database.Cluster{
				ID:        m.id,
				Name:      m.name,
				CreatedAt: m.createdAt,
			})
		}
		changes.ClusterUpdates = append(changes.ClusterUpdates, database.ClusterUpdate{
			ID:               m.id,
			FaceCount:        len(m.faces),
			PhotoCount:       len(photoSet),
			ThumbnailFaceID:  thumb.ID,
			ThumbnailPhotoID: thumb.PhotoID,
		})
	}

	changes.Links = buildLinks(memberships, clusterMeta)
	return changes
}

// selectThumbnail picks the representative face of a cluster: highest
// overall quality, ties broken by earliest photo upload time, then lowest
// face id. Stable regardless of insertion order.
func selectThumbnail(members []database.StoredFace, photos map[string]database.Photo) database.StoredFace {
	best := members[0]
	for _, face := range members[1:] {
		if betterThumbnail(best, face, photos) {
			best = face
		}
	}
	return best
}

// betterThumbnail reports whether candidate beats current as thumbnail.
func betterThumbnail(current, candidate database.StoredFace, photos map[string]database.Photo) bool {
	if candidate.Quality.Overall != current.Quality.Overall {
		return candidate.Quality.Overall > current.Quality.Overall
	}
	cu := photos[current.PhotoID].UploadedAt
	nu := photos[candidate.PhotoID].UploadedAt
	if !nu.Equal(cu) {
		return nu.Before(cu)
	}
	return candidate.ID < current.ID
}

// buildLinks recomputes the photo/cluster junction from face memberships.
// The primary cluster of a photo is the one owning most of its faces, ties
// broken by earlier cluster creation, then cluster id.
func buildLinks(memberships []clusterMembership, clusterMeta map[string]clusterMembership) []database.PhotoClusterLink {
	type key struct {
		photoID   string
		clusterID string
	}
	counts := make(map[key]int)
	for _, m := range memberships {
		for _, face := range m.faces {
			counts[key{face.PhotoID, m.id}]++
		}
	}

	primary := make(map[string]string) // photo id -> primary cluster id
	for k, n := range counts {
		cur, ok := primary[k.photoID]
		if !ok {
			primary[k.photoID] = k.clusterID
			continue
		}
		curN := counts[key{k.photoID, cur}]
		switch {
		case n > curN:
			primary[k.photoID] = k.clusterID
		case n == curN && primaryLess(clusterMeta[k.clusterID], clusterMeta[cur]):
			primary[k.photoID] = k.clusterID
		}
	}

	links := make([]database.PhotoClusterLink, 0, len(counts))
	for k, n := range counts {
		links = append(links, database.PhotoClusterLink{
			PhotoID:   k.photoID,
			ClusterID: k.clusterID,
			FaceCount: n,
			IsPrimary: primary[k.photoID] == k.clusterID,
		})
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].PhotoID != links[j].PhotoID {
			return links[i].PhotoID < links[j].PhotoID
		}
		return links[i].ClusterID < links[j].ClusterID
	})
	return links
}

// primaryLess reports whether a should win a primary-subject tie over b.
func primaryLess(a, b clusterMembership) bool {
	if !a.createdAt.Equal(b.createdAt) {
		return a.createdAt.Before(b.createdAt)
	}
	return a.id < b.id
}

func summaries(clusters []database.Cluster) []database.ClusterSummary {
	out := make([]database.ClusterSummary, len(clusters))
	for i, c := range clusters {
		out[i] = database.ClusterSummary{
			ID:               c.ID,
			Name:             c.Name,
			FaceCount:        c.FaceCount,
			PhotoCount:       c.PhotoCount,
			ThumbnailFaceID:  c.ThumbnailFaceID,
			ThumbnailPhotoID: c.ThumbnailPhotoID,
		}
	}
	return out
}
