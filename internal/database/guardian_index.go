package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/facematch"
)

// GuardianIndexMetadata stores metadata for validating a persisted index.
type GuardianIndexMetadata struct {
	GuardianCount int       `json:"guardian_count"`
	Dim           int       `json:"dim"`
	BuildTime     time.Time `json:"build_time"`
	Version       int       `json:"version"`
}

const guardianIndexVersion = 1

// Graph parameters. Galleries hold hundreds to a few thousand guardians, so
// recall matters more than speed.
const (
	guardianIndexM        = 16
	guardianIndexEfSearch = 100

	// LookalikeLimit caps how many existing guardians Within returns.
	LookalikeLimit = 5
)

// GuardianIndex is an in-memory HNSW graph over guardian embeddings. It answers
// "which existing guardians look like this face" and is advisory only; gallery
// matching for pickups always scans the store.
type GuardianIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[string]
	dim   int
}

func NewGuardianIndex() *GuardianIndex {
	return &GuardianIndex{graph: newGuardianGraph()}
}

func newGuardianGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = guardianIndexM
	g.Ml = 1.0 / float64(guardianIndexM)
	g.EfSearch = guardianIndexEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Build replaces the index contents with the gallery. Entries without an
// embedding, or with a dimension different from the first embedded entry, are skipped.
func (x *GuardianIndex) Build(gallery []GalleryEntry) int {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.graph = newGuardianGraph()
	x.dim = 0
	added := 0
	for _, e := range gallery {
		if x.addLocked(e.ID, e.Embedding) {
			added++
		}
	}
	return added
}

// Add inserts or replaces one guardian. Returns false when the embedding is
// empty or its dimension differs from the indexed ones.
func (x *GuardianIndex) Add(id string, embedding []float32) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.addLocked(id, embedding)
}

func (x *GuardianIndex) addLocked(id string, embedding []float32) bool {
	if len(embedding) == 0 {
		return false
	}
	if x.dim == 0 {
		x.dim = len(embedding)
	}
	if len(embedding) != x.dim {
		return false
	}
	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	x.graph.Add(hnsw.MakeNode(id, vec))
	return true
}

// Within returns up to LookalikeLimit guardians whose embedding lies within
// tolerance of query, closest first.
func (x *GuardianIndex) Within(query []float32, tolerance float64) []facematch.Candidate {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph.Len() == 0 || len(query) != x.dim {
		return nil
	}

	var out []facematch.Candidate
	for _, n := range x.graph.Search(query, LookalikeLimit) {
		// Recompute in float64 so the threshold agrees with facematch.Match.
		if d := facematch.EuclideanDistance(query, n.Value); d <= tolerance {
			out = append(out, facematch.Candidate{ID: n.Key, Distance: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

// Len returns the number of indexed guardians.
func (x *GuardianIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.graph.Len()
}

// Save persists the graph to path and its metadata to path+".meta".
func (x *GuardianIndex) Save(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph.Len() == 0 {
		// Remove stale files if the index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create guardian index file: %w", err)
	}
	if err := x.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export guardian index: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close guardian index file: %w", err)
	}

	meta, err := json.Marshal(GuardianIndexMetadata{
		GuardianCount: x.graph.Len(),
		Dim:           x.dim,
		BuildTime:     time.Now().UTC(),
		Version:       guardianIndexVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", meta, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// LoadGuardianIndexMetadata reads the metadata written by Save.
func LoadGuardianIndexMetadata(path string) (GuardianIndexMetadata, error) {
	var meta GuardianIndexMetadata
	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return meta, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return meta, nil
}

// LoadOrBuild loads the persisted index when its metadata agrees with the
// gallery, otherwise rebuilds from the gallery and saves. An empty path only builds.
// Returns true when the index was rebuilt.
func (x *GuardianIndex) LoadOrBuild(path string, gallery []GalleryEntry) (bool, error) {
	if path == "" {
		x.Build(gallery)
		return true, nil
	}

	if err := x.load(path, gallery); err == nil {
		return false, nil
	}

	x.Build(gallery)
	return true, x.Save(path)
}

func (x *GuardianIndex) load(path string, gallery []GalleryEntry) error {
	meta, err := LoadGuardianIndexMetadata(path)
	if err != nil {
		return err
	}
	embedded := 0
	for _, e := range gallery {
		if len(e.Embedding) > 0 {
			embedded++
		}
	}
	if meta.Version != guardianIndexVersion || meta.GuardianCount != embedded {
		return errors.New("guardian index is stale")
	}

	f, err := os.Open(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return err
	}
	defer f.Close()

	g := newGuardianGraph()
	if err := g.Import(f); err != nil {
		return fmt.Errorf("failed to import guardian index: %w", err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.graph = g
	x.dim = meta.Dim
	return nil
}
