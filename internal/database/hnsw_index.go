package database

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	FaceCount int64     `json:"face_count"`
	MaxFaceID int64     `json:"max_face_id"`
	BuildTime time.Time `json:"build_time"`
	Version   int       `json:"version"`
}

const hnswMetadataVersion = 1

// HNSWIndex wraps the HNSW graph for gallery search.
type HNSWIndex struct {
	graph    *hnsw.Graph[int64]
	idToFace map[int64]*AuthorizedFace // live entries; deleted IDs stay in the graph but are filtered here
	dim      int
	mu       sync.RWMutex
}

// NewHNSWIndex creates a new empty HNSW index.
func NewHNSWIndex() *HNSWIndex {
	return &HNSWIndex{
		idToFace: make(map[int64]*AuthorizedFace),
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors)
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

// BuildFromFaces replaces the index contents with faces.
func (h *HNSWIndex) BuildFromFaces(faces []AuthorizedFace) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.graph = nil
	h.dim = 0
	h.idToFace = make(map[int64]*AuthorizedFace, len(faces))

	for i := range faces {
		if err := h.addLocked(&faces[i]); err != nil {
			return err
		}
	}
	return nil
}

func (h *HNSWIndex) addLocked(face *AuthorizedFace) error {
	if len(face.Embedding) == 0 {
		return nil
	}
	if h.graph == nil {
		h.graph = newGraph()
		h.dim = len(face.Embedding)
	}
	if len(face.Embedding) != h.dim {
		return fmt.Errorf("face %d: embedding dimension %d does not match index dimension %d",
			face.ID, len(face.Embedding), h.dim)
	}

	h.graph.Add(hnsw.MakeNode(face.ID, face.Embedding))
	h.idToFace[face.ID] = face
	return nil
}

// Add inserts a single face.
func (h *HNSWIndex) Add(face *AuthorizedFace) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addLocked(face)
}

// Search finds the k nearest live neighbors to the query embedding.
// Returns face IDs and their cosine distances.
func (h *HNSWIndex) Search(query []float32, k int) ([]int64, []float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil || len(h.idToFace) == 0 {
		return nil, nil, ErrIndexEmpty
	}
	if len(query) != h.dim {
		return nil, nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), h.dim)
	}

	neighbors := h.graph.Search(query, k)

	ids := make([]int64, 0, len(neighbors))
	distances := make([]float64, 0, len(neighbors))
	for _, n := range neighbors {
		if _, ok := h.idToFace[n.Key]; !ok {
			continue
		}
		ids = append(ids, n.Key)
		distances = append(distances, CosineDistance(query, n.Value))
	}
	return ids, distances, nil
}

// GetFace returns the face for a given ID.
func (h *HNSWIndex) GetFace(id int64) *AuthorizedFace {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.idToFace[id]
}

// Delete hides a face from search results.
func (h *HNSWIndex) Delete(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	// coder/hnsw deletion rewires neighbours and is slow on large graphs,
	// a lookup miss is enough to drop the node from results.
	delete(h.idToFace, id)
}

// Count returns the number of live faces.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToFace)
}

// Faces returns a snapshot of the live faces.
func (h *HNSWIndex) Faces() []AuthorizedFace {
	h.mu.RLock()
	defer h.mu.RUnlock()

	faces := make([]AuthorizedFace, 0, len(h.idToFace))
	for _, f := range h.idToFace {
		faces = append(faces, *f)
	}
	return faces
}

// LoadHNSWMetadata loads metadata from a separate .meta file.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}

// Save persists the graph, its metadata and the face records next to each
// other (path, path.meta, path.faces). An empty index removes the files.
func (h *HNSWIndex) Save(path string, metadata HNSWIndexMetadata) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil || len(h.idToFace) == 0 {
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		_ = os.Remove(path + ".faces")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	if err := h.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close HNSW index file: %w", err)
	}

	metadata.Version = hnswMetadataVersion
	metaData, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0o600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	faces := make([]AuthorizedFace, 0, len(h.idToFace))
	for _, face := range h.idToFace {
		faces = append(faces, *face)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(faces); err != nil {
		return fmt.Errorf("failed to encode faces: %w", err)
	}
	if err := os.WriteFile(path+".faces", buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write faces file: %w", err)
	}
	return nil
}

// Load restores an index written by Save.
func (h *HNSWIndex) Load(path string) error {
	data, err := os.ReadFile(path + ".faces") //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to read faces file: %w", err)
	}
	var faces []AuthorizedFace
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&faces); err != nil {
		return fmt.Errorf("failed to decode faces: %w", err)
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.graph = saved.Graph
	h.graph.Distance = hnsw.CosineDistance
	h.idToFace = make(map[int64]*AuthorizedFace, len(faces))
	h.dim = 0
	for i := range faces {
		h.idToFace[faces[i].ID] = &faces[i]
		if h.dim == 0 {
			h.dim = len(faces[i].Embedding)
		}
	}
	return nil
}
