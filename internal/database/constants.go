package database

// HNSW index parameters for 512-dim face embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	HNSWEfSearch = 100

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// to ensure we have enough after distance filtering.
	HNSWSearchMultiplier = 3

	// HNSWMinSearch is the smallest candidate pool requested from the graph.
	HNSWMinSearch = 20
)

// FaceEmbeddingDim is the dimension produced by the face embedding service (buffalo_l)
const FaceEmbeddingDim = 512
