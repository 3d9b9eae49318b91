package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/JoahanSP/SECURENET/internal/database"
)

// FaceRepository stores the authorized-faces gallery in PostgreSQL and keeps
// an optional in-memory HNSW index in sync with it.
type FaceRepository struct {
	pool          *Pool
	hnswIndex     *database.HNSWIndex
	hnswEnabled   bool
	hnswIndexPath string // Path to persist HNSW index (optional)
	hnswMu        sync.RWMutex

	// rebuild restores the index from the table after a failed update
	rebuild func(ctx context.Context) error
}

var _ database.FaceWriter = (*FaceRepository)(nil)

// NewFaceRepository creates a new PostgreSQL face repository.
func NewFaceRepository(pool *Pool) *FaceRepository {
	r := &FaceRepository{pool: pool}
	r.rebuild = r.RebuildHNSW
	return r
}

const faceColumns = `id, name, name_key, image_path, embedding, det_score, model, dim, created_at`

// List returns all entries ordered by ID.
func (r *FaceRepository) List(ctx context.Context) ([]database.AuthorizedFace, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+faceColumns+` FROM authorized_faces ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query authorized faces: %w", err)
	}
	defer rows.Close()

	return scanFaces(rows)
}

// Count returns the total number of entries.
func (r *FaceRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM authorized_faces").Scan(&count); err != nil {
		return 0, fmt.Errorf("count authorized faces: %w", err)
	}
	return count, nil
}

// SaveFace inserts a new entry and adds it to the HNSW index when enabled.
// The row is the source of truth: once it is committed an index failure
// never fails the call.
func (r *FaceRepository) SaveFace(ctx context.Context, face *database.AuthorizedFace) (int64, error) {
	if len(face.Embedding) == 0 {
		return 0, errors.New("face has no embedding")
	}

	var model sql.NullString
	if face.Model != "" {
		model = sql.NullString{String: face.Model, Valid: true}
	}
	dim := face.Dim
	if dim == 0 {
		dim = len(face.Embedding)
	}

	var id int64
	var createdAt time.Time
	err := r.pool.QueryRow(ctx, `
		INSERT INTO authorized_faces (name, name_key, image_path, embedding, det_score, model, dim)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, face.Name, face.NameKey, face.ImagePath, pgvector.NewVector(face.Embedding), face.DetScore, model, dim,
	).Scan(&id, &createdAt)
	if err != nil {
		return 0, fmt.Errorf("insert authorized face: %w", err)
	}

	face.ID = id
	face.Dim = dim
	face.CreatedAt = createdAt

	r.indexFace(ctx, face)
	return id, nil
}

// indexFace adds a committed row to the in-memory index. When the add fails
// the index is rebuilt from the table, and if that fails too searches go
// back to PostgreSQL.
func (r *FaceRepository) indexFace(ctx context.Context, face *database.AuthorizedFace) {
	idx := r.index()
	if idx == nil {
		return
	}
	stored := *face
	err := idx.Add(&stored)
	if err == nil {
		return
	}
	r.pool.log.Warn().Err(err).Int64("face_id", face.ID).Msg("failed to add face to HNSW index, rebuilding")
	if err := r.rebuild(ctx); err != nil {
		r.pool.log.Error().Err(err).Msg("failed to rebuild HNSW index, searching PostgreSQL")
		r.hnswMu.Lock()
		r.hnswEnabled = false
		r.hnswMu.Unlock()
	}
}

// DeleteByNameKey removes every entry whose normalized name equals nameKey.
func (r *FaceRepository) DeleteByNameKey(ctx context.Context, nameKey string) (int, error) {
	rows, err := r.pool.Query(ctx, "DELETE FROM authorized_faces WHERE name_key = $1 RETURNING id", nameKey)
	if err != nil {
		return 0, fmt.Errorf("delete authorized faces: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scan deleted id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate deleted ids: %w", err)
	}

	if idx := r.index(); idx != nil {
		for _, id := range ids {
			idx.Delete(id)
		}
	}
	return len(ids), nil
}

// FindSimilarWithDistance finds entries closer than maxDistance, nearest first.
func (r *FaceRepository) FindSimilarWithDistance(
	ctx context.Context, embedding []float32, limit int, maxDistance float64,
) ([]database.AuthorizedFace, []float64, error) {
	if idx := r.index(); idx != nil {
		return findSimilarWithDistanceHNSW(idx, embedding, limit, maxDistance)
	}
	return r.findSimilarWithDistancePostgres(ctx, embedding, limit, maxDistance)
}

// findSimilarWithDistanceHNSW uses the in-memory HNSW index for similarity search.
func findSimilarWithDistanceHNSW(
	idx *database.HNSWIndex, embedding []float32, limit int, maxDistance float64,
) ([]database.AuthorizedFace, []float64, error) {
	// Request more candidates to ensure we have enough after distance filtering.
	searchK := max(limit*database.HNSWSearchMultiplier, database.HNSWMinSearch)

	ids, distances, err := idx.Search(embedding, searchK)
	if errors.Is(err, database.ErrIndexEmpty) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("HNSW search: %w", err)
	}

	type hit struct {
		face database.AuthorizedFace
		dist float64
	}
	hits := make([]hit, 0, len(ids))
	for i, id := range ids {
		if distances[i] >= maxDistance {
			continue
		}
		if face := idx.GetFace(id); face != nil {
			hits = append(hits, hit{*face, distances[i]})
		}
	}
	slices.SortFunc(hits, func(a, b hit) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		}
		return 0
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	faces := make([]database.AuthorizedFace, len(hits))
	dists := make([]float64, len(hits))
	for i, h := range hits {
		faces[i], dists[i] = h.face, h.dist
	}
	return faces, dists, nil
}

// findSimilarWithDistancePostgres uses the pgvector HNSW index.
func (r *FaceRepository) findSimilarWithDistancePostgres(
	ctx context.Context, embedding []float32, limit int, maxDistance float64,
) ([]database.AuthorizedFace, []float64, error) {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only transaction

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", database.HNSWEfSearch)); err != nil {
		return nil, nil, fmt.Errorf("set ef_search: %w", err)
	}

	query := `
		SELECT ` + faceColumns + `, embedding <=> $1::vector AS distance
		FROM authorized_faces
		WHERE embedding <=> $1::vector < $2
		ORDER BY distance
		LIMIT $3
	`
	rows, err := tx.QueryContext(ctx, query, pgvector.NewVector(embedding), maxDistance, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query similar faces: %w", err)
	}
	defer rows.Close()

	var faces []database.AuthorizedFace
	var distances []float64
	for rows.Next() {
		var dist float64
		face, err := scanFaceRow(rows, &dist)
		if err != nil {
			return nil, nil, err
		}
		faces = append(faces, face)
		distances = append(distances, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, distances, nil
}

// scanFaceRow scans a single row into an AuthorizedFace, with optional extra
// scan destinations appended after the standard columns (e.g. a distance).
func scanFaceRow(scanner interface{ Scan(...any) error }, extraDest ...any) (database.AuthorizedFace, error) {
	var face database.AuthorizedFace
	var vec pgvector.Vector
	var model sql.NullString

	dest := append([]any{
		&face.ID,
		&face.Name,
		&face.NameKey,
		&face.ImagePath,
		&vec,
		&face.DetScore,
		&model,
		&face.Dim,
		&face.CreatedAt,
	}, extraDest...)

	if err := scanner.Scan(dest...); err != nil {
		return face, fmt.Errorf("scan authorized face: %w", err)
	}
	face.Embedding = vec.Slice()
	face.Model = model.String
	return face, nil
}

func scanFaces(rows *sql.Rows) ([]database.AuthorizedFace, error) {
	var faces []database.AuthorizedFace
	for rows.Next() {
		face, err := scanFaceRow(rows)
		if err != nil {
			return nil, err
		}
		faces = append(faces, face)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, nil
}

// index returns the live HNSW index, or nil when searches use PostgreSQL.
func (r *FaceRepository) index() *database.HNSWIndex {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if !r.hnswEnabled {
		return nil
	}
	return r.hnswIndex
}

// stats returns the row count and highest ID, used to validate a cached index.
func (r *FaceRepository) stats(ctx context.Context) (count, maxID int64, err error) {
	err = r.pool.QueryRow(ctx, "SELECT COUNT(*), COALESCE(MAX(id), 0) FROM authorized_faces").Scan(&count, &maxID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get face stats: %w", err)
	}
	return count, maxID, nil
}

// tryLoadIndex loads the cached index when its metadata matches the table.
func (r *FaceRepository) tryLoadIndex(indexPath string, count, maxID int64) *database.HNSWIndex {
	meta, err := database.LoadHNSWMetadata(indexPath)
	if err != nil || meta.FaceCount != count || meta.MaxFaceID != maxID {
		return nil
	}
	idx := database.NewHNSWIndex()
	if err := idx.Load(indexPath); err != nil {
		r.pool.log.Warn().Err(err).Str("path", indexPath).Msg("failed to load cached HNSW index")
		return nil
	}
	return idx
}

// EnableHNSW builds (or loads from indexPath) the in-memory index and routes
// similarity searches through it.
func (r *FaceRepository) EnableHNSW(ctx context.Context, indexPath string) error {
	count, maxID, err := r.stats(ctx)
	if err != nil {
		return err
	}

	var idx *database.HNSWIndex
	if indexPath != "" {
		idx = r.tryLoadIndex(indexPath, count, maxID)
	}
	if idx == nil {
		faces, err := r.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to load faces: %w", err)
		}
		idx = database.NewHNSWIndex()
		if err := idx.BuildFromFaces(faces); err != nil {
			return fmt.Errorf("failed to build HNSW index: %w", err)
		}
		r.pool.log.Info().Int("faces", len(faces)).Msg("built gallery HNSW index")
	}

	r.hnswMu.Lock()
	r.hnswIndex = idx
	r.hnswIndexPath = indexPath
	r.hnswEnabled = true
	r.hnswMu.Unlock()
	return nil
}

// RebuildHNSW rebuilds the in-memory index from the table.
func (r *FaceRepository) RebuildHNSW(ctx context.Context) error {
	r.hnswMu.RLock()
	indexPath := r.hnswIndexPath
	r.hnswMu.RUnlock()
	return r.EnableHNSW(ctx, indexPath)
}

// HNSWCount returns the number of live entries in the index.
func (r *FaceRepository) HNSWCount() int {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswIndex == nil {
		return 0
	}
	return r.hnswIndex.Count()
}

// SaveHNSWIndex persists the index when a path is configured.
func (r *FaceRepository) SaveHNSWIndex() error {
	r.hnswMu.RLock()
	idx, path := r.hnswIndex, r.hnswIndexPath
	r.hnswMu.RUnlock()

	if idx == nil || path == "" {
		return nil
	}

	var maxID int64
	for _, f := range idx.Faces() {
		maxID = max(maxID, f.ID)
	}
	meta := database.HNSWIndexMetadata{
		FaceCount: int64(idx.Count()),
		MaxFaceID: maxID,
		BuildTime: time.Now(),
	}
	if err := idx.Save(path, meta); err != nil {
		return fmt.Errorf("save HNSW index: %w", err)
	}
	return nil
}
