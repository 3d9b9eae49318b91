// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/JoahanSP/SECURENET/internal/database"
)

// MockFaceStore is an in-memory implementation of database.FaceWriter
type MockFaceStore struct {
	mu     sync.RWMutex
	faces  []database.AuthorizedFace
	nextID int64

	// Error injection
	ListError        error
	CountError       error
	SaveError        error
	DeleteError      error
	FindSimilarError error
}

var _ database.FaceWriter = (*MockFaceStore)(nil)

// NewMockFaceStore creates a new mock face store
func NewMockFaceStore() *MockFaceStore {
	return &MockFaceStore{nextID: 1}
}

// AddFace adds a face directly, bypassing SaveError
func (m *MockFaceStore) AddFace(face database.AuthorizedFace) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	face.ID = m.nextID
	m.nextID++
	if face.CreatedAt.IsZero() {
		face.CreatedAt = time.Now()
	}
	m.faces = append(m.faces, face)
	return face.ID
}

// List returns a copy of all faces
func (m *MockFaceStore) List(ctx context.Context) ([]database.AuthorizedFace, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.faces), nil
}

// Count returns the number of faces
func (m *MockFaceStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.faces), nil
}

// SaveFace stores a face and assigns its ID
func (m *MockFaceStore) SaveFace(ctx context.Context, face *database.AuthorizedFace) (int64, error) {
	if m.SaveError != nil {
		return 0, m.SaveError
	}
	if len(face.Embedding) == 0 {
		return 0, fmt.Errorf("face has no embedding")
	}
	id := m.AddFace(*face)
	face.ID = id
	return id, nil
}

// DeleteByNameKey removes all faces with a matching normalized name
func (m *MockFaceStore) DeleteByNameKey(ctx context.Context, nameKey string) (int, error) {
	if m.DeleteError != nil {
		return 0, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.faces)
	m.faces = slices.DeleteFunc(m.faces, func(f database.AuthorizedFace) bool {
		return f.NameKey == nameKey
	})
	return before - len(m.faces), nil
}

// FindSimilarWithDistance does a brute-force cosine search
func (m *MockFaceStore) FindSimilarWithDistance(ctx context.Context, embedding []float32, limit int, maxDistance float64) ([]database.AuthorizedFace, []float64, error) {
	if m.FindSimilarError != nil {
		return nil, nil, m.FindSimilarError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	type hit struct {
		face database.AuthorizedFace
		dist float64
	}
	var hits []hit
	for _, f := range m.faces {
		if d := database.CosineDistance(embedding, f.Embedding); d < maxDistance {
			hits = append(hits, hit{f, d})
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int {
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

// MockUserStore is an in-memory implementation of database.UserStore
type MockUserStore struct {
	mu    sync.RWMutex
	users map[string]*database.User

	// Error injection
	GetError    error
	CreateError error
}

var _ database.UserStore = (*MockUserStore)(nil)

// NewMockUserStore creates a new mock user store
func NewMockUserStore() *MockUserStore {
	return &MockUserStore{users: make(map[string]*database.User)}
}

// GetUser returns nil when the user is unknown
func (m *MockUserStore) GetUser(ctx context.Context, username string) (*database.User, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// CreateUser stores a user, rejecting duplicates
func (m *MockUserStore) CreateUser(ctx context.Context, username, passwordHash string) (*database.User, error) {
	if m.CreateError != nil {
		return nil, m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; ok {
		return nil, fmt.Errorf("%w: %s", database.ErrUserExists, username)
	}
	u := &database.User{
		ID:           int64(len(m.users) + 1),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	m.users[username] = u
	cp := *u
	return &cp, nil
}

// CountUsers returns the number of users
func (m *MockUserStore) CountUsers(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}
