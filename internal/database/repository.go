package database

import (
	"context"
	"errors"
)

var (
	// ErrUserExists is returned when creating a user whose name is taken.
	ErrUserExists = errors.New("user already exists")
	// ErrIndexEmpty is returned by searches over an index without entries.
	ErrIndexEmpty = errors.New("index is empty")
)

// FaceReader provides read-only access to the authorized-faces gallery
type FaceReader interface {
	// List returns all entries ordered by creation
	List(ctx context.Context) ([]AuthorizedFace, error)
	// Count returns the number of stored entries
	Count(ctx context.Context) (int, error)
	// FindSimilarWithDistance finds entries closer than maxDistance and returns distances
	FindSimilarWithDistance(ctx context.Context, embedding []float32, limit int, maxDistance float64) ([]AuthorizedFace, []float64, error)
}

// FaceWriter provides write access to the gallery
type FaceWriter interface {
	FaceReader

	// SaveFace stores a new entry and returns its ID
	SaveFace(ctx context.Context, face *AuthorizedFace) (int64, error)

	// DeleteByNameKey removes every entry with the given normalized name.
	// Returns the number of deleted entries.
	DeleteByNameKey(ctx context.Context, nameKey string) (int, error)
}

// UserStore manages dashboard accounts
type UserStore interface {
	// GetUser returns nil when the user does not exist
	GetUser(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)
	CountUsers(ctx context.Context) (int, error)
}

// HNSWRebuilder is implemented by repositories backed by an in-memory HNSW index
type HNSWRebuilder interface {
	// RebuildHNSW rebuilds the in-memory HNSW index
	RebuildHNSW(ctx context.Context) error
	// HNSWCount returns the number of items in the HNSW index
	HNSWCount() int
	// SaveHNSWIndex saves the current index to disk (if path configured)
	SaveHNSWIndex() error
}
