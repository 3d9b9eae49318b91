package database

import (
	"time"
)

// AuthorizedFace is one reference embedding of a person allowed at the door.
// Several entries may share a name.
type AuthorizedFace struct {
	ID        int64
	Name      string    // display name as supplied
	NameKey   string    // normalized name used for lookups and deletion
	ImagePath string    // artifact the embedding was computed from
	Embedding []float32
	DetScore  float64
	Model     string
	Dim       int
	CreatedAt time.Time
}

// User is a dashboard account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
