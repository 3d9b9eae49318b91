package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/JoahanSP/SECURENET/internal/database"
)

// UserRepository stores dashboard accounts
type UserRepository struct {
	pool *Pool
}

var _ database.UserStore = (*UserRepository)(nil)

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(pool *Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetUser returns nil, nil when the user does not exist
func (r *UserRepository) GetUser(ctx context.Context, username string) (*database.User, error) {
	var u database.User
	err := r.pool.QueryRow(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = $1", username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a user with an already hashed password
func (r *UserRepository) CreateUser(ctx context.Context, username, passwordHash string) (*database.User, error) {
	u := database.User{Username: username, PasswordHash: passwordHash}
	err := r.pool.QueryRow(ctx,
		"INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id, created_at",
		username, passwordHash,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, fmt.Errorf("%w: %s", database.ErrUserExists, username)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

// CountUsers returns the number of accounts
func (r *UserRepository) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
