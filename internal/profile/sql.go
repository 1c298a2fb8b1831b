package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

const roleQuery = "SELECT role FROM users WHERE id = $1 LIMIT 1"

// SQLStore runs the lookup against a hosted PostgreSQL database
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore opens a PostgreSQL connection pool for the profile lookup
func NewSQLStore(connectionString string) (*SQLStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// NewSQLStoreFromDB wraps an existing pool
func NewSQLStoreFromDB(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Role(ctx context.Context, id string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, roleQuery, id).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query role: %w", err)
	}
	return role, nil
}

// Ping tests the database connection
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
