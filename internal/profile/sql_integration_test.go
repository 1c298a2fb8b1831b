//go:build integration

package profile

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestSQLStore_Role(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("notes"),
		tcpostgres.WithUsername("notes"),
		tcpostgres.WithPassword("notes"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `
		CREATE TABLE users (id TEXT PRIMARY KEY, email TEXT NOT NULL, role TEXT NOT NULL);
		INSERT INTO users (id, email, role) VALUES
			('u1', 'admin@uni.edu', 'admin'),
			('u2', 'student@uni.edu', 'user');
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err := NewSQLStore(connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Ping(ctx))

	role, err := store.Role(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "admin", role)

	role, err = store.Role(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "user", role)

	_, err = store.Role(ctx, "u3")
	assert.ErrorIs(t, err, ErrNotFound)
}
