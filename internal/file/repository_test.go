package file

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/filedrop/service/internal/db"
)

// setupTestDB starts PostgreSQL in a container and applies migrations.
// Skipped unless TEST_INTEGRATION is set.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("filedrop_test"),
		postgres.WithUsername("filedrop"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, db.Migrate(dsn, zap.NewNop()))

	pool, err := db.Connect(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func newRecord(name string) *File {
	return &File{
		Filename:    name,
		StoragePath: "uploads/" + name,
		ContentType: "text/plain",
		Size:        4,
		UploadedAt:  time.Date(2026, 2, 27, 14, 48, 34, 0, time.UTC),
	}
}

func TestRepositoryCRUD(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, newRecord("a.txt"))
	require.NoError(t, err)
	_, err = uuid.Parse(created.ID)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, created.UploadedAt.Location())

	exists, err := repo.ExistsByFilename(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, repo.UpdateFilename(ctx, created.ID, "b.txt", "uploads/b.txt"))
	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "b.txt", got.Filename)
	assert.Equal(t, "uploads/b.txt", got.StoragePath)
	assert.True(t, created.UploadedAt.Equal(got.UploadedAt))

	files, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	require.NoError(t, repo.Delete(ctx, created.ID))
	_, err = repo.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, created.ID), ErrNotFound)
}

func TestRepositoryEnforcesUniqueFilename(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, newRecord("a.txt"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newRecord("a.txt"))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	other, err := repo.Create(ctx, newRecord("b.txt"))
	require.NoError(t, err)
	assert.ErrorIs(t, repo.UpdateFilename(ctx, other.ID, "a.txt", "uploads/a.txt"), ErrAlreadyExists)
}

func TestRepositoryUpdateUnknownID(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	err := repo.UpdateFilename(context.Background(), uuid.NewString(), "x", "uploads/x")
	assert.ErrorIs(t, err, ErrNotFound)
}
