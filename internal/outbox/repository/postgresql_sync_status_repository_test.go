package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ederbit/fanout/internal/outbox/domain"
	"github.com/ederbit/fanout/internal/testutil"
)

func TestPostgreSQLSyncStatusRepository_Adjust(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLSyncStatusRepository(db)
	ctx := context.Background()

	scope := domain.TargetScope{ProjectID: uuid.Must(uuid.NewV7()), GraphName: "main"}

	// First adjustment creates the row.
	err := repo.Adjust(ctx, scope, 1)
	require.NoError(t, err)

	status, err := repo.Get(ctx, scope)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), status.PendingCount)

	err = repo.Adjust(ctx, scope, 2)
	require.NoError(t, err)

	status, err = repo.Get(ctx, scope)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), status.PendingCount)
}

func TestPostgreSQLSyncStatusRepository_Adjust_FloorsAtZero(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLSyncStatusRepository(db)
	ctx := context.Background()

	scope := domain.TargetScope{ProjectID: uuid.Must(uuid.NewV7()), GraphName: "main"}

	err := repo.Adjust(ctx, scope, 1)
	require.NoError(t, err)

	// Over-decrementing must not drive the counter negative.
	err = repo.Adjust(ctx, scope, -5)
	require.NoError(t, err)

	status, err := repo.Get(ctx, scope)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), status.PendingCount)
}

func TestPostgreSQLSyncStatusRepository_Get_UnknownScope(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLSyncStatusRepository(db)
	ctx := context.Background()

	scope := domain.TargetScope{ProjectID: uuid.Must(uuid.NewV7()), GraphName: "main"}

	// Unknown scopes report zero instead of an error.
	status, err := repo.Get(ctx, scope)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), status.PendingCount)
	assert.Equal(t, scope.ProjectID, status.ProjectID)
	assert.Equal(t, scope.GraphName, status.GraphName)
}

func TestPostgreSQLSyncStatusRepository_List(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLSyncStatusRepository(db)
	ctx := context.Background()

	projectID := uuid.Must(uuid.NewV7())
	err := repo.Adjust(ctx, domain.TargetScope{ProjectID: projectID, GraphName: "main"}, 2)
	require.NoError(t, err)
	err = repo.Adjust(ctx, domain.TargetScope{ProjectID: projectID, GraphName: "archive"}, 1)
	require.NoError(t, err)
	err = repo.Adjust(ctx, domain.TargetScope{ProjectID: uuid.Must(uuid.NewV7()), GraphName: "main"}, 1)
	require.NoError(t, err)

	statuses, err := repo.List(ctx, projectID)
	assert.NoError(t, err)
	assert.Len(t, statuses, 2)
	assert.Equal(t, "archive", statuses[0].GraphName)
	assert.Equal(t, "main", statuses[1].GraphName)
}
