package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ederbit/fanout/internal/outbox/domain"
	"github.com/ederbit/fanout/internal/testutil"
)

func makeTestDeadLetter(t *testing.T, repo *PostgreSQLOutboxEventRepository, dlRepo *PostgreSQLDeadLetterRepository, key string) (*domain.OutboxEvent, *domain.DeadLetterEvent) {
	t.Helper()
	ctx := context.Background()

	event := makeTestEvent(key)
	_, err := repo.Create(ctx, event)
	require.NoError(t, err)

	deadLetter := &domain.DeadLetterEvent{
		ID:            uuid.Must(uuid.NewV7()),
		OutboxEventID: event.ID,
	}
	err = dlRepo.Create(ctx, deadLetter)
	require.NoError(t, err)

	return event, deadLetter
}

func TestPostgreSQLDeadLetterRepository_CreateAndGet(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	eventRepo := NewPostgreSQLOutboxEventRepository(db)
	repo := NewPostgreSQLDeadLetterRepository(db)
	ctx := context.Background()

	event, deadLetter := makeTestDeadLetter(t, eventRepo, repo, "key-1")

	got, err := repo.GetByID(ctx, deadLetter.ID)
	assert.NoError(t, err)
	assert.Equal(t, deadLetter.ID, got.ID)
	assert.Equal(t, event.ID, got.OutboxEventID)
	assert.False(t, got.Resolved)
}

func TestPostgreSQLDeadLetterRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLDeadLetterRepository(db)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, uuid.Must(uuid.NewV7()))
	assert.ErrorIs(t, err, domain.ErrDeadLetterNotFound)
}

func TestPostgreSQLDeadLetterRepository_List(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	eventRepo := NewPostgreSQLOutboxEventRepository(db)
	repo := NewPostgreSQLDeadLetterRepository(db)
	ctx := context.Background()

	event1, deadLetter1 := makeTestDeadLetter(t, eventRepo, repo, "key-1")
	_, deadLetter2 := makeTestDeadLetter(t, eventRepo, repo, "key-2")

	deadLetters, err := repo.List(ctx, nil, false, 0, 10)
	assert.NoError(t, err)
	assert.Len(t, deadLetters, 2)

	// Scope filter follows the referenced event.
	deadLetters, err = repo.List(ctx, &event1.Scope, false, 0, 10)
	assert.NoError(t, err)
	assert.Len(t, deadLetters, 1)
	assert.Equal(t, deadLetter1.ID, deadLetters[0].ID)

	// Unresolved filter drops resolved entries.
	_, err = repo.Resolve(ctx, deadLetter1.ID, "ops", nil, time.Now())
	require.NoError(t, err)

	deadLetters, err = repo.List(ctx, nil, true, 0, 10)
	assert.NoError(t, err)
	assert.Len(t, deadLetters, 1)
	assert.Equal(t, deadLetter2.ID, deadLetters[0].ID)
}

func TestPostgreSQLDeadLetterRepository_Resolve(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	eventRepo := NewPostgreSQLOutboxEventRepository(db)
	repo := NewPostgreSQLDeadLetterRepository(db)
	ctx := context.Background()

	_, deadLetter := makeTestDeadLetter(t, eventRepo, repo, "key-1")

	notes := "fixed upstream"
	resolved, err := repo.Resolve(ctx, deadLetter.ID, "ops", &notes, time.Now())
	assert.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, "ops", *resolved.ResolvedBy)
	assert.Equal(t, notes, *resolved.ResolutionNotes)
	assert.NotNil(t, resolved.ResolvedAt)
}

func TestPostgreSQLDeadLetterRepository_Resolve_Idempotent(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	eventRepo := NewPostgreSQLOutboxEventRepository(db)
	repo := NewPostgreSQLDeadLetterRepository(db)
	ctx := context.Background()

	_, deadLetter := makeTestDeadLetter(t, eventRepo, repo, "key-1")

	first, err := repo.Resolve(ctx, deadLetter.ID, "alice", nil, time.Now())
	require.NoError(t, err)

	// A second resolve keeps the original attribution.
	second, err := repo.Resolve(ctx, deadLetter.ID, "bob", nil, time.Now())
	assert.NoError(t, err)
	assert.True(t, second.Resolved)
	assert.Equal(t, "alice", *second.ResolvedBy)
	assert.Equal(t, first.ResolvedAt.Unix(), second.ResolvedAt.Unix())
}
