package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ederbit/fanout/internal/outbox/domain"

	apperrors "github.com/ederbit/fanout/internal/errors"
)

// MockTxManager is a mock implementation of database.TxManager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Get(0) != nil {
		return args.Error(0)
	}
	// Execute the function to test the logic inside
	return fn(ctx)
}

// MockOutboxEventRepository is a mock implementation of OutboxEventRepository
type MockOutboxEventRepository struct {
	mock.Mock
}

func (m *MockOutboxEventRepository) Create(ctx context.Context, event *domain.OutboxEvent) (bool, error) {
	args := m.Called(ctx, event)
	return args.Bool(0), args.Error(1)
}

func (m *MockOutboxEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutboxEvent), args.Error(1)
}

func (m *MockOutboxEventRepository) GetByIdempotencyKey(
	ctx context.Context,
	key string,
) (*domain.OutboxEvent, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutboxEvent), args.Error(1)
}

func (m *MockOutboxEventRepository) ClaimBatch(
	ctx context.Context,
	limit int,
	now time.Time,
) ([]*domain.OutboxEvent, error) {
	args := m.Called(ctx, limit, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OutboxEvent), args.Error(1)
}

func (m *MockOutboxEventRepository) Update(ctx context.Context, event *domain.OutboxEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockOutboxEventRepository) MarkCompleted(ctx context.Context, id uuid.UUID, now time.Time) error {
	args := m.Called(ctx, id, now)
	return args.Error(0)
}

func (m *MockOutboxEventRepository) CountByStatus(
	ctx context.Context,
	scope *domain.TargetScope,
) (*domain.StatusCounts, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatusCounts), args.Error(1)
}

func (m *MockOutboxEventRepository) DeleteCompletedBefore(
	ctx context.Context,
	cutoff time.Time,
) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockSyncStatusRepository is a mock implementation of SyncStatusRepository
type MockSyncStatusRepository struct {
	mock.Mock
}

func (m *MockSyncStatusRepository) Adjust(ctx context.Context, scope domain.TargetScope, delta int64) error {
	args := m.Called(ctx, scope, delta)
	return args.Error(0)
}

func (m *MockSyncStatusRepository) Get(
	ctx context.Context,
	scope domain.TargetScope,
) (*domain.SyncStatus, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SyncStatus), args.Error(1)
}

func (m *MockSyncStatusRepository) List(
	ctx context.Context,
	projectID uuid.UUID,
) ([]*domain.SyncStatus, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SyncStatus), args.Error(1)
}

// MockDeadLetterRepository is a mock implementation of DeadLetterRepository
type MockDeadLetterRepository struct {
	mock.Mock
}

func (m *MockDeadLetterRepository) Create(ctx context.Context, deadLetter *domain.DeadLetterEvent) error {
	args := m.Called(ctx, deadLetter)
	return args.Error(0)
}

func (m *MockDeadLetterRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeadLetterEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeadLetterEvent), args.Error(1)
}

func (m *MockDeadLetterRepository) List(
	ctx context.Context,
	scope *domain.TargetScope,
	unresolvedOnly bool,
	offset, limit int,
) ([]*domain.DeadLetterEvent, error) {
	args := m.Called(ctx, scope, unresolvedOnly, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DeadLetterEvent), args.Error(1)
}

func (m *MockDeadLetterRepository) Resolve(
	ctx context.Context,
	id uuid.UUID,
	resolvedBy string,
	notes *string,
	now time.Time,
) (*domain.DeadLetterEvent, error) {
	args := m.Called(ctx, id, resolvedBy, notes, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeadLetterEvent), args.Error(1)
}

func testConfig() Config {
	return Config{
		BatchSize:     10,
		MaxAttempts:   3,
		RetryInterval: time.Minute,
	}
}

func testInput() *domain.AddEventInput {
	return &domain.AddEventInput{
		Scope: domain.TargetScope{
			ProjectID: uuid.Must(uuid.NewV7()),
			GraphName: "main",
		},
		EventType:  domain.EventTypeEntityCreated,
		Operation:  domain.OperationCreate,
		EntityType: "person",
		EntityID:   "person-1",
		Payload:    []byte(`{"name": "Ada"}`),
	}
}

func TestOutboxUseCase_AddEvent(t *testing.T) {
	txManager := &MockTxManager{}
	eventRepo := &MockOutboxEventRepository{}
	syncStatusRepo := &MockSyncStatusRepository{}
	deadLetterRepo := &MockDeadLetterRepository{}
	uc := NewOutboxUseCase(testConfig(), txManager, eventRepo, syncStatusRepo, deadLetterRepo)
	ctx := context.Background()

	input := testInput()

	txManager.On("WithTx", ctx, mock.Anything).Return(nil)
	eventRepo.On("Create", ctx, mock.Anything).Return(true, nil)
	syncStatusRepo.On("Adjust", ctx, input.Scope, int64(1)).Return(nil)

	output, err := uc.AddEvent(ctx, input)
	assert.NoError(t, err)
	assert.False(t, output.Duplicate)
	assert.NotEqual(t, uuid.Nil, output.ID)

	// The stored event carries a derived idempotency key.
	created := eventRepo.Calls[0].Arguments.Get(1).(*domain.OutboxEvent)
	assert.Contains(t, created.IdempotencyKey, "person:person-1:")
	assert.Equal(t, domain.OutboxEventStatusPending, created.Status)

	eventRepo.AssertExpectations(t)
	syncStatusRepo.AssertExpectations(t)
}

func TestOutboxUseCase_AddEvent_Duplicate(t *testing.T) {
	txManager := &MockTxManager{}
	eventRepo := &MockOutboxEventRepository{}
	syncStatusRepo := &MockSyncStatusRepository{}
	deadLetterRepo := &MockDeadLetterRepository{}
	uc := NewOutboxUseCase(testConfig(), txManager, eventRepo, syncStatusRepo, deadLetterRepo)
	ctx := context.Background()

	input := testInput()
	input.IdempotencyKey = "explicit-key"
	existingID := uuid.Must(uuid.NewV7())

	txManager.On("WithTx", ctx, mock.Anything).Return(nil)
	eventRepo.On("Create", ctx, mock.Anything).Return(false, nil)
	eventRepo.On("GetByIdempotencyKey", ctx, "explicit-key").
		Return(&domain.OutboxEvent{ID: existingID}, nil)

	output, err := uc.AddEvent(ctx, input)
	assert.NoError(t, err)
	assert.True(t, output.Duplicate)
	assert.Equal(t, existingID, output.ID)

	// The pending counter is untouched for duplicates.
	syncStatusRepo.AssertNotCalled(t, "Adjust", mock.Anything, mock.Anything, mock.Anything)
}

func TestOutboxUseCase_AddEvent_InvalidInput(t *testing.T) {
	uc := NewOutboxUseCase(testConfig(), &MockTxManager{}, &MockOutboxEventRepository{}, &MockSyncStatusRepository{}, &MockDeadLetterRepository{})
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*domain.AddEventInput)
	}{
		{"unknown event type", func(i *domain.AddEventInput) { i.EventType = "bogus" }},
		{"unknown operation", func(i *domain.AddEventInput) { i.Operation = "EXPLODE" }},
		{"missing project id", func(i *domain.AddEventInput) { i.Scope.ProjectID = uuid.Nil }},
		{"missing graph name", func(i *domain.AddEventInput) { i.Scope.GraphName = "" }},
		{"missing entity id", func(i *domain.AddEventInput) { i.EntityID = "" }},
		{"missing payload", func(i *domain.AddEventInput) { i.Payload = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := testInput()
			tt.mutate(input)

			_, err := uc.AddEvent(ctx, input)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestOutboxUseCase_AddBatch_DisambiguatesDerivedKeys(t *testing.T) {
	txManager := &MockTxManager{}
	eventRepo := &MockOutboxEventRepository{}
	syncStatusRepo := &MockSyncStatusRepository{}
	deadLetterRepo := &MockDeadLetterRepository{}
	uc := NewOutboxUseCase(testConfig(), txManager, eventRepo, syncStatusRepo, deadLetterRepo)
	ctx := context.Background()

	// Two changes to the same entity submitted together must not collapse
	// into one derived key.
	inputs := []*domain.AddEventInput{testInput(), testInput()}
	inputs[1].EventType = domain.EventTypeEntityUpdated
	inputs[1].Operation = domain.OperationUpdate
	inputs[1].Scope = inputs[0].Scope

	txManager.On("WithTx", ctx, mock.Anything).Return(nil)
	eventRepo.On("Create", ctx, mock.Anything).Return(true, nil)
	syncStatusRepo.On("Adjust", ctx, inputs[0].Scope, int64(1)).Return(nil)

	outputs, err := uc.AddBatch(ctx, inputs)
	require.NoError(t, err)
	require.Len(t, outputs, 2)

	first := eventRepo.Calls[0].Arguments.Get(1).(*domain.OutboxEvent)
	second := eventRepo.Calls[1].Arguments.Get(1).(*domain.OutboxEvent)
	assert.NotEqual(t, first.IdempotencyKey, second.IdempotencyKey)
}

func TestOutboxUseCase_ClaimBatch(t *testing.T) {
	txManager := &MockTxManager{}
	eventRepo := &MockOutboxEventRepository{}
	uc := NewOutboxUseCase(testConfig(), txManager, eventRepo, &MockSyncStatusRepository{}, &MockDeadLetterRepository{})
	ctx := context.Background()

	claimed := []*domain.OutboxEvent{{ID: uuid.Must(uuid.NewV7())}}
	txManager.On("WithTx", ctx, mock.Anything).Return(nil)
	eventRepo.On("ClaimBatch", mock.Anything, 10, mock.Anything).Return(claimed, nil)

	events, err := uc.ClaimBatch(ctx)
	assert.NoError(t, err)
	assert.Equal(t, claimed, events)
}

func TestOutboxUseCase_MarkCompleted(t *testing.T) {
	txManager := &MockTxManager{}
	eventRepo := &MockOutboxEventRepository{}
	syncStatusRepo := &MockSyncStatusRepository{}
	uc := NewOutboxUseCase(testConfig(), txManager, eventRepo, syncStatusRepo, &MockDeadLetterRepository{})
	ctx := context.Background()

	id := uuid.Must(uuid.NewV7())
	eventRepo.On("MarkCompleted", ctx, id, mock.Anything).Return(nil)

	err := uc.MarkCompleted(ctx, id)
	assert.NoError(t, err)

	// Completion never adjusts the pending counter; that is the
	// consumer's bookkeeping.
	syncStatusRepo.AssertNotCalled(t, "Adjust", mock.Anything, mock.Anything, mock.Anything)
	eventRepo.AssertExpectations(t)
}

func TestOutboxUseCase_MarkFailed_SchedulesLinearRetry(t *testing.T) {
	txManager := &MockTxManager{}
	eventRepo := &MockOutboxEventRepository{}
	uc := NewOutboxUseCase(testConfig(), txManager, eventRepo, &MockSyncStatusRepository{}, &MockDeadLetterRepository{})
	ctx := context.Background()

	event := &domain.OutboxEvent{
		ID:       uuid.Must(uuid.NewV7()),
		Status:   domain.OutboxEventStatusProcessing,
		Attempts: 0,
	}

	eventRepo.On("Update", ctx, event).Return(nil)

	before := time.Now()
	err := uc.MarkFailed(ctx, event, errors.New("downstream unavailable"))
	assert.NoError(t, err)

	assert.Equal(t, domain.OutboxEventStatusFailed, event.Status)
	assert.Equal(t, 1, event.Attempts)
	assert.Equal(t, "downstream unavailable", *event.LastError)
	require.NotNil(t, event.NextRetryAt)

	// First retry is one interval out; the delay grows with each attempt.
	expected := before.Add(time.Minute)
	assert.WithinDuration(t, expected, *event.NextRetryAt, 2*time.Second)
}

func TestOutboxUseCase_MarkFailed_SecondAttemptBacksOffFurther(t *testing.T) {
	txManager := &MockTxManager{}
	eventRepo := &MockOutboxEventRepository{}
	uc := NewOutboxUseCase(testConfig(), txManager, eventRepo, &MockSyncStatusRepository{}, &MockDeadLetterRepository{})
	ctx := context.Background()

	event := &domain.OutboxEvent{
		ID:       uuid.Must(uuid.NewV7()),
		Status:   domain.OutboxEventStatusProcessing,
		Attempts: 1,
	}

	eventRepo.On("Update", ctx, event).Return(nil)

	before := time.Now()
	err := uc.MarkFailed(ctx, event, errors.New("still down"))
	assert.NoError(t, err)

	assert.Equal(t, 2, event.Attempts)
	require.NotNil(t, event.NextRetryAt)
	assert.WithinDuration(t, before.Add(2*time.Minute), *event.NextRetryAt, 2*time.Second)
}

func TestOutboxUseCase_MarkFailed_DeadLettersOnFinalAttempt(t *testing.T) {
	txManager := &MockTxManager{}
	eventRepo := &MockOutboxEventRepository{}
	syncStatusRepo := &MockSyncStatusRepository{}
	deadLetterRepo := &MockDeadLetterRepository{}
	uc := NewOutboxUseCase(testConfig(), txManager, eventRepo, syncStatusRepo, deadLetterRepo)
	ctx := context.Background()

	scope := domain.TargetScope{ProjectID: uuid.Must(uuid.NewV7()), GraphName: "main"}
	event := &domain.OutboxEvent{
		ID:       uuid.Must(uuid.NewV7()),
		Scope:    scope,
		Status:   domain.OutboxEventStatusProcessing,
		Attempts: 2,
	}

	txManager.On("WithTx", ctx, mock.Anything).Return(nil)
	eventRepo.On("Update", ctx, event).Return(nil)
	deadLetterRepo.On("Create", ctx, mock.Anything).Return(nil)
	syncStatusRepo.On("Adjust", ctx, scope, int64(-1)).Return(nil)

	err := uc.MarkFailed(ctx, event, errors.New("gave up"))
	assert.NoError(t, err)

	// Third failure exhausts the budget: terminal status, no retry schedule.
	assert.Equal(t, domain.OutboxEventStatusDeadLetter, event.Status)
	assert.Equal(t, 3, event.Attempts)
	assert.Nil(t, event.NextRetryAt)

	deadLetter := deadLetterRepo.Calls[0].Arguments.Get(1).(*domain.DeadLetterEvent)
	assert.Equal(t, event.ID, deadLetter.OutboxEventID)
	assert.False(t, deadLetter.Resolved)

	deadLetterRepo.AssertExpectations(t)
	syncStatusRepo.AssertExpectations(t)
}

func TestOutboxUseCase_Cleanup(t *testing.T) {
	txManager := &MockTxManager{}
	eventRepo := &MockOutboxEventRepository{}
	uc := NewOutboxUseCase(testConfig(), txManager, eventRepo, &MockSyncStatusRepository{}, &MockDeadLetterRepository{})
	ctx := context.Background()

	eventRepo.On("DeleteCompletedBefore", ctx, mock.Anything).Return(int64(5), nil)

	deleted, err := uc.Cleanup(ctx, 30*24*time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), deleted)

	cutoff := eventRepo.Calls[0].Arguments.Get(1).(time.Time)
	assert.WithinDuration(t, time.Now().Add(-30*24*time.Hour), cutoff, 2*time.Second)
}
