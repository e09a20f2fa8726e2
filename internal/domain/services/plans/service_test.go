package plans

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satstack-service/satstack_service/internal/domain/entities"
	domainerrors "github.com/satstack-service/satstack_service/internal/domain/errors"
)

type mockPlanRepository struct {
	created *entities.SavingsPlan
}

func (m *mockPlanRepository) Create(ctx context.Context, plan *entities.SavingsPlan) error {
	m.created = plan
	return nil
}

func (m *mockPlanRepository) Get(ctx context.Context, userID, planID uuid.UUID) (*entities.SavingsPlan, error) {
	return nil, domainerrors.ErrPlanNotFound
}

func (m *mockPlanRepository) GetDueForExecution(ctx context.Context, status entities.PlanStatus, before time.Time, limit int) ([]*entities.SavingsPlan, error) {
	return nil, nil
}

func (m *mockPlanRepository) UpdateStatusIf(ctx context.Context, userID, planID uuid.UUID, expected, next entities.PlanStatus) error {
	return nil
}

func (m *mockPlanRepository) UpdateStatus(ctx context.Context, userID, planID uuid.UUID, status entities.PlanStatus) error {
	return nil
}

func (m *mockPlanRepository) UpdateSchedule(ctx context.Context, userID, planID uuid.UUID, status entities.PlanStatus, next time.Time) error {
	return nil
}

type mockTransactionRepository struct {
	byPlanLimit int
	byUserLimit int
}

func (m *mockTransactionRepository) InsertIfAbsent(ctx context.Context, txn *entities.Transaction) error {
	return nil
}

func (m *mockTransactionRepository) GetByPlan(ctx context.Context, userID, planID uuid.UUID, limit int) ([]*entities.Transaction, error) {
	m.byPlanLimit = limit
	return nil, nil
}

func (m *mockTransactionRepository) GetByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*entities.Transaction, error) {
	m.byUserLimit = limit
	return nil, nil
}

func validRequest() CreatePlanRequest {
	return CreatePlanRequest{
		UserID:        uuid.New(),
		Amount:        decimal.NewFromInt(50),
		Frequency:     entities.FrequencyMonthly,
		SourceOfFunds: "ACH",
		StartDate:     time.Date(2026, time.January, 31, 9, 0, 0, 0, time.UTC),
	}
}

func TestCreate_SchedulesFirstExecutionOneIntervalOut(t *testing.T) {
	repo := &mockPlanRepository{}
	svc := NewService(repo, &mockTransactionRepository{}, zap.NewNop())

	plan, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotNil(t, repo.created)

	assert.Equal(t, entities.PlanStatusActive, plan.Status)
	assert.NotEqual(t, uuid.Nil, plan.ID)
	// Jan 31 monthly clamps to the last day of February.
	assert.Equal(t, time.Date(2026, time.February, 28, 9, 0, 0, 0, time.UTC), plan.NextExecutionAt)
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(&mockPlanRepository{}, &mockTransactionRepository{}, zap.NewNop())

	tests := []struct {
		name   string
		mutate func(*CreatePlanRequest)
	}{
		{"missing user", func(r *CreatePlanRequest) { r.UserID = uuid.Nil }},
		{"zero amount", func(r *CreatePlanRequest) { r.Amount = decimal.Zero }},
		{"negative amount", func(r *CreatePlanRequest) { r.Amount = decimal.NewFromInt(-5) }},
		{"bad frequency", func(r *CreatePlanRequest) { r.Frequency = "HOURLY" }},
		{"missing source of funds", func(r *CreatePlanRequest) { r.SourceOfFunds = "" }},
		{"zero start date", func(r *CreatePlanRequest) { r.StartDate = time.Time{} }},
		{"end before start", func(r *CreatePlanRequest) {
			end := r.StartDate.Add(-time.Hour)
			r.EndDate = &end
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := svc.Create(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidPlan)
		})
	}
}

func TestHistory_DefaultsLimit(t *testing.T) {
	txns := &mockTransactionRepository{}
	svc := NewService(&mockPlanRepository{}, txns, zap.NewNop())

	_, err := svc.PlanHistory(context.Background(), uuid.New(), uuid.New(), 0)
	require.NoError(t, err)
	assert.Equal(t, defaultHistoryLimit, txns.byPlanLimit)

	_, err = svc.UserHistory(context.Background(), uuid.New(), 10)
	require.NoError(t, err)
	assert.Equal(t, 10, txns.byUserLimit)
}
