package executor

import (
	"context"
	"errors"
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

type scheduleUpdate struct {
	status entities.PlanStatus
	next   time.Time
}

type mockPlanRepository struct {
	plan          *entities.SavingsPlan
	getErr        error
	statusUpdates []entities.PlanStatus
	schedule      *scheduleUpdate
}

func (m *mockPlanRepository) Create(ctx context.Context, plan *entities.SavingsPlan) error {
	return nil
}

func (m *mockPlanRepository) Get(ctx context.Context, userID, planID uuid.UUID) (*entities.SavingsPlan, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.plan, nil
}

func (m *mockPlanRepository) GetDueForExecution(ctx context.Context, status entities.PlanStatus, before time.Time, limit int) ([]*entities.SavingsPlan, error) {
	return nil, nil
}

func (m *mockPlanRepository) UpdateStatusIf(ctx context.Context, userID, planID uuid.UUID, expected, next entities.PlanStatus) error {
	return nil
}

func (m *mockPlanRepository) UpdateStatus(ctx context.Context, userID, planID uuid.UUID, status entities.PlanStatus) error {
	m.statusUpdates = append(m.statusUpdates, status)
	return nil
}

func (m *mockPlanRepository) UpdateSchedule(ctx context.Context, userID, planID uuid.UUID, status entities.PlanStatus, next time.Time) error {
	m.schedule = &scheduleUpdate{status: status, next: next}
	return nil
}

type mockTransactionRepository struct {
	inserted  []*entities.Transaction
	insertErr error
}

func (m *mockTransactionRepository) InsertIfAbsent(ctx context.Context, txn *entities.Transaction) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, txn)
	return nil
}

func (m *mockTransactionRepository) GetByPlan(ctx context.Context, userID, planID uuid.UUID, limit int) ([]*entities.Transaction, error) {
	return nil, nil
}

func (m *mockTransactionRepository) GetByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*entities.Transaction, error) {
	return nil, nil
}

type purchaseCall struct {
	userID         uuid.UUID
	amount         decimal.Decimal
	sourceOfFunds  string
	idempotencyKey uuid.UUID
}

type mockExchangeClient struct {
	calls  []purchaseCall
	result *entities.PurchaseResult
}

func (m *mockExchangeClient) Purchase(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, sourceOfFunds string, idempotencyKey uuid.UUID) *entities.PurchaseResult {
	m.calls = append(m.calls, purchaseCall{
		userID:         userID,
		amount:         amount,
		sourceOfFunds:  sourceOfFunds,
		idempotencyKey: idempotencyKey,
	})
	return m.result
}

type publishedEvent struct {
	eventType entities.EventType
	detail    interface{}
}

type mockEventPublisher struct {
	events []publishedEvent
}

func (m *mockEventPublisher) Publish(ctx context.Context, eventType entities.EventType, detail interface{}) error {
	m.events = append(m.events, publishedEvent{eventType: eventType, detail: detail})
	return nil
}

func (m *mockEventPublisher) types() []entities.EventType {
	var out []entities.EventType
	for _, e := range m.events {
		out = append(out, e.eventType)
	}
	return out
}

func weeklyPlan() *entities.SavingsPlan {
	return &entities.SavingsPlan{
		UserID:        uuid.New(),
		ID:            uuid.New(),
		Amount:        decimal.NewFromInt(100),
		Frequency:     entities.FrequencyWeekly,
		SourceOfFunds: "ACH",
		Status:        entities.PlanStatusPendingExecution,
	}
}

func taskFor(plan *entities.SavingsPlan, attempt int) *entities.ExecutionTask {
	return &entities.ExecutionTask{
		UserID:        plan.UserID,
		PlanID:        plan.ID,
		ExecutionID:   uuid.New(),
		ExecutionTime: time.Now().Unix(),
		AttemptCount:  attempt,
	}
}

func TestExecuteTask_SuccessfulPurchase(t *testing.T) {
	plan := weeklyPlan()
	task := taskFor(plan, 0)

	orderID := "ord-8842"
	result := &entities.PurchaseResult{
		Success:         true,
		ExchangeOrderID: &orderID,
		BitcoinAmount:   decimal.RequireFromString("0.00153846"),
		ExchangeRate:    decimal.NewFromInt(65000),
		Fees:            decimal.RequireFromString("0.49"),
	}

	plans := &mockPlanRepository{plan: plan}
	txns := &mockTransactionRepository{}
	exch := &mockExchangeClient{result: result}
	events := &mockEventPublisher{}
	svc := NewService(plans, txns, exch, events, Config{MaxRetries: 3}, zap.NewNop())

	before := time.Now()
	err := svc.ExecuteTask(context.Background(), task)
	require.NoError(t, err)

	require.Len(t, exch.calls, 1)
	assert.Equal(t, plan.UserID, exch.calls[0].userID)
	assert.True(t, plan.Amount.Equal(exch.calls[0].amount))
	assert.Equal(t, "ACH", exch.calls[0].sourceOfFunds)
	assert.Equal(t, task.ExecutionID, exch.calls[0].idempotencyKey,
		"execution ID is the exchange idempotency key")

	require.Len(t, txns.inserted, 1)
	txn := txns.inserted[0]
	assert.NotEqual(t, uuid.Nil, txn.ID)
	assert.Equal(t, task.ExecutionID, txn.ExecutionID)
	assert.Equal(t, entities.TransactionStatusCompleted, txn.Status)
	assert.True(t, txn.BitcoinAmount.Equal(result.BitcoinAmount))
	assert.Equal(t, &orderID, txn.ExchangeOrderID)

	// Plan goes EXECUTING then back to ACTIVE with a one-week advance.
	require.Equal(t, []entities.PlanStatus{entities.PlanStatusExecuting}, plans.statusUpdates)
	require.NotNil(t, plans.schedule)
	assert.Equal(t, entities.PlanStatusActive, plans.schedule.status)
	earliest := before.Add(7 * 24 * time.Hour).Truncate(time.Second)
	assert.False(t, plans.schedule.next.Before(earliest))
	assert.True(t, plans.schedule.next.Before(before.Add(7*24*time.Hour+time.Minute)))

	assert.Equal(t, []entities.EventType{entities.EventExecutionStarted, entities.EventExecutionCompleted}, events.types())
}

func TestExecuteTask_PurchaseFailure(t *testing.T) {
	plan := weeklyPlan()
	task := taskFor(plan, 1)

	result := &entities.PurchaseResult{
		Success:      false,
		ErrorMessage: "insufficient funds",
	}

	plans := &mockPlanRepository{plan: plan}
	txns := &mockTransactionRepository{}
	events := &mockEventPublisher{}
	svc := NewService(plans, txns, &mockExchangeClient{result: result}, events, Config{MaxRetries: 3}, zap.NewNop())

	err := svc.ExecuteTask(context.Background(), task)
	require.Error(t, err, "a failed purchase returns the task for redelivery")
	assert.ErrorIs(t, err, domainerrors.ErrPurchaseFailed)

	require.Len(t, txns.inserted, 1)
	txn := txns.inserted[0]
	assert.Equal(t, entities.TransactionStatusFailed, txn.Status)
	require.NotNil(t, txn.ErrorMessage)
	assert.Equal(t, "insufficient funds", *txn.ErrorMessage)
	assert.Equal(t, 1, txn.AttemptCount)

	assert.Equal(t, []entities.PlanStatus{entities.PlanStatusExecuting, entities.PlanStatusFailed}, plans.statusUpdates)
	assert.Nil(t, plans.schedule)

	types := events.types()
	require.Len(t, types, 2)
	assert.Equal(t, entities.EventExecutionFailed, types[1])
	failed := events.events[1].detail.(entities.ExecutionFailedEvent)
	assert.Equal(t, "insufficient funds", failed.ErrorMessage)
	assert.False(t, failed.MaxRetriesExceeded)
	require.NotNil(t, failed.TransactionID)
	assert.Equal(t, txn.ID, *failed.TransactionID)
}

func TestExecuteTask_MaxRetriesExceeded(t *testing.T) {
	plan := weeklyPlan()
	task := taskFor(plan, 3)

	plans := &mockPlanRepository{plan: plan}
	txns := &mockTransactionRepository{}
	exch := &mockExchangeClient{}
	events := &mockEventPublisher{}
	svc := NewService(plans, txns, exch, events, Config{MaxRetries: 3}, zap.NewNop())

	err := svc.ExecuteTask(context.Background(), task)
	require.NoError(t, err, "an exhausted task is acknowledged, not redelivered")

	assert.Empty(t, exch.calls, "the exchange is never called for an exhausted task")
	assert.Equal(t, []entities.PlanStatus{entities.PlanStatusFailed}, plans.statusUpdates)

	require.Len(t, txns.inserted, 1)
	txn := txns.inserted[0]
	assert.Equal(t, entities.TransactionStatusFailed, txn.Status)
	require.NotNil(t, txn.ErrorMessage)
	assert.Equal(t, "maximum retries exceeded", *txn.ErrorMessage)

	types := events.types()
	require.Len(t, types, 1)
	assert.Equal(t, entities.EventExecutionFailed, types[0])
	failed := events.events[0].detail.(entities.ExecutionFailedEvent)
	assert.True(t, failed.MaxRetriesExceeded)
}

func TestExecuteTask_MaxRetriesPlanGone(t *testing.T) {
	plan := weeklyPlan()
	task := taskFor(plan, 5)

	plans := &mockPlanRepository{getErr: domainerrors.ErrPlanNotFound}
	exch := &mockExchangeClient{}
	svc := NewService(plans, &mockTransactionRepository{}, exch, &mockEventPublisher{},
		Config{MaxRetries: 3}, zap.NewNop())

	err := svc.ExecuteTask(context.Background(), task)
	require.NoError(t, err, "a vanished plan resolves the exhausted task")
	assert.Empty(t, exch.calls)
}

func TestExecuteTask_PlanNotFound(t *testing.T) {
	plan := weeklyPlan()
	task := taskFor(plan, 0)

	plans := &mockPlanRepository{getErr: domainerrors.ErrPlanNotFound}
	svc := NewService(plans, &mockTransactionRepository{}, &mockExchangeClient{}, &mockEventPublisher{},
		Config{MaxRetries: 3}, zap.NewNop())

	err := svc.ExecuteTask(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrPlanNotFound)
}

func TestExecuteTask_DuplicateTransactionTolerated(t *testing.T) {
	plan := weeklyPlan()
	task := taskFor(plan, 0)

	result := &entities.PurchaseResult{
		Success:       true,
		BitcoinAmount: decimal.RequireFromString("0.001"),
		ExchangeRate:  decimal.NewFromInt(65000),
	}

	plans := &mockPlanRepository{plan: plan}
	txns := &mockTransactionRepository{insertErr: domainerrors.ErrAlreadyExists}
	svc := NewService(plans, txns, &mockExchangeClient{result: result}, &mockEventPublisher{},
		Config{MaxRetries: 3}, zap.NewNop())

	err := svc.ExecuteTask(context.Background(), task)
	require.NoError(t, err, "a redelivered execution completes without a second record")
	require.NotNil(t, plans.schedule)
	assert.Equal(t, entities.PlanStatusActive, plans.schedule.status)
}

func TestExecuteTask_StoreFailureRetries(t *testing.T) {
	plan := weeklyPlan()
	task := taskFor(plan, 0)

	result := &entities.PurchaseResult{Success: true, BitcoinAmount: decimal.RequireFromString("0.001")}

	plans := &mockPlanRepository{plan: plan}
	txns := &mockTransactionRepository{insertErr: errors.New("store unavailable")}
	svc := NewService(plans, txns, &mockExchangeClient{result: result}, &mockEventPublisher{},
		Config{MaxRetries: 3}, zap.NewNop())

	err := svc.ExecuteTask(context.Background(), task)
	require.Error(t, err, "a store failure returns the task for redelivery")
	assert.Nil(t, plans.schedule)
}
