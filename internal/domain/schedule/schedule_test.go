package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satstack-service/satstack_service/internal/domain/entities"
	domainerrors "github.com/satstack-service/satstack_service/internal/domain/errors"
	"github.com/satstack-service/satstack_service/internal/domain/schedule"
)

func TestNextExecution_Daily(t *testing.T) {
	from := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)

	next, err := schedule.NextExecution(entities.FrequencyDaily, from)
	require.NoError(t, err)
	assert.Equal(t, from.Add(24*time.Hour), next)
	assert.Equal(t, from.Unix()+86400, next.Unix())
}

func TestNextExecution_Weekly(t *testing.T) {
	from := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)

	next, err := schedule.NextExecution(entities.FrequencyWeekly, from)
	require.NoError(t, err)
	assert.Equal(t, from.Unix()+604800, next.Unix())
}

func TestNextExecution_Biweekly(t *testing.T) {
	from := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)

	next, err := schedule.NextExecution(entities.FrequencyBiweekly, from)
	require.NoError(t, err)
	assert.Equal(t, from.Unix()+14*86400, next.Unix())
}

func TestNextExecution_MonthlyClampsToMonthEnd(t *testing.T) {
	// Leap year: Jan 31 advances to Feb 29, not Mar 2.
	from := time.Date(2024, 1, 31, 10, 30, 0, 0, time.UTC)

	next, err := schedule.NextExecution(entities.FrequencyMonthly, from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 10, 30, 0, 0, time.UTC), next)
}

func TestNextExecution_MonthlyNonLeapYear(t *testing.T) {
	from := time.Date(2023, 1, 31, 10, 30, 0, 0, time.UTC)

	next, err := schedule.NextExecution(entities.FrequencyMonthly, from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 2, 28, 10, 30, 0, 0, time.UTC), next)
}

func TestNextExecution_MonthlyMidMonth(t *testing.T) {
	from := time.Date(2024, 4, 15, 9, 0, 0, 0, time.UTC)

	next, err := schedule.NextExecution(entities.FrequencyMonthly, from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC), next)
}

func TestNextExecution_MonthlyYearRollover(t *testing.T) {
	from := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	next, err := schedule.NextExecution(entities.FrequencyMonthly, from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), next)
}

func TestNextExecution_TruncatesToWholeSeconds(t *testing.T) {
	from := time.Date(2024, 3, 15, 14, 0, 0, 123456789, time.UTC)

	next, err := schedule.NextExecution(entities.FrequencyDaily, from)
	require.NoError(t, err)
	assert.Zero(t, next.Nanosecond())
}

func TestNextExecution_UnsupportedFrequency(t *testing.T) {
	_, err := schedule.NextExecution(entities.Frequency("QUARTERLY"), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrUnsupportedFrequency)
}
