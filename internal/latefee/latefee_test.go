package latefee

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func TestCompute(t *testing.T) {
	end := date(2024, 1, 10, 0)

	tests := []struct {
		name     string
		actual   time.Time
		wantDays int
		wantFee  int64
	}{
		{"three days late", date(2024, 1, 13, 0), 3, 300000},
		{"same day evening", date(2024, 1, 10, 23), 0, 0},
		{"early return clamps", date(2024, 1, 8, 9), 0, 0},
		{"late morning next day", date(2024, 1, 11, 1), 1, 100000},
		{"across month", date(2024, 2, 1, 12), 22, 2200000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(end, tt.actual, 100000, time.UTC)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDays, got.LateDays)
			assert.Equal(t, tt.wantFee, got.Fee)
		})
	}
}

func TestCompute_NonPositiveRate(t *testing.T) {
	_, err := Compute(date(2024, 1, 10, 0), date(2024, 1, 12, 0), 0, time.UTC)
	assert.ErrorIs(t, err, ErrNonPositiveRate)

	_, err = Compute(date(2024, 1, 10, 0), date(2024, 1, 12, 0), -5, time.UTC)
	assert.ErrorIs(t, err, ErrNonPositiveRate)
}

func TestCompute_Monotonic(t *testing.T) {
	end := date(2024, 3, 1, 0)
	var prev int64 = -1
	for gap := 0; gap < 60; gap++ {
		got, err := Compute(end, end.AddDate(0, 0, gap).Add(5*time.Hour), 75000, time.UTC)
		require.NoError(t, err)
		if gap == 0 {
			assert.Zero(t, got.Fee)
		} else {
			assert.Greater(t, got.Fee, prev)
		}
		prev = got.Fee
	}
}

func TestCompute_TimeZone(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	end := date(2024, 1, 10, 0)

	// 18:30 UTC on the 10th is already the 11th in Jakarta.
	actual := time.Date(2024, 1, 10, 18, 30, 0, 0, time.UTC)

	got, err := Compute(end, actual, 1000, jakarta)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LateDays)

	got, err = Compute(end, actual, 1000, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 0, got.LateDays, "in UTC the return falls on the due date")
}

func TestSameDayAndMidnight(t *testing.T) {
	assert.True(t, SameDay(date(2024, 1, 10, 1), date(2024, 1, 10, 22), time.UTC))
	assert.False(t, SameDay(date(2024, 1, 10, 1), date(2024, 1, 11, 0), time.UTC))
	assert.Equal(t, date(2024, 1, 10, 0), Midnight(date(2024, 1, 10, 17), time.UTC))
	assert.Equal(t, -2, DaysBetween(date(2024, 1, 10, 0), date(2024, 1, 8, 0), nil))
}
