package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeRates(t *testing.T) {
	report := &AnalyticsReport{
		TotalNotifications: 200,
		TotalDelivered:     150,
		TotalRead:          60,
		TotalClicked:       15,
	}
	report.ComputeRates()

	assert.InDelta(t, 75.0, report.DeliveryRate, 0.001)
	assert.InDelta(t, 40.0, report.OpenRate, 0.001)
	assert.InDelta(t, 25.0, report.ClickRate, 0.001)
}

func TestComputeRatesZeroDenominators(t *testing.T) {
	report := &AnalyticsReport{}
	report.ComputeRates()

	assert.Zero(t, report.DeliveryRate)
	assert.Zero(t, report.OpenRate)
	assert.Zero(t, report.ClickRate)
}

func TestComputeRatesNoReads(t *testing.T) {
	report := &AnalyticsReport{
		TotalNotifications: 10,
		TotalDelivered:     10,
	}
	report.ComputeRates()

	assert.InDelta(t, 100.0, report.DeliveryRate, 0.001)
	assert.Zero(t, report.OpenRate)
	assert.Zero(t, report.ClickRate)
}

func TestBuildDailyTrendFillsEmptyDays(t *testing.T) {
	end := time.Date(2026, 8, 23, 14, 30, 0, 0, time.UTC)
	counts := map[string]int64{
		"2026-08-23": 4,
		"2026-08-20": 2,
	}

	trend := buildDailyTrend(counts, end)

	require.Len(t, trend, 7)
	assert.Equal(t, "2026-08-17", trend[0].Date)
	assert.Equal(t, "2026-08-23", trend[6].Date)
	assert.Equal(t, int64(2), trend[3].Count)
	assert.Equal(t, int64(4), trend[6].Count)
	for _, i := range []int{0, 1, 2, 4, 5} {
		assert.Zero(t, trend[i].Count, "day %s", trend[i].Date)
	}
}

func TestBuildDailyTrendNoData(t *testing.T) {
	end := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)

	trend := buildDailyTrend(nil, end)

	require.Len(t, trend, 7)
	for _, day := range trend {
		assert.Zero(t, day.Count)
	}
}
