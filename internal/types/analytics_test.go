package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeJobs(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	finished := func(d time.Duration, from time.Time) *time.Time {
		at := from.Add(d)
		return &at
	}

	day := 24 * time.Hour
	jobs := []JobRecord{
		{ID: "a", CompanyName: "Acme", Provider: ProviderOpenAI, State: JobCompleted, SubmittedAt: now.Add(-time.Hour)},
		{ID: "b", CompanyName: "Globex", Provider: ProviderOpenAI, State: JobFailed, SubmittedAt: now.Add(-day)},
		{ID: "c", CompanyName: "Initech", Provider: ProviderAnthropic, State: JobCompleted, SubmittedAt: now.Add(-2 * day)},
		{ID: "old", CompanyName: "Umbrella", Provider: ProviderAnthropic, State: JobCompleted, SubmittedAt: now.Add(-30 * day)},
	}
	jobs[0].FinishedAt = finished(40*time.Second, jobs[0].SubmittedAt)
	jobs[2].FinishedAt = finished(80*time.Second, jobs[2].SubmittedAt)

	d := SummarizeJobs(jobs, now, 7)

	assert.Equal(t, 4, d.UserStats.TotalOptimizations)
	assert.Equal(t, 1, d.UserStats.OptimizationsToday)
	require.NotNil(t, d.UserStats.MostRecentOptimization)
	assert.Equal(t, jobs[0].SubmittedAt, *d.UserStats.MostRecentOptimization)
	assert.Equal(t, "anthropic", d.UserStats.FavoriteLLMProvider, "ties break alphabetically")

	require.Len(t, d.RecentOptimizations, 4)
	assert.Equal(t, "a", d.RecentOptimizations[0].OptimizationID)
	assert.Equal(t, int64(40000), d.RecentOptimizations[0].LatencyMS)

	require.Len(t, d.Buckets, 7)
	assert.Equal(t, 1, d.Buckets[6].Count)
	assert.Equal(t, 1, d.Buckets[5].Count)
	assert.Equal(t, 1, d.Buckets[5].Failed)
	assert.Equal(t, 1, d.Buckets[4].Count)

	require.NotNil(t, d.Latency)
	assert.Equal(t, int64(40000), d.Latency.P50)
	assert.Equal(t, int64(80000), d.Latency.P99)
}

func TestSummarizeJobs_Empty(t *testing.T) {
	d := SummarizeJobs(nil, time.Now(), 0)
	assert.Zero(t, d.UserStats.TotalOptimizations)
	assert.Len(t, d.Buckets, 7)
	assert.Nil(t, d.Latency)
}

func TestPercentiles(t *testing.T) {
	values := []int64{1000, 200, 300, 400, 500, 600, 700, 800, 900, 100}
	l := percentiles(values)
	assert.Equal(t, int64(500), l.P50)
	assert.Equal(t, int64(900), l.P90)
	assert.Equal(t, int64(1000), l.P99)
}

func TestDashboard_ChartSeries(t *testing.T) {
	d := Dashboard{Buckets: []Bucket{
		{Start: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Count: 4, Failed: 1},
		{Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Count: 2},
	}}

	s := d.ChartSeries()
	assert.Equal(t, []string{"Mar 1", "Mar 2"}, s.Labels)
	assert.Equal(t, []int{2, 4}, s.Total)
	assert.Equal(t, []int{0, 1}, s.Failed)
}
