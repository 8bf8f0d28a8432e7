package types

import (
	"math"
	"sort"
	"time"
)

// UserStats summarizes a user's optimization usage.
type UserStats struct {
	TotalOptimizations     int        `json:"total_optimizations"`
	OptimizationsToday     int        `json:"optimizations_today"`
	MostRecentOptimization *time.Time `json:"most_recent_optimization,omitempty"`
	FavoriteLLMProvider    string     `json:"favorite_llm_provider,omitempty"`
}

// HistoryEntry is one past optimization in the dashboard listing.
type HistoryEntry struct {
	OptimizationID string    `json:"optimization_id"`
	CompanyName    string    `json:"company_name"`
	CreatedAt      time.Time `json:"created_at"`
	LLMProvider    string    `json:"llm_provider"`
	Status         JobState  `json:"status"`
	LatencyMS      int64     `json:"latency_ms,omitempty"`
}

// Bucket counts submissions in one time window.
type Bucket struct {
	Start  time.Time `json:"start"`
	Count  int       `json:"count"`
	Failed int       `json:"failed"`
}

// Latency holds job duration percentiles in milliseconds.
type Latency struct {
	P50 int64 `json:"p50_ms"`
	P90 int64 `json:"p90_ms"`
	P99 int64 `json:"p99_ms"`
}

// Dashboard is the usage statistics payload.
type Dashboard struct {
	UserStats           UserStats      `json:"user_stats"`
	RecentOptimizations []HistoryEntry `json:"recent_optimizations"`
	Buckets             []Bucket       `json:"buckets,omitempty"`
	Latency             *Latency       `json:"latency,omitempty"`
}

// Series is chart-ready data for the browser charting library.
type Series struct {
	Labels []string `json:"labels"`
	Total  []int    `json:"total"`
	Failed []int    `json:"failed"`
}

// ChartSeries converts buckets into parallel arrays, oldest first.
func (d *Dashboard) ChartSeries() Series {
	buckets := append([]Bucket(nil), d.Buckets...)
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Start.Before(buckets[j].Start) })

	s := Series{
		Labels: make([]string, 0, len(buckets)),
		Total:  make([]int, 0, len(buckets)),
		Failed: make([]int, 0, len(buckets)),
	}
	for _, b := range buckets {
		s.Labels = append(s.Labels, b.Start.Format("Jan 2"))
		s.Total = append(s.Total, b.Count)
		s.Failed = append(s.Failed, b.Failed)
	}
	return s
}

// SummarizeJobs derives a dashboard from locally recorded jobs. It backs the
// dashboard when the backend statistics endpoint is unavailable.
func SummarizeJobs(jobs []JobRecord, now time.Time, days int) Dashboard {
	var d Dashboard
	if days < 1 {
		days = 7
	}

	today := now.Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -(days - 1))
	buckets := make([]Bucket, days)
	for i := range buckets {
		buckets[i].Start = start.AddDate(0, 0, i)
	}

	providers := map[string]int{}
	var latencies []int64
	for _, j := range jobs {
		d.UserStats.TotalOptimizations++
		if !j.SubmittedAt.Before(today) {
			d.UserStats.OptimizationsToday++
		}
		if d.UserStats.MostRecentOptimization == nil || j.SubmittedAt.After(*d.UserStats.MostRecentOptimization) {
			at := j.SubmittedAt
			d.UserStats.MostRecentOptimization = &at
		}
		providers[string(j.Provider)]++

		entry := HistoryEntry{
			OptimizationID: j.ID,
			CompanyName:    j.CompanyName,
			CreatedAt:      j.SubmittedAt,
			LLMProvider:    string(j.Provider),
			Status:         j.State,
		}
		if j.FinishedAt != nil {
			entry.LatencyMS = j.FinishedAt.Sub(j.SubmittedAt).Milliseconds()
			if j.State == JobCompleted {
				latencies = append(latencies, entry.LatencyMS)
			}
		}
		d.RecentOptimizations = append(d.RecentOptimizations, entry)

		if idx := int(j.SubmittedAt.Sub(start) / (24 * time.Hour)); !j.SubmittedAt.Before(start) && idx < days {
			buckets[idx].Count++
			if j.State == JobFailed {
				buckets[idx].Failed++
			}
		}
	}

	best := 0
	for p, n := range providers {
		if n > best || (n == best && p < d.UserStats.FavoriteLLMProvider) {
			best = n
			d.UserStats.FavoriteLLMProvider = p
		}
	}

	sort.Slice(d.RecentOptimizations, func(i, j int) bool {
		return d.RecentOptimizations[i].CreatedAt.After(d.RecentOptimizations[j].CreatedAt)
	})
	d.Buckets = buckets
	if len(latencies) > 0 {
		d.Latency = percentiles(latencies)
	}
	return d
}

func percentiles(values []int64) *Latency {
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	at := func(p float64) int64 {
		idx := int(math.Ceil(p*float64(len(values)))) - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= len(values) {
			idx = len(values) - 1
		}
		return values[idx]
	}
	return &Latency{P50: at(0.50), P90: at(0.90), P99: at(0.99)}
}
