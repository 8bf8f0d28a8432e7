package observability

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestProgressBar(t *testing.T) {
	assert.Contains(t, ProgressBar(0), "  0%")
	assert.Contains(t, ProgressBar(50), " 50%")
	assert.Contains(t, ProgressBar(250), "100%")
	assert.Contains(t, ProgressBar(-5), "  0%")
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintStatus(&types.JobStatus{Status: types.JobProcessing, Progress: 40, Message: "Tailoring bullets"})
	p.PrintStatus(&types.JobStatus{Status: types.JobFailed})
	p.PrintStatus(nil)

	output := buf.String()
	assert.Contains(t, output, "processing")
	assert.Contains(t, output, "Tailoring bullets")
	assert.Contains(t, output, types.GenericFailureMessage)
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintResult(&types.JobResult{
		OptimizationID: "job-1",
		CompanyName:    "Acme Corp",
		Status:         types.JobCompleted,
		CoverLetter:    "Dear team",
		ProcessingStats: &types.ProcessingStats{
			ProcessingTimeSeconds: 42.5, InputChars: 1200, OutputChars: 1500, Provider: "openai", Model: "gpt-4o", Cached: true,
		},
	})
	output := buf.String()

	assert.Contains(t, output, "OPTIMIZATION RESULT")
	assert.Contains(t, output, "Acme Corp")
	assert.Contains(t, output, "not available")
	assert.Contains(t, output, "cover letter")
	assert.Contains(t, output, "42.5s (cached)")
}

func TestPrintResult_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintResult(nil)
	assert.Empty(t, buf.String())
}

func TestPrintProvider_MasksKey(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintProvider(&types.ProviderConfig{Provider: types.ProviderAnthropic, Model: "claude", APIKey: "sk-ant-secret-9876"})
	output := buf.String()
	assert.NotContains(t, output, "secret")
	assert.Contains(t, output, "9876")

	buf.Reset()
	p.PrintProvider(nil)
	assert.Contains(t, buf.String(), "Not connected")
}

func TestPrintTemplates(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintTemplates([]types.TemplateSummary{
		{ID: uuid.New(), Name: "main.tex", SizeBytes: 2048, Selected: true},
		{ID: uuid.New(), Name: "alt.tex", SizeBytes: 100},
	})
	output := buf.String()
	assert.Contains(t, output, "* ")
	assert.Contains(t, output, "main.tex")
	assert.Contains(t, output, "2.0 KB")
	assert.Contains(t, output, "100 B")
}

func TestPrintDashboard(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	NewPrinter(&buf).PrintDashboard(&types.Dashboard{
		UserStats: types.UserStats{TotalOptimizations: 12, OptimizationsToday: 2, FavoriteLLMProvider: "anthropic", MostRecentOptimization: &now},
		Latency:   &types.Latency{P50: 800, P90: 2500, P99: 9000},
		RecentOptimizations: []types.HistoryEntry{
			{CompanyName: "Acme", CreatedAt: now, Status: types.JobCompleted},
		},
	})
	output := buf.String()
	assert.Contains(t, output, "Total:     12")
	assert.Contains(t, output, "anthropic")
	assert.Contains(t, output, "p50 800ms")
	assert.Contains(t, output, "p90 2.5s")
	assert.Contains(t, output, "Acme")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "1.0 MB", FormatBytes(1<<20))
}

func TestPrintATS(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintATS(&types.ATSAnalysis{
		Score:           54,
		Summary:         "Readable but thin on keywords.",
		FileType:        "pdf",
		KeywordAnalysis: &types.KeywordAnalysis{MissingKeywords: []string{"Kubernetes", "gRPC"}, MatchPercentage: 40},
		Suggestions:     []string{"Add a skills section"},
		LockedFeatures:  []string{"Full keyword analysis"},
	})
	output := buf.String()
	assert.Contains(t, output, "54/100 (fair)")
	assert.Contains(t, output, "40% matched")
	assert.Contains(t, output, "Kubernetes, gRPC")
	assert.Contains(t, output, "Add a skills section")
	assert.Contains(t, output, "Sign in for the full report")
}
