// Package observability provides logging, metrics, tracing and the formatted
// terminal output used by the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/resume-optimizer/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// barWidth is the width of the progress bar
	barWidth = 30
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		line = truncate(line, boxWidth-4)
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// ProgressBar renders progress (0-100) as a fixed-width bar.
func ProgressBar(progress int) string {
	progress = max(0, min(progress, 100))
	filled := progress * barWidth / 100
	return fmt.Sprintf("[%s%s] %3d%%", strings.Repeat("█", filled), strings.Repeat("░", barWidth-filled), progress)
}

// PrintSubmitted confirms a submission.
func (p *Printer) PrintSubmitted(rec *types.JobRecord) {
	if rec == nil {
		return
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job:      %s\n", rec.ID))
	sb.WriteString(fmt.Sprintf("Company:  %s\n", rec.CompanyName))
	sb.WriteString(fmt.Sprintf("Provider: %s / %s\n", rec.Provider, rec.Model))
	sb.WriteString(fmt.Sprintf("Status:   %s", rec.State))
	p.printBox("OPTIMIZATION SUBMITTED", sb.String())
}

// PrintStatus writes one status line, suitable for repeated polling output.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintStatus(st *types.JobStatus) {
	if st == nil {
		return
	}
	line := fmt.Sprintf("%-10s %s", st.Status, ProgressBar(st.Progress))
	if st.Status == types.JobFailed {
		line += "  " + st.FailureMessage()
	} else if st.Message != "" {
		line += "  " + st.Message
	}
	fmt.Fprintln(p.out, line)
}

// PrintResult outputs a summary of a finished optimization.
func (p *Printer) PrintResult(res *types.JobResult) {
	if res == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job:      %s\n", res.OptimizationID))
	if res.CompanyName != "" {
		sb.WriteString(fmt.Sprintf("Company:  %s\n", res.CompanyName))
	}
	sb.WriteString(fmt.Sprintf("Status:   %s\n", res.Status))
	if res.ErrorMessage != "" {
		sb.WriteString(fmt.Sprintf("Error:    %s\n", res.ErrorMessage))
	}
	if res.PDFDownloadURL != "" {
		sb.WriteString(fmt.Sprintf("PDF:      %s\n", res.PDFDownloadURL))
	} else {
		sb.WriteString("PDF:      not available (LaTeX did not compile)\n")
	}
	if res.LatexDownloadURL != "" {
		sb.WriteString(fmt.Sprintf("LaTeX:    %s\n", res.LatexDownloadURL))
	}

	extras := []string{}
	if res.CoverLetter != "" {
		extras = append(extras, "cover letter")
	}
	if res.ColdEmail != "" {
		extras = append(extras, "cold email")
	}
	if len(extras) > 0 {
		sb.WriteString(fmt.Sprintf("Extras:   %s\n", strings.Join(extras, ", ")))
	}

	if st := res.ProcessingStats; st != nil {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("Time:     %.1fs", st.ProcessingTimeSeconds))
		if st.Cached {
			sb.WriteString(" (cached)")
		}
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("Chars:    %d in / %d out\n", st.InputChars, st.OutputChars))
		if st.Provider != "" {
			sb.WriteString(fmt.Sprintf("Model:    %s / %s\n", st.Provider, st.Model))
		}
	}

	p.printBox("OPTIMIZATION RESULT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintProvider outputs the stored provider configuration with the key masked.
func (p *Printer) PrintProvider(cfg *types.ProviderConfig) {
	if cfg == nil {
		p.printBox("AI PROVIDER", "Not connected")
		return
	}
	r := cfg.Redacted()
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Provider: %s\n", r.Provider))
	sb.WriteString(fmt.Sprintf("Model:    %s\n", r.Model))
	sb.WriteString(fmt.Sprintf("API key:  %s", r.APIKey))
	if r.CustomEndpoint != "" {
		sb.WriteString(fmt.Sprintf("\nEndpoint: %s", r.CustomEndpoint))
	}
	if !cfg.Complete() {
		sb.WriteString("\n\n⚠ incomplete, reconnect before optimizing")
	}
	p.printBox("AI PROVIDER", sb.String())
}

// PrintConnectionTest outputs a connection test verdict.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintConnectionTest(resp *types.ConnectionTestResponse) {
	if resp == nil {
		return
	}
	mark := "✗"
	if resp.OK() {
		mark = "✓"
	}
	line := fmt.Sprintf("%s %s", mark, resp.Message)
	if resp.ResponseTimeMS != nil {
		line += fmt.Sprintf(" (%.0f ms)", *resp.ResponseTimeMS)
	}
	fmt.Fprintln(p.out, line)
}

// PrintCatalog lists providers and their models.
func (p *Printer) PrintCatalog(catalog []types.ProviderInfo) {
	if len(catalog) == 0 {
		return
	}
	var sb strings.Builder
	for i, info := range catalog {
		sb.WriteString(fmt.Sprintf("%s (%s)\n", info.Name, info.ID))
		count := min(len(info.Models), maxItemsToShow)
		for _, m := range info.Models[:count] {
			sb.WriteString(fmt.Sprintf("  • %s\n", m))
		}
		if len(info.Models) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(info.Models)-maxItemsToShow))
		}
		if i < len(catalog)-1 {
			sb.WriteString("\n")
		}
	}
	p.printBox("PROVIDERS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintTemplates lists uploaded templates, marking the selected one.
func (p *Printer) PrintTemplates(templates []types.TemplateSummary) {
	if len(templates) == 0 {
		p.printBox("TEMPLATES", "No templates uploaded")
		return
	}
	var sb strings.Builder
	for _, t := range templates {
		mark := " "
		if t.Selected {
			mark = "*"
		}
		sb.WriteString(fmt.Sprintf("%s %s  %s (%s)\n", mark, t.ID.String()[:8], t.Name, FormatBytes(t.SizeBytes)))
	}
	p.printBox("TEMPLATES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintJobs lists remembered jobs.
func (p *Printer) PrintJobs(jobs []types.JobRecord) {
	if len(jobs) == 0 {
		p.printBox("RECENT OPTIMIZATIONS", "No optimizations yet")
		return
	}
	var sb strings.Builder
	for _, j := range jobs {
		sb.WriteString(fmt.Sprintf("%-12s %-10s %3d%%  %s\n", truncate(j.ID, 12), j.State, j.Progress, j.CompanyName))
	}
	p.printBox("RECENT OPTIMIZATIONS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintDashboard outputs usage statistics.
func (p *Printer) PrintDashboard(d *types.Dashboard) {
	if d == nil {
		return
	}
	var sb strings.Builder
	s := d.UserStats
	sb.WriteString(fmt.Sprintf("Total:     %d\n", s.TotalOptimizations))
	sb.WriteString(fmt.Sprintf("Today:     %d\n", s.OptimizationsToday))
	if s.FavoriteLLMProvider != "" {
		sb.WriteString(fmt.Sprintf("Favorite:  %s\n", s.FavoriteLLMProvider))
	}
	if s.MostRecentOptimization != nil {
		sb.WriteString(fmt.Sprintf("Last run:  %s\n", s.MostRecentOptimization.Format("2006-01-02 15:04")))
	}
	if d.Latency != nil {
		sb.WriteString(fmt.Sprintf("Latency:   p50 %s  p90 %s  p99 %s\n",
			FormatMillis(d.Latency.P50), FormatMillis(d.Latency.P90), FormatMillis(d.Latency.P99)))
	}

	if len(d.RecentOptimizations) > 0 {
		sb.WriteString("\nRecent:\n")
		count := min(len(d.RecentOptimizations), maxItemsToShow)
		for _, h := range d.RecentOptimizations[:count] {
			sb.WriteString(fmt.Sprintf("  • %s  %s  %s\n", h.CreatedAt.Format("Jan 02"), h.Status, h.CompanyName))
		}
		if len(d.RecentOptimizations) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(d.RecentOptimizations)-maxItemsToShow))
		}
	}
	p.printBox("USAGE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintATS outputs an ATS compatibility report.
func (p *Printer) PrintATS(a *types.ATSAnalysis) {
	if a == nil {
		return
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Score:     %d/100 (%s)\n", a.Score, a.Rating()))
	if a.FileType != "" {
		sb.WriteString(fmt.Sprintf("File:      %s\n", a.FileType))
	}
	sb.WriteString(a.Summary + "\n")

	if k := a.KeywordAnalysis; k != nil {
		sb.WriteString(fmt.Sprintf("\nKeywords:  %d%% matched\n", k.MatchPercentage))
		if len(k.MissingKeywords) > 0 {
			sb.WriteString(fmt.Sprintf("Missing:   %s\n", strings.Join(k.MissingKeywords, ", ")))
		}
	}
	for _, issue := range a.FormattingIssues {
		sb.WriteString(fmt.Sprintf("  ! %s\n", issue))
	}

	if len(a.Suggestions) > 0 {
		sb.WriteString("\nSuggestions:\n")
		for _, s := range a.Suggestions {
			sb.WriteString(fmt.Sprintf("  • %s\n", s))
		}
	}
	if a.Locked() {
		sb.WriteString("\nSign in for the full report:\n")
		for _, f := range a.LockedFeatures {
			sb.WriteString(fmt.Sprintf("  - %s\n", f))
		}
	}
	p.printBox("ATS CHECK", strings.TrimSuffix(sb.String(), "\n"))
}

// FormatBytes renders a size for humans.
func FormatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// FormatMillis renders a duration in milliseconds for humans.
func FormatMillis(ms int64) string {
	if ms >= 1000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%dms", ms)
}
