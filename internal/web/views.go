package web

import (
	"github.com/jonathan/resume-optimizer/internal/types"
)

// HomeData feeds the landing page.
type HomeData struct {
	Features     []Feature
	Testimonials []Testimonial
	Posts        []Post
}

// FeaturesData feeds the features page.
type FeaturesData struct {
	Features []Feature
}

// PricingData feeds the pricing page.
type PricingData struct {
	Plans []Plan
}

// BlogData feeds the blog index.
type BlogData struct {
	Posts []Post
}

// PostData feeds one blog post.
type PostData struct {
	Post Post
}

// SignInData feeds the sign-in page.
type SignInData struct {
	Next          string
	GoogleEnabled bool
	DevBypass     bool
	Error         string
}

// WorkspaceData feeds the upload and submit workspace.
type WorkspaceData struct {
	Provider      *types.ProviderConfig // redacted
	ProviderReady bool
	Templates     []types.TemplateSummary
	MaxTemplates  int
	Draft         Draft
	Jobs          []types.JobRecord
}

// Draft is the form prefill.
type Draft struct {
	JobDescription      string
	CompanyName         string
	CustomInstructions  string
	GenerateColdEmail   bool
	GenerateCoverLetter bool
}

// JobData feeds the job view.
type JobData struct {
	Record      types.JobRecord
	Result      *types.JobResult
	ResultError string
}

// Terminal reports whether the job stopped changing.
func (d JobData) Terminal() bool {
	return d.Record.State.IsTerminal()
}

// DashboardData feeds the usage page.
type DashboardData struct {
	Dashboard types.Dashboard
	Series    types.Series
	// Local is set when the backend statistics were unavailable and the figures
	// come from the locally remembered jobs.
	Local bool
}

// SettingsData feeds the provider settings page.
type SettingsData struct {
	Provider *types.ProviderConfig // redacted
	Catalog  []types.ProviderInfo
}

// ATSData feeds the ATS check page. The report itself is drawn by app.js.
type ATSData struct {
	Accept   string
	MaxMB    int
	SignedIn bool
}

// ErrorData feeds the error page.
type ErrorData struct {
	Status  int
	Message string
}
