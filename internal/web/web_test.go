package web

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)
	return r
}

func render(t *testing.T, r *Renderer, name string, v View) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, r.Page(name, v).Render(context.Background(), &buf))
	return buf.String()
}

func TestRenderer_MarketingPages(t *testing.T) {
	r := newRenderer(t)
	blog, err := LoadBlog()
	require.NoError(t, err)

	home := render(t, r, PageHome, View{Data: HomeData{Features: Features(), Testimonials: Testimonials(), Posts: blog.Latest(2)}})
	assert.Contains(t, home, "A tailored resume for every application")
	assert.Contains(t, home, Testimonials()[0].Author)
	assert.Contains(t, home, "/sign-in")
	assert.Contains(t, home, blog.Posts()[0].Title)

	pricing := render(t, r, PagePricing, View{Active: "pricing", Data: PricingData{Plans: Plans()}})
	assert.Contains(t, pricing, "$12")
	assert.Contains(t, pricing, `class="plan highlight"`)
}

func TestRenderer_SignedInLayout(t *testing.T) {
	r := newRenderer(t)
	out := render(t, r, PageFeatures, View{User: &types.User{Name: "Ada"}, Data: FeaturesData{Features: Features()}})
	assert.Contains(t, out, "Sign out Ada")
	assert.Contains(t, out, `href="/app"`)
	assert.NotContains(t, out, `href="/sign-in" class="button"`)
}

func TestRenderer_Workspace(t *testing.T) {
	r := newRenderer(t)
	provider := types.ProviderConfig{Provider: types.ProviderOpenAI, Model: "gpt-4o", APIKey: "sk-live-secret-abcd"}.Redacted()
	out := render(t, r, PageWorkspace, View{Data: WorkspaceData{
		Provider:      &provider,
		ProviderReady: true,
		Templates:     []types.TemplateSummary{{ID: uuid.New(), Name: "resume.tex", SizeBytes: 2048, Selected: true}},
		MaxTemplates:  5,
		Draft:         Draft{CompanyName: "Acme <Corp>"},
		Jobs:          []types.JobRecord{{ID: "job-1", CompanyName: "Acme", State: types.JobProcessing, Progress: 40}},
	}})

	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, "abcd")
	assert.Contains(t, out, "resume.tex")
	assert.Contains(t, out, "2.0 KB")
	assert.Contains(t, out, "1 / 5")
	assert.Contains(t, out, "Acme &lt;Corp&gt;")
	assert.Contains(t, out, "processing 40%")
}

func TestRenderer_JobWithoutPDF(t *testing.T) {
	r := newRenderer(t)
	out := render(t, r, PageJob, View{Data: JobData{
		Record: types.JobRecord{ID: "job-7", CompanyName: "Acme", State: types.JobCompleted, Progress: 100},
		Result: &types.JobResult{OptimizedTex: `\documentclass{article}`, CoverLetter: "Dear Acme"},
	}})

	assert.Contains(t, out, `data-terminal="true"`)
	assert.Contains(t, out, "did not compile")
	assert.Contains(t, out, `\documentclass{article}`)
	assert.Contains(t, out, "Dear Acme")
	assert.NotContains(t, out, "/api/jobs/job-7/pdf")
}

func TestRenderer_DashboardSeries(t *testing.T) {
	r := newRenderer(t)
	d := types.Dashboard{Buckets: []types.Bucket{{Start: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Count: 3}}}
	out := render(t, r, PageDashboard, View{Data: DashboardData{Dashboard: d, Series: d.ChartSeries(), Local: true}})
	assert.Contains(t, out, "usage-chart")
	assert.Contains(t, out, "&#34;total&#34;:[3]")
	assert.Contains(t, out, "Live statistics are unavailable")
}

func TestRenderer_UnknownPage(t *testing.T) {
	r := newRenderer(t)
	err := r.Page("nope", View{}).Render(context.Background(), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRenderer_ErrorStatus(t *testing.T) {
	r := newRenderer(t)
	rec := httptest.NewRecorder()
	r.Error(rec, httptest.NewRequest(http.MethodGet, "/missing", nil), http.StatusNotFound, "", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not Found")
}

func TestStaticHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	StaticHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "EventSource")
}

func TestAppJS_SignInOn401(t *testing.T) {
	rec := httptest.NewRecorder()
	StaticHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	js := rec.Body.String()
	assert.Contains(t, js, "resp.status === 401")
	assert.Contains(t, js, `"/sign-in?next=" + encodeURIComponent(location.pathname + location.search)`)
	assert.Contains(t, js, `api("POST", "/api/ats", new FormData(form))`)
}

func TestRenderer_ATS(t *testing.T) {
	r := newRenderer(t)
	out := render(t, r, PageATS, View{Active: PageATS, Data: ATSData{Accept: ".pdf,.docx", MaxMB: 10}})
	assert.Contains(t, out, `accept=".pdf,.docx"`)
	assert.Contains(t, out, "up to 10 MB")
	assert.Contains(t, out, `href="/ats" class="active"`)
	assert.Contains(t, out, "for the full report")
}
