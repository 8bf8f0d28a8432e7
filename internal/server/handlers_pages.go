package server

import (
	"net/http"
	"time"

	"github.com/jonathan/resume-optimizer/internal/backend"
	"github.com/jonathan/resume-optimizer/internal/server/middleware"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/jonathan/resume-optimizer/internal/web"
)

// dashboardDays is the window of the locally computed usage summary.
const dashboardDays = 7

// currentUser rebuilds the signed-in user from the session claims, or nil.
func currentUser(r *http.Request) *types.User {
	claims, ok := middleware.GetClaims(r)
	if !ok {
		return nil
	}
	if c, ok := claims.(*Claims); ok {
		return c.User()
	}
	return &types.User{ID: claims.GetUserID()}
}

// ownerOf is the state document key of the authenticated request.
func ownerOf(r *http.Request) string {
	id, _ := middleware.GetUserID(r)
	return Owner(id)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	s.renderer.Handler(name, http.StatusOK, web.View{
		Title:  title,
		Active: name,
		User:   currentUser(r),
		Data:   data,
	}).ServeHTTP(w, r)
}

func (s *Server) failPage(w http.ResponseWriter, r *http.Request, err error) {
	if backend.IsUnauthorized(err) {
		s.endSession(w, r)
		middleware.RedirectToSignIn(w, r)
		return
	}
	status := HTTPStatus(err)
	if status >= 500 {
		s.logger.Error("page failed", "path", r.URL.Path, "error", err)
	}
	s.renderer.Error(w, r, status, UserMessage(err), currentUser(r))
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, web.PageHome, "Tailor your resume to every job", web.HomeData{
		Features:     web.Features(),
		Testimonials: web.Testimonials(),
		Posts:        s.blog.Latest(3),
	})
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, web.PageFeatures, "Features", web.FeaturesData{Features: web.Features()})
}

func (s *Server) handlePricing(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, web.PagePricing, "Pricing", web.PricingData{Plans: web.Plans()})
}

func (s *Server) handleBlog(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, web.PageBlog, "Blog", web.BlogData{Posts: s.blog.Posts()})
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	post, ok := s.blog.Post(r.PathValue("slug"))
	if !ok {
		s.renderer.Error(w, r, http.StatusNotFound, "That post does not exist.", currentUser(r))
		return
	}
	s.renderer.Handler(web.PagePost, http.StatusOK, web.View{
		Title:  post.Title,
		Active: web.PageBlog,
		User:   currentUser(r),
		Data:   web.PostData{Post: post},
	}).ServeHTTP(w, r)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderer.Error(w, r, http.StatusNotFound, "Page not found.", currentUser(r))
}

func (s *Server) handleWorkspace(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Get(r.Context(), ownerOf(r))
	if err != nil {
		s.failPage(w, r, err)
		return
	}

	data := web.WorkspaceData{
		ProviderReady: doc.ProviderReady(),
		Templates:     doc.TemplateSummaries(),
		MaxTemplates:  s.store.MaxTemplates(),
		Draft:         web.Draft(doc.Draft),
		Jobs:          doc.Jobs,
	}
	if doc.Provider != nil {
		redacted := doc.Provider.Redacted()
		data.Provider = &redacted
	}
	s.render(w, r, web.PageWorkspace, "Workspace", data)
}

func (s *Server) handleJobPage(w http.ResponseWriter, r *http.Request) {
	owner := ownerOf(r)
	jobID := r.PathValue("id")

	rec, err := s.store.FindJob(r.Context(), owner, jobID)
	if err != nil {
		s.failPage(w, r, err)
		return
	}

	data := web.JobData{Record: rec}
	if rec.State.IsTerminal() {
		res, err := s.jobs.Result(r.Context(), owner, jobID)
		switch {
		case err == nil:
			data.Result = res
		case backend.IsUnauthorized(err):
			s.failPage(w, r, err)
			return
		case rec.State == types.JobCompleted:
			data.ResultError = UserMessage(err)
		default:
			// Failed jobs often have no partial artifact.
			s.logger.Debug("no result for failed job", "job_id", jobID, "error", err)
		}
	}

	s.renderer.Handler(web.PageJob, http.StatusOK, web.View{
		Title:  rec.CompanyName,
		Active: web.PageWorkspace,
		User:   currentUser(r),
		Data:   data,
	}).ServeHTTP(w, r)
}

func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	data, err := s.dashboard(r)
	if err != nil {
		s.failPage(w, r, err)
		return
	}
	s.render(w, r, web.PageDashboard, "Dashboard", data)
}

// dashboard asks the backend for usage statistics and falls back to a summary
// of the locally remembered jobs.
func (s *Server) dashboard(r *http.Request) (web.DashboardData, error) {
	doc, err := s.store.Get(r.Context(), ownerOf(r))
	if err != nil {
		return web.DashboardData{}, err
	}

	if token := doc.SessionToken(); token != "" && token != DevSessionToken {
		d, err := s.backend.Dashboard(r.Context(), token)
		if err == nil {
			return web.DashboardData{Dashboard: *d, Series: d.ChartSeries()}, nil
		}
		if backend.IsUnauthorized(err) {
			return web.DashboardData{}, err
		}
		s.logger.Warn("backend dashboard unavailable", "error", err)
	}

	local := types.SummarizeJobs(doc.Jobs, time.Now().UTC(), dashboardDays)
	return web.DashboardData{Dashboard: local, Series: local.ChartSeries(), Local: true}, nil
}

func (s *Server) handleSettingsPage(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Get(r.Context(), ownerOf(r))
	if err != nil {
		s.failPage(w, r, err)
		return
	}

	data := web.SettingsData{Catalog: s.catalog(r)}
	if doc.Provider != nil {
		redacted := doc.Provider.Redacted()
		data.Provider = &redacted
	}
	s.render(w, r, web.PageSettings, "Settings", data)
}

// catalog lists providers from the backend, or the built-in list when it is unreachable.
func (s *Server) catalog(r *http.Request) []types.ProviderInfo {
	providers, err := s.backend.Providers(r.Context())
	if err != nil || len(providers) == 0 {
		if err != nil {
			s.logger.Warn("provider catalog unavailable", "error", err)
		}
		return types.DefaultCatalog()
	}
	return providers
}
