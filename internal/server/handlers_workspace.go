package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonathan/resume-optimizer/internal/analytics"
	"github.com/jonathan/resume-optimizer/internal/server/middleware"
	"github.com/jonathan/resume-optimizer/internal/state"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/jonathan/resume-optimizer/internal/upload"
)

// multipartOverhead is the form encoding allowance on top of the file size limit.
const multipartOverhead = 64 << 10

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		middleware.Unauthorized(w, r)
		return
	}
	user, err := s.users.Current(r.Context(), userID)
	if err != nil {
		s.failAPI(w, r, err)
		return
	}
	doc, err := s.store.Get(r.Context(), Owner(userID))
	if err != nil {
		s.failAPI(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, types.SessionInfo{
		User:              user,
		ProviderConnected: doc.ProviderReady(),
		TemplateCount:     len(doc.Templates),
	})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Get(r.Context(), ownerOf(r))
	if err != nil {
		s.failAPI(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, doc.TemplateSummaries())
}

func (s *Server) handleUploadTemplate(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.cfg.MaxTemplateBytes
	if maxBytes <= 0 {
		maxBytes = upload.DefaultMaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.failAPI(w, r, &upload.Error{Name: "upload", Err: upload.ErrFileTooLarge})
			return
		}
		s.errorResponse(w, http.StatusBadRequest, "Expected a multipart form with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	_, fh, err := r.FormFile("file")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Choose a .tex file to upload")
		return
	}

	name, content, err := upload.ReadMultipart(fh, maxBytes)
	if err != nil {
		s.failAPI(w, r, err)
		return
	}

	owner := ownerOf(r)
	tmpl, err := s.store.AddTemplate(r.Context(), owner, name, content)
	if err != nil {
		s.failAPI(w, r, err)
		return
	}

	analytics.EmitTemplateUploaded(s.analytics, owner, tmpl.ID.String(), tmpl.SizeBytes)
	s.jsonResponse(w, http.StatusCreated, tmpl.Summary(false))
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.templateID(w, r)
	if !ok {
		return
	}
	doc, err := s.store.Get(r.Context(), ownerOf(r))
	if err != nil {
		s.failAPI(w, r, err)
		return
	}
	tmpl, found := doc.Template(id)
	if !found {
		s.failAPI(w, r, state.ErrTemplateNotFound)
		return
	}
	s.jsonResponse(w, http.StatusOK, tmpl)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.templateID(w, r)
	if !ok {
		return
	}
	owner := ownerOf(r)
	doc, err := s.store.DeleteTemplate(r.Context(), owner, id)
	if err != nil {
		s.failAPI(w, r, err)
		return
	}
	analytics.EmitTemplateDeleted(s.analytics, owner, id.String())
	s.jsonResponse(w, http.StatusOK, doc.TemplateSummaries())
}

func (s *Server) handleSelectTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.templateID(w, r)
	if !ok {
		return
	}
	owner := ownerOf(r)
	if err := s.store.SelectTemplate(r.Context(), owner, id); err != nil {
		s.failAPI(w, r, err)
		return
	}
	doc, err := s.store.Get(r.Context(), owner)
	if err != nil {
		s.failAPI(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, doc.TemplateSummaries())
}

func (s *Server) templateID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.failAPI(w, r, &ErrNotFound{Resource: "template", ID: r.PathValue("id")})
		return uuid.Nil, false
	}
	return id, true
}

// draftRequest mirrors the submit form.
type draftRequest struct {
	JobDescription      string `json:"job_description"`
	CompanyName         string `json:"company_name"`
	CustomInstructions  string `json:"custom_instructions"`
	GenerateColdEmail   bool   `json:"generate_cold_email"`
	GenerateCoverLetter bool   `json:"generate_cover_letter"`
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := s.store.SaveDraft(r.Context(), ownerOf(r), state.Draft(req)); err != nil {
		s.failAPI(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.catalog(r))
}

func (s *Server) handleGetProvider(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Get(r.Context(), ownerOf(r))
	if err != nil {
		s.failAPI(w, r, err)
		return
	}
	if doc.Provider == nil {
		s.jsonResponse(w, http.StatusOK, map[string]any{"connected": false})
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"connected": doc.ProviderReady(),
		"provider":  doc.Provider.Redacted(),
	})
}

// readProvider decodes and validates a provider configuration.
func (s *Server) readProvider(w http.ResponseWriter, r *http.Request) (types.ProviderConfig, bool) {
	var cfg types.ProviderConfig
	if !s.decodeJSON(w, r, &cfg) {
		return cfg, false
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if !cfg.Complete() {
		s.failAPI(w, r, state.ErrIncompleteProvider)
		return cfg, false
	}
	if err := cfg.Validate(); err != nil {
		s.failAPI(w, r, &ErrValidation{Field: "provider", Message: validationText(err)})
		return cfg, false
	}
	return cfg, true
}

func validationText(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return extractValidationErrors(fieldErrs)
	}
	return err.Error()
}

func (s *Server) handleTestProvider(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.readProvider(w, r)
	if !ok {
		return
	}
	resp, err := s.backend.TestConnection(r.Context(), cfg)
	if err != nil {
		s.failAPI(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleSaveProvider stores the configuration only after the backend accepts it.
func (s *Server) handleSaveProvider(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.readProvider(w, r)
	if !ok {
		return
	}
	resp, err := s.backend.TestConnection(r.Context(), cfg)
	if err != nil {
		s.failAPI(w, r, err)
		return
	}
	if !resp.OK() {
		msg := resp.Message
		if msg == "" {
			msg = "The provider rejected these credentials."
		}
		s.errorResponse(w, http.StatusBadRequest, msg)
		return
	}

	owner := ownerOf(r)
	if err := s.store.SetProvider(r.Context(), owner, cfg); err != nil {
		s.failAPI(w, r, err)
		return
	}
	analytics.EmitProviderConnected(s.analytics, owner, string(cfg.Provider), cfg.Model)
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"connected": true,
		"provider":  cfg.Redacted(),
		"message":   resp.Message,
	})
}

func (s *Server) handleDisconnectProvider(w http.ResponseWriter, r *http.Request) {
	owner := ownerOf(r)
	if err := s.store.DisconnectProvider(r.Context(), owner); err != nil {
		s.failAPI(w, r, err)
		return
	}
	analytics.EmitProviderDisconnected(s.analytics, owner)
	w.WriteHeader(http.StatusNoContent)
}

type importRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		s.errorResponse(w, http.StatusNotImplemented, "Importing job postings is not available.")
		return
	}
	var req importRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		s.failAPI(w, r, &ErrValidation{Field: "url", Message: "url is required"})
		return
	}

	jd, err := s.importer.Import(r.Context(), req.URL)
	if err != nil {
		s.failAPI(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, jd)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	data, err := s.dashboard(r)
	if err != nil {
		s.failAPI(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"dashboard": data.Dashboard,
		"series":    data.Series,
		"local":     data.Local,
	})
}
