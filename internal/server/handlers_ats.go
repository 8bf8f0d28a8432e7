package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jonathan/resume-optimizer/internal/analytics"
	"github.com/jonathan/resume-optimizer/internal/server/middleware"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/jonathan/resume-optimizer/internal/upload"
	"github.com/jonathan/resume-optimizer/internal/web"
)

// anonymousID is the analytics id of signed-out ATS checks.
const anonymousID = "anonymous"

type atsResponse struct {
	*types.ATSAnalysis
	Rating string `json:"rating"`
}

func (s *Server) handleATSPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, web.PageATS, "ATS check", web.ATSData{
		Accept:   strings.Join(upload.ResumeExtensions, ","),
		MaxMB:    int(upload.ResumeMaxBytes >> 20),
		SignedIn: currentUser(r) != nil,
	})
}

// handleAnalyzeATS forwards an uploaded resume to the backend ATS check.
// Signed-in users with a backend session get the full report.
func (s *Server) handleAnalyzeATS(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, upload.ResumeMaxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(upload.ResumeMaxBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.failAPI(w, r, &upload.Error{Name: "resume", Err: upload.ErrFileTooLarge})
			return
		}
		s.errorResponse(w, http.StatusBadRequest, "Expected a multipart form with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	_, fh, err := r.FormFile("file")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Choose a resume to check")
		return
	}
	name, content, err := upload.ReadResumeMultipart(fh, upload.ResumeMaxBytes)
	if err != nil {
		s.failAPI(w, r, err)
		return
	}

	token, distinctID := "", anonymousID
	if id, err := middleware.GetUserID(r); err == nil {
		distinctID = id.String()
		doc, err := s.store.Get(r.Context(), Owner(id))
		if err != nil {
			s.failAPI(w, r, err)
			return
		}
		if t := doc.SessionToken(); t != DevSessionToken {
			token = t
		}
	}

	report, err := s.backend.AnalyzeATS(r.Context(), token, &types.ATSRequest{
		Filename:       name,
		Content:        content,
		JobDescription: r.FormValue("job_description"),
	})
	if err != nil {
		s.failAPI(w, r, err)
		return
	}

	analytics.EmitATSAnalyzed(s.analytics, distinctID, report.FileType, report.Score, report.IsAuthenticated)
	s.jsonResponse(w, http.StatusOK, atsResponse{ATSAnalysis: report, Rating: report.Rating()})
}
