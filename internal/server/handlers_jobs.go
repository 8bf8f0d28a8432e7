package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/resume-optimizer/internal/backend"
	"github.com/jonathan/resume-optimizer/internal/jobs"
	"github.com/jonathan/resume-optimizer/internal/polling"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// keepAliveInterval spaces comment lines on idle event streams.
const keepAliveInterval = 15 * time.Second

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var in types.SubmitInput
	if !s.decodeJSON(w, r, &in) {
		return
	}
	rec, err := s.jobs.Submit(r.Context(), ownerOf(r), in)
	if err != nil {
		s.failAPI(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, rec)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	records, err := s.jobs.List(r.Context(), ownerOf(r))
	if err != nil {
		s.failAPI(w, r, err)
		return
	}
	if records == nil {
		records = []types.JobRecord{}
	}
	s.jsonResponse(w, http.StatusOK, records)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.jobs.Status(r.Context(), ownerOf(r), r.PathValue("id"))
	if err != nil {
		s.failAPI(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, st)
}

// streamEvent is one message from the polling goroutines to the stream writer.
type streamEvent struct {
	status  *types.JobStatus
	outcome *polling.Outcome
}

// handleJobEvents streams status changes until the job is terminal or the
// client goes away.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	owner := ownerOf(r)
	jobID := r.PathValue("id")

	if _, err := s.store.FindJob(r.Context(), owner, jobID); err != nil {
		s.failAPI(w, r, err)
		return
	}

	events := make(chan streamEvent, 16)
	finished := make(chan struct{})
	defer close(finished)
	send := func(ev streamEvent) {
		select {
		case events <- ev:
		case <-finished:
		}
	}

	sub, err := s.jobs.Watch(r.Context(), owner, jobID, jobs.Observer{
		OnStatus: func(st *types.JobStatus) { send(streamEvent{status: st}) },
		OnDone:   func(o polling.Outcome) { send(streamEvent{outcome: &o}) },
	})
	if err != nil {
		s.failAPI(w, r, err)
		return
	}
	defer sub.Stop()

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.failAPI(w, r, err)
		return
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if err := sse.WriteComment("keep-alive"); err != nil {
				return
			}
		case ev := <-events:
			if ev.outcome != nil {
				// A newer stream for the same job took over.
				if errors.Is(ev.outcome.Err, polling.ErrStopped) {
					return
				}
				sse.WriteDone(*ev.outcome)
				return
			}
			if err := sse.WriteEvent(EventStatus, ev.status); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.jobs.Result(r.Context(), ownerOf(r), r.PathValue("id"))
	if err != nil {
		s.failAPI(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

type compileRequest struct {
	TexContent string `json:"tex_content"`
}

func (s *Server) handleRecompile(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.jobs.Recompile(r.Context(), ownerOf(r), r.PathValue("id"), req.TexContent)
	if err != nil {
		s.failAPI(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := s.jobs.Delete(r.Context(), ownerOf(r), r.PathValue("id")); err != nil {
		s.failAPI(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDownloadPDF proxies the latest compiled PDF of a job.
func (s *Server) handleDownloadPDF(w http.ResponseWriter, r *http.Request) {
	owner := ownerOf(r)
	jobID := r.PathValue("id")

	rec, err := s.store.FindJob(r.Context(), owner, jobID)
	if err != nil {
		s.failAPI(w, r, err)
		return
	}

	ref := rec.PDFURL
	if ref == "" {
		res, err := s.jobs.Result(r.Context(), owner, jobID)
		if err != nil {
			s.failAPI(w, r, err)
			return
		}
		ref = res.PDFDownloadURL
	}
	if ref == "" {
		s.failAPI(w, r, &ErrNotFound{Resource: "PDF for job", ID: jobID})
		return
	}

	s.proxyDownload(w, r, owner, ref, downloadName(rec, ".pdf"), "application/pdf")
}

// handleDownloadLatex serves the optimized source, from the backend when it
// offers a download and from the result body otherwise.
func (s *Server) handleDownloadLatex(w http.ResponseWriter, r *http.Request) {
	owner := ownerOf(r)
	jobID := r.PathValue("id")

	rec, err := s.store.FindJob(r.Context(), owner, jobID)
	if err != nil {
		s.failAPI(w, r, err)
		return
	}
	res, err := s.jobs.Result(r.Context(), owner, jobID)
	if err != nil {
		s.failAPI(w, r, err)
		return
	}

	name := downloadName(rec, ".tex")
	switch {
	case res.LatexDownloadURL != "":
		s.proxyDownload(w, r, owner, res.LatexDownloadURL, name, "application/x-tex")
	case res.OptimizedTex != "":
		w.Header().Set("Content-Type", "application/x-tex; charset=utf-8")
		w.Header().Set("Content-Disposition", attachment(name))
		w.Header().Set("Content-Length", strconv.Itoa(len(res.OptimizedTex)))
		_, _ = io.WriteString(w, res.OptimizedTex)
	default:
		s.failAPI(w, r, &ErrNotFound{Resource: "LaTeX source for job", ID: jobID})
	}
}

func (s *Server) proxyDownload(w http.ResponseWriter, r *http.Request, owner, ref, name, contentType string) {
	doc, err := s.store.Get(r.Context(), owner)
	if err != nil {
		s.failAPI(w, r, err)
		return
	}

	dl, err := s.backend.Download(r.Context(), doc.SessionToken(), ref)
	if err != nil {
		s.failAPI(w, r, err)
		return
	}
	defer dl.Body.Close()

	if dl.ContentType != "" {
		contentType = dl.ContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", attachment(name))
	if dl.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(dl.ContentLength, 10))
	}
	if _, err := io.Copy(w, dl.Body); err != nil {
		s.logger.Warn("download interrupted", "ref", ref, "error", err)
	}
}

// downloadName builds a file name like "resume-acme.pdf".
func downloadName(rec types.JobRecord, ext string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(rec.CompanyName) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == ' ' || c == '-' || c == '_':
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "resume" + ext
	}
	return "resume-" + slug + ext
}

func attachment(name string) string {
	return fmt.Sprintf(`attachment; filename="%s"`, name)
}

var _ Backend = (*backend.Client)(nil)
