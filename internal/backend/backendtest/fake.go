// Package backendtest provides an in-process fake of the optimization backend for tests.
package backendtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/jonathan/resume-optimizer/internal/types"
)

// Fake is a scripted optimization backend.
type Fake struct {
	Server *httptest.Server

	mu          sync.Mutex
	nextID      int
	statuses    map[string][]types.JobStatus
	results     map[string]*types.JobResult
	resultFails map[string]failure
	statusFails map[string]failure
	calls       map[string]int
	submitted   []types.OptimizeRequest
	tokens      []string
	connection  types.ConnectionTestResponse
	dashboard   *types.Dashboard
	compiled    []types.CompileRequest
	atsUploads  []ATSUpload
}

// ATSUpload is one ATS request as the fake received it.
type ATSUpload struct {
	Filename       string
	Content        []byte
	JobDescription string
	Authenticated  bool
}

type failure struct {
	code   int
	detail string
	times  int // 0 means forever
}

// New starts a Fake that is shut down when the test ends.
func New(t testing.TB) *Fake {
	f := &Fake{
		statuses:    map[string][]types.JobStatus{},
		results:     map[string]*types.JobResult{},
		resultFails: map[string]failure{},
		statusFails: map[string]failure{},
		calls:       map[string]int{},
		connection:  types.ConnectionTestResponse{Status: "success", Message: "Connection successful"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /optimize/{$}", f.handleSubmit)
	mux.HandleFunc("GET /optimize/{id}/status", f.handleStatus)
	mux.HandleFunc("GET /optimize/{id}/result", f.handleResult)
	mux.HandleFunc("DELETE /optimize/{id}", f.handleDelete)
	mux.HandleFunc("POST /optimize/compile-latex", f.handleCompile)
	mux.HandleFunc("POST /llm/test-connection", f.handleConnection)
	mux.HandleFunc("GET /llm/providers", f.handleProviders)
	mux.HandleFunc("GET /analytics/dashboard", f.handleDashboard)
	mux.HandleFunc("POST /auth/google", f.handleToken)
	mux.HandleFunc("POST /auth/logout", f.handleLogout)
	mux.HandleFunc("GET /download/{id}", f.handleDownload)
	mux.HandleFunc("POST /ats/analyze", f.handleATS)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL of the fake.
func (f *Fake) URL() string {
	return f.Server.URL
}

// Script queues status responses for a job. The last one repeats.
func (f *Fake) Script(jobID string, statuses ...types.JobStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range statuses {
		statuses[i].OptimizationID = jobID
	}
	f.statuses[jobID] = append(f.statuses[jobID], statuses...)
}

// SetResult sets the result resource of a job.
func (f *Fake) SetResult(jobID string, r *types.JobResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.OptimizationID = jobID
	f.results[jobID] = r
}

// FailResult makes the next n result requests for a job fail (n == 0: forever).
func (f *Fake) FailResult(jobID string, code int, detail string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultFails[jobID] = failure{code: code, detail: detail, times: n}
}

// FailStatus makes the next n status requests for a job fail (n == 0: forever).
func (f *Fake) FailStatus(jobID string, code int, detail string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusFails[jobID] = failure{code: code, detail: detail, times: n}
}

// SetConnection sets the verdict of the connection test.
func (f *Fake) SetConnection(resp types.ConnectionTestResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connection = resp
}

// SetDashboard sets the statistics payload; nil makes the endpoint return 503.
func (f *Fake) SetDashboard(d *types.Dashboard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dashboard = d
}

// Calls returns how many times an operation was hit, e.g. "status:job-1" or "submit".
func (f *Fake) Calls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

// Submitted returns the submission bodies received.
func (f *Fake) Submitted() []types.OptimizeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.OptimizeRequest(nil), f.submitted...)
}

// Compiled returns the compile bodies received.
func (f *Fake) Compiled() []types.CompileRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.CompileRequest(nil), f.compiled...)
}

// ATSUploads returns the ATS requests received.
func (f *Fake) ATSUploads() []ATSUpload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ATSUpload(nil), f.atsUploads...)
}

// Tokens returns the bearer tokens seen, in order.
func (f *Fake) Tokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

func (f *Fake) record(r *http.Request, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	if auth := r.Header.Get("Authorization"); auth != "" {
		f.tokens = append(f.tokens, auth)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (f *Fake) handleSubmit(w http.ResponseWriter, r *http.Request) {
	f.record(r, "submit")
	var req types.OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	f.mu.Lock()
	f.nextID++
	id := fmt.Sprintf("job-%d", f.nextID)
	f.submitted = append(f.submitted, req)
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, types.SubmitResponse{OptimizationID: id, Status: types.JobPending})
}

// take pops one scripted failure if any remains.
func take(fails map[string]failure, id string) (failure, bool) {
	fail, ok := fails[id]
	if !ok {
		return failure{}, false
	}
	if fail.times > 0 {
		fail.times--
		if fail.times == 0 {
			delete(fails, id)
		} else {
			fails[id] = fail
		}
	}
	return fail, true
}

func (f *Fake) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.record(r, "status:"+id)

	f.mu.Lock()
	fail, failing := take(f.statusFails, id)
	queue, ok := f.statuses[id]
	var status types.JobStatus
	if ok && !failing {
		status = queue[0]
		if len(queue) > 1 {
			f.statuses[id] = queue[1:]
		}
	}
	f.mu.Unlock()

	switch {
	case failing:
		writeDetail(w, fail.code, fail.detail)
	case !ok:
		writeDetail(w, http.StatusNotFound, "Optimization not found")
	default:
		writeJSON(w, http.StatusOK, status)
	}
}

func (f *Fake) handleResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.record(r, "result:"+id)

	f.mu.Lock()
	fail, failing := take(f.resultFails, id)
	result, ok := f.results[id]
	f.mu.Unlock()

	switch {
	case failing:
		writeDetail(w, fail.code, fail.detail)
	case !ok:
		writeDetail(w, http.StatusBadRequest, "Optimization not completed yet")
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

func (f *Fake) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.record(r, "delete:"+id)

	f.mu.Lock()
	delete(f.statuses, id)
	delete(f.results, id)
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "Optimization deleted successfully"})
}

func (f *Fake) handleCompile(w http.ResponseWriter, r *http.Request) {
	f.record(r, "compile")
	var req types.CompileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	f.mu.Lock()
	f.compiled = append(f.compiled, req)
	n := len(f.compiled)
	f.mu.Unlock()

	compileID := fmt.Sprintf("compile-%d", n)
	writeJSON(w, http.StatusOK, types.CompileResponse{
		Success:        true,
		Message:        "LaTeX compiled successfully",
		CompileID:      compileID,
		PDFDownloadURL: "/download/" + compileID,
	})
}

func (f *Fake) handleConnection(w http.ResponseWriter, r *http.Request) {
	f.record(r, "test_connection")
	f.mu.Lock()
	resp := f.connection
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (f *Fake) handleProviders(w http.ResponseWriter, r *http.Request) {
	f.record(r, "providers")
	writeJSON(w, http.StatusOK, types.DefaultCatalog())
}

func (f *Fake) handleDashboard(w http.ResponseWriter, r *http.Request) {
	f.record(r, "dashboard")
	f.mu.Lock()
	d := f.dashboard
	f.mu.Unlock()
	if d == nil {
		writeDetail(w, http.StatusServiceUnavailable, "analytics unavailable")
		return
	}
	out := *d
	if out.RecentOptimizations == nil {
		// The real backend always sends a list.
		out.RecentOptimizations = []types.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *Fake) handleToken(w http.ResponseWriter, r *http.Request) {
	f.record(r, "token_exchange")
	var req types.TokenExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDToken == "" {
		writeDetail(w, http.StatusBadRequest, "id_token is required")
		return
	}
	writeJSON(w, http.StatusOK, types.TokenExchangeResponse{
		AccessToken: "backend-" + req.IDToken,
		TokenType:   "bearer",
	})
}

func (f *Fake) handleLogout(w http.ResponseWriter, r *http.Request) {
	f.record(r, "logout")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (f *Fake) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.record(r, "download:"+id)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, id))
	_, _ = w.Write([]byte("%PDF-1.4 fake " + id))
}

// atsSuggestions is the fake's full suggestion list; signed-out callers get two.
var atsSuggestions = []string{
	"Quantify impact in the experience section",
	"Add a skills section",
	"Mention Kubernetes if you have used it",
	"Start bullets with action verbs",
}

func (f *Fake) handleATS(w http.ResponseWriter, r *http.Request) {
	f.record(r, "ats")
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "multipart body required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()
	content, _ := io.ReadAll(file)

	upload := ATSUpload{
		Filename:       header.Filename,
		Content:        content,
		JobDescription: r.FormValue("job_description"),
		Authenticated:  r.Header.Get("Authorization") != "",
	}
	f.mu.Lock()
	f.atsUploads = append(f.atsUploads, upload)
	f.mu.Unlock()

	if len(content) < 50 {
		writeDetail(w, http.StatusBadRequest, "Could not extract enough text from the document. Please ensure the file is not empty or corrupted.")
		return
	}

	report := types.ATSAnalysis{
		Score:           78,
		IsAuthenticated: upload.Authenticated,
		Summary:         "Good structure with a few missing keywords.",
		FileType:        strings.TrimPrefix(path.Ext(header.Filename), "."),
	}
	if upload.Authenticated {
		report.KeywordAnalysis = &types.KeywordAnalysis{
			MatchedKeywords: []string{"Go", "PostgreSQL"},
			MissingKeywords: []string{"Kubernetes"},
			MatchPercentage: 67,
		}
		report.FormattingIssues = []string{"Tables may not parse"}
		report.SectionsDetected = map[string]bool{"experience": true, "skills": false}
		report.MissingSkills = []string{"Kubernetes"}
		report.ActionVerbs = map[string][]string{"strong": {"Led"}, "weak": {"Helped"}}
		report.Suggestions = atsSuggestions
	} else {
		report.Suggestions = atsSuggestions[:2]
		report.LockedFeatures = []string{"Full keyword analysis", "All improvement suggestions"}
	}
	writeJSON(w, http.StatusOK, report)
}
