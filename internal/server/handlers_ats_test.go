package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jonathan/resume-optimizer/internal/analytics"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var resumePDF = []byte("%PDF-1.7\nJane Doe\nSenior Go engineer. Led payments platform work at Acme.\n%%EOF")

func (e *testEnv) analyzeATS(t *testing.T, cookie *http.Cookie, name string, content []byte, jobDescription string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	if jobDescription != "" {
		require.NoError(t, mw.WriteField("job_description", jobDescription))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/ats", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func TestAnalyzeATS_SignedOut(t *testing.T) {
	env := newTestEnv(t)

	w := env.analyzeATS(t, nil, "cv.pdf", resumePDF, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report struct {
		types.ATSAnalysis
		Rating string `json:"rating"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 78, report.Score)
	assert.Equal(t, "good", report.Rating)
	assert.False(t, report.IsAuthenticated)
	assert.Len(t, report.Suggestions, 2)
	assert.NotEmpty(t, report.LockedFeatures)
	assert.Nil(t, report.KeywordAnalysis)

	uploads := env.fake.ATSUploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "cv.pdf", uploads[0].Filename)
	assert.Equal(t, resumePDF, uploads[0].Content)
	assert.False(t, uploads[0].Authenticated)

	c, ok := env.recorder.Last(analytics.EventATSAnalyzed)
	require.True(t, ok)
	assert.Equal(t, anonymousID, c.DistinctId)
}

func TestAnalyzeATS_SignedInForwardsSession(t *testing.T) {
	env := newTestEnv(t)
	cookie, owner := env.signIn(t)
	require.NoError(t, env.store.SetSession(context.Background(), owner, "backend-token"))

	w := env.analyzeATS(t, cookie, "cv.pdf", resumePDF, "  Go, Kubernetes  ")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report types.ATSAnalysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.True(t, report.IsAuthenticated)
	assert.Empty(t, report.LockedFeatures)
	require.NotNil(t, report.KeywordAnalysis)
	assert.Equal(t, []string{"Kubernetes"}, report.KeywordAnalysis.MissingKeywords)

	uploads := env.fake.ATSUploads()
	require.Len(t, uploads, 1)
	assert.True(t, uploads[0].Authenticated)
	assert.Equal(t, "Go, Kubernetes", uploads[0].JobDescription)
	assert.Contains(t, env.fake.Tokens(), "Bearer backend-token")
}

func TestAnalyzeATS_DevSessionStaysAnonymous(t *testing.T) {
	env := newTestEnv(t)
	cookie, _ := env.signIn(t)

	w := env.analyzeATS(t, cookie, "cv.docx", resumePDF, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	uploads := env.fake.ATSUploads()
	require.Len(t, uploads, 1)
	assert.False(t, uploads[0].Authenticated)
}

func TestAnalyzeATS_Rejected(t *testing.T) {
	env := newTestEnv(t)

	w := env.analyzeATS(t, nil, "photo.png", resumePDF, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w), "photo.png")

	w = env.analyzeATS(t, nil, "empty.pdf", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, env.fake.Calls("ats"))

	w = env.do(t, http.MethodPost, "/api/ats", strings.NewReader("{}"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Too little text is the backend's call.
	w = env.analyzeATS(t, nil, "short.pdf", []byte("%PDF-1.7 tiny"), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w), "Could not extract enough text")
	assert.Equal(t, 1, env.fake.Calls("ats"))
}

func TestATSPage(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/ats", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `id="ats-form"`)
	assert.Contains(t, body, ".pdf,.docx")
	assert.Contains(t, body, "/sign-in?next=/ats")

	cookie, _ := env.signIn(t)
	w = env.do(t, http.MethodGet, "/ats", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "for the full report")
}
