package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var longPosting = strings.Repeat("You will design APIs, own services and mentor engineers on the platform team. ", 10)

func serveHTML(t *testing.T, html string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(html))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestImporter_ReadableArticle(t *testing.T) {
	srv := serveHTML(t, `<html><head><title>Platform Engineer</title></head><body>
		<nav>menu</nav><article><h1>Platform Engineer</h1><p>`+longPosting+`</p></article></body></html>`)

	jd, err := NewImporter(ImporterConfig{Options: localOptions()}).Import(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, jd.Text, "mentor engineers")
	assert.Equal(t, PlatformUnknown, jd.Platform)
	assert.False(t, jd.FetchedAt.IsZero())
}

func TestImporter_BrowserFallback(t *testing.T) {
	srv := serveHTML(t, `<html><body><div id="root"></div></body></html>`)

	var rendered int
	im := NewImporter(ImporterConfig{Options: localOptions(), Render: func(_ context.Context, url string) (string, error) {
		rendered++
		return `<html><body><main><h1>Role</h1><p>` + longPosting + `</p></main></body></html>`, nil
	}})

	jd, err := im.Import(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 1, rendered)
	assert.Equal(t, SourceBrowser, jd.Source)
	assert.Contains(t, jd.Text, "design APIs")
}

func TestImporter_BrowserFailureKeepsFetchedContent(t *testing.T) {
	srv := serveHTML(t, `<html><body><main><p>Short posting: Go engineer wanted.</p></main></body></html>`)

	im := NewImporter(ImporterConfig{Options: localOptions(), Render: func(context.Context, string) (string, error) {
		return "", errors.New("no chrome")
	}})
	jd, err := im.Import(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, jd.Text, "Go engineer wanted")
}

func TestImporter_EmptyPage(t *testing.T) {
	srv := serveHTML(t, `<html><body></body></html>`)

	_, err := NewImporter(ImporterConfig{Options: localOptions()}).Import(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrNoContent)
}
