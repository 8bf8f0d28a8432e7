package fetch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooksLikeHTML(t *testing.T) {
	assert.True(t, LooksLikeHTML("<div><p>We are hiring</p><ul><li>Go</li></ul></div>"))
	assert.False(t, LooksLikeHTML("We need 5+ years of Go. Salary <100k> negotiable."))
	assert.False(t, LooksLikeHTML("plain text posting"))
}

func TestHTMLToMarkdown(t *testing.T) {
	out, err := HTMLToMarkdown(`<h2>Requirements</h2><ul><li>Go</li><li>Postgres</li></ul><script>track()</script>`)
	require.NoError(t, err)
	assert.Contains(t, out, "## Requirements")
	assert.Contains(t, out, "- Go")
	assert.Contains(t, out, "- Postgres")
	assert.NotContains(t, out, "track()")
}

func TestReadable(t *testing.T) {
	para := strings.Repeat("We build reliable distributed systems in Go and care about craft. ", 12)
	html := `<html><head><title>Backend Engineer at Acme</title></head><body>
		<nav>Home | Jobs | About</nav>
		<article><h1>Backend Engineer</h1><p>` + para + `</p><p>` + para + `</p></article>
		<footer>Copyright Acme</footer></body></html>`

	art, err := Readable(html, "https://acme.example/jobs/1")
	require.NoError(t, err)
	assert.Contains(t, art.Markdown, "distributed systems")
	assert.NotContains(t, art.Markdown, "Copyright Acme")
	assert.NotEmpty(t, art.Title)
}
