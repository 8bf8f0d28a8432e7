package web

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBlog_Embedded(t *testing.T) {
	blog, err := LoadBlog()
	require.NoError(t, err)

	posts := blog.Posts()
	require.NotEmpty(t, posts)
	for i := 1; i < len(posts); i++ {
		assert.False(t, posts[i].Date.After(posts[i-1].Date), "posts must be newest first")
	}

	p, ok := blog.Post("why-latex-resumes")
	require.True(t, ok)
	assert.Equal(t, "Why we build on LaTeX resumes", p.Title)
	assert.Equal(t, []string{"latex"}, p.Tags)
	assert.NotContains(t, string(p.Body), "<h1>")

	_, ok = blog.Post("missing")
	assert.False(t, ok)
}

func TestParsePost(t *testing.T) {
	body := strings.Repeat("word ", 450)
	src := `<article data-date="2024-01-02"><h1> Title </h1><p>First   paragraph
here.</p><p>` + body + `</p></article>`

	p, err := ParsePost("slug", strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "Title", p.Title)
	assert.Equal(t, 2024, p.Date.Year())
	assert.Equal(t, "First paragraph here.", p.Excerpt)
	assert.Equal(t, 3, p.ReadingMinutes)
}

func TestParsePost_Errors(t *testing.T) {
	_, err := ParsePost("a", strings.NewReader(`<div>no article</div>`))
	assert.Error(t, err)

	_, err = ParsePost("b", strings.NewReader(`<article><p>untitled</p></article>`))
	assert.Error(t, err)

	_, err = ParsePost("c", strings.NewReader(`<article data-date="yesterday"><h1>T</h1></article>`))
	assert.Error(t, err)
}

func TestParseBlog_SkipsNonHTML(t *testing.T) {
	fsys := fstest.MapFS{
		"posts/one.html":  {Data: []byte(`<article data-date="2024-02-01"><h1>One</h1><p>x</p></article>`)},
		"posts/two.html":  {Data: []byte(`<article data-date="2024-03-01"><h1>Two</h1><p>y</p></article>`)},
		"posts/notes.txt": {Data: []byte("ignored")},
	}
	blog, err := ParseBlog(fsys, "posts")
	require.NoError(t, err)
	require.Len(t, blog.Posts(), 2)
	assert.Equal(t, "two", blog.Posts()[0].Slug)
	assert.Len(t, blog.Latest(1), 1)
	assert.Len(t, blog.Latest(10), 2)
}

func TestReadingMinutes(t *testing.T) {
	assert.Equal(t, 1, ReadingMinutes(0))
	assert.Equal(t, 1, ReadingMinutes(200))
	assert.Equal(t, 2, ReadingMinutes(201))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short text", Excerpt("  short \n text ", 50))
	assert.Equal(t, "alpha beta…", Excerpt("alpha beta gamma", 12))
}
