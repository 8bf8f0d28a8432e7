package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

//go:embed posts/*.html
var postFS embed.FS

const (
	wordsPerMinute = 200
	excerptChars   = 200
)

// Post is a parsed blog article.
type Post struct {
	Slug           string
	Title          string
	Date           time.Time
	Tags           []string
	Excerpt        string
	ReadingMinutes int
	Body           template.HTML
}

// Blog is the set of published posts, newest first.
type Blog struct {
	posts  []Post
	bySlug map[string]int
}

// LoadBlog parses the embedded posts.
func LoadBlog() (*Blog, error) {
	return ParseBlog(postFS, "posts")
}

// ParseBlog parses every .html file in dir. The file name without extension is the slug.
func ParseBlog(fsys fs.FS, dir string) (*Blog, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	b := &Blog{bySlug: make(map[string]int)}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".html" {
			continue
		}
		f, err := fsys.Open(path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to open post %s: %w", e.Name(), err)
		}
		post, err := ParsePost(strings.TrimSuffix(e.Name(), ".html"), f)
		f.Close()
		if err != nil {
			return nil, err
		}
		b.posts = append(b.posts, post)
	}

	sort.SliceStable(b.posts, func(i, j int) bool { return b.posts[i].Date.After(b.posts[j].Date) })
	for i, p := range b.posts {
		b.bySlug[p.Slug] = i
	}
	return b, nil
}

// ParsePost reads an <article> with a data-date attribute and an <h1> title.
func ParsePost(slug string, r io.Reader) (Post, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Post{}, fmt.Errorf("failed to parse post %s: %w", slug, err)
	}

	article := doc.Find("article").First()
	if article.Length() == 0 {
		return Post{}, fmt.Errorf("post %s has no <article>", slug)
	}

	title := strings.TrimSpace(article.Find("h1").First().Text())
	if title == "" {
		return Post{}, fmt.Errorf("post %s has no title", slug)
	}

	var date time.Time
	if raw, ok := article.Attr("data-date"); ok {
		date, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return Post{}, fmt.Errorf("post %s has invalid date %q: %w", slug, raw, err)
		}
	}

	var tags []string
	if raw, ok := article.Attr("data-tags"); ok {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	lede := article.Find("p.lede").First()
	if lede.Length() == 0 {
		lede = article.Find("p").First()
	}

	words := len(strings.Fields(article.Text()))

	article.Find("h1").First().Remove()
	body, err := article.Html()
	if err != nil {
		return Post{}, fmt.Errorf("failed to render post %s: %w", slug, err)
	}

	return Post{
		Slug:           slug,
		Title:          title,
		Date:           date,
		Tags:           tags,
		Excerpt:        Excerpt(lede.Text(), excerptChars),
		ReadingMinutes: ReadingMinutes(words),
		Body:           template.HTML(strings.TrimSpace(body)), //nolint:gosec // embedded, authored content
	}, nil
}

// Posts returns all posts, newest first.
func (b *Blog) Posts() []Post {
	return b.posts
}

// Latest returns up to n newest posts.
func (b *Blog) Latest(n int) []Post {
	return b.posts[:min(n, len(b.posts))]
}

// Post looks up a post by slug.
func (b *Blog) Post(slug string) (Post, bool) {
	i, ok := b.bySlug[slug]
	if !ok {
		return Post{}, false
	}
	return b.posts[i], true
}

// ReadingMinutes estimates reading time at 200 words per minute, at least one minute.
func ReadingMinutes(words int) int {
	m := (words + wordsPerMinute - 1) / wordsPerMinute
	return max(m, 1)
}

// Excerpt collapses whitespace and cuts text at a word boundary.
func Excerpt(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= limit {
		return text
	}
	cut := text[:limit]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, ",.;:") + "…"
}
