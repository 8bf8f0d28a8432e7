// Package web renders the marketing site and the signed-in workspace.
//
// Pages are html/template files sharing one layout. Each rendered page is a
// templ.Component so handlers serve them with templ.Handler.
package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/jonathan/resume-optimizer/internal/observability"
	"github.com/jonathan/resume-optimizer/internal/types"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page names.
const (
	PageHome      = "home"
	PageFeatures  = "features"
	PagePricing   = "pricing"
	PageBlog      = "blog"
	PagePost      = "post"
	PageSignIn    = "signin"
	PageWorkspace = "workspace"
	PageJob       = "job"
	PageDashboard = "dashboard"
	PageSettings  = "settings"
	PageATS       = "ats"
	PageError     = "error"
)

var pageNames = []string{
	PageHome, PageFeatures, PagePricing, PageBlog, PagePost, PageSignIn,
	PageWorkspace, PageJob, PageDashboard, PageSettings, PageATS, PageError,
}

// View is what every page template receives.
type View struct {
	Title  string
	Active string
	User   *types.User
	Data   any
}

// Renderer holds the parsed page templates.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses every page against the shared layout.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse page %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Page returns a component rendering the named page. The page is rendered to
// a buffer first so a template error never leaves half a document behind.
func (r *Renderer) Page(name string, v View) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		t, ok := r.pages[name]
		if !ok {
			return fmt.Errorf("unknown page %q", name)
		}
		var buf bytes.Buffer
		if err := t.ExecuteTemplate(&buf, "layout", v); err != nil {
			return fmt.Errorf("failed to render page %s: %w", name, err)
		}
		_, err := buf.WriteTo(w)
		return err
	})
}

// Handler serves a page with the given status code.
func (r *Renderer) Handler(name string, status int, v View) http.Handler {
	return templ.Handler(r.Page(name, v), templ.WithStatus(status))
}

// Error serves the error page.
func (r *Renderer) Error(w http.ResponseWriter, req *http.Request, status int, message string, user *types.User) {
	if message == "" {
		message = http.StatusText(status)
	}
	r.Handler(PageError, status, View{
		Title: http.StatusText(status),
		User:  user,
		Data:  ErrorData{Status: status, Message: message},
	}).ServeHTTP(w, req)
}

// StaticHandler serves the embedded scripts and stylesheets.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2, 2006")
	},
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2, 2006 15:04")
	},
	"bytes":  observability.FormatBytes,
	"millis": observability.FormatMillis,
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
	"terminal": func(s types.JobState) bool { return s.IsTerminal() },
	"lower":    strings.ToLower,
	"short": func(s string) string {
		if len(s) <= 8 {
			return s
		}
		return s[:8]
	},
}
