package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNoContent is returned when no posting text could be extracted from a page.
var ErrNoContent = errors.New("no job description found on the page")

// Extraction sources.
const (
	SourceReadability = "readability"
	SourceSelectors   = "selectors"
	SourceBrowser     = "browser"
)

// JobDescription is a posting imported from a URL.
type JobDescription struct {
	URL       string    `json:"url"`
	Platform  Platform  `json:"platform"`
	Title     string    `json:"title,omitempty"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

// ImporterConfig configures an Importer.
type ImporterConfig struct {
	Options *Options
	// Render enables the headless browser fallback for script-rendered boards.
	Render RenderFunc
	Logger *slog.Logger
}

// Importer turns job board URLs into cleaned posting text.
type Importer struct {
	opts   *Options
	render RenderFunc
	logger *slog.Logger
}

// NewImporter creates an Importer.
func NewImporter(cfg ImporterConfig) *Importer {
	if cfg.Options == nil {
		cfg.Options = DefaultOptions()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Importer{opts: cfg.Options, render: cfg.Render, logger: cfg.Logger}
}

// Import fetches a posting. Known job boards are read with their own selectors
// first, other pages with readability first. Short results fall back to the
// browser when one is configured.
func (im *Importer) Import(ctx context.Context, urlStr string) (*JobDescription, error) {
	board := BoardFor(urlStr)
	logger := im.logger.With("url", urlStr, "platform", board.Platform)

	page, err := Get(ctx, urlStr, im.opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("fetched page", "bytes", len(page.HTML))

	jd := extract(page.HTML, urlStr, board)
	if ShouldUseBrowser(jd.Text) && im.render != nil {
		logger.Debug("content too short, rendering in browser", "chars", len(jd.Text))
		html, err := im.renderPage(ctx, urlStr)
		if err != nil {
			logger.Warn("browser rendering failed, keeping fetched content", "error", err)
		} else if rendered := extract(html, urlStr, board); len(rendered.Text) > len(jd.Text) {
			rendered.Source = SourceBrowser
			jd = rendered
		}
	}

	if jd.Text == "" {
		return nil, &Error{URL: urlStr, Message: "extraction failed", Cause: ErrNoContent}
	}
	jd.FetchedAt = time.Now().UTC()
	logger.Info("imported job description", "source", jd.Source, "chars", len(jd.Text))
	return jd, nil
}

// renderPage re-checks the host before the browser resolves it again.
func (im *Importer) renderPage(ctx context.Context, urlStr string) (string, error) {
	if !im.opts.AllowPrivateNetworks {
		if err := CheckHost(ctx, urlStr); err != nil {
			return "", err
		}
	}
	return im.render(ctx, urlStr)
}

func extract(html, urlStr string, board Board) *JobDescription {
	jd := &JobDescription{URL: urlStr, Platform: board.Platform}

	bySelectors := func() string {
		text, err := SelectText(html, board)
		if err != nil {
			return ""
		}
		return CleanText(text)
	}
	byReadability := func() (string, string) {
		art, err := Readable(html, urlStr)
		if err != nil {
			return "", ""
		}
		return art.Markdown, art.Title
	}

	if board.Platform != PlatformUnknown {
		if text := bySelectors(); !ShouldUseBrowser(text) {
			jd.Text, jd.Source = text, SourceSelectors
			return jd
		}
	}

	text, title := byReadability()
	jd.Title = title
	jd.Text, jd.Source = text, SourceReadability
	if sel := bySelectors(); len(sel) > len(jd.Text) {
		jd.Text, jd.Source = sel, SourceSelectors
	}
	return jd
}

// String implements fmt.Stringer for logs.
func (jd *JobDescription) String() string {
	return fmt.Sprintf("%s (%s, %d chars)", jd.URL, jd.Source, len(jd.Text))
}
