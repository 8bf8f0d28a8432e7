// Package fetch imports job descriptions from job board URLs: HTTP fetch,
// platform detection, readable-article extraction and HTML-to-text cleanup.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (compatible; ResumeOptimizer/1.0)"
	// DefaultMaxBytes bounds fetched pages.
	DefaultMaxBytes int64 = 5 << 20
)

// Page is a downloaded job posting page.
type Page struct {
	URL         string
	HTML        string
	ContentType string
	StatusCode  int
}

// Error describes a posting that could not be imported.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrInvalidURL is the cause of an Error for URLs that are not absolute http(s) URLs.
var ErrInvalidURL = errors.New("only absolute http and https URLs can be fetched")

// Options configures page downloads.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	// Client overrides the HTTP client. It bypasses the public address check.
	Client *http.Client
	// MaxBytes bounds the response body. Zero uses DefaultMaxBytes.
	MaxBytes int64
	// AllowPrivateNetworks turns off the public address check. Only the CLI,
	// which fetches on behalf of the machine's own user, and tests set it.
	AllowPrivateNetworks bool
}

// DefaultOptions returns the options used by the web app and the CLI.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

func (o *Options) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	if o.AllowPrivateNetworks {
		return &http.Client{Timeout: o.Timeout}
	}
	return &http.Client{Timeout: o.Timeout, Transport: publicTransport()}
}

func (o *Options) maxBytes() int64 {
	if o.MaxBytes > 0 {
		return o.MaxBytes
	}
	return DefaultMaxBytes
}

// ValidateURL rejects anything but absolute http and https URLs.
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &Error{URL: raw, Message: "invalid URL", Cause: ErrInvalidURL}
	}
	return nil
}

// Get downloads a page. A non-200 response returns the page along with an error.
func Get(ctx context.Context, rawURL string, opts *Options) (*Page, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{URL: rawURL, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := opts.client().Do(req)
	if err != nil {
		return nil, &Error{URL: rawURL, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, opts.maxBytes()))
	if err != nil {
		return nil, &Error{URL: rawURL, Message: "failed to read response body", Cause: err}
	}

	page := &Page{
		URL:         rawURL,
		HTML:        string(body),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}
	if resp.StatusCode != http.StatusOK {
		return page, &Error{URL: rawURL, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}
	return page, nil
}

// boilerplate is stripped from every page before selector extraction.
const boilerplate = "nav, footer, header, script, style, noscript, iframe, svg, .ad, .ads, .sidebar, .cookie-banner, .popup"

// SelectText returns the text of the first element matching one of the board's
// content selectors after removing boilerplate and the board's noise. Pages
// without a match fall back to the body.
func SelectText(html string, b Board) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find(boilerplate).Remove()
	if len(b.Noise) > 0 {
		doc.Find(strings.Join(b.Noise, ", ")).Remove()
	}

	content := doc.Find("body")
	for _, sel := range b.Content {
		if found := doc.Find(sel); found.Length() > 0 {
			content = found.First()
			break
		}
	}
	return collapseLines(content.Text()), nil
}

// collapseLines trims every line and drops the empty ones.
func collapseLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
