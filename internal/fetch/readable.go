package fetch

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	readability "github.com/go-shiori/go-readability"
)

var htmlTagRe = regexp.MustCompile(`(?is)<\s*(p|div|br|ul|ol|li|h[1-6]|span|strong|em|b|i|a|section|article|table)\b[^>]*>`)

// LooksLikeHTML reports whether pasted text is HTML markup rather than plain text.
func LooksLikeHTML(s string) bool {
	return len(htmlTagRe.FindAllStringIndex(s, 3)) >= 2
}

// HTMLToMarkdown converts an HTML fragment into markdown text.
func HTMLToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	// Scripts and styles never carry posting text.
	converter.Remove("script", "style", "noscript", "iframe", "form")
	out, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML: %w", err)
	}
	return CleanText(out), nil
}

// Article is the readable part of a page.
type Article struct {
	Title    string
	SiteName string
	Markdown string
}

// Readable extracts the main article of a page and renders it as markdown.
func Readable(html, pageURL string) (*Article, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url: %w", err)
	}
	art, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return nil, fmt.Errorf("failed to extract article: %w", err)
	}

	text := ""
	if art.Content != "" {
		text, err = HTMLToMarkdown(art.Content)
		if err != nil {
			return nil, err
		}
	}
	if text == "" {
		text = CleanText(art.TextContent)
	}
	return &Article{Title: strings.TrimSpace(art.Title), SiteName: art.SiteName, Markdown: text}, nil
}
