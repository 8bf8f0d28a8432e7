package fetch

import (
	"regexp"
	"strings"
)

var (
	multiSpace  = regexp.MustCompile(`[ \t\f\v]+`)
	blankLineRe = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes extracted text while keeping headings, bullets and
// paragraph breaks. At most one blank line survives between paragraphs.
func CleanText(content string) string {
	if content == "" {
		return ""
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = strings.ReplaceAll(content, "\u00a0", " ")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = cleanLine(line)
	}

	result := blankLineRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(result)
}

func cleanLine(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ""
	}

	// Markdown headings lose their indentation.
	if strings.HasPrefix(trimmed, "#") {
		return multiSpace.ReplaceAllString(trimmed, " ")
	}

	indent := len(line) - len(strings.TrimLeft(line, " \t"))
	if isBulletLine(trimmed) {
		// Unicode bullets become markdown bullets.
		for _, b := range []string{"• ", "· "} {
			if strings.HasPrefix(trimmed, b) {
				trimmed = "- " + strings.TrimPrefix(trimmed, b)
			}
		}
	}
	return strings.Repeat(" ", indent) + multiSpace.ReplaceAllString(trimmed, " ")
}

func isBulletLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") ||
		strings.HasPrefix(trimmed, "• ") || strings.HasPrefix(trimmed, "· ")
}
