package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"crlf and spaces", "Senior   Engineer\r\nRemote\t\tOK", "Senior Engineer\nRemote OK"},
		{"blank lines collapse", "a\n\n\n\n\nb", "a\n\nb"},
		{"headings lose indent", "   ## About   the role", "## About the role"},
		{"unicode bullets", "• Go\n  · Kubernetes", "- Go\n  - Kubernetes"},
		{"nbsp", "Go\u00a0developer", "Go developer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanText(tt.input))
		})
	}
}
