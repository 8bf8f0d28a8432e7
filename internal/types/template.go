package types

import (
	"time"

	"github.com/google/uuid"
)

// Template is an uploaded LaTeX resume source.
type Template struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Content    string    `json:"content"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// TemplateSummary is a Template without its content, for listings.
type TemplateSummary struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
	Selected   bool      `json:"selected"`
}

// Summary drops the content.
func (t Template) Summary(selected bool) TemplateSummary {
	return TemplateSummary{
		ID:         t.ID,
		Name:       t.Name,
		SizeBytes:  t.SizeBytes,
		UploadedAt: t.UploadedAt,
		Selected:   selected,
	}
}
