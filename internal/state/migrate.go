package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/resume-optimizer/internal/schemas"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// Legacy (version 1) flat keys.
const (
	legacyToken         = "token"
	legacyProvider      = "llm_provider"
	legacyModel         = "llm_model"
	legacyAPIKey        = "llm_api_key"
	legacyEndpoint      = "llm_custom_endpoint"
	legacyTemplates     = "uploaded_templates"
	legacySelectedIndex = "selected_template_index"
	legacyForm          = "optimization_form"
	legacyJobPrefix     = "job_"
)

// Decoded is the result of reading a stored document.
type Decoded struct {
	Doc         *Document
	FromVersion int
	// Dropped lists pieces that failed to parse and fell back to defaults.
	Dropped []error
}

// Decode reads a stored document of any supported version and migrates it to
// the current one. Unparseable pieces are dropped, never fatal.
func Decode(raw []byte) (*Decoded, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return &Decoded{Doc: New(), FromVersion: CurrentVersion}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return &Decoded{
			Doc:         New(),
			FromVersion: CurrentVersion,
			Dropped:     []error{fmt.Errorf("document: %w", err)},
		}, nil
	}

	version := 1
	if v, ok := fields["version"]; ok {
		if err := json.Unmarshal(v, &version); err != nil {
			version = 1
		}
	}

	switch {
	case version > CurrentVersion:
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedVersion, version)
	case version <= 1:
		d := &Decoded{FromVersion: 1}
		d.Doc = migrateV1(fields, &d.Dropped)
		normalize(d.Doc)
		return d, nil
	}

	d := &Decoded{FromVersion: version}
	if err := schemas.Validate(schemas.State, raw); err == nil {
		var doc Document
		if err := json.Unmarshal(raw, &doc); err == nil {
			d.Doc = &doc
		}
	}
	if d.Doc == nil {
		d.Doc = decodeTolerant(fields, &d.Dropped)
	}
	d.Doc.Version = CurrentVersion
	normalize(d.Doc)
	return d, nil
}

// Encode serializes a document at the current version.
func Encode(doc *Document) ([]byte, error) {
	doc.Version = CurrentVersion
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return data, nil
}

func decodeField[T any](fields map[string]json.RawMessage, key string, dst *T, dropped *[]error) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		*dropped = append(*dropped, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = v
}

func decodeTolerant(fields map[string]json.RawMessage, dropped *[]error) *Document {
	doc := New()
	decodeField(fields, "session", &doc.Session, dropped)
	decodeField(fields, "provider", &doc.Provider, dropped)
	decodeField(fields, "selected_template_id", &doc.SelectedTemplateID, dropped)
	decodeField(fields, "draft", &doc.Draft, dropped)

	var templates []json.RawMessage
	decodeField(fields, "templates", &templates, dropped)
	for i, raw := range templates {
		var t types.Template
		if err := json.Unmarshal(raw, &t); err != nil {
			*dropped = append(*dropped, fmt.Errorf("templates[%d]: %w", i, err))
			continue
		}
		doc.Templates = append(doc.Templates, t)
	}

	var jobs []json.RawMessage
	decodeField(fields, "jobs", &jobs, dropped)
	for i, raw := range jobs {
		var j types.JobRecord
		if err := json.Unmarshal(raw, &j); err != nil || j.ID == "" {
			*dropped = append(*dropped, fmt.Errorf("jobs[%d]: unreadable record", i))
			continue
		}
		doc.Jobs = append(doc.Jobs, j)
	}
	return doc
}

// legacyString reads a value that the old layout stored as a string.
func legacyString(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// legacyJSON decodes a value the old layout stored as a JSON-encoded string.
func legacyJSON(fields map[string]json.RawMessage, key string, dst any, dropped *[]error) bool {
	s := legacyString(fields, key)
	if s == "" || s == "null" {
		return false
	}
	if err := json.Unmarshal([]byte(s), dst); err != nil {
		*dropped = append(*dropped, fmt.Errorf("%s: %w", key, err))
		return false
	}
	return true
}

type legacyTemplate struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Size    int64  `json:"size"`
}

type legacyFormData struct {
	JobDescription      string `json:"jobDescription"`
	CompanyName         string `json:"companyName"`
	CustomInstructions  string `json:"customInstructions"`
	GenerateColdEmail   bool   `json:"generateColdEmail"`
	GenerateCoverLetter bool   `json:"generateCoverLetter"`
}

type legacyJob struct {
	CompanyName string `json:"companyName"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
	SubmittedAt string `json:"submittedAt"`
}

func migrateV1(fields map[string]json.RawMessage, dropped *[]error) *Document {
	doc := New()

	if token := legacyString(fields, legacyToken); token != "" {
		doc.Session = &Session{Token: token}
	}

	// Partial provider settings are kept; Complete() reports them as unusable.
	provider := types.ProviderConfig{
		Provider:       types.Provider(legacyString(fields, legacyProvider)),
		Model:          legacyString(fields, legacyModel),
		APIKey:         legacyString(fields, legacyAPIKey),
		CustomEndpoint: legacyString(fields, legacyEndpoint),
	}
	if provider != (types.ProviderConfig{}) {
		doc.Provider = &provider
	}

	var templates []legacyTemplate
	if legacyJSON(fields, legacyTemplates, &templates, dropped) {
		for _, t := range templates {
			if t.Name == "" {
				continue
			}
			size := t.Size
			if size <= 0 {
				size = int64(len(t.Content))
			}
			doc.Templates = append(doc.Templates, types.Template{
				ID:        uuid.New(),
				Name:      t.Name,
				Content:   t.Content,
				SizeBytes: size,
			})
		}
	}

	if len(doc.Templates) > 0 {
		doc.SelectedTemplateID = doc.Templates[0].ID
		if s := legacyString(fields, legacySelectedIndex); s != "" {
			idx, err := strconv.Atoi(s)
			switch {
			case err != nil:
				*dropped = append(*dropped, fmt.Errorf("%s: %w", legacySelectedIndex, err))
			case idx >= 0 && idx < len(doc.Templates):
				doc.SelectedTemplateID = doc.Templates[idx].ID
			}
		}
	}

	var form legacyFormData
	if legacyJSON(fields, legacyForm, &form, dropped) {
		doc.Draft = Draft(form)
	}

	keys := make([]string, 0)
	for key := range fields {
		if strings.HasPrefix(key, legacyJobPrefix) && len(key) > len(legacyJobPrefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		var j legacyJob
		if !legacyJSON(fields, key, &j, dropped) {
			continue
		}
		rec := types.JobRecord{
			ID:          strings.TrimPrefix(key, legacyJobPrefix),
			CompanyName: j.CompanyName,
			Provider:    types.Provider(j.Provider),
			Model:       j.Model,
			State:       types.JobState(j.Status),
			Progress:    j.Progress,
		}
		if rec.State == "" {
			rec.State = types.JobPending
		}
		if at, err := time.Parse(time.RFC3339, j.SubmittedAt); err == nil {
			rec.SubmittedAt = at
		}
		doc.Jobs = append(doc.Jobs, rec)
	}
	sort.SliceStable(doc.Jobs, func(a, b int) bool {
		return doc.Jobs[a].SubmittedAt.After(doc.Jobs[b].SubmittedAt)
	})

	return doc
}

// normalize repairs invariants a stored document may violate: unique non-nil
// template ids, a selection that points at an existing template, a bounded job list.
func normalize(doc *Document) {
	seen := make(map[uuid.UUID]bool, len(doc.Templates))
	for i := range doc.Templates {
		if doc.Templates[i].ID == uuid.Nil || seen[doc.Templates[i].ID] {
			doc.Templates[i].ID = uuid.New()
		}
		seen[doc.Templates[i].ID] = true
	}

	if doc.SelectedTemplateID != uuid.Nil && !seen[doc.SelectedTemplateID] {
		doc.SelectedTemplateID = uuid.Nil
	}
	if doc.SelectedTemplateID == uuid.Nil && len(doc.Templates) > 0 {
		doc.SelectedTemplateID = doc.Templates[0].ID
	}

	if len(doc.Jobs) > MaxJobs {
		doc.Jobs = doc.Jobs[:MaxJobs]
	}
}
