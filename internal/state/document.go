// Package state is the single module boundary for per-user persisted state:
// session credential, provider configuration, uploaded templates, the
// in-progress form and recent job metadata. The state is one versioned
// document per owner, migrated forward on read.
package state

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// CurrentVersion is the schema version written by this package.
const CurrentVersion = 2

// MaxJobs bounds the recent job list.
const MaxJobs = 20

var (
	ErrIncompleteProvider = errors.New("provider, model and API key are all required")
	ErrTooManyTemplates   = errors.New("template limit reached; delete one first")
	ErrTemplateNotFound   = errors.New("template not found")
	ErrNoTemplate         = errors.New("no template selected")
	ErrJobNotFound        = errors.New("job not found")
	ErrUnsupportedVersion = errors.New("state document was written by a newer version")
)

// Session is the backend credential obtained at sign-in.
type Session struct {
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issued_at"`
}

// Draft is the in-progress submission form.
type Draft struct {
	JobDescription      string `json:"job_description,omitempty"`
	CompanyName         string `json:"company_name,omitempty"`
	CustomInstructions  string `json:"custom_instructions,omitempty"`
	GenerateColdEmail   bool   `json:"generate_cold_email,omitempty"`
	GenerateCoverLetter bool   `json:"generate_cover_letter,omitempty"`
}

// Document is the typed per-owner state.
type Document struct {
	Version            int                   `json:"version"`
	Session            *Session              `json:"session,omitempty"`
	Provider           *types.ProviderConfig `json:"provider,omitempty"`
	Templates          []types.Template      `json:"templates,omitempty"`
	SelectedTemplateID uuid.UUID             `json:"selected_template_id"`
	Draft              Draft                 `json:"draft"`
	Jobs               []types.JobRecord     `json:"jobs,omitempty"`
}

// New returns an empty document at the current version.
func New() *Document {
	return &Document{Version: CurrentVersion}
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := *d
	if d.Session != nil {
		s := *d.Session
		c.Session = &s
	}
	if d.Provider != nil {
		p := *d.Provider
		c.Provider = &p
	}
	c.Templates = append([]types.Template(nil), d.Templates...)
	c.Jobs = make([]types.JobRecord, len(d.Jobs))
	for i, j := range d.Jobs {
		if j.FinishedAt != nil {
			at := *j.FinishedAt
			j.FinishedAt = &at
		}
		c.Jobs[i] = j
	}
	return &c
}

// SetSession stores the backend credential.
func (d *Document) SetSession(token string, now time.Time) {
	d.Session = &Session{Token: token, IssuedAt: now}
}

// ClearSession forgets the backend credential.
func (d *Document) ClearSession() {
	d.Session = nil
}

// SessionToken returns the credential, or "" when signed out.
func (d *Document) SessionToken() string {
	if d.Session == nil {
		return ""
	}
	return d.Session.Token
}

// SetProvider replaces the provider configuration. Partial configurations are rejected
// and leave the document unchanged.
func (d *Document) SetProvider(cfg types.ProviderConfig) error {
	if !cfg.Complete() {
		return ErrIncompleteProvider
	}
	d.Provider = &cfg
	return nil
}

// DisconnectProvider clears provider, model, key and endpoint together.
func (d *Document) DisconnectProvider() {
	d.Provider = nil
}

// ProviderReady reports whether a complete provider configuration is stored.
func (d *Document) ProviderReady() bool {
	return d.Provider.Complete()
}

// AddTemplate appends a template. The first template becomes selected.
func (d *Document) AddTemplate(t types.Template, maxTemplates int) error {
	if maxTemplates > 0 && len(d.Templates) >= maxTemplates {
		return ErrTooManyTemplates
	}
	d.Templates = append(d.Templates, t)
	if d.SelectedTemplateID == uuid.Nil {
		d.SelectedTemplateID = t.ID
	}
	return nil
}

// DeleteTemplate removes a template. Deleting the selected one selects the
// template now first in the list, or none if the list is empty.
func (d *Document) DeleteTemplate(id uuid.UUID) error {
	idx := d.templateIndex(id)
	if idx < 0 {
		return ErrTemplateNotFound
	}
	d.Templates = append(d.Templates[:idx], d.Templates[idx+1:]...)

	if d.SelectedTemplateID == id {
		d.SelectedTemplateID = uuid.Nil
		if len(d.Templates) > 0 {
			d.SelectedTemplateID = d.Templates[0].ID
		}
	}
	return nil
}

// SelectTemplate marks a template as selected.
func (d *Document) SelectTemplate(id uuid.UUID) error {
	if d.templateIndex(id) < 0 {
		return ErrTemplateNotFound
	}
	d.SelectedTemplateID = id
	return nil
}

// Template looks up a template by id.
func (d *Document) Template(id uuid.UUID) (*types.Template, bool) {
	idx := d.templateIndex(id)
	if idx < 0 {
		return nil, false
	}
	return &d.Templates[idx], true
}

// SelectedTemplate returns the selected template.
func (d *Document) SelectedTemplate() (*types.Template, bool) {
	return d.Template(d.SelectedTemplateID)
}

// SelectedIndex returns the list position of the selected template, or -1.
func (d *Document) SelectedIndex() int {
	if d.SelectedTemplateID == uuid.Nil {
		return -1
	}
	return d.templateIndex(d.SelectedTemplateID)
}

// TemplateSummaries lists templates without content.
func (d *Document) TemplateSummaries() []types.TemplateSummary {
	out := make([]types.TemplateSummary, 0, len(d.Templates))
	for _, t := range d.Templates {
		out = append(out, t.Summary(t.ID == d.SelectedTemplateID))
	}
	return out
}

func (d *Document) templateIndex(id uuid.UUID) int {
	for i := range d.Templates {
		if d.Templates[i].ID == id {
			return i
		}
	}
	return -1
}

// RecordJob puts a job at the front of the recent list, replacing any record with the same id.
func (d *Document) RecordJob(rec types.JobRecord) {
	jobs := make([]types.JobRecord, 0, len(d.Jobs)+1)
	jobs = append(jobs, rec)
	for _, j := range d.Jobs {
		if j.ID != rec.ID {
			jobs = append(jobs, j)
		}
	}
	if len(jobs) > MaxJobs {
		jobs = jobs[:MaxJobs]
	}
	d.Jobs = jobs
}

// UpdateJob applies fn to the record of a job.
func (d *Document) UpdateJob(id string, fn func(*types.JobRecord)) error {
	for i := range d.Jobs {
		if d.Jobs[i].ID == id {
			fn(&d.Jobs[i])
			return nil
		}
	}
	return ErrJobNotFound
}

// FindJob returns a copy of a job record.
func (d *Document) FindJob(id string) (types.JobRecord, bool) {
	for _, j := range d.Jobs {
		if j.ID == id {
			return j, true
		}
	}
	return types.JobRecord{}, false
}

// RemoveJob drops a job record.
func (d *Document) RemoveJob(id string) error {
	for i := range d.Jobs {
		if d.Jobs[i].ID == id {
			d.Jobs = append(d.Jobs[:i], d.Jobs[i+1:]...)
			return nil
		}
	}
	return ErrJobNotFound
}
