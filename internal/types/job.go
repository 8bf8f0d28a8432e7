package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// JobState is the lifecycle state reported by the optimization backend.
type JobState string

// Job states. Completed and failed are terminal.
const (
	JobPending    JobState = "pending"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// IsTerminal reports whether polling should stop.
func (s JobState) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// GenericFailureMessage is shown when a failed job carries no error text.
const GenericFailureMessage = "Optimization failed."

// LLMConfig is the provider block of an optimization request.
type LLMConfig struct {
	Provider       Provider `json:"provider" validate:"required"`
	Model          string   `json:"model" validate:"required"`
	APIKey         string   `json:"api_key" validate:"required"`
	CustomEndpoint string   `json:"custom_endpoint,omitempty"`
}

// LLMConfigFrom converts a stored provider configuration.
func LLMConfigFrom(c ProviderConfig) LLMConfig {
	return LLMConfig{
		Provider:       c.Provider,
		Model:          c.Model,
		APIKey:         c.APIKey,
		CustomEndpoint: c.CustomEndpoint,
	}
}

// OptimizeRequest is the submission body sent to the backend.
type OptimizeRequest struct {
	TexContent          string    `json:"tex_content" validate:"required,min=10"`
	JobDescription      string    `json:"job_description" validate:"required,min=10"`
	CompanyName         string    `json:"company_name" validate:"required,min=1"`
	CustomInstructions  string    `json:"custom_instructions,omitempty"`
	LLMConfig           LLMConfig `json:"llm_config" validate:"required"`
	GenerateColdEmail   bool      `json:"generate_cold_email"`
	GenerateCoverLetter bool      `json:"generate_cover_letter"`
}

// Validate validates the OptimizeRequest using the validator.
func (r *OptimizeRequest) Validate() error {
	return validator.New().Struct(r)
}

// SubmitResponse acknowledges a submission.
type SubmitResponse struct {
	OptimizationID       string   `json:"optimization_id"`
	Status               JobState `json:"status"`
	EstimatedTimeSeconds *int     `json:"estimated_time_seconds,omitempty"`
}

// JobStatus is one poll of the status resource.
type JobStatus struct {
	OptimizationID string   `json:"optimization_id"`
	Status         JobState `json:"status"`
	Progress       int      `json:"progress"`
	Message        string   `json:"message,omitempty"`
	ResultURL      string   `json:"result_url,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// FailureMessage returns the error text, else the message, else the generic text.
func (s *JobStatus) FailureMessage() string {
	switch {
	case s.Error != "":
		return s.Error
	case s.Message != "":
		return s.Message
	default:
		return GenericFailureMessage
	}
}

// ProcessingStats are the backend's usage figures for a finished job.
type ProcessingStats struct {
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
	InputChars            int     `json:"input_chars"`
	OutputChars           int     `json:"output_chars"`
	Provider              string  `json:"provider"`
	Model                 string  `json:"model"`
	Cached                bool    `json:"cached"`
}

// JobResult is the result resource of a job.
type JobResult struct {
	OptimizationID     string           `json:"optimization_id"`
	Status             JobState         `json:"status"`
	OptimizedTex       string           `json:"optimized_tex,omitempty"`
	OriginalTex        string           `json:"original_tex,omitempty"`
	JobDescription     string           `json:"job_description,omitempty"`
	CompanyName        string           `json:"company_name,omitempty"`
	CustomInstructions string           `json:"custom_instructions,omitempty"`
	PDFDownloadURL     string           `json:"pdf_download_url,omitempty"`
	LatexDownloadURL   string           `json:"latex_download_url,omitempty"`
	ErrorMessage       string           `json:"error_message,omitempty"`
	ColdEmail          string           `json:"cold_email,omitempty"`
	CoverLetter        string           `json:"cover_letter,omitempty"`
	ProcessingStats    *ProcessingStats `json:"processing_stats,omitempty"`
}

// HasPDF reports whether compilation produced a document.
func (r *JobResult) HasPDF() bool {
	return r != nil && r.PDFDownloadURL != ""
}

// CompileRequest recompiles edited LaTeX source.
type CompileRequest struct {
	TexContent     string `json:"tex_content" validate:"required,min=10"`
	OptimizationID string `json:"optimization_id,omitempty"`
}

// Validate validates the CompileRequest using the validator.
func (r *CompileRequest) Validate() error {
	return validator.New().Struct(r)
}

// CompileResponse is the backend's answer to a recompile.
type CompileResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	CompileID      string `json:"compile_id,omitempty"`
	PDFDownloadURL string `json:"pdf_download_url,omitempty"`
}

// SubmitInput is what a user fills in on the workspace form.
type SubmitInput struct {
	TemplateID          uuid.UUID `json:"template_id"`
	JobDescription      string    `json:"job_description" validate:"required,min=10"`
	CompanyName         string    `json:"company_name" validate:"required,min=1"`
	CustomInstructions  string    `json:"custom_instructions,omitempty"`
	GenerateColdEmail   bool      `json:"generate_cold_email"`
	GenerateCoverLetter bool      `json:"generate_cover_letter"`
}

// Validate validates the SubmitInput using the validator.
func (i *SubmitInput) Validate() error {
	return validator.New().Struct(i)
}

// JobRecord is the locally remembered metadata of a submitted job.
type JobRecord struct {
	ID          string     `json:"id"`
	CompanyName string     `json:"company_name"`
	Provider    Provider   `json:"provider"`
	Model       string     `json:"model"`
	TemplateID  uuid.UUID  `json:"template_id"`
	State       JobState   `json:"state"`
	Progress    int        `json:"progress"`
	Message     string     `json:"message,omitempty"`
	PDFURL      string     `json:"pdf_url,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Apply folds a status poll into the record.
func (r *JobRecord) Apply(s *JobStatus, now time.Time) {
	r.State = s.Status
	r.Progress = s.Progress
	r.Message = s.Message
	if s.Status == JobFailed {
		r.Message = s.FailureMessage()
	}
	if s.Status.IsTerminal() && r.FinishedAt == nil {
		r.FinishedAt = &now
	}
}
