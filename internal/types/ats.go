package types

import (
	"github.com/go-playground/validator/v10"
)

// ATSRequest is a resume file sent for an applicant tracking system check.
type ATSRequest struct {
	Filename       string `validate:"required"`
	Content        []byte `validate:"required"`
	JobDescription string
}

// Validate validates the ATSRequest using the validator.
func (r *ATSRequest) Validate() error {
	return validator.New().Struct(r)
}

// KeywordAnalysis compares resume keywords against the job description.
type KeywordAnalysis struct {
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
	MissingKeywords []string `json:"missing_keywords,omitempty"`
	MatchPercentage int      `json:"match_percentage"`
}

// ATSAnalysis is the backend's ATS report. Signed-out callers get the score,
// the summary and the first suggestions; the detailed fields are nil and
// LockedFeatures names what signing in unlocks.
type ATSAnalysis struct {
	Score           int    `json:"score"`
	IsAuthenticated bool   `json:"is_authenticated"`
	Summary         string `json:"summary"`
	FileType        string `json:"file_type,omitempty"`

	KeywordAnalysis  *KeywordAnalysis    `json:"keyword_analysis,omitempty"`
	FormattingIssues []string            `json:"formatting_issues,omitempty"`
	SectionsDetected map[string]bool     `json:"sections_detected,omitempty"`
	MissingSkills    []string            `json:"missing_skills,omitempty"`
	ActionVerbs      map[string][]string `json:"action_verbs,omitempty"`
	Suggestions      []string            `json:"suggestions,omitempty"`
	LockedFeatures   []string            `json:"locked_features,omitempty"`
}

// Locked reports whether the detailed report is withheld.
func (a *ATSAnalysis) Locked() bool {
	return a != nil && len(a.LockedFeatures) > 0
}

// Rating buckets the score the way the report page colors it.
func (a *ATSAnalysis) Rating() string {
	switch {
	case a == nil:
		return ""
	case a.Score >= 90:
		return "excellent"
	case a.Score >= 70:
		return "good"
	case a.Score >= 50:
		return "fair"
	default:
		return "poor"
	}
}
