package generation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Citation struct {
	Title   string `json:"title"`
	Authors string `json:"authors"`
	Journal string `json:"journal"`
	Year    int    `json:"year"`
}

// Reference renders the citation in the compact form stored on each
// suggestion's evidence_source field.
func (c Citation) Reference() string {
	return fmt.Sprintf("%s. %s. %s. %d.", strings.TrimRight(c.Authors, "."), strings.TrimRight(c.Title, "."), strings.TrimRight(c.Journal, "."), c.Year)
}

type ExerciseSuggestion struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Sets           int        `json:"sets"`
	Reps           string     `json:"reps"`
	Notes          string     `json:"notes,omitempty"`
	EvidenceSource string     `json:"evidence_source"`
	Citations      []Citation `json:"citations"`
}

type ValidatedResponse struct {
	Exercises       []ExerciseSuggestion `json:"exercises"`
	ClinicalNotes   string               `json:"clinical_notes"`
	Citations       []string             `json:"citations"`
	ConfidenceLevel string               `json:"confidence_level"`
}
