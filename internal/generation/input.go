package generation

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	minPromptLen    = 20
	maxPromptLen    = 1000
	minPromptWords  = 8
	minClinicalHits = 2
)

type GenerateRequest struct {
	Prompt     string `json:"prompt"`
	PatientRef string `json:"patient_ref,omitempty"`
	ClinicRef  string `json:"clinic_ref,omitempty"`
}

var wordRE = regexp.MustCompile(`[A-Za-z0-9]+(?:'[A-Za-z0-9]+)?`)

func WordCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	return len(wordRE.FindAllString(s, -1))
}

// builtinClinicalTerms is the default relevance lexicon. A clinic can extend
// or replace it with a YAML file via CLINICAL_LEXICON_PATH.
var builtinClinicalTerms = []string{
	"pain", "ache", "weakness", "strain", "sprain", "tear", "stiffness",
	"mobility", "flexibility", "range of motion", "rom",
	"back", "lumbar", "thoracic", "cervical", "neck", "spine",
	"shoulder", "rotator cuff", "elbow", "wrist", "hip", "knee", "ankle",
	"achilles", "hamstring", "quadriceps", "calf", "glute", "core",
	"acl", "mcl", "meniscus", "patella", "tendinopathy", "tendinitis",
	"arthritis", "osteoarthritis", "sciatica", "scoliosis", "impingement",
	"post-op", "post-surgical", "surgery", "rehabilitation", "rehab",
	"physical therapy", "physiotherapy", "chronic", "acute",
	"balance", "gait", "posture", "proprioception",
	"injury", "fracture", "dislocation", "instability", "swelling",
	"atrophy", "spasm", "numbness", "radiating",
}

type lexiconFile struct {
	Terms []string `yaml:"terms"`
}

// InputGate validates the raw request before any stage runs.
type InputGate struct {
	terms []string
}

func NewInputGate() *InputGate {
	return &InputGate{terms: loadLexicon()}
}

func loadLexicon() []string {
	path := strings.TrimSpace(os.Getenv("CLINICAL_LEXICON_PATH"))
	if path == "" {
		return builtinClinicalTerms
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return builtinClinicalTerms
	}
	var lf lexiconFile
	if err := yaml.Unmarshal(raw, &lf); err != nil || len(lf.Terms) == 0 {
		return builtinClinicalTerms
	}
	out := make([]string, 0, len(lf.Terms))
	for _, t := range lf.Terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return builtinClinicalTerms
	}
	return out
}

// Validate enforces the length, word-count and clinical-relevance bounds.
// Failures come back as VALIDATION_ERROR pipeline errors.
func (g *InputGate) Validate(req GenerateRequest) error {
	prompt := strings.TrimSpace(req.Prompt)
	if len(prompt) < minPromptLen {
		return NewPipelineError(CodeValidation, fmt.Sprintf("the clinical description must be at least %d characters", minPromptLen))
	}
	if len(prompt) > maxPromptLen {
		return NewPipelineError(CodeValidation, fmt.Sprintf("the clinical description must be at most %d characters", maxPromptLen))
	}
	if WordCount(prompt) < minPromptWords {
		return NewPipelineError(CodeValidation, fmt.Sprintf("the clinical description must contain at least %d words", minPromptWords))
	}
	if g.clinicalHits(prompt) < minClinicalHits {
		return NewPipelineError(CodeValidation, "the description does not look like a clinical presentation; mention the affected area and symptoms")
	}
	return nil
}

func (g *InputGate) clinicalHits(prompt string) int {
	lowered := strings.ToLower(prompt)
	hits := 0
	for _, term := range g.terms {
		if strings.Contains(lowered, term) {
			hits++
		}
	}
	return hits
}
