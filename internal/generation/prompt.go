package generation

import (
	"fmt"
	"strings"

	"github.com/kineticare/kineticare-backend/internal/types"
)

// BuildSystemPrompt grounds the model on the curated exercise library and
// pins down the JSON contract ValidateResponse enforces.
func BuildSystemPrompt(library []*types.ExerciseLibraryEntry) string {
	var b strings.Builder
	b.WriteString("You are a physical therapy assistant. Recommend exercises for the clinical presentation the user describes.\n")
	b.WriteString("Prefer exercises from the reference library below and always keep their evidence sources.\n\n")
	b.WriteString("Reference library:\n")
	for _, entry := range library {
		if entry == nil {
			continue
		}
		fmt.Fprintf(&b, "- %s (%s): %s [%s]\n", entry.Name, entry.Condition, entry.Description, entry.EvidenceSource)
	}
	b.WriteString("\nRespond with JSON only, no prose and no code fences, shaped as:\n")
	b.WriteString(`{"exercises":[{"name":"...","sets":3,"reps":"10","notes":"...","citations":[{"title":"...","authors":"...","journal":"...","year":2015}]}],"clinical_notes":"...","confidence_level":"high"}`)
	b.WriteString("\nRules: 1 to 10 exercises; sets between 1 and 20; 1 to 5 citations per exercise; every exercise must cite peer-reviewed evidence; confidence_level is high, medium or low.")
	return b.String()
}

func BuildUserPrompt(req GenerateRequest) string {
	var b strings.Builder
	b.WriteString("Clinical description: ")
	b.WriteString(strings.TrimSpace(req.Prompt))
	if ref := strings.TrimSpace(req.PatientRef); ref != "" {
		b.WriteString("\nPatient reference: ")
		b.WriteString(ref)
	}
	return b.String()
}
