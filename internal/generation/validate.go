package generation

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	maxSuggestions      = 10
	maxCitationsPerItem = 5
	minCitationYear     = 1900
	maxSets             = 20
	parsePreviewLimit   = 200
)

// ValidateResponse turns raw model output into a ValidatedResponse or a
// PipelineError with a precise code. It accepts either a bare JSON array of
// suggestions or an object carrying an "exercises" array; both normalize to
// the same canonical shape. It never both returns a value and an error.
func ValidateResponse(raw string) (*ValidatedResponse, error) {
	cleaned := stripCodeFences(strings.TrimSpace(raw))
	if cleaned == "" {
		return nil, NewPipelineError(CodeEmptyResponse, "the model returned an empty response")
	}

	value, err := parseLoose(cleaned)
	if err != nil {
		preview := cleaned
		if len(preview) > parsePreviewLimit {
			preview = preview[:parsePreviewLimit]
		}
		return nil, &PipelineError{
			Code:    CodeParseError,
			Message: "the model response was not valid JSON",
			Details: []FieldViolation{{Path: "$", Message: fmt.Sprintf("%v (preview: %q)", err, preview)}},
		}
	}

	var (
		items           []any
		clinicalNotes   string
		confidenceLevel = "medium"
	)

	switch v := value.(type) {
	case []any:
		items = v
	case map[string]any:
		rawItems, ok := v["exercises"]
		if !ok {
			return nil, &PipelineError{
				Code:    CodeInvalidStructure,
				Message: "the model response is missing the exercises list",
				Details: []FieldViolation{{Path: "exercises", Message: "expected an array of exercise suggestions"}},
			}
		}
		items, ok = rawItems.([]any)
		if !ok {
			return nil, &PipelineError{
				Code:    CodeInvalidStructure,
				Message: "the exercises field is not a list",
				Details: []FieldViolation{{Path: "exercises", Message: "expected an array of exercise suggestions"}},
			}
		}
		if rawNotes, ok := v["clinical_notes"]; ok {
			s, ok := rawNotes.(string)
			if !ok {
				return nil, schemaViolation(CodeInvalidDataType, "clinical_notes", "expected a string")
			}
			clinicalNotes = strings.TrimSpace(s)
		}
		if rawLevel, ok := v["confidence_level"]; ok {
			s, ok := rawLevel.(string)
			if !ok {
				return nil, schemaViolation(CodeInvalidDataType, "confidence_level", "expected a string")
			}
			s = strings.ToLower(strings.TrimSpace(s))
			switch s {
			case "high", "medium", "low":
				confidenceLevel = s
			default:
				return nil, schemaViolation(CodeValidation, "confidence_level", "expected one of high, medium, low")
			}
		}
	default:
		return nil, &PipelineError{
			Code:    CodeInvalidStructure,
			Message: "the model response has an unexpected top-level shape",
			Details: []FieldViolation{{Path: "$", Message: "expected a JSON array or object"}},
		}
	}

	if len(items) == 0 {
		return nil, NewPipelineError(CodeEmptyResponse, "the model returned no exercise suggestions")
	}
	if len(items) > maxSuggestions {
		return nil, &PipelineError{
			Code:    CodeTooManySuggestions,
			Message: fmt.Sprintf("the model returned %d suggestions, maximum is %d", len(items), maxSuggestions),
			Details: []FieldViolation{{Path: "exercises", Message: fmt.Sprintf("got %d items, want at most %d", len(items), maxSuggestions)}},
		}
	}

	exercises := make([]ExerciseSuggestion, 0, len(items))
	for i, rawItem := range items {
		ex, err := validateSuggestion(fmt.Sprintf("exercises.%d", i), rawItem)
		if err != nil {
			return nil, err
		}
		exercises = append(exercises, *ex)
	}

	return &ValidatedResponse{
		Exercises:       exercises,
		ClinicalNotes:   clinicalNotes,
		Citations:       dedupeCitations(exercises),
		ConfidenceLevel: confidenceLevel,
	}, nil
}

func validateSuggestion(path string, rawItem any) (*ExerciseSuggestion, error) {
	obj, ok := rawItem.(map[string]any)
	if !ok {
		return nil, schemaViolation(CodeInvalidDataType, path, "expected an object")
	}

	name, err := requiredString(obj, path, "name")
	if err != nil {
		return nil, err
	}

	rawSets, ok := obj["sets"]
	if !ok || rawSets == nil {
		return nil, schemaViolation(CodeMissingFields, path+".sets", "required field is missing")
	}
	sets, ok := intFromAny(rawSets)
	if !ok {
		return nil, schemaViolation(CodeInvalidDataType, path+".sets", "expected an integer")
	}
	if sets < 1 || sets > maxSets {
		return nil, schemaViolation(CodeValidation, path+".sets", fmt.Sprintf("must be between 1 and %d", maxSets))
	}

	rawReps, ok := obj["reps"]
	if !ok || rawReps == nil {
		return nil, schemaViolation(CodeMissingFields, path+".reps", "required field is missing")
	}
	reps, err := repsString(path+".reps", rawReps)
	if err != nil {
		return nil, err
	}

	notes := ""
	if rawNotes, ok := obj["notes"]; ok && rawNotes != nil {
		s, ok := rawNotes.(string)
		if !ok {
			return nil, schemaViolation(CodeInvalidDataType, path+".notes", "expected a string")
		}
		notes = strings.TrimSpace(s)
	}

	rawCitations, ok := obj["citations"]
	if !ok || rawCitations == nil {
		return nil, schemaViolation(CodeMissingFields, path+".citations", "required field is missing")
	}
	citationItems, ok := rawCitations.([]any)
	if !ok {
		return nil, schemaViolation(CodeInvalidDataType, path+".citations", "expected an array")
	}
	if len(citationItems) == 0 {
		return nil, schemaViolation(CodeMissingFields, path+".citations", "every suggestion needs at least one citation")
	}
	if len(citationItems) > maxCitationsPerItem {
		return nil, schemaViolation(CodeValidation, path+".citations", fmt.Sprintf("got %d citations, want at most %d", len(citationItems), maxCitationsPerItem))
	}

	citations := make([]Citation, 0, len(citationItems))
	for j, rawCitation := range citationItems {
		c, err := validateCitation(fmt.Sprintf("%s.citations.%d", path, j), rawCitation)
		if err != nil {
			return nil, err
		}
		citations = append(citations, *c)
	}

	return &ExerciseSuggestion{
		Name:           name,
		Sets:           sets,
		Reps:           reps,
		Notes:          notes,
		EvidenceSource: citations[0].Reference(),
		Citations:      citations,
	}, nil
}

func validateCitation(path string, raw any) (*Citation, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, schemaViolation(CodeInvalidDataType, path, "expected an object")
	}

	title, err := requiredString(obj, path, "title")
	if err != nil {
		return nil, err
	}
	authors, err := requiredString(obj, path, "authors")
	if err != nil {
		return nil, err
	}
	journal, err := requiredString(obj, path, "journal")
	if err != nil {
		return nil, err
	}

	rawYear, ok := obj["year"]
	if !ok || rawYear == nil {
		return nil, schemaViolation(CodeMissingFields, path+".year", "required field is missing")
	}
	year, ok := yearFromAny(rawYear)
	if !ok {
		return nil, schemaViolation(CodeInvalidDataType, path+".year", "expected a 4-digit year")
	}
	maxYear := time.Now().Year() + 1
	if year < minCitationYear || year > maxYear {
		return nil, schemaViolation(CodeValidation, path+".year", fmt.Sprintf("must be between %d and %d", minCitationYear, maxYear))
	}

	return &Citation{Title: title, Authors: authors, Journal: journal, Year: year}, nil
}

func requiredString(obj map[string]any, path, field string) (string, error) {
	raw, ok := obj[field]
	if !ok || raw == nil {
		return "", schemaViolation(CodeMissingFields, path+"."+field, "required field is missing")
	}
	s, ok := raw.(string)
	if !ok {
		return "", schemaViolation(CodeInvalidDataType, path+"."+field, "expected a string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", schemaViolation(CodeMissingFields, path+"."+field, "required field is empty")
	}
	return s, nil
}

func repsString(path string, raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return "", schemaViolation(CodeMissingFields, path, "required field is empty")
		}
		return s, nil
	case float64:
		if v != math.Trunc(v) || v < 1 {
			return "", schemaViolation(CodeValidation, path, "must be a positive whole number")
		}
		return strconv.Itoa(int(v)), nil
	default:
		return "", schemaViolation(CodeInvalidDataType, path, "expected a number or string")
	}
}

func intFromAny(raw any) (int, bool) {
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

var fourDigitYearRE = regexp.MustCompile(`^\d{4}$`)

func yearFromAny(raw any) (int, bool) {
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case string:
		s := strings.TrimSpace(v)
		if !fourDigitYearRE.MatchString(s) {
			return 0, false
		}
		year, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		return year, true
	default:
		return 0, false
	}
}

func schemaViolation(code, path, message string) *PipelineError {
	return &PipelineError{
		Code:    code,
		Message: "the model response failed schema validation",
		Details: []FieldViolation{{Path: path, Message: message}},
	}
}

func dedupeCitations(exercises []ExerciseSuggestion) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(exercises))
	for _, ex := range exercises {
		for _, c := range ex.Citations {
			ref := c.Reference()
			if seen[ref] {
				continue
			}
			seen[ref] = true
			out = append(out, ref)
		}
	}
	return out
}

func stripCodeFences(src string) string {
	s := strings.TrimSpace(src)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	body := lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		body = lines[1 : len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(body, "\n"))
}

// parseLoose tries a strict parse first, then salvages the first balanced
// JSON object or array embedded in surrounding prose.
func parseLoose(cleaned string) (any, error) {
	var value any
	strictErr := json.Unmarshal([]byte(cleaned), &value)
	if strictErr == nil {
		return value, nil
	}
	sub := firstBalancedJSON(cleaned)
	if sub == "" {
		return nil, strictErr
	}
	if err := json.Unmarshal([]byte(sub), &value); err != nil {
		return nil, strictErr
	}
	return value, nil
}

func firstBalancedJSON(s string) string {
	start := -1
	for i, r := range s {
		if r == '{' || r == '[' {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
