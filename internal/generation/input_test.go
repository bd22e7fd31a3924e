package generation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWordCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"chronic low back pain", 4},
		{"patient's knee won't extend", 4},
		{"pain, stiffness; weakness", 3},
	}
	for _, tc := range tests {
		if got := WordCount(tc.in); got != tc.want {
			t.Errorf("WordCount(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestInputGateValidate(t *testing.T) {
	gate := NewInputGate()

	tests := []struct {
		name    string
		prompt  string
		wantErr bool
	}{
		{
			name:   "clinical presentation",
			prompt: "Patient has chronic low back pain with core weakness",
		},
		{
			name:   "post-surgical knee",
			prompt: "Six weeks post-op ACL reconstruction, limited knee flexion and quadriceps atrophy on the right side",
		},
		{
			name:    "too short",
			prompt:  "sore back",
			wantErr: true,
		},
		{
			name:    "too long",
			prompt:  "back pain " + strings.Repeat("with radiating symptoms down the leg ", 40),
			wantErr: true,
		},
		{
			name:    "too few words",
			prompt:  "lumbar radiculopathy sciatica pain",
			wantErr: true,
		},
		{
			name:    "not clinical",
			prompt:  "please write me a short poem about the weather in the mountains today",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := gate.Validate(GenerateRequest{Prompt: tc.prompt})
			if tc.wantErr {
				var pe *PipelineError
				if !errors.As(err, &pe) {
					t.Fatalf("expected *PipelineError, got %v", err)
				}
				if pe.Code != CodeValidation {
					t.Fatalf("got code %s, want %s", pe.Code, CodeValidation)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
		})
	}
}

func TestInputGateLexiconOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexicon.yaml")
	lexicon := "terms:\n  - vestibular\n  - dizziness\n  - vertigo\n"
	if err := os.WriteFile(path, []byte(lexicon), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CLINICAL_LEXICON_PATH", path)

	gate := NewInputGate()
	prompt := "Patient reports episodic dizziness and vertigo when turning the head quickly"
	if err := gate.Validate(GenerateRequest{Prompt: prompt}); err != nil {
		t.Fatalf("Validate with custom lexicon: %v", err)
	}

	// The builtin terms no longer count once the override replaces them.
	builtinOnly := "Patient has chronic low back pain with core weakness"
	if err := gate.Validate(GenerateRequest{Prompt: builtinOnly}); err == nil {
		t.Fatal("expected rejection once the lexicon is replaced")
	}
}

func TestInputGateLexiconFallback(t *testing.T) {
	t.Setenv("CLINICAL_LEXICON_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	gate := NewInputGate()
	prompt := "Patient has chronic low back pain with core weakness"
	if err := gate.Validate(GenerateRequest{Prompt: prompt}); err != nil {
		t.Fatalf("expected builtin lexicon fallback, got %v", err)
	}
}
