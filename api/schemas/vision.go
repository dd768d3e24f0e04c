package schemas

import (
	"encoding/json"
	"fmt"
	"strings"
)

// -- Vision Report Schemas --

// Severity ranks how badly an issue affects the application.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Severities lists the levels from least to most severe.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh}

// ParseSeverity normalizes a model supplied severity. Matching is case
// insensitive and accepts the "med" shorthand the vision prompt advertises.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, nil
	case "med", "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// UnmarshalJSON normalizes the severity on ingestion.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// TestKind says where a suggested test is meant to run.
type TestKind string

const (
	TestUnit    TestKind = "unit"
	TestBrowser TestKind = "browser"
)

// ParseTestKind normalizes a model supplied test type. Browser driven tests are
// frequently labelled after the tool ("playwright") rather than the kind.
func ParseTestKind(s string) (TestKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unit":
		return TestUnit, nil
	case "browser", "playwright", "e2e":
		return TestBrowser, nil
	default:
		return "", fmt.Errorf("unknown test type %q", s)
	}
}

// UnmarshalJSON normalizes the test kind on ingestion.
func (k *TestKind) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTestKind(raw)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ProposedChange is a single edit the vision model wants made to one file.
// A change with an empty File is kept in the report but is never a target.
type ProposedChange struct {
	File   string `json:"file"`
	Change string `json:"change"`
}

// TestSpec describes a test the vision model suggests adding.
type TestSpec struct {
	Type TestKind `json:"type"`
	Name string   `json:"name"`
	Spec string   `json:"spec"`
}

// Issue is one defect found in the screenshot or the console transcript.
type Issue struct {
	Title           string           `json:"title"`
	Severity        Severity         `json:"severity"`
	Evidence        string           `json:"evidence"`
	ProposedChanges []ProposedChange `json:"proposed_changes"`
	Tests           []TestSpec       `json:"tests"`
}

// MarshalJSON always emits arrays so a serialized issue satisfies the schema
// it was parsed from.
func (i Issue) MarshalJSON() ([]byte, error) {
	type alias Issue
	a := alias(i)
	if a.ProposedChanges == nil {
		a.ProposedChanges = []ProposedChange{}
	}
	if a.Tests == nil {
		a.Tests = []TestSpec{}
	}
	return json.Marshal(a)
}

// VisionReport is the structured result of analyzing one capture.
type VisionReport struct {
	Issues []Issue `json:"issues"`
	Notes  string  `json:"notes,omitempty"`
}

// MarshalJSON always emits the issues array, even for a clean report.
func (r VisionReport) MarshalJSON() ([]byte, error) {
	type alias VisionReport
	a := alias(r)
	if a.Issues == nil {
		a.Issues = []Issue{}
	}
	return json.Marshal(a)
}

// SeverityCounts tallies issues per severity level.
func (r VisionReport) SeverityCounts() map[Severity]int {
	counts := make(map[Severity]int, len(Severities))
	for _, issue := range r.Issues {
		counts[issue.Severity]++
	}
	return counts
}

// Instruction is the single change request handed to the code agent. It is
// opaque text; only its coarse structure is ever checked.
type Instruction string

// String returns the instruction text.
func (i Instruction) String() string { return string(i) }
