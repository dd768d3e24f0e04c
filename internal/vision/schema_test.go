package vision

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/llmutil"
)

const minimalReport = `{"issues":[{"title":"Button overlaps header","severity":"high","evidence":"screenshot shows overlap","proposed_changes":[{"file":"src/App.css","change":"add margin-top"}],"tests":[{"type":"unit","name":"layout","spec":"header and button do not intersect"}]}],"notes":"n/a"}`

func TestParseReport_WholeResponse(t *testing.T) {
	report, tier, err := ParseReport(minimalReport)
	require.NoError(t, err)
	assert.Equal(t, llmutil.TierWhole, tier)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, schemas.SeverityHigh, report.Issues[0].Severity)
	assert.Equal(t, "src/App.css", report.Issues[0].ProposedChanges[0].File)
	assert.Equal(t, "n/a", report.Notes)
}

func TestParseReport_ProseAroundObjectMatchesDirectParse(t *testing.T) {
	direct, _, err := ParseReport(minimalReport)
	require.NoError(t, err)

	wrapped := "Sure! Here is what I found:\n" + minimalReport + "\nLet me know if you need more."
	recovered, tier, err := ParseReport(wrapped)
	require.NoError(t, err)
	assert.Equal(t, llmutil.TierSpan, tier)

	if diff := cmp.Diff(direct, recovered); diff != "" {
		t.Errorf("span extraction differs from direct parse (-direct +span):\n%s", diff)
	}
}

func TestParseReport_RoundTrip(t *testing.T) {
	original, _, err := ParseReport(simulatedDemoReport)
	require.NoError(t, err)

	encoded, err := json.Marshal(original)
	require.NoError(t, err)

	again, tier, err := ParseReport(string(encoded))
	require.NoError(t, err)
	assert.Equal(t, llmutil.TierWhole, tier)

	if diff := cmp.Diff(original, again); diff != "" {
		t.Errorf("round trip changed the report (-want +got):\n%s", diff)
	}
}

func TestParseReport_Normalization(t *testing.T) {
	text := `{"issues":[{"title":"t","severity":" MED ","evidence":"e","proposed_changes":[],"tests":[{"type":"Playwright","name":"n","spec":"s"},{"type":"e2e","name":"n2","spec":"s2"}]}],"notes":null,"extra":"ignored"}`

	report, _, err := ParseReport(text)
	require.NoError(t, err)
	issue := report.Issues[0]
	assert.Equal(t, schemas.SeverityMedium, issue.Severity)
	assert.Equal(t, schemas.TestBrowser, issue.Tests[0].Type)
	assert.Equal(t, schemas.TestBrowser, issue.Tests[1].Type)
	assert.Empty(t, report.Notes)
}

func TestParseReport_EmptyIssues(t *testing.T) {
	report, _, err := ParseReport(`{"issues": []}`)
	require.NoError(t, err)
	assert.NotNil(t, report.Issues)
	assert.Empty(t, report.Issues)
}

func TestParseReport_NoJSON(t *testing.T) {
	for _, text := range []string{"", "I could not analyze the image.", "{not json at all}", "[1,2,3]"} {
		_, tier, err := ParseReport(text)
		require.Error(t, err, text)
		assert.ErrorIs(t, err, llmutil.ErrNoJSON, text)
		assert.Equal(t, llmutil.TierNone, tier)
	}
}

func TestParseReport_FieldDiagnostics(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "missing issues",
			text: `{"notes":"nothing"}`,
			want: []string{"issues is required"},
		},
		{
			name: "missing title and tests",
			text: `{"issues":[{"severity":"low","evidence":"e","proposed_changes":[]}]}`,
			want: []string{"title is required", "tests is required"},
		},
		{
			name: "unknown severity",
			text: `{"issues":[{"title":"t","severity":"critical","evidence":"e","proposed_changes":[],"tests":[]}]}`,
			want: []string{"issues.0.severity"},
		},
		{
			name: "change without file",
			text: `{"issues":[{"title":"t","severity":"low","evidence":"e","proposed_changes":[{"change":"c"}],"tests":[]}]}`,
			want: []string{"issues.0.proposed_changes.0", "file is required"},
		},
		{
			name: "issues not an array",
			text: `{"issues":{"title":"t"}}`,
			want: []string{"issues"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseReport(tt.text)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			require.NotEmpty(t, ve.Problems)
			for _, want := range tt.want {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

// simulatedDemoReport mirrors the three-issue demo payload.
const simulatedDemoReport = `{
  "issues": [
    {"title": "Missing semicolons in JavaScript", "severity": "medium", "evidence": "missing semicolons",
     "proposed_changes": [{"file": "test-app/main.js", "change": "Add missing semicolons"}],
     "tests": [{"type": "unit", "name": "Counter functions work", "spec": "increments and decrements"}]},
    {"title": "Todo items lack delete functionality", "severity": "high", "evidence": "cannot delete",
     "proposed_changes": [{"file": "test-app/main.js", "change": "Add delete"}, {"file": "test-app/style.css", "change": "Style delete buttons"}],
     "tests": [{"type": "playwright", "name": "Todo delete works", "spec": "todo items can be deleted"}]},
    {"title": "Missing keyboard accessibility", "severity": "medium", "evidence": "no keyboard navigation",
     "proposed_changes": [{"file": "test-app/main.js", "change": "Add key listeners"}, {"file": "test-app/index.html", "change": "Add ARIA labels"}],
     "tests": [{"type": "playwright", "name": "Keyboard navigation", "spec": "all functions work with keyboard"}]}
  ],
  "notes": "demo"
}`
