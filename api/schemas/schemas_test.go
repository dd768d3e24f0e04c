package schemas_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/vibeloop/api/schemas"
)

func TestParseSeverity(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		in       string
		expected schemas.Severity
		wantErr  bool
	}{
		{"low", schemas.SeverityLow, false},
		{"LOW", schemas.SeverityLow, false},
		{" Medium ", schemas.SeverityMedium, false},
		{"med", schemas.SeverityMedium, false},
		{"High", schemas.SeverityHigh, false},
		{"critical", "", true},
		{"", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := schemas.ParseSeverity(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestParseTestKind(t *testing.T) {
	t.Parallel()
	for in, expected := range map[string]schemas.TestKind{
		"unit":       schemas.TestUnit,
		"Browser":    schemas.TestBrowser,
		"playwright": schemas.TestBrowser,
		"E2E":        schemas.TestBrowser,
	} {
		got, err := schemas.ParseTestKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, expected, got, in)
	}

	_, err := schemas.ParseTestKind("integration")
	assert.Error(t, err)
}

func TestIssueUnmarshalNormalizesEnums(t *testing.T) {
	t.Parallel()
	raw := `{"title":"t","severity":"HIGH","evidence":"e","proposed_changes":[],"tests":[{"type":"playwright","name":"n","spec":"s"}]}`

	var issue schemas.Issue
	require.NoError(t, json.Unmarshal([]byte(raw), &issue))
	assert.Equal(t, schemas.SeverityHigh, issue.Severity)
	assert.Equal(t, schemas.TestBrowser, issue.Tests[0].Type)
}

func TestVisionReportMarshalEmitsArrays(t *testing.T) {
	t.Parallel()
	data, err := json.Marshal(schemas.VisionReport{Issues: []schemas.Issue{{Title: "x", Severity: schemas.SeverityLow}}})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"issues":[{"title":"x","severity":"low","evidence":"","proposed_changes":[],"tests":[]}]}`,
		string(data))

	data, err = json.Marshal(schemas.VisionReport{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"issues":[]}`, string(data))
}

func TestSeverityCounts(t *testing.T) {
	t.Parallel()
	report := schemas.VisionReport{Issues: []schemas.Issue{
		{Severity: schemas.SeverityMedium},
		{Severity: schemas.SeverityHigh},
		{Severity: schemas.SeverityMedium},
	}}
	counts := report.SeverityCounts()
	assert.Equal(t, 2, counts[schemas.SeverityMedium])
	assert.Equal(t, 1, counts[schemas.SeverityHigh])
	assert.Zero(t, counts[schemas.SeverityLow])
}

func TestStageError(t *testing.T) {
	t.Parallel()
	cause := errors.New("boom")
	err := fmt.Errorf("run: %w", &schemas.StageError{Stage: schemas.StageApply, Kind: schemas.KindApply, ExitCode: 2, Err: cause})

	assert.True(t, schemas.IsKind(err, schemas.KindApply))
	assert.False(t, schemas.IsKind(err, schemas.KindParse))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "apply stage: ApplyError (exit status 2): boom")

	var se *schemas.StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 2, se.ExitCode)
}

func TestFormatTranscript(t *testing.T) {
	t.Parallel()
	logs := []schemas.ConsoleLog{
		{Type: "log", Text: "booting"},
		{Type: "error", Text: "Uncaught TypeError: x is undefined"},
	}
	assert.Equal(t, "[log] booting\n[error] Uncaught TypeError: x is undefined", schemas.FormatTranscript(logs))
	assert.Equal(t, "", schemas.FormatTranscript(nil))
}
