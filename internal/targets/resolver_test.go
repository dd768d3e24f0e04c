package targets

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/llmclient"
	"github.com/xkilldash9x/vibeloop/internal/vision"
)

func TestResolve_DemoReport(t *testing.T) {
	report, _, err := vision.ParseReport(llmclient.SimulatedVisionResponse)
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"test-app/index.html", "test-app/main.js", "test-app/style.css"},
		Resolve(report),
	)
}

func TestResolve_EdgeCases(t *testing.T) {
	tests := []struct {
		name   string
		report *schemas.VisionReport
		want   []string
	}{
		{"nil report", nil, []string{}},
		{"no issues", &schemas.VisionReport{}, []string{}},
		{
			name: "empty paths dropped",
			report: &schemas.VisionReport{Issues: []schemas.Issue{{
				ProposedChanges: []schemas.ProposedChange{{File: ""}, {File: "a.js"}, {File: ""}},
			}}},
			want: []string{"a.js"},
		},
		{
			name: "byte order, not case folded",
			report: &schemas.VisionReport{Issues: []schemas.Issue{
				{ProposedChanges: []schemas.ProposedChange{{File: "b.js"}, {File: "B.js"}}},
				{ProposedChanges: []schemas.ProposedChange{{File: "a.js"}, {File: "b.js"}}},
			}},
			want: []string{"B.js", "a.js", "b.js"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.report)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_Idempotent(t *testing.T) {
	report, _, err := vision.ParseReport(llmclient.SimulatedVisionResponse)
	require.NoError(t, err)

	first := Resolve(report)
	// Feeding the result back in as a single issue's changes must not move anything.
	changes := make([]schemas.ProposedChange, 0, len(first))
	for _, f := range first {
		changes = append(changes, schemas.ProposedChange{File: f})
	}
	second := Resolve(&schemas.VisionReport{Issues: []schemas.Issue{{ProposedChanges: changes}}})
	assert.Equal(t, first, second)
	assert.Equal(t, first, Resolve(report))
}

func FuzzResolve(f *testing.F) {
	f.Add([]byte("seed"))
	f.Fuzz(func(t *testing.T, data []byte) {
		var report schemas.VisionReport
		c := fuzz.NewConsumer(data)
		if err := c.GenerateStruct(&report); err != nil {
			return
		}

		got := Resolve(&report)
		for i, file := range got {
			if file == "" {
				t.Fatalf("empty path at %d", i)
			}
			if i > 0 && got[i-1] >= file {
				t.Fatalf("not strictly ascending at %d: %q >= %q", i, got[i-1], file)
			}
		}
		if again := Resolve(&report); len(again) != len(got) {
			t.Fatalf("not deterministic: %v vs %v", got, again)
		}
	})
}
