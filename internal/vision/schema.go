// internal/vision/schema.go
package vision

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/llmutil"
)

// reportSchemaJSON is the shape a vision response has to have. Enumerations
// are matched case-insensitively and include the aliases the model is known to
// use; normalization happens when the report is decoded. Unknown fields are
// allowed and dropped.
const reportSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["issues"],
  "properties": {
    "issues": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "severity", "evidence", "proposed_changes", "tests"],
        "properties": {
          "title": { "type": "string" },
          "severity": { "type": "string", "pattern": "(?i)^\\s*(low|med|medium|high)\\s*$" },
          "evidence": { "type": "string" },
          "proposed_changes": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["file", "change"],
              "properties": {
                "file": { "type": "string" },
                "change": { "type": "string" }
              }
            }
          },
          "tests": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["type", "name", "spec"],
              "properties": {
                "type": { "type": "string", "pattern": "(?i)^\\s*(unit|browser|playwright|e2e)\\s*$" },
                "name": { "type": "string" },
                "spec": { "type": "string" }
              }
            }
          }
        }
      }
    },
    "notes": { "type": ["string", "null"] }
  }
}`

var reportSchema = mustCompileSchema(reportSchemaJSON)

func mustCompileSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("vision report schema does not compile: %v", err))
	}
	return schema
}

// ValidationError lists every field that broke the report schema.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "vision report failed schema validation: " + strings.Join(e.Problems, "; ")
}

// Validate checks a JSON payload against the report schema.
func Validate(payload []byte) error {
	result, err := reportSchema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("vision report could not be validated: %w", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return &ValidationError{Problems: problems}
}

// ParseReport turns raw model text into a validated, normalized report. It
// tries the whole text, then the greedy brace span; anything else fails.
func ParseReport(text string) (*schemas.VisionReport, llmutil.Tier, error) {
	payload, tier, err := llmutil.ExtractJSONObject(text)
	if err != nil {
		return nil, llmutil.TierNone, err
	}
	if err := Validate(payload); err != nil {
		return nil, tier, err
	}

	var report schemas.VisionReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, tier, fmt.Errorf("vision report could not be decoded: %w", err)
	}
	if report.Issues == nil {
		report.Issues = []schemas.Issue{}
	}
	return &report, tier, nil
}

// IsValidationError reports whether err came from the schema check.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
