// internal/llmclient/simulated_client.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vibeloop/api/schemas"
)

// SimulatedVisionResponse is the report the simulated backend returns for
// vision requests. It describes the deliberate defects in the bundled demo
// app, wrapped in a line of prose like a real model tends to add.
const SimulatedVisionResponse = `Here is the analysis of the page:
{
  "issues": [
    {
      "title": "Missing semicolons in JavaScript",
      "severity": "medium",
      "evidence": "JavaScript code has missing semicolons which can cause issues",
      "proposed_changes": [
        {"file": "test-app/main.js", "change": "Add missing semicolons to increment and decrement functions"}
      ],
      "tests": [
        {"type": "unit", "name": "Counter functions work", "spec": "Test that counter increments and decrements correctly"}
      ]
    },
    {
      "title": "Todo items lack delete functionality",
      "severity": "high",
      "evidence": "Todo list items cannot be deleted, making the app unusable",
      "proposed_changes": [
        {"file": "test-app/main.js", "change": "Add delete functionality to todo items"},
        {"file": "test-app/style.css", "change": "Add styling for delete buttons"}
      ],
      "tests": [
        {"type": "playwright", "name": "Todo delete works", "spec": "Test that todo items can be deleted"}
      ]
    },
    {
      "title": "Missing keyboard accessibility",
      "severity": "medium",
      "evidence": "App cannot be used with keyboard navigation",
      "proposed_changes": [
        {"file": "test-app/main.js", "change": "Add keyboard event listeners for accessibility"},
        {"file": "test-app/index.html", "change": "Add proper ARIA labels and focus management"}
      ],
      "tests": [
        {"type": "playwright", "name": "Keyboard navigation", "spec": "Test that all functions work with keyboard"}
      ]
    }
  ],
  "notes": "Simulated analysis of the intentional issues in the demo app"
}`

// SimulatedInstruction is the instruction the simulated backend returns for
// code requests.
const SimulatedInstruction = `Files to modify:
- test-app/main.js
- test-app/style.css
- test-app/index.html

1. Fix JavaScript syntax by adding missing semicolons in increment and decrement functions
2. Add delete functionality to todo items with click handlers
3. Add keyboard accessibility with proper event listeners
4. Add ARIA labels and focus management to HTML elements
5. Style delete buttons in CSS

Test plan:
- Test counter functionality
- Test todo add/delete functionality
- Test keyboard navigation
- Test color changer functionality`

// SimulatedClient answers every request with canned text and never touches
// the network. It is only ever selected by the simulation setting.
type SimulatedClient struct {
	logger *zap.Logger
}

// NewSimulatedClient creates the canned backend.
func NewSimulatedClient(logger *zap.Logger) *SimulatedClient {
	logger = logger.Named("llm_client.simulated")
	logger.Warn("Simulation mode: model responses are canned, no backend will be contacted.")
	return &SimulatedClient{logger: logger}
}

// Generate returns the canned response for the request's tier.
func (c *SimulatedClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.logger.Info("Returning simulated response", zap.String("tier", string(req.Tier)), zap.Int("images", len(req.Images)))

	switch req.Tier {
	case schemas.TierVision:
		return SimulatedVisionResponse, nil
	case schemas.TierCode:
		return SimulatedInstruction, nil
	default:
		return "", fmt.Errorf("no simulated response for tier: %s", req.Tier)
	}
}

func (c *SimulatedClient) Close() error { return nil }
