package schemas

import (
	"context"
)

// -- LLM Schemas & Interface --

// ModelTier selects which configured model serves a request. The loop needs a
// vision capable model to diagnose and a code model to write the instruction.
type ModelTier string

const (
	TierVision ModelTier = "vision" // Multimodal model that reads screenshots.
	TierCode   ModelTier = "code"   // Text model that writes edit instructions.
)

// GenerationOptions provides detailed parameters to control the text generation
// process of the LLM, such as creativity (temperature) and output length.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`       // Controls randomness. Lower is more deterministic.
	MaxTokens       int     `json:"max_tokens"`        // Upper bound on completion length; 0 uses the model config.
	ForceJSONFormat bool    `json:"force_json_format"` // Ask the provider for a JSON-only response when supported.
}

// ImageInput is an inline image attached to a generation request.
type ImageInput struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// GenerationRequest encapsulates a complete request to the LLM, including the
// system and user prompts, attached images, the model tier and options.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Images       []ImageInput      `json:"images,omitempty"`
	Tier         ModelTier         `json:"tier"`
	Model        string            `json:"model,omitempty"` // Overrides the tier's configured model when set.
	Options      GenerationOptions `json:"options"`
}

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider.
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client (e.g., network connections, SDK resources).
	Close() error
}

// -- Browser Capture Interface --

// CaptureResult is what a browser hands back after loading a page.
type CaptureResult struct {
	Screenshot []byte
	Logs       []ConsoleLog
}

// BrowserCapture loads a URL, records its console output from before the
// navigation starts, and screenshots the settled page.
type BrowserCapture interface {
	Capture(ctx context.Context, url string) (*CaptureResult, error)
}

// -- Code Agent Interface --

// AgentRequest is a single invocation of the external code editing agent.
type AgentRequest struct {
	Instruction Instruction
	Files       []string
	Model       string
	// OutputPath receives a copy of the agent's combined output when set.
	OutputPath string
}

// CodeAgent performs the actual source edits. Run blocks until the agent
// exits and returns its exit status; err is non-nil only when no status could
// be obtained (launch failure, cancellation).
type CodeAgent interface {
	Run(ctx context.Context, req AgentRequest) (exitCode int, err error)
	Name() string
}
