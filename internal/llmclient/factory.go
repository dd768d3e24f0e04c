// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/config"
)

// NewClient builds the router used by the loop: one backend per model slot,
// or the canned backend when simulating.
func NewClient(ctx context.Context, cfg config.Interface, logger *zap.Logger) (schemas.LLMClient, error) {
	if cfg.Simulation().Enabled {
		sim := NewSimulatedClient(logger)
		return NewLLMRouter(logger, sim, sim)
	}

	llm := cfg.LLM()
	visionClient, err := newProviderClient(ctx, OptionsFromConfig(llm, llm.Vision), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vision tier client: %w", err)
	}
	codeClient, err := newProviderClient(ctx, OptionsFromConfig(llm, llm.Code), logger)
	if err != nil {
		visionClient.Close()
		return nil, fmt.Errorf("failed to initialize code tier client: %w", err)
	}

	return NewLLMRouter(logger, visionClient, codeClient)
}

func newProviderClient(ctx context.Context, opts ClientOptions, logger *zap.Logger) (schemas.LLMClient, error) {
	switch opts.Model.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIClient(opts, logger)
	case config.ProviderGemini:
		return NewGoogleClient(ctx, opts, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s]", opts.Model.Provider, config.ProviderOpenAI, config.ProviderGemini)
	}
}
