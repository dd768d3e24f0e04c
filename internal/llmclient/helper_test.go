package llmclient

import (
	"context"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/config"
)

// MockLLMClient is a mock implementation of the LLMClient interface for testing.
type MockLLMClient struct {
	mock.Mock
	Name string
}

// Generate mocks the Generate method.
func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// Close mocks the Close method.
func (m *MockLLMClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// setupTestLogger is a helper to create a zap logger for testing with an observer.
func setupTestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	core, _ := observer.New(zap.DebugLevel)
	return zap.New(core)
}

// getValidOptions returns client options pointing at baseURL.
func getValidOptions(provider config.LLMProvider, baseURL string) ClientOptions {
	return ClientOptions{
		APIKey:  "test-api-key",
		BaseURL: baseURL,
		Model: config.LLMModelConfig{
			Provider:    provider,
			Model:       "test-model",
			Temperature: 0.2,
			MaxTokens:   1200,
		},
		Timeout:    5 * time.Second,
		MaxRetries: 3,
		MaxElapsed: 10 * time.Second,
	}
}

// fastBackoff keeps retry tests quick while still bounding attempts.
func fastBackoff(maxRetries uint64) func() backoff.BackOff {
	return func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(5*time.Millisecond), maxRetries)
	}
}

// createTestRequest provides a standard generation request structure.
func createTestRequest() schemas.GenerationRequest {
	return schemas.GenerationRequest{
		SystemPrompt: "System prompt instructions.",
		UserPrompt:   "User query.",
		Tier:         schemas.TierCode,
		Options: schemas.GenerationOptions{
			Temperature: 0.1,
		},
	}
}
