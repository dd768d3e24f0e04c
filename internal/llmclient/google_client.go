// internal/llmclient/google_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/config"
)

const providerGemini = string(config.ProviderGemini)

// GoogleClient implements schemas.LLMClient on top of the Gemini SDK.
type GoogleClient struct {
	client  *genai.Client
	config  config.LLMModelConfig
	limiter *rate.Limiter
	logger  *zap.Logger

	backoffFactory func() backoff.BackOff
}

// NewGoogleClient initializes the SDK client. BaseURL, when set, overrides the
// public Gemini endpoint.
func NewGoogleClient(ctx context.Context, opts ClientOptions, logger *zap.Logger) (*GoogleClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("Google/Gemini API Key is required")
	}
	if opts.Model.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	cc := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: opts.Timeout},
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini SDK client: %w", err)
	}

	return &GoogleClient{
		client:         client,
		config:         opts.Model,
		limiter:        newLimiter(opts.RequestsPerMinute),
		logger:         logger.Named("llm_client.gemini"),
		backoffFactory: newBackoffFactory(opts),
	}, nil
}

// Generate sends the request through the SDK with retries.
func (c *GoogleClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	model, contents, genConfig := c.buildRequest(req)

	var responseContent string

	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
		}

		startTime := time.Now()
		resp, err := c.client.Models.GenerateContent(ctx, model, contents, genConfig)
		duration := time.Since(startTime)
		if err != nil {
			return c.handleAPIError(ctx, err)
		}

		if len(resp.Candidates) == 0 {
			return backoff.Permanent(&schemas.BackendError{Provider: providerGemini, Err: fmt.Errorf("gemini API returned no candidates")})
		}

		text := resp.Text()
		if strings.TrimSpace(text) == "" {
			reason := resp.Candidates[0].FinishReason
			err := &schemas.BackendError{Provider: providerGemini, Err: fmt.Errorf("gemini API returned empty content (Reason: %s)", reason)}
			if reason == genai.FinishReasonSafety || reason == genai.FinishReasonBlocklist || reason == genai.FinishReasonProhibitedContent {
				return backoff.Permanent(err)
			}
			return err
		}

		fields := []zap.Field{
			zap.String("model", model),
			zap.String("tier", string(req.Tier)),
			zap.Duration("duration", duration),
		}
		if usage := resp.UsageMetadata; usage != nil {
			fields = append(fields,
				zap.Int32("prompt_tokens", usage.PromptTokenCount),
				zap.Int32("completion_tokens", usage.CandidatesTokenCount),
				zap.Int32("total_tokens", usage.TotalTokenCount),
			)
		}
		c.logger.Info("LLM generation complete (Gemini)", fields...)

		responseContent = text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.backoffFactory(), ctx)); err != nil {
		return "", asBackendError(providerGemini, err)
	}
	return responseContent, nil
}

func (c *GoogleClient) buildRequest(req schemas.GenerationRequest) (string, []*genai.Content, *genai.GenerateContentConfig) {
	model := c.config.Model
	if req.Model != "" {
		model = req.Model
	}

	maxTokens := c.config.MaxTokens
	if req.Options.MaxTokens > 0 {
		maxTokens = req.Options.MaxTokens
	}

	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.UserPrompt))
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	genConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Options.Temperature)),
		MaxOutputTokens: int32(maxTokens),
	}
	if req.SystemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Options.ForceJSONFormat {
		genConfig.ResponseMIMEType = "application/json"
	}
	return model, contents, genConfig
}

// handleAPIError classifies SDK errors. API errors carry the HTTP status;
// anything else is a transport failure and is retried.
func (c *GoogleClient) handleAPIError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return backoff.Permanent(ctx.Err())
	}

	status := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Code
	case errors.As(err, &apiErrPtr):
		status = apiErrPtr.Code
	}

	if status == 0 {
		c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
		return &schemas.BackendError{Provider: providerGemini, Err: err}
	}

	c.logger.Error("Gemini API returned error status", zap.Int("status", status), zap.Error(err))
	be := &schemas.BackendError{Provider: providerGemini, StatusCode: status, Err: err}
	if isTransientStatus(status) {
		return be
	}
	return backoff.Permanent(be)
}

// Close is a no-op; the SDK client holds no resources beyond its HTTP client.
func (c *GoogleClient) Close() error {
	return nil
}
