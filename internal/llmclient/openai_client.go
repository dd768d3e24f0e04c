// internal/llmclient/openai_client.go
package llmclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/config"
)

const providerOpenAI = string(config.ProviderOpenAI)

// OpenAIClient talks to any OpenAI compatible chat completions endpoint.
// DeepInfra is the default deployment.
type OpenAIClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	config     config.LLMModelConfig

	backoffFactory func() backoff.BackOff
}

// -- Chat Completions Request/Response Structures --

type chatMessage struct {
	Role string `json:"role"`
	// Content is a plain string, or a list of parts when images are attached.
	Content interface{} `json:"content"`
}

type chatPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    float64             `json:"temperature"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIClient initializes the client.
func NewOpenAIClient(opts ClientOptions, logger *zap.Logger) (*OpenAIClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("OpenAI compatible API key is required")
	}
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("OpenAI compatible base URL is required")
	}
	if opts.Model.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	return &OpenAIClient{
		apiKey:   opts.APIKey,
		endpoint: strings.TrimRight(opts.BaseURL, "/") + "/chat/completions",
		config:   opts.Model,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter:        newLimiter(opts.RequestsPerMinute),
		logger:         logger.Named("llm_client.openai"),
		backoffFactory: newBackoffFactory(opts),
	}, nil
}

// Generate sends the prompts to the chat completions endpoint and returns the
// first choice, retrying transient failures.
func (c *OpenAIClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	payload := c.buildRequestPayload(req)

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	var responseContent string

	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		startTime := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		duration := time.Since(startTime)

		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
			return &schemas.BackendError{Provider: providerOpenAI, Err: fmt.Errorf("failed to execute HTTP request: %w", err)}
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return &schemas.BackendError{Provider: providerOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
		}

		if resp.StatusCode != http.StatusOK {
			c.logger.Error("OpenAI compatible API returned error status",
				zap.Int("status", resp.StatusCode),
				zap.String("response", truncate(string(respBody), 1000)),
			)
			return statusError(providerOpenAI, resp.StatusCode, respBody)
		}

		var responsePayload chatResponse
		if err := json.Unmarshal(respBody, &responsePayload); err != nil {
			return backoff.Permanent(&schemas.BackendError{Provider: providerOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response payload: %w", err)})
		}
		if len(responsePayload.Choices) == 0 {
			return backoff.Permanent(&schemas.BackendError{Provider: providerOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("API returned no choices")})
		}

		choice := responsePayload.Choices[0]
		if strings.TrimSpace(choice.Message.Content) == "" {
			err := &schemas.BackendError{Provider: providerOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("API returned empty content (finish reason: %s)", choice.FinishReason)}
			if choice.FinishReason == "content_filter" {
				return backoff.Permanent(err)
			}
			return err
		}

		c.logger.Info("LLM generation complete (OpenAI compatible)",
			zap.String("model", payload.Model),
			zap.String("tier", string(req.Tier)),
			zap.Duration("duration", duration),
			zap.Int("prompt_tokens", responsePayload.Usage.PromptTokens),
			zap.Int("completion_tokens", responsePayload.Usage.CompletionTokens),
			zap.Int("total_tokens", responsePayload.Usage.TotalTokens),
		)

		responseContent = choice.Message.Content
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.backoffFactory(), ctx)); err != nil {
		return "", asBackendError(providerOpenAI, err)
	}
	return responseContent, nil
}

func (c *OpenAIClient) buildRequestPayload(req schemas.GenerationRequest) chatRequest {
	model := c.config.Model
	if req.Model != "" {
		model = req.Model
	}

	maxTokens := c.config.MaxTokens
	if req.Options.MaxTokens > 0 {
		maxTokens = req.Options.MaxTokens
	}

	var userContent interface{} = req.UserPrompt
	if len(req.Images) > 0 {
		parts := make([]chatPart, 0, len(req.Images)+1)
		for _, img := range req.Images {
			parts = append(parts, chatPart{
				Type: "image_url",
				ImageURL: &chatImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", img.MIMEType, base64.StdEncoding.EncodeToString(img.Data)),
				},
			})
		}
		parts = append(parts, chatPart{Type: "text", Text: req.UserPrompt})
		userContent = parts
	}

	payload := chatRequest{
		Model:       model,
		Temperature: req.Options.Temperature,
		MaxTokens:   maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: userContent},
		},
	}
	if req.Options.ForceJSONFormat {
		payload.ResponseFormat = &chatResponseFormat{Type: "json_object"}
	}
	return payload
}

// Close releases idle connections.
func (c *OpenAIClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
