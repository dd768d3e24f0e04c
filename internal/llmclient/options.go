// internal/llmclient/options.go
package llmclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/config"
)

// ClientOptions is everything a single backend client needs. It is built from
// the shared llm section plus one model slot.
type ClientOptions struct {
	APIKey  string
	BaseURL string
	Model   config.LLMModelConfig

	Timeout           time.Duration
	MaxRetries        int
	MaxElapsed        time.Duration
	RequestsPerMinute float64
}

// OptionsFromConfig combines the connection settings with a model slot. The
// base URL only applies to OpenAI compatible providers; the Gemini SDK uses
// its own endpoint.
func OptionsFromConfig(llm config.LLMConfig, model config.LLMModelConfig) ClientOptions {
	opts := ClientOptions{
		APIKey:            llm.APIKey,
		Model:             model,
		Timeout:           llm.APITimeout,
		MaxRetries:        llm.MaxRetries,
		MaxElapsed:        llm.MaxElapsed,
		RequestsPerMinute: llm.RequestsPerMinute,
	}
	if model.Provider == config.ProviderOpenAI {
		opts.BaseURL = llm.BaseURL
	}
	return opts
}

// newBackoffFactory returns the retry policy: exponential, capped both by
// attempt count and by total elapsed time.
func newBackoffFactory(opts ClientOptions) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = opts.MaxElapsed
		b.MaxInterval = 30 * time.Second
		return backoff.WithMaxRetries(b, uint64(opts.MaxRetries))
	}
}

// newLimiter spaces requests out when a per-minute budget is configured.
func newLimiter(requestsPerMinute float64) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(requestsPerMinute/60.0), 1)
}

// isTransientStatus reports whether an HTTP status is worth retrying.
func isTransientStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// statusError converts a failed HTTP exchange into a BackendError, marked
// permanent unless the status is transient.
func statusError(provider string, status int, body []byte) error {
	err := &schemas.BackendError{
		Provider:   provider,
		StatusCode: status,
		Err:        fmt.Errorf("%s API error: status %d, body: %s", provider, status, truncate(string(body), 1000)),
	}
	if isTransientStatus(status) {
		return err
	}
	return backoff.Permanent(err)
}

// asBackendError makes sure whatever came out of the retry loop is a
// BackendError so stages can classify it.
func asBackendError(provider string, err error) error {
	var be *schemas.BackendError
	if errors.As(err, &be) {
		return err
	}
	return &schemas.BackendError{Provider: provider, Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
