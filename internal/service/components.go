// File: internal/service/components.go
package service

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/artifacts"
	"github.com/xkilldash9x/vibeloop/internal/orchestrator"
)

// Components holds everything one run needs, built once from configuration.
type Components struct {
	Store        *artifacts.Store
	LLM          schemas.LLMClient
	Browser      schemas.BrowserCapture
	Agent        schemas.CodeAgent
	Orchestrator *orchestrator.Orchestrator
	Simulated    bool

	logger *zap.Logger
}

// Shutdown releases the backend clients. The browser is per-capture and owns
// no long-lived process.
func (c *Components) Shutdown() {
	if c.LLM != nil {
		if err := c.LLM.Close(); err != nil {
			c.logger.Warn("Error closing LLM clients.", zap.Error(err))
		} else {
			c.logger.Debug("LLM clients closed.")
		}
	}
}
