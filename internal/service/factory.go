// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/apply"
	"github.com/xkilldash9x/vibeloop/internal/artifacts"
	"github.com/xkilldash9x/vibeloop/internal/browser"
	"github.com/xkilldash9x/vibeloop/internal/capture"
	"github.com/xkilldash9x/vibeloop/internal/config"
	"github.com/xkilldash9x/vibeloop/internal/instruction"
	"github.com/xkilldash9x/vibeloop/internal/llmclient"
	"github.com/xkilldash9x/vibeloop/internal/orchestrator"
	"github.com/xkilldash9x/vibeloop/internal/vision"
)

// ComponentFactory builds the set of components for a run. The run command
// depends on this interface so it can be tested with a fake.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error)
}

type concreteFactory struct {
	agentOutput io.Writer
}

// NewComponentFactory creates the production factory. agentOutput receives
// the code agent's live output; nil discards it.
func NewComponentFactory(agentOutput io.Writer) ComponentFactory {
	return &concreteFactory{agentOutput: agentOutput}
}

// Create wires the real or simulated collaborators, selected only by the
// simulation setting, into the four stages.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error) {
	if cfg == nil || logger == nil {
		return nil, fmt.Errorf("configuration and logger are required")
	}
	simulated := cfg.Simulation().Enabled

	store, err := artifacts.NewStore(cfg.Artifacts().Dir, logger)
	if err != nil {
		return nil, err
	}

	llm, err := llmclient.NewClient(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM clients: %w", err)
	}

	c := &Components{
		Store:     store,
		LLM:       llm,
		Browser:   newBrowser(cfg, logger),
		Agent:     f.newAgent(cfg, logger),
		Simulated: simulated,
		logger:    logger.Named("components"),
	}

	stages := orchestrator.Stages{
		Capture:   capture.NewStage(c.Browser, store, logger),
		Vision:    vision.NewStage(llm, store, cfg.Analysis(), cfg.LLM().Vision, logger),
		Synthesis: instruction.NewStage(llm, store, cfg.Instruction(), cfg.LLM().Code, logger),
		Apply:     apply.NewStage(c.Agent, cfg.Apply(), logger),
	}
	c.Orchestrator, err = orchestrator.New(cfg, logger, store, stages, c.Agent.Name())
	if err != nil {
		c.Shutdown()
		return nil, err
	}
	return c, nil
}

func newBrowser(cfg config.Interface, logger *zap.Logger) schemas.BrowserCapture {
	bcfg := cfg.Browser()
	if cfg.Simulation().Enabled {
		return browser.NewSimulatedBrowser(bcfg.ViewportWidth, bcfg.ViewportHeight, logger)
	}
	return browser.NewChromeCapture(bcfg, logger)
}

func (f *concreteFactory) newAgent(cfg config.Interface, logger *zap.Logger) schemas.CodeAgent {
	acfg := cfg.Apply()
	if cfg.Simulation().Enabled {
		return apply.NewDryRunAgent(acfg.Agent, acfg.ExtraArgs, logger)
	}
	return apply.NewAiderAgent(acfg.Agent, acfg.ExtraArgs, f.agentOutput, logger)
}
