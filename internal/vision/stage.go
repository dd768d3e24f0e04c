// internal/vision/stage.go
package vision

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/artifacts"
	"github.com/xkilldash9x/vibeloop/internal/config"
	"github.com/xkilldash9x/vibeloop/internal/llmutil"
)

// Stage sends one capture to the vision model and reduces the answer to a
// VisionReport.
type Stage struct {
	llm      schemas.LLMClient
	store    *artifacts.Store
	analysis config.AnalysisConfig
	model    config.LLMModelConfig
	logger   *zap.Logger
}

// NewStage creates the vision analysis stage. model supplies the sampling
// parameters for the vision tier.
func NewStage(llm schemas.LLMClient, store *artifacts.Store, analysis config.AnalysisConfig, model config.LLMModelConfig, logger *zap.Logger) *Stage {
	return &Stage{
		llm:      llm,
		store:    store,
		analysis: analysis,
		model:    model,
		logger:   logger.Named("vision"),
	}
}

// Analyze reads the persisted capture, asks the vision model for a report and
// parses it. The raw response is written to the run's artifacts before any
// extraction is attempted.
func (s *Stage) Analyze(ctx context.Context, run *schemas.RunArtifacts, screenshotPath, logsPath string) (*schemas.VisionReport, error) {
	shot, err := os.ReadFile(screenshotPath)
	if err != nil {
		return nil, s.fail(schemas.KindCapture, fmt.Errorf("reading screenshot: %w", err))
	}
	logs, err := os.ReadFile(logsPath)
	if err != nil {
		return nil, s.fail(schemas.KindCapture, fmt.Errorf("reading console logs: %w", err))
	}

	bounded := llmutil.Truncate(string(logs), s.analysis.MaxLogChars)
	if len(bounded) < len(logs) {
		s.logger.Debug("Console transcript truncated for the prompt.",
			zap.Int("original_bytes", len(logs)),
			zap.Int("kept_bytes", len(bounded)),
		)
	}
	prompt := buildUserPrompt(bounded)
	if err := s.store.WriteText(run.VisionPromptPath, prompt); err != nil {
		return nil, s.fail(schemas.KindCapture, fmt.Errorf("persisting vision prompt: %w", err))
	}

	req := schemas.GenerationRequest{
		SystemPrompt: SystemPrompt,
		UserPrompt:   prompt,
		Images:       []schemas.ImageInput{{MIMEType: "image/png", Data: shot}},
		Tier:         schemas.TierVision,
		Options: schemas.GenerationOptions{
			Temperature: s.model.Temperature,
			MaxTokens:   s.model.MaxTokens,
		},
	}

	s.logger.Info("Requesting vision analysis.", zap.String("model", s.model.Model))
	raw, err := s.llm.Generate(ctx, req)
	if err != nil {
		return nil, s.fail(schemas.KindBackend, err)
	}
	if err := s.store.WriteText(run.VisionRawPath, raw); err != nil {
		return nil, s.fail(schemas.KindParse, fmt.Errorf("persisting raw vision response: %w", err))
	}

	report, tier, err := ParseReport(raw)
	if err != nil {
		if errors.Is(err, llmutil.ErrNoJSON) {
			s.logger.Error("Model did not return JSON.", zap.String("raw_path", run.VisionRawPath))
		}
		return nil, s.fail(schemas.KindParse, err)
	}

	s.logger.Info("Vision report parsed.",
		zap.Stringer("extraction", tier),
		zap.Int("issues", len(report.Issues)),
	)
	return report, nil
}

func (s *Stage) fail(kind schemas.ErrorKind, err error) error {
	s.logger.Error("Vision analysis failed.", zap.String("kind", string(kind)), zap.Error(err))
	return schemas.NewStageError(schemas.StageVision, kind, err)
}
