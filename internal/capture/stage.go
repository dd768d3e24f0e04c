// internal/capture/stage.go
package capture

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/artifacts"
)

// Result points at what the stage persisted.
type Result struct {
	ScreenshotPath string
	LogsPath       string
	LogCount       int
}

// Stage captures the running app and writes the screenshot and console
// transcript into the run's artifact files.
type Stage struct {
	browser schemas.BrowserCapture
	store   *artifacts.Store
	logger  *zap.Logger
}

// NewStage creates the capture stage.
func NewStage(browser schemas.BrowserCapture, store *artifacts.Store, logger *zap.Logger) *Stage {
	return &Stage{browser: browser, store: store, logger: logger.Named("capture")}
}

// Capture loads url and persists the result. Every failure is a CaptureError.
func (s *Stage) Capture(ctx context.Context, run *schemas.RunArtifacts, url string) (*Result, error) {
	s.logger.Info("Capturing screenshot and console logs.", zap.String("url", url))

	res, err := s.browser.Capture(ctx, url)
	if err != nil {
		return nil, s.fail(err)
	}
	if res == nil || len(res.Screenshot) == 0 {
		return nil, s.fail(errors.New("browser returned an empty screenshot"))
	}

	if err := s.store.Write(run.ScreenshotPath, res.Screenshot); err != nil {
		return nil, s.fail(fmt.Errorf("persisting screenshot: %w", err))
	}
	if err := s.store.WriteText(run.LogsPath, schemas.FormatTranscript(res.Logs)); err != nil {
		return nil, s.fail(fmt.Errorf("persisting console logs: %w", err))
	}

	s.logger.Info("Screenshot and logs saved.",
		zap.String("screenshot", run.ScreenshotPath),
		zap.String("logs", run.LogsPath),
		zap.Int("console_entries", len(res.Logs)),
	)
	return &Result{ScreenshotPath: run.ScreenshotPath, LogsPath: run.LogsPath, LogCount: len(res.Logs)}, nil
}

func (s *Stage) fail(err error) error {
	s.logger.Error("Capture failed.", zap.Error(err))
	return schemas.NewStageError(schemas.StageCapture, schemas.KindCapture, err)
}
