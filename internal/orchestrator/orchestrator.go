// File: internal/orchestrator/orchestrator.go
// Description: Runs one observe, diagnose, patch cycle. Stages are injected so
// the sequencing and summary logic can be tested without a browser or backend.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/apply"
	"github.com/xkilldash9x/vibeloop/internal/artifacts"
	"github.com/xkilldash9x/vibeloop/internal/capture"
	"github.com/xkilldash9x/vibeloop/internal/config"
	"github.com/xkilldash9x/vibeloop/internal/instruction"
	"github.com/xkilldash9x/vibeloop/internal/observability"
	"github.com/xkilldash9x/vibeloop/internal/targets"
)

// captureGrace is added to the navigation timeout to cover browser start up
// and the screenshot itself.
const captureGrace = 30 * time.Second

// Capturer loads the app and persists the capture.
type Capturer interface {
	Capture(ctx context.Context, run *schemas.RunArtifacts, url string) (*capture.Result, error)
}

// Analyzer turns a capture into a vision report.
type Analyzer interface {
	Analyze(ctx context.Context, run *schemas.RunArtifacts, screenshotPath, logsPath string) (*schemas.VisionReport, error)
}

// Synthesizer turns a report into an agent instruction.
type Synthesizer interface {
	Synthesize(ctx context.Context, run *schemas.RunArtifacts, report *schemas.VisionReport) (*instruction.Result, error)
}

// Applier hands the instruction to the code agent.
type Applier interface {
	Apply(ctx context.Context, run *schemas.RunArtifacts, instr schemas.Instruction, files []string, model string) (*apply.Result, error)
}

// Stages bundles the four stage implementations.
type Stages struct {
	Capture   Capturer
	Vision    Analyzer
	Synthesis Synthesizer
	Apply     Applier
}

// Orchestrator sequences the stages for exactly one run.
type Orchestrator struct {
	cfg       config.Interface
	logger    *zap.Logger
	store     *artifacts.Store
	stages    Stages
	agentName string
	now       func() time.Time
}

// New creates an Orchestrator. Every dependency is required.
func New(cfg config.Interface, logger *zap.Logger, store *artifacts.Store, stages Stages, agentName string) (*Orchestrator, error) {
	if cfg == nil ||
		logger == nil ||
		store == nil ||
		stages.Capture == nil ||
		stages.Vision == nil ||
		stages.Synthesis == nil ||
		stages.Apply == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	return &Orchestrator{
		cfg:       cfg,
		logger:    logger.Named("orchestrator"),
		store:     store,
		stages:    stages,
		agentName: agentName,
		now:       time.Now,
	}, nil
}

// Run executes capture, vision, targeting, synthesis and apply in order. The
// summary is always returned and always persisted; the error is the failing
// stage's StageError, if any.
func (o *Orchestrator) Run(ctx context.Context, url string) (*schemas.RunSummary, error) {
	run := o.store.NewRun()
	logger := observability.ForRun(o.logger, run.Key)

	summary := &schemas.RunSummary{
		Key:             run.Key,
		Timestamp:       run.Timestamp,
		URL:             url,
		Simulated:       o.cfg.Simulation().Enabled,
		StartedAt:       o.now().UTC(),
		CompletedStages: []schemas.Stage{},
		Files:           []string{},
		Agent:           o.agentName,
		AgentModel:      config.AgentModel(o.cfg),
		Artifacts:       *run,
	}
	if summary.Simulated {
		logger.Warn("Simulation mode is enabled; nothing real is captured, analyzed or edited.")
	}
	logger.Info("Starting run.", zap.String("url", url))

	runErr := o.execute(ctx, logger, run, summary)
	o.finish(summary, runErr)

	if err := o.store.WriteSummary(summary); err != nil {
		logger.Error("Could not persist run summary.", zap.Error(err))
		if runErr == nil {
			runErr = fmt.Errorf("persisting run summary: %w", err)
		}
	}

	if runErr != nil {
		logger.Error("Run failed.",
			zap.String("stage", string(summary.FailedStage)),
			zap.String("kind", string(summary.ErrorKind)),
			zap.Error(runErr),
		)
	} else {
		logger.Info("Run finished.",
			zap.Int("issues", summary.IssueCount),
			zap.Strings("files", summary.Files),
			zap.String("summary", run.SummaryPath),
		)
	}
	return summary, runErr
}

func (o *Orchestrator) execute(ctx context.Context, logger *zap.Logger, run *schemas.RunArtifacts, summary *schemas.RunSummary) error {
	// 1. Capture.
	cctx, cancel := withTimeout(ctx, o.cfg.Browser().NavigationTimeout+captureGrace)
	shot, err := o.stages.Capture.Capture(cctx, run, summary.URL)
	cancel()
	if err != nil {
		return err
	}
	summary.CompletedStages = append(summary.CompletedStages, schemas.StageCapture)

	// 2. Vision analysis.
	vctx, cancel := withTimeout(ctx, o.cfg.Analysis().Timeout)
	report, err := o.stages.Vision.Analyze(vctx, run, shot.ScreenshotPath, shot.LogsPath)
	cancel()
	if err != nil {
		return err
	}
	summary.CompletedStages = append(summary.CompletedStages, schemas.StageVision)
	recordReport(summary, report)

	if len(report.Issues) == 0 {
		logger.Info("No issues found; nothing to synthesize or apply.")
		return nil
	}

	// 3. File targets.
	summary.Files = targets.Resolve(report)
	summary.CompletedStages = append(summary.CompletedStages, schemas.StageTargets)
	logger.Info("Resolved target files.", zap.Strings("files", summary.Files))

	// 4. Instruction synthesis.
	sctx, cancel := withTimeout(ctx, o.cfg.Instruction().Timeout)
	instr, err := o.stages.Synthesis.Synthesize(sctx, run, report)
	cancel()
	if err != nil {
		return err
	}
	summary.InstructionWarnings = instr.Warnings
	summary.CompletedStages = append(summary.CompletedStages, schemas.StageSynthesis)

	// 5. Apply.
	actx, cancel := withTimeout(ctx, o.cfg.Apply().Timeout)
	res, err := o.stages.Apply.Apply(actx, run, instr.Instruction, summary.Files, summary.AgentModel)
	cancel()
	if res != nil {
		code := res.ExitCode
		summary.ExitCode = &code
		summary.WorkDir = res.WorkDir
		summary.PreApplyRev = res.PreApplyRev
	}
	if err != nil {
		return err
	}
	summary.CompletedStages = append(summary.CompletedStages, schemas.StageApply)
	return nil
}

func (o *Orchestrator) finish(summary *schemas.RunSummary, err error) {
	summary.FinishedAt = o.now().UTC()
	if err == nil {
		summary.Status = schemas.RunSucceeded
		return
	}

	summary.Status = schemas.RunFailed
	summary.Error = err.Error()
	var se *schemas.StageError
	if errors.As(err, &se) {
		summary.FailedStage = se.Stage
		summary.ErrorKind = se.Kind
		if se.Kind == schemas.KindApply && summary.ExitCode == nil {
			code := se.ExitCode
			summary.ExitCode = &code
		}
	}
}

func recordReport(summary *schemas.RunSummary, report *schemas.VisionReport) {
	summary.IssueCount = len(report.Issues)
	summary.Severities = report.SeverityCounts()
	summary.Notes = report.Notes
	summary.Issues = make([]schemas.IssueSummary, 0, len(report.Issues))
	for _, issue := range report.Issues {
		summary.Issues = append(summary.Issues, schemas.IssueSummary{
			Title:    issue.Title,
			Severity: issue.Severity,
			Evidence: issue.Evidence,
		})
	}
}

// withTimeout bounds a stage. A non-positive duration leaves only the parent's
// deadline in force.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
