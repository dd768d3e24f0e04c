// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/apply"
	"github.com/xkilldash9x/vibeloop/internal/artifacts"
	"github.com/xkilldash9x/vibeloop/internal/capture"
	"github.com/xkilldash9x/vibeloop/internal/config"
	"github.com/xkilldash9x/vibeloop/internal/instruction"
	"github.com/xkilldash9x/vibeloop/internal/llmclient"
	"github.com/xkilldash9x/vibeloop/internal/mocks"
	"github.com/xkilldash9x/vibeloop/internal/vision"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const appURL = "http://localhost:5173"

var shotBytes = []byte("\x89PNG screenshot")

// harness wires real stages around mocked leaf collaborators.
type harness struct {
	orch    *Orchestrator
	store   *artifacts.Store
	browser *mocks.MockBrowserCapture
	llm     *mocks.MockLLMClient
	agent   *mocks.MockCodeAgent
}

func newMockConfig(simulated bool) *mocks.MockConfig {
	cfg := new(mocks.MockConfig)
	cfg.On("Browser").Return(config.BrowserConfig{NavigationTimeout: 10 * time.Second}).Maybe()
	cfg.On("Analysis").Return(config.AnalysisConfig{MaxLogChars: 20000, Timeout: time.Minute}).Maybe()
	cfg.On("Instruction").Return(config.InstructionConfig{Strictness: config.StrictnessLenient, Timeout: time.Minute}).Maybe()
	cfg.On("Apply").Return(config.ApplyConfig{Agent: "aider", Timeout: time.Minute}).Maybe()
	cfg.On("LLM").Return(config.LLMConfig{
		Vision: config.LLMModelConfig{Model: "vision-model", Temperature: 0.2},
		Code:   config.LLMModelConfig{Model: "code-model", Temperature: 0.1},
	}).Maybe()
	cfg.On("Simulation").Return(config.SimulationConfig{Enabled: simulated}).Maybe()
	return cfg
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := newMockConfig(false)

	store, err := artifacts.NewStore(filepath.Join(t.TempDir(), "ai_loop_artifacts"), logger)
	require.NoError(t, err)

	h := &harness{
		store:   store,
		browser: new(mocks.MockBrowserCapture),
		llm:     new(mocks.MockLLMClient),
		agent:   new(mocks.MockCodeAgent),
	}
	h.agent.On("Name").Return("aider").Maybe()

	stages := Stages{
		Capture:   capture.NewStage(h.browser, store, logger),
		Vision:    vision.NewStage(h.llm, store, cfg.Analysis(), cfg.LLM().Vision, logger),
		Synthesis: instruction.NewStage(h.llm, store, cfg.Instruction(), cfg.LLM().Code, logger),
		Apply:     apply.NewStage(h.agent, cfg.Apply(), logger),
	}
	h.orch, err = New(cfg, logger, store, stages, "aider")
	require.NoError(t, err)
	return h
}

func (h *harness) captureOK() {
	h.browser.On("Capture", mock.Anything, appURL).Return(&schemas.CaptureResult{
		Screenshot: shotBytes,
		Logs:       []schemas.ConsoleLog{{Type: "error", Text: "Uncaught ReferenceError: todo is not defined"}},
	}, nil).Once()
}

func tier(t schemas.ModelTier) interface{} {
	return mock.MatchedBy(func(req schemas.GenerationRequest) bool { return req.Tier == t })
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(nil, zap.NewNop(), nil, Stages{}, "")
	assert.Error(t, err)
}

func TestRun_DemoReportSucceeds(t *testing.T) {
	h := newHarness(t)
	h.captureOK()
	h.llm.On("Generate", mock.Anything, tier(schemas.TierVision)).Return(llmclient.SimulatedVisionResponse, nil).Once()
	h.llm.On("Generate", mock.Anything, tier(schemas.TierCode)).Return(llmclient.SimulatedInstruction, nil).Once()

	var req schemas.AgentRequest
	h.agent.On("Run", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { req = args.Get(1).(schemas.AgentRequest) }).
		Return(0, nil).Once()

	summary, err := h.orch.Run(context.Background(), appURL)
	require.NoError(t, err)
	h.llm.AssertExpectations(t)
	h.agent.AssertExpectations(t)

	wantFiles := []string{"test-app/index.html", "test-app/main.js", "test-app/style.css"}
	assert.Equal(t, schemas.RunSucceeded, summary.Status)
	assert.Equal(t, []schemas.Stage{
		schemas.StageCapture, schemas.StageVision, schemas.StageTargets, schemas.StageSynthesis, schemas.StageApply,
	}, summary.CompletedStages)
	assert.Equal(t, 3, summary.IssueCount)
	assert.Equal(t, map[schemas.Severity]int{schemas.SeverityMedium: 2, schemas.SeverityHigh: 1}, summary.Severities)
	assert.Equal(t, wantFiles, summary.Files)
	require.NotNil(t, summary.ExitCode)
	assert.Equal(t, 0, *summary.ExitCode)
	assert.Equal(t, "code-model", summary.AgentModel)
	assert.Empty(t, summary.InstructionWarnings)
	require.Len(t, summary.Issues, 3)
	assert.Equal(t, "Todo items lack delete functionality", summary.Issues[1].Title)

	assert.Equal(t, wantFiles, req.Files)
	assert.Equal(t, "code-model", req.Model)
	assert.Equal(t, schemas.Instruction(llmclient.SimulatedInstruction), req.Instruction)

	persisted, err := artifacts.ReadSummary(summary.Artifacts.SummaryPath)
	require.NoError(t, err)
	assert.Equal(t, summary.Key, persisted.Key)
	assert.Equal(t, schemas.RunSucceeded, persisted.Status)
	assert.Equal(t, wantFiles, persisted.Files)
}

func TestRun_UnparseableVisionStopsBeforeDownstream(t *testing.T) {
	h := newHarness(t)
	h.captureOK()
	h.llm.On("Generate", mock.Anything, tier(schemas.TierVision)).Return("The page looks fine to me.", nil).Once()

	summary, err := h.orch.Run(context.Background(), appURL)
	require.Error(t, err)
	assert.True(t, schemas.IsKind(err, schemas.KindParse))

	h.llm.AssertNumberOfCalls(t, "Generate", 1)
	h.agent.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)

	assert.Equal(t, schemas.RunFailed, summary.Status)
	assert.Equal(t, schemas.StageVision, summary.FailedStage)
	assert.Equal(t, schemas.KindParse, summary.ErrorKind)
	assert.Equal(t, []schemas.Stage{schemas.StageCapture}, summary.CompletedStages)
	assert.Empty(t, summary.Files)
	assert.Nil(t, summary.ExitCode)

	_, statErr := os.Stat(summary.Artifacts.InstructionPath)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(summary.Artifacts.SummaryPath)
	assert.NoError(t, statErr, "failed runs still write a summary")
}

func TestRun_AgentFailureIsApplyError(t *testing.T) {
	h := newHarness(t)
	h.captureOK()
	h.llm.On("Generate", mock.Anything, tier(schemas.TierVision)).Return(llmclient.SimulatedVisionResponse, nil).Once()
	h.llm.On("Generate", mock.Anything, tier(schemas.TierCode)).Return(llmclient.SimulatedInstruction, nil).Once()
	h.agent.On("Run", mock.Anything, mock.Anything).Return(1, nil).Once()

	summary, err := h.orch.Run(context.Background(), appURL)
	require.Error(t, err)
	assert.True(t, schemas.IsKind(err, schemas.KindApply))

	assert.Equal(t, schemas.RunFailed, summary.Status)
	assert.Equal(t, schemas.StageApply, summary.FailedStage)
	require.NotNil(t, summary.ExitCode)
	assert.Equal(t, 1, *summary.ExitCode)
	assert.Len(t, summary.CompletedStages, 4)

	shot, err := os.ReadFile(summary.Artifacts.ScreenshotPath)
	require.NoError(t, err)
	assert.Equal(t, shotBytes, shot)
	raw, err := os.ReadFile(summary.Artifacts.VisionRawPath)
	require.NoError(t, err)
	assert.Equal(t, llmclient.SimulatedVisionResponse, string(raw))
	instr, err := os.ReadFile(summary.Artifacts.InstructionPath)
	require.NoError(t, err)
	assert.Equal(t, llmclient.SimulatedInstruction, string(instr))
}

func TestRun_NoIssuesSkipsSynthesisAndApply(t *testing.T) {
	h := newHarness(t)
	h.captureOK()
	h.llm.On("Generate", mock.Anything, tier(schemas.TierVision)).Return(`{"issues": [], "notes": "looks good"}`, nil).Once()

	summary, err := h.orch.Run(context.Background(), appURL)
	require.NoError(t, err)
	h.llm.AssertNumberOfCalls(t, "Generate", 1)
	h.agent.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)

	assert.Equal(t, schemas.RunSucceeded, summary.Status)
	assert.Equal(t, 0, summary.IssueCount)
	assert.Equal(t, "looks good", summary.Notes)
	assert.Equal(t, []schemas.Stage{schemas.StageCapture, schemas.StageVision}, summary.CompletedStages)
}

func TestRun_CaptureFailure(t *testing.T) {
	h := newHarness(t)
	h.browser.On("Capture", mock.Anything, appURL).Return(nil, errors.New("net::ERR_CONNECTION_REFUSED")).Once()

	summary, err := h.orch.Run(context.Background(), appURL)
	require.Error(t, err)
	assert.Equal(t, schemas.StageCapture, summary.FailedStage)
	assert.Equal(t, schemas.KindCapture, summary.ErrorKind)
	assert.Empty(t, summary.CompletedStages)
	h.llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestRun_BackendErrorDuringSynthesis(t *testing.T) {
	h := newHarness(t)
	h.captureOK()
	h.llm.On("Generate", mock.Anything, tier(schemas.TierVision)).Return(llmclient.SimulatedVisionResponse, nil).Once()
	h.llm.On("Generate", mock.Anything, tier(schemas.TierCode)).
		Return("", &schemas.BackendError{Provider: "openai", StatusCode: 429, Err: errors.New("rate limited")}).Once()

	summary, err := h.orch.Run(context.Background(), appURL)
	require.Error(t, err)
	assert.Equal(t, schemas.StageSynthesis, summary.FailedStage)
	assert.Equal(t, schemas.KindBackend, summary.ErrorKind)
	assert.Equal(t, 3, summary.IssueCount, "partial results of completed stages are kept")
	assert.NotEmpty(t, summary.Files)
	h.agent.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestWithTimeout(t *testing.T) {
	ctx, cancel := withTimeout(context.Background(), 0)
	defer cancel()
	_, has := ctx.Deadline()
	assert.False(t, has)

	ctx2, cancel2 := withTimeout(context.Background(), time.Hour)
	defer cancel2()
	_, has = ctx2.Deadline()
	assert.True(t, has)
}
