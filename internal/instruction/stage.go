// internal/instruction/stage.go
package instruction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/artifacts"
	"github.com/xkilldash9x/vibeloop/internal/config"
	"github.com/xkilldash9x/vibeloop/internal/llmutil"
)

// SystemPrompt frames the code model.
const SystemPrompt = "You are a senior code editor preparing a single instruction for a code-editing agent."

const promptTemplate = `Given this JSON of detected issues, produce ONE short instruction for the agent to apply.
Rules:
- List the files to modify at top as a bullet list.
- Then, numbered steps with precise edits.
- Include any new files to create.
- End with a short test plan under a "Test plan:" heading (npm scripts).
Keep it compact and deterministic.
JSON from vision:

%s
`

// Result is a synthesized instruction plus any structural warnings raised in
// lenient mode.
type Result struct {
	Instruction schemas.Instruction
	Warnings    []string
}

// Stage turns a vision report into one instruction for the code agent.
type Stage struct {
	llm    schemas.LLMClient
	store  *artifacts.Store
	cfg    config.InstructionConfig
	model  config.LLMModelConfig
	logger *zap.Logger
}

// NewStage creates the instruction synthesis stage.
func NewStage(llm schemas.LLMClient, store *artifacts.Store, cfg config.InstructionConfig, model config.LLMModelConfig, logger *zap.Logger) *Stage {
	return &Stage{llm: llm, store: store, cfg: cfg, model: model, logger: logger.Named("instruction")}
}

// BuildPrompt embeds the report as indented JSON in the synthesis prompt.
func BuildPrompt(report *schemas.VisionReport) (string, error) {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serializing vision report: %w", err)
	}
	return fmt.Sprintf(promptTemplate, body), nil
}

// Synthesize asks the code model for the instruction, persists the raw text
// and checks that its three segments are present.
func (s *Stage) Synthesize(ctx context.Context, run *schemas.RunArtifacts, report *schemas.VisionReport) (*Result, error) {
	prompt, err := BuildPrompt(report)
	if err != nil {
		return nil, s.fail(schemas.KindParse, err)
	}

	s.logger.Info("Synthesizing agent instruction.", zap.String("model", s.model.Model))
	raw, err := s.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: SystemPrompt,
		UserPrompt:   prompt,
		Tier:         schemas.TierCode,
		Options: schemas.GenerationOptions{
			Temperature: s.model.Temperature,
			MaxTokens:   s.model.MaxTokens,
		},
	})
	if err != nil {
		return nil, s.fail(schemas.KindBackend, err)
	}
	if err := s.store.WriteText(run.InstructionPath, raw); err != nil {
		return nil, s.fail(schemas.KindParse, fmt.Errorf("persisting instruction: %w", err))
	}

	text := strings.TrimSpace(llmutil.CleanCodeOutput(raw))
	if text == "" {
		return nil, s.fail(schemas.KindParse, errors.New("code model returned an empty instruction"))
	}

	res := &Result{Instruction: schemas.Instruction(text)}
	if structure := CheckStructure(text); !structure.OK() {
		if s.cfg.Strictness == config.StrictnessStrict {
			return nil, s.fail(schemas.KindParse, &StructureError{Missing: structure.Missing, OutOfOrder: structure.OutOfOrder})
		}
		res.Warnings = structure.Warnings()
		s.logger.Warn("Instruction is structurally incomplete, continuing.", zap.Strings("warnings", res.Warnings))
	}

	s.logger.Info("Instruction ready.", zap.Int("chars", len(text)), zap.String("path", run.InstructionPath))
	return res, nil
}

func (s *Stage) fail(kind schemas.ErrorKind, err error) error {
	s.logger.Error("Instruction synthesis failed.", zap.String("kind", string(kind)), zap.Error(err))
	return schemas.NewStageError(schemas.StageSynthesis, kind, err)
}
