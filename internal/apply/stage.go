// internal/apply/stage.go
package apply

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/config"
)

// Result describes one agent invocation.
type Result struct {
	ExitCode int
	// WorkDir is the directory the agent ran in, relative to where the loop
	// was started. "." when no sub-project root matched.
	WorkDir string
	// Files are the paths as handed to the agent.
	Files       []string
	PreApplyRev string
}

// Stage hands an instruction and its target files to the code agent.
type Stage struct {
	agent  schemas.CodeAgent
	cfg    config.ApplyConfig
	logger *zap.Logger

	chdir func(string) error
	getwd func() (string, error)
}

// NewStage creates the apply stage.
func NewStage(agent schemas.CodeAgent, cfg config.ApplyConfig, logger *zap.Logger) *Stage {
	return &Stage{
		agent:  agent,
		cfg:    cfg,
		logger: logger.Named("apply"),
		chdir:  os.Chdir,
		getwd:  os.Getwd,
	}
}

// Apply runs the agent once. When a target lives under a configured
// sub-project root the process moves into that root for the call and always
// moves back. A non-zero exit returns both the Result and an ApplyError.
func (s *Stage) Apply(ctx context.Context, run *schemas.RunArtifacts, instr schemas.Instruction, files []string, model string) (res *Result, err error) {
	cwd, err := s.getwd()
	if err != nil {
		return nil, s.fail(-1, fmt.Errorf("reading working directory: %w", err))
	}

	res = &Result{WorkDir: ".", Files: files}
	if s.cfg.RecordGitHead {
		res.PreApplyRev = s.recordHead(cwd)
	}

	workDir := cwd
	root := MatchRoot(files, s.cfg.SubprojectRoots)
	if root != "" && isDryRun(s.agent) {
		if _, serr := os.Stat(absFrom(cwd, root)); errors.Is(serr, fs.ErrNotExist) {
			s.logger.Warn("Sub-project root does not exist; dry run stays in the current directory.", zap.String("dir", root))
			root = ""
		}
	}
	if root != "" {
		workDir = absFrom(cwd, root)
		res.WorkDir = root
		if res.Files, err = relativeTo(cwd, workDir, files); err != nil {
			return res, s.fail(-1, err)
		}

		if err := s.chdir(workDir); err != nil {
			return res, s.fail(-1, fmt.Errorf("entering %s: %w", root, err))
		}
		s.logger.Info("Running agent inside sub-project.", zap.String("dir", root))
		defer func() {
			if rerr := s.chdir(cwd); rerr != nil {
				s.logger.Error("Could not restore working directory.", zap.String("dir", cwd), zap.Error(rerr))
				if err == nil {
					err = s.fail(-1, fmt.Errorf("restoring working directory: %w", rerr))
				}
			}
		}()
	}

	req := schemas.AgentRequest{
		Instruction: instr,
		Files:       res.Files,
		Model:       model,
		OutputPath:  absFrom(cwd, run.AgentOutputPath),
	}
	code, runErr := s.agent.Run(ctx, req)
	res.ExitCode = code
	if runErr != nil {
		return res, s.fail(code, runErr)
	}
	if code != 0 {
		return res, s.fail(code, fmt.Errorf("%s exited with status %d", s.agent.Name(), code))
	}

	s.logger.Info("Code agent finished.", zap.String("agent", s.agent.Name()), zap.Int("files", len(res.Files)))
	return res, nil
}

// isDryRun reports whether agent never touches the tree.
func isDryRun(agent schemas.CodeAgent) bool {
	d, ok := agent.(interface{ DryRun() bool })
	return ok && d.DryRun()
}

func (s *Stage) recordHead(dir string) string {
	snap, err := SnapshotRepo(dir)
	if err != nil {
		if !errors.Is(err, ErrNoRepository) {
			s.logger.Warn("Could not record git HEAD before applying.", zap.Error(err))
		}
		return ""
	}
	if snap.Dirty {
		s.logger.Warn("Working tree has uncommitted changes; the agent's edits will mix with them.", zap.String("repo", snap.Root))
	}
	s.logger.Info("Recorded pre-apply revision.", zap.String("head", snap.Head), zap.String("branch", snap.Branch))
	return snap.Head
}

func (s *Stage) fail(code int, err error) error {
	s.logger.Error("Apply failed.", zap.Int("exit_code", code), zap.Error(err))
	se := schemas.NewStageError(schemas.StageApply, schemas.KindApply, err)
	se.ExitCode = code
	return se
}

// MatchRoot returns the first root, in configuration order, that contains any
// of files. Roots and files are compared as cleaned relative paths.
func MatchRoot(files, roots []string) string {
	for _, root := range roots {
		root = filepath.Clean(root)
		if root == "." || root == "" {
			continue
		}
		for _, f := range files {
			if isUnder(filepath.Clean(f), root) {
				return root
			}
		}
	}
	return ""
}

func isUnder(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// relativeTo rewrites files (relative to base) so they resolve from dir.
func relativeTo(base, dir string, files []string) ([]string, error) {
	out := make([]string, len(files))
	for i, f := range files {
		rel, err := filepath.Rel(dir, absFrom(base, f))
		if err != nil {
			return nil, fmt.Errorf("making %s relative to %s: %w", f, dir, err)
		}
		out[i] = rel
	}
	return out, nil
}

func absFrom(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
