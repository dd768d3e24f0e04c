// internal/apply/agent.go
package apply

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/artifacts"
)

// AiderAgent runs an aider-compatible command line:
//
//	<binary> --message <instruction> --model <model> <extra args...> <files...>
type AiderAgent struct {
	binary    string
	extraArgs []string
	stdout    io.Writer
	logger    *zap.Logger
}

// NewAiderAgent creates an agent that launches binary. Output is streamed to
// stdout and, when the request names one, an artifact file.
func NewAiderAgent(binary string, extraArgs []string, stdout io.Writer, logger *zap.Logger) *AiderAgent {
	if stdout == nil {
		stdout = io.Discard
	}
	return &AiderAgent{
		binary:    binary,
		extraArgs: extraArgs,
		stdout:    stdout,
		logger:    logger.Named("agent.aider"),
	}
}

func (a *AiderAgent) Name() string { return a.binary }

// Args builds the argument vector for req.
func (a *AiderAgent) Args(req schemas.AgentRequest) []string {
	args := []string{"--message", string(req.Instruction)}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	args = append(args, a.extraArgs...)
	return append(args, req.Files...)
}

// Run blocks until the agent exits. A non-zero exit is reported through the
// exit code, not the error.
func (a *AiderAgent) Run(ctx context.Context, req schemas.AgentRequest) (int, error) {
	args := a.Args(req)
	cmd := exec.CommandContext(ctx, a.binary, args...)

	out := a.stdout
	if req.OutputPath != "" {
		f, err := artifacts.Create(req.OutputPath)
		if err != nil {
			return -1, err
		}
		defer f.Close()
		out = io.MultiWriter(a.stdout, f)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	a.logger.Info("Launching code agent.",
		zap.String("binary", a.binary),
		zap.String("model", req.Model),
		zap.Strings("files", req.Files),
		zap.String("extra_args", strings.Join(a.extraArgs, " ")),
	)
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	if ctx.Err() != nil {
		return -1, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("could not launch %s: %w", a.binary, err)
}

// DryRunAgent records what would have been run and reports success. It is
// only used in simulation mode.
type DryRunAgent struct {
	inner  *AiderAgent
	logger *zap.Logger
}

// NewDryRunAgent wraps the real agent's argument builder without executing it.
func NewDryRunAgent(binary string, extraArgs []string, logger *zap.Logger) *DryRunAgent {
	logger = logger.Named("agent.dry_run")
	logger.Warn("Simulation mode: the code agent will not be executed.")
	return &DryRunAgent{inner: NewAiderAgent(binary, extraArgs, nil, logger), logger: logger}
}

func (d *DryRunAgent) Name() string { return "dry-run(" + d.inner.Name() + ")" }

func (d *DryRunAgent) DryRun() bool { return true }

// Run writes the would-be command line to the output artifact.
func (d *DryRunAgent) Run(ctx context.Context, req schemas.AgentRequest) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	args := d.inner.Args(req)
	d.logger.Info("Skipping code agent.", zap.String("binary", d.inner.binary), zap.Strings("files", req.Files))

	if req.OutputPath != "" {
		wd, _ := os.Getwd()
		line := fmt.Sprintf("dry run in %s: %s %s\n", wd, d.inner.binary, strings.Join(quoteAll(args), " "))
		f, err := artifacts.Create(req.OutputPath)
		if err != nil {
			return -1, err
		}
		_, werr := io.WriteString(f, line)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return -1, werr
		}
	}
	return 0, nil
}

func quoteAll(args []string) []string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if strings.ContainsAny(a, " \t\n\"'") {
			quoted[i] = fmt.Sprintf("%q", a)
		} else {
			quoted[i] = a
		}
	}
	return quoted
}
