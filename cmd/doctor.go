package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/config"
	"github.com/xkilldash9x/vibeloop/internal/llmclient"
	"github.com/xkilldash9x/vibeloop/internal/observability"
)

const doctorProbeTimeout = 30 * time.Second

// browserCandidates are the binaries chromedp looks for when no exec path is set.
var browserCandidates = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell", "chrome"}

// doctorProbes are the side-effecting checks, swappable in tests.
type doctorProbes struct {
	lookPath   func(string) (string, error)
	version    func(ctx context.Context, binary string) (string, error)
	pingClient func(ctx context.Context, cfg config.Interface, logger *zap.Logger) (string, error)
}

func defaultDoctorProbes() doctorProbes {
	return doctorProbes{
		lookPath:   exec.LookPath,
		version:    binaryVersion,
		pingClient: pingBackend,
	}
}

// newDoctorCmd creates the `doctor` command, which checks that a real run has
// what it needs: a credential, the agent binary, a browser and a reachable
// backend.
func newDoctorCmd(v *viper.Viper, probes doctorProbes) *cobra.Command {
	doctorCmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment for a real run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Decode(v)
			if err != nil {
				return err
			}

			skipPing, _ := cmd.Flags().GetBool("offline")
			failed := runDoctor(cmd.Context(), cmd.OutOrStdout(), cfg, probes, skipPing, observability.GetLogger())
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
	doctorCmd.Flags().Bool("offline", false, "Skip the backend round trip.")
	return doctorCmd
}

func runDoctor(ctx context.Context, w io.Writer, cfg *config.Config, p doctorProbes, skipPing bool, logger *zap.Logger) int {
	failed := 0
	report := func(ok bool, name, detail string) {
		mark := "ok  "
		if !ok {
			mark = "FAIL"
			failed++
		}
		fmt.Fprintf(w, "[%s] %-12s %s\n", mark, name, detail)
	}

	llm := cfg.LLM()
	credOK := llm.APIKey != ""
	report(credOK, "credential", redact(llm.APIKey))
	report(llm.BaseURL != "" || !usesProvider(llm, config.ProviderOpenAI), "base url", llm.BaseURL)

	agent := cfg.Apply().Agent
	if path, err := p.lookPath(agent); err != nil {
		report(false, "agent", fmt.Sprintf("%s not found on PATH", agent))
	} else {
		vctx, cancel := context.WithTimeout(ctx, doctorProbeTimeout)
		out, err := p.version(vctx, path)
		cancel()
		if err != nil {
			report(false, "agent", fmt.Sprintf("%s --version failed: %v", path, err))
		} else {
			report(true, "agent", out)
		}
	}

	if exe := cfg.Browser().ExecPath; exe != "" {
		_, err := os.Stat(exe)
		report(err == nil, "browser", exe)
	} else {
		found := ""
		for _, name := range browserCandidates {
			if path, err := p.lookPath(name); err == nil {
				found = path
				break
			}
		}
		report(found != "", "browser", orDefault(found, "no Chrome or Chromium found on PATH"))
	}

	switch {
	case skipPing:
		fmt.Fprintf(w, "[skip] %-12s offline\n", "backend")
	case !credOK:
		report(false, "backend", "not attempted without a credential")
	default:
		pctx, cancel := context.WithTimeout(ctx, doctorProbeTimeout)
		reply, err := p.pingClient(pctx, cfg, logger)
		cancel()
		if err != nil {
			report(false, "backend", err.Error())
		} else {
			report(true, "backend", fmt.Sprintf("%s replied %q", llm.Code.Model, reply))
		}
	}
	return failed
}

func binaryVersion(ctx context.Context, binary string) (string, error) {
	out, err := exec.CommandContext(ctx, binary, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// pingBackend sends one tiny request to the code model.
func pingBackend(ctx context.Context, cfg config.Interface, logger *zap.Logger) (string, error) {
	client, err := llmclient.NewClient(ctx, cfg, logger)
	if err != nil {
		return "", err
	}
	defer client.Close()

	return client.Generate(ctx, schemas.GenerationRequest{
		UserPrompt: "Say 'Hello from vibeloop!'",
		Tier:       schemas.TierCode,
		Options:    schemas.GenerationOptions{MaxTokens: 10},
	})
}

func usesProvider(llm config.LLMConfig, p config.LLMProvider) bool {
	return llm.Vision.Provider == p || llm.Code.Provider == p
}

func redact(secret string) string {
	switch {
	case secret == "":
		return "missing (set OPENAI_API_KEY or VIBELOOP_LLM_API_KEY)"
	case len(secret) <= 8:
		return "set"
	default:
		return secret[:4] + "..." + secret[len(secret)-2:]
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
