package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/config"
	"github.com/xkilldash9x/vibeloop/internal/observability"
	"github.com/xkilldash9x/vibeloop/internal/service"
)

// newRunCmd creates the `run` command: one full capture, analyze, fix cycle.
func newRunCmd(v *viper.Viper, factory service.ComponentFactory) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [url]",
		Short: "Capture the app, diagnose it with the vision model and apply a fix with the code agent",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			bindings := map[string]string{
				"simulation.enabled": "simulate",
				"llm.vision.model":   "vision-model",
				"llm.code.model":     "code-model",
				"artifacts.dir":      "artifacts-dir",
			}
			for key, flag := range bindings {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			if strict, _ := cmd.Flags().GetBool("strict-instruction"); strict {
				v.Set("instruction.strictness", string(config.StrictnessStrict))
			}
			if len(args) == 1 {
				v.Set("app.url", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}

			components, err := factory.Create(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			summary, runErr := components.Orchestrator.Run(ctx, cfg.App().URL)
			if summary != nil {
				printSummary(cmd.OutOrStdout(), summary)
			}
			if runErr != nil {
				logger.Debug("Run did not complete.", zap.Error(runErr))
				return fmt.Errorf("run %s: %w", summary.Key, runErr)
			}
			return nil
		},
	}

	runCmd.Flags().Bool("simulate", false, "Use a placeholder capture, canned model responses and a dry-run agent.")
	runCmd.Flags().Bool("strict-instruction", false, "Fail the run when the instruction is missing a segment.")
	runCmd.Flags().String("vision-model", "", "Vision model id. (Overrides config/env)")
	runCmd.Flags().String("code-model", "", "Code model id. (Overrides config/env)")
	runCmd.Flags().String("artifacts-dir", "", "Directory for run artifacts. (Overrides config/env)")
	return runCmd
}

// printSummary writes the operator-facing result of a run.
func printSummary(w io.Writer, s *schemas.RunSummary) {
	if s.Simulated {
		fmt.Fprintln(w, "[simulation] no real capture, model or agent was used")
	}

	if len(s.Issues) > 0 {
		fmt.Fprintf(w, "\nFound %d issue(s):\n", s.IssueCount)
		for _, issue := range s.Issues {
			fmt.Fprintf(w, "  - %s (%s): %s\n", issue.Title, issue.Severity, issue.Evidence)
		}
	} else if containsStage(s.CompletedStages, schemas.StageVision) {
		fmt.Fprintln(w, "\nNo issues found.")
	}

	if len(s.Files) > 0 {
		fmt.Fprintf(w, "\nTarget files: %s\n", strings.Join(s.Files, ", "))
	}
	for _, warning := range s.InstructionWarnings {
		fmt.Fprintf(w, "Instruction warning: %s\n", warning)
	}
	if s.ExitCode != nil {
		fmt.Fprintf(w, "Agent %s exited with status %d\n", s.Agent, *s.ExitCode)
	}
	if s.PreApplyRev != "" {
		fmt.Fprintf(w, "Pre-apply revision: %s (git reset --hard %s to undo)\n", s.PreApplyRev, s.PreApplyRev)
	}

	if s.Succeeded() {
		fmt.Fprintf(w, "\nRun %s succeeded. Summary: %s\n", s.Key, s.Artifacts.SummaryPath)
	} else {
		fmt.Fprintf(w, "\nRun %s failed at the %s stage. Summary: %s\n", s.Key, s.FailedStage, s.Artifacts.SummaryPath)
	}
}

func containsStage(stages []schemas.Stage, want schemas.Stage) bool {
	for _, s := range stages {
		if s == want {
			return true
		}
	}
	return false
}
