package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vibeloop/internal/observability"
	"github.com/xkilldash9x/vibeloop/internal/targets"
	"github.com/xkilldash9x/vibeloop/internal/vision"
)

// newTargetsCmd creates the `targets` command, which re-extracts a saved raw
// vision response and prints the files it would send to the agent.
func newTargetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets <vision_raw file>",
		Short: "Print the target files resolved from a saved vision response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			report, tier, err := vision.ParseReport(string(raw))
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			observability.GetLogger().Debug("Report extracted.", zap.Stringer("extraction", tier), zap.Int("issues", len(report.Issues)))

			for _, file := range targets.Resolve(report) {
				fmt.Fprintln(cmd.OutOrStdout(), file)
			}
			return nil
		},
	}
}
