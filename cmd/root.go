// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vibeloop/internal/config"
	"github.com/xkilldash9x/vibeloop/internal/observability"
	"github.com/xkilldash9x/vibeloop/internal/service"
)

// NewRootCommand builds a fresh command tree with the production component
// factory. Each call gets its own viper instance so flags never leak between
// executions.
func NewRootCommand() *cobra.Command {
	return newRootCommand(viper.New(), service.NewComponentFactory(os.Stdout))
}

func newRootCommand(v *viper.Viper, factory service.ComponentFactory) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "vibeloop",
		Short: "vibeloop screenshots a running web app, asks a vision model what is wrong, and has a code agent fix it.",
		// Version is set at build time. See cmd/version.go.
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(v, cfgFile); err != nil {
				return err
			}

			var logCfg config.LoggerConfig
			if err := v.UnmarshalKey("logger", &logCfg); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "vibeloop"})
				return fmt.Errorf("failed to unmarshal logger config: %w", err)
			}
			observability.InitializeLogger(logCfg)
			observability.GetLogger().Debug("Starting vibeloop", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./vibeloop.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newRunCmd(v, factory),
		newDoctorCmd(v, defaultDoctorProbes()),
		newTargetsCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command tree under ctx. The error, if any, has already been
// reported on stderr; callers only decide the exit status.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Aborted.")
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	observability.Sync()
	return err
}

// initializeConfig reads in the config file and environment. A missing
// default config file is fine; an explicit one must exist.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("vibeloop")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("VIBELOOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}
