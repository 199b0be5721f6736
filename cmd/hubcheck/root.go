package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/petrijr/hubcheck"
	"github.com/petrijr/hubcheck/internal/logging"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "hubcheck",
		Short:         "Provision and verify a hub account step by step",
		Long:          "hubcheck prepares an identity, a thread database and a bucket on the hub, caching everything it provisions so later runs reuse it.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")

	root.AddCommand(
		newRunCmd(flags),
		newDiagCmd(flags),
		newStatusCmd(flags),
		newCacheCmd(flags),
	)
	return root
}

// loadConfig reads the config file and applies flag overrides.
func (f *globalFlags) loadConfig() (*hubcheck.Config, error) {
	cfg, err := hubcheck.LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	return cfg, nil
}

// openRunner builds a LocalRunner whose logs go to stderr.
func openRunner(ctx context.Context, cfg *hubcheck.Config, stderr io.Writer, obs hubcheck.Observer) (*hubcheck.LocalRunner, error) {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger, err := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	runner, err := hubcheck.NewLocalRunner(ctx, cfg, hubcheck.RunnerOptions{
		Observer: obs,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("start runner: %w", err)
	}
	return runner, nil
}
