package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/petrijr/hubcheck"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var pacing time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the provisioning workflow",
		Long:  "Run every step against the local hub, printing each status change and the public bucket URL.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("pacing") {
				cfg.Workflow.Pacing = pacing
			}

			out := cmd.OutOrStdout()
			list := newChecklist(out)
			runner, err := openRunner(cmd.Context(), cfg, cmd.ErrOrStderr(), list.observer())
			if err != nil {
				return err
			}
			defer runner.Close()

			fmt.Fprintln(out, headerStyle.Sprint("hubcheck"))
			if err := runner.Engine.Run(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(out, successStyle.Sprintf("Bucket URL: %s", runner.Engine.Snapshot().BucketURL))
			return nil
		},
	}
	cmd.Flags().DurationVar(&pacing, "pacing", 0, "Delay before each step (overrides the config)")
	return cmd
}

func newDiagCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "diag <step>",
		Short: "Run the workflow and print one step's diagnostic",
		Long:  "Run the workflow until it completes or blocks, then print the checklist and the diagnostic of the given step (0-4).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("step must be a number: %w", err)
			}
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			cfg.Workflow.Pacing = 0

			runner, err := openRunner(cmd.Context(), cfg, cmd.ErrOrStderr(), nil)
			if err != nil {
				return err
			}
			defer runner.Close()

			runErr := runner.Engine.Run(cmd.Context())
			msg, err := runner.Engine.ShowDiagnostic(idx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printChecklist(out, runner.Engine.Snapshot())
			fmt.Fprintln(out)
			fmt.Fprintf(out, "%s %s\n", headerStyle.Sprintf("Step %d:", idx), msg)
			if runErr != nil && !errors.Is(runErr, hubcheck.ErrStepFailed) {
				return runErr
			}
			return nil
		},
	}
}
