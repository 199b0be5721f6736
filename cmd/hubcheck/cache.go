package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the provisioning cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached entry",
		Long:  "Remove every cached entry so the next run provisions a new identity, session and thread.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			runner, err := openRunner(cmd.Context(), cfg, cmd.ErrOrStderr(), nil)
			if err != nil {
				return err
			}
			defer runner.Close()

			if err := runner.ClearCache(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Sprintf("%s Cache cleared", glyphSuccess))
			return nil
		},
	})
	return cmd
}
