package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what earlier runs left in the cache",
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

			st, err := runner.Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Sprintf("Cache %s (version %d)", cfg.Cache.DSN, cfg.Cache.Version))
			if st.PublicKey == "" {
				fmt.Fprintln(out, mutedStyle.Sprint("No identity cached"))
				return nil
			}
			fmt.Fprintf(out, "Identity: %s\n", st.PublicKey)
			switch {
			case st.SessionExpiry.IsZero():
				fmt.Fprintln(out, "Session:  none")
			case st.SessionExpiry.Before(time.Now()):
				fmt.Fprintf(out, "Session:  expired at %s\n", st.SessionExpiry.Format(time.RFC3339))
			default:
				fmt.Fprintf(out, "Session:  valid until %s\n", st.SessionExpiry.Format(time.RFC3339))
			}
			fmt.Fprintf(out, "Token:    %t\n", st.HasToken)
			if st.ThreadID == "" {
				fmt.Fprintln(out, "Thread:   none")
			} else {
				fmt.Fprintf(out, "Thread:   %s (%s)\n", st.ThreadID, st.ThreadState)
			}
			return nil
		},
	}
}
