package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/aibidi/aibidi/pkg/client"
	"github.com/aibidi/aibidi/pkg/types"
	"github.com/spf13/cobra"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List live and recent terminal sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.NewClient(baseURL, accessKey)
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		list, err := c.ListSessions(ctx, sessionsLimit)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}

		printSessions(cmd, list)
		return nil
	},
}

func init() {
	addClientFlags(sessionsCmd)
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "number of recent sessions to show")
	rootCmd.AddCommand(sessionsCmd)
}

func printSessions(cmd *cobra.Command, list *types.SessionList) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Active sessions: %d\n", list.Active)
	if len(list.Sessions) == 0 {
		return
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPID\tSHELL\tSIZE\tSTARTED\tENDED\tIN\tOUT\tREASON")
	for _, s := range list.Sessions {
		ended, reason := s.EndedAt, s.Reason
		if ended == "" {
			ended, reason = "-", "running"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%dx%d\t%s\t%s\t%d\t%d\t%s\n",
			s.ID, s.PID, s.Shell, s.Cols, s.Rows, s.StartedAt, ended, s.BytesIn, s.BytesOut, reason)
	}
	w.Flush()
}
