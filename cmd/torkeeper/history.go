package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/torkeeper/internal/journal"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent supervisor events from the journal",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntP("number", "n", 50, "Number of events to show")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	n, err := cmd.Flags().GetInt("number")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	j, err := journal.Open(cfg.JournalDir(), journal.Options{EnableWAL: true})
	if errors.Is(err, journal.ErrNotFound) {
		fmt.Fprintln(out, "No events recorded yet.")
		return nil
	}
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.Recent(cmd.Context(), n)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No events recorded yet.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %-12s %-10s %s\n", e.Timestamp.Local().Format(time.DateTime), e.Kind, e.State, e.Message)
	}
	return nil
}
