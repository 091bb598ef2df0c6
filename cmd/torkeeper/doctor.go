package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/torkeeper/internal/config"
	"github.com/nao1215/torkeeper/internal/journal"
	"github.com/nao1215/torkeeper/internal/report"
	"github.com/nao1215/torkeeper/internal/tor"
)

// NewDoctorCmd creates the doctor command.
func NewDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the anonymizing transport",
		Long: `Doctor inspects the environment the same way run does, without starting
Tor. It reports the selected mode and endpoint, whether Tor answers there,
the bundled Tor version and the most recent journal events.

Examples:
  # Terminal report
  torkeeper doctor

  # Markdown report for a bug ticket
  torkeeper doctor --markdown -o diagnostics.md`,
		Args: cobra.NoArgs,
		RunE: runDoctorCmd,
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to this file (creates directories if needed)")
	cmd.Flags().IntP("events", "n", 20,
		"Number of journal events to include")
	cmd.Flags().Int("log-lines", 30,
		"Number of Tor log lines to include")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

func runDoctorCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	logger := setupLogger(cfg)

	flags := cmd.Flags()
	asJSON, _ := flags.GetBool("json")
	asMarkdown, _ := flags.GetBool("markdown")
	output, _ := flags.GetString("output")
	events, _ := flags.GetInt("events")
	logLines, _ := flags.GetInt("log-lines")

	sup, err := tor.New(cfg, tor.WithLogger(logger))
	if err != nil {
		return err
	}

	d := diagnose(cmd.Context(), cfg, sup, events, logLines)

	out := cmd.OutOrStdout()
	if output != "" {
		f, err := createOutputFile(output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	var w report.Writer
	switch {
	case asJSON:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case asMarkdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewTextWriter(out, report.WithVerbose(cfg.Verbose))
	}
	if _, err := w.Write(d); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if output != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", output)
	}
	return nil
}

// diagnose runs one connectivity check and a SOCKS5 handshake, then
// collects the snapshot.
func diagnose(ctx context.Context, cfg *config.Config, sup *tor.Supervisor, events, logLines int) *report.Diagnostics {
	sup.CheckConnection(ctx)

	var history []journal.Entry
	size := int64(-1)
	j, err := journal.Open(cfg.JournalDir(), journal.Options{EnableWAL: true})
	switch {
	case err == nil:
		if history, err = j.Recent(ctx, events); err != nil {
			slog.Warn("failed to read journal", "error", err)
			history = nil
		}
		if n, err := j.Count(ctx); err == nil {
			size = n
		}
		_ = j.Close()
	case errors.Is(err, journal.ErrNotFound):
		size = 0
	default:
		slog.Warn("event journal unavailable", "error", err)
	}

	d := report.Collect(ctx, sup, cfg.Environment, history, logLines)
	d.JournalSize = size
	if client, err := sup.Client(10 * time.Second); err == nil {
		d.ProxyStatus = client.CheckConnection(ctx).String()
	}
	return d
}

func createOutputFile(path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // user-selected output path
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
