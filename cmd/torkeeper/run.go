package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/torkeeper/internal/config"
	"github.com/nao1215/torkeeper/internal/journal"
	"github.com/nao1215/torkeeper/internal/tor"
)

// Journal retention for long-running sessions.
const (
	journalKeep          = 10000
	journalPruneInterval = time.Hour
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start or monitor Tor until interrupted",
		Long: `Run brings up the anonymizing transport and keeps it available.

The mode is chosen once at startup:
  1. --tor-port: monitor a Tor instance on that port
  2. --use-local-tor: monitor the system Tor (or the SocksPort in --torrc)
  3. torsocks, Tails, Whonix or an open port 9050: monitor the system Tor
  4. otherwise start the bundled Tor binary on port 19450

Connectivity changes are printed to stdout and recorded in the event
journal. Stop with Ctrl+C; a spawned Tor process is killed on exit.

Examples:
  # Let torkeeper decide
  torkeeper run

  # Use the Tor Browser's proxy
  torkeeper run --tor-port 9150

  # Use the system daemon as configured in its torrc
  torkeeper run --use-local-tor --torrc /etc/tor/torrc`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	cmd.Flags().Uint16("tor-port", 0,
		"Use an already running Tor instance listening on this SOCKS port")
	cmd.Flags().Bool("use-local-tor", false,
		"Use the system Tor daemon instead of the bundled binary")
	cmd.Flags().String("torrc", "",
		"torrc of the system Tor; its SocksPort is used with --use-local-tor")
	cmd.Flags().Int("log-capacity", config.DefaultLogCapacity,
		"Maximum bytes of Tor output kept in memory")
	cmd.Flags().Bool("json-logs", false,
		"Write logs as JSON")
	cmd.Flags().Bool("no-journal", false,
		"Do not record events in the journal")

	return cmd
}

// applyRunFlags copies explicitly set run flags onto cfg so they override
// the configuration file.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("tor-port") {
		if cfg.ForcedPort, err = flags.GetUint16("tor-port"); err != nil {
			return err
		}
	}
	if flags.Changed("use-local-tor") {
		if cfg.UseLocalTor, err = flags.GetBool("use-local-tor"); err != nil {
			return err
		}
	}
	if flags.Changed("torrc") {
		if cfg.TorrcPath, err = flags.GetString("torrc"); err != nil {
			return err
		}
	}
	if flags.Changed("log-capacity") {
		if cfg.LogCapacity, err = flags.GetInt("log-capacity"); err != nil {
			return err
		}
	}
	if cfg.JSONLogs, err = flags.GetBool("json-logs"); err != nil {
		return err
	}
	return nil
}

func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	logger := setupLogger(cfg)

	noJournal, err := cmd.Flags().GetBool("no-journal")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runSupervisor(ctx, cfg, logger, cmd.OutOrStdout(), !noJournal)
}

// runSupervisor runs the supervisor until ctx is done or it fails
// permanently.
func runSupervisor(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer, useJournal bool, extra ...tor.Option) error {
	failed := make(chan struct{})
	var failOnce sync.Once

	opts := []tor.Option{
		tor.WithLogger(logger),
		tor.WithObserver(tor.ObserverFunc(func(e tor.Event) {
			printEvent(out, e)
			if e.Kind == tor.EventStateChanged && e.State == tor.StateFailed {
				failOnce.Do(func() { close(failed) })
			}
		})),
	}

	var j *journal.Journal
	if useJournal {
		var err error
		j, err = journal.Open(cfg.JournalDir(), journal.DefaultOptions())
		if err != nil {
			logger.Warn("event journal disabled", "error", err)
		} else {
			defer j.Close()
			// Events emitted while shutting down are still journaled.
			opts = append(opts, tor.WithObserver(j.Observer(context.WithoutCancel(ctx), logger)))
		}
	}
	opts = append(opts, extra...)

	sup, err := tor.New(cfg, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "mode: %s, endpoint: %s, environment: %s\n", sup.Mode(), sup.Peer().Addr(), cfg.Environment)
	if msg := sup.LastError(); msg != "" {
		fmt.Fprintf(out, "warning: %s\n", msg)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sup.Start(gctx); err != nil {
			return fmt.Errorf("failed to start tor: %w", err)
		}
		select {
		case <-gctx.Done():
			return nil
		case <-failed:
			return fmt.Errorf("tor supervisor failed: %s", sup.LastError())
		}
	})
	if j != nil {
		g.Go(func() error {
			pruneJournal(gctx, j, logger)
			return nil
		})
	}

	err = g.Wait()
	if serr := sup.Stop(); serr != nil {
		logger.Warn("failed to stop tor", "error", serr)
	}
	return err
}

// printEvent writes one line per connectivity change, state change or error.
func printEvent(out io.Writer, e tor.Event) {
	ts := e.At.Format(time.TimeOnly)
	switch e.Kind {
	case tor.EventConnectivityChanged:
		if e.Connected {
			fmt.Fprintf(out, "%s tor connected\n", ts)
		} else {
			fmt.Fprintf(out, "%s tor disconnected\n", ts)
		}
	case tor.EventStateChanged:
		fmt.Fprintf(out, "%s state: %s\n", ts, e.State)
	case tor.EventError:
		fmt.Fprintf(out, "%s error: %v\n", ts, e.Err)
	}
}

// pruneJournal trims the journal now and then every journalPruneInterval.
func pruneJournal(ctx context.Context, j *journal.Journal, logger *slog.Logger) {
	prune := func() {
		n, err := j.Prune(ctx, journalKeep)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("failed to prune journal", "error", err)
			}
			return
		}
		if n > 0 {
			logger.Debug("pruned journal", "removed", n)
		}
	}

	prune()
	ticker := time.NewTicker(journalPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
