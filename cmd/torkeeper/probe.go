package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/torkeeper/internal/tor"
)

// NewProbeCmd creates the probe command.
func NewProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe [host:port]",
		Short: "Check that a SOCKS5 proxy is a working Tor instance",
		Long: `Probe performs a SOCKS5 handshake against the given address (default: the
system Tor port) and reports whether a Tor proxy answered. Unlike the plain
port check used for monitoring, this detects ports held by something that
is not a SOCKS5 proxy.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runProbeCmd,
	}
	cmd.Flags().DurationP("timeout", "t", 30*time.Second, "Timeout of the returned client")
	return cmd
}

func runProbeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}

	addr := tor.JoinHostPort(cfg.TorHost, cfg.SocksPort)
	if len(args) == 1 {
		addr = args[0]
	}

	client, err := tor.NewClient(addr, timeout)
	if err != nil {
		return err
	}
	status := client.CheckConnection(cmd.Context())
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", addr, status)
	if err := status.Error(); err != nil {
		return fmt.Errorf("%s: %w", addr, err)
	}
	return nil
}
