package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/torkeeper/internal/tor"
)

// defaultTorrc is where distribution packages install the Tor config.
const defaultTorrc = "/etc/tor/torrc"

// NewPeerCmd creates the peer command.
func NewPeerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peer [torrc]",
		Short: "Show the SOCKS endpoint of a running Tor from its torrc",
		Long: `Peer reads the first valid SocksPort directive of a torrc and checks
whether something is listening there. A missing file or directive means the
default endpoint 127.0.0.1:9050.

The torrc is taken from the argument, then the torrc setting of the
configuration file, then ` + defaultTorrc + `.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPeerCmd,
	}
}

func runPeerCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path := defaultTorrc
	if cfg.TorrcPath != "" {
		path = cfg.TorrcPath
	}
	if len(args) == 1 {
		path = args[0]
	}

	peer := tor.ParseConfig(path, tor.NewDialProber(cfg.ProbeTimeout))
	status := "inactive"
	if peer.Active {
		status = "active"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", peer.Addr(), status)
	return nil
}
