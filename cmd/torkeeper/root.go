package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for torkeeper.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "torkeeper",
		Short: "Supervise the Tor SOCKS proxy used by a wallet",
		Long: `torkeeper keeps an anonymizing transport available to a wallet.

If a Tor daemon is already running (system service, Tails, Whonix or a
torsocks wrapper) torkeeper monitors it. Otherwise it starts the Tor binary
bundled with this build on port 19450, captures its log and restarts it
after crashes.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: torkeeper.yaml in current or XDG config directory)")
	cmd.PersistentFlags().String("data-dir", "",
		"Directory for the staged Tor binary, Tor data and the event journal")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewPeerCmd())
	cmd.AddCommand(NewProbeCmd())
	cmd.AddCommand(NewDoctorCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
