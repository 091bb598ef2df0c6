// Package main provides the entry point for the torkeeper CLI.
//
// torkeeper supervises the Tor SOCKS proxy a wallet routes its traffic
// through. It either watches a Tor instance that is already running or
// spawns and restarts a bundled Tor binary.
//
// Usage:
//
//	torkeeper run
//	torkeeper run --use-local-tor --torrc /etc/tor/torrc
//	torkeeper doctor --markdown
//
// See --help for all available options.
package main

func main() {
	Execute()
}
