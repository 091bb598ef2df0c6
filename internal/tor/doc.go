// Package tor supervises the Tor SOCKS proxy used by the wallet.
//
// A Supervisor picks one of three modes when it is constructed. In external
// mode it only watches a Tor instance that someone else runs (a system
// daemon, Tails, Whonix, or a torsocks wrapper). In embedded mode it stages
// the Tor binary carried in the build, spawns it on a private SOCKS port,
// captures its output and restarts it after crashes up to a fixed ceiling.
// When neither is possible the mode is unavailable and the supervisor keeps
// polling the system port.
//
// Connectivity changes, state transitions, new log output and errors are
// delivered to Observers in the order they happen. Client dials through the
// resulting SOCKS endpoint and validates onion names before it does.
package tor
