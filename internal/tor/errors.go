package tor

import "errors"

// Supervisor errors.
// Transient conditions are retried automatically; the rest are recorded in
// Supervisor.LastError and returned to the caller. None of them terminate
// the host process.
var (
	// ErrNotBundled is returned when this build carries no Tor binary for the
	// running platform. The supervisor degrades to monitoring an external Tor.
	ErrNotBundled = errors.New("tor binary is not bundled for this platform")

	// ErrPortConflict is returned when the SOCKS port is already bound by
	// another process at start time.
	ErrPortConflict = errors.New("socks port already in use")

	// ErrAlreadyRunning is returned by Start while a process is starting or running.
	ErrAlreadyRunning = errors.New("tor is already running or starting")

	// ErrRestartLimitExceeded is returned when the start-attempt ceiling is hit.
	// The supervisor is permanently failed afterwards.
	ErrRestartLimitExceeded = errors.New("tor failed to start: maximum retries exceeded")

	// ErrLaunchFailure is returned when the OS cannot execute the Tor binary.
	// It latches the supervisor into the failed state; no auto-restart follows.
	ErrLaunchFailure = errors.New("tor binary failed to start")

	// ErrDataDirLocked is returned when another supervisor owns the data directory.
	ErrDataDirLocked = errors.New("tor data directory is locked by another process")

	// ErrVersionUnparseable is returned when "tor --version" output does not
	// start with "Tor version".
	ErrVersionUnparseable = errors.New("could not parse tor version")

	// ErrTimeout is returned when a helper subprocess exceeds its deadline.
	ErrTimeout = errors.New("tor helper command timed out")
)

// Tor connectivity errors returned by Client.
var (
	// ErrProxyNotTor is returned when the configured proxy address responds
	// but is not a Tor SOCKS5 proxy.
	ErrProxyNotTor = errors.New("proxy is not a Tor SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when no TCP connection to the proxy
	// can be established.
	ErrProxyCannotConnect = errors.New("cannot connect to Tor proxy")

	// ErrProxyTimeout is returned when the connection to the proxy times out.
	ErrProxyTimeout = errors.New("timeout connecting to Tor proxy")

	// ErrInvalidOnionAddress is returned when a .onion target fails validation.
	ErrInvalidOnionAddress = errors.New("invalid onion address")

	// ErrV2AddressDeprecated is returned for 16-character v2 onion names,
	// which stopped working on the Tor network in October 2021.
	ErrV2AddressDeprecated = errors.New("v2 onion addresses are deprecated and no longer functional")
)

// ProxyStatus represents the result of a SOCKS5 handshake check.
type ProxyStatus int

const (
	// ProxyStatusOK indicates the proxy is a working Tor SOCKS5 proxy.
	ProxyStatusOK ProxyStatus = iota

	// ProxyStatusWrongType indicates something answered but it is not SOCKS5.
	ProxyStatusWrongType

	// ProxyStatusCannotConnect indicates no TCP connection could be made.
	ProxyStatusCannotConnect

	// ProxyStatusTimeout indicates the check timed out.
	ProxyStatusTimeout
)

// String returns a human-readable description of the proxy status.
func (s ProxyStatus) String() string {
	switch s {
	case ProxyStatusOK:
		return "OK"
	case ProxyStatusWrongType:
		return "wrong type (not Tor)"
	case ProxyStatusCannotConnect:
		return "cannot connect"
	case ProxyStatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error returns the appropriate error for this status, or nil if OK.
func (s ProxyStatus) Error() error {
	switch s {
	case ProxyStatusOK:
		return nil
	case ProxyStatusWrongType:
		return ErrProxyNotTor
	case ProxyStatusCannotConnect:
		return ErrProxyCannotConnect
	case ProxyStatusTimeout:
		return ErrProxyTimeout
	default:
		return errors.New("unknown proxy status")
	}
}
