package tor

import "time"

// Mode is how the supervisor obtains a Tor SOCKS endpoint.
// It is fixed when the Supervisor is constructed.
type Mode int

const (
	// ModeExternal monitors a Tor instance someone else runs.
	ModeExternal Mode = iota

	// ModeEmbedded stages, spawns and restarts a bundled Tor binary.
	ModeEmbedded

	// ModeUnavailable means no bundled binary exists and no local Tor was
	// found. The supervisor behaves like ModeExternal.
	ModeUnavailable
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeExternal:
		return "external"
	case ModeEmbedded:
		return "embedded"
	case ModeUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// State is the lifecycle state of the supervised Tor process.
//
//	unstarted  -> starting | failed
//	starting   -> running | failed
//	running    -> crashed | stopped
//	crashed    -> restarting | failed
//	restarting -> starting | failed | stopped
//	stopped    -> starting
//
// Failed is terminal. In external mode the state stays unstarted.
type State string

const (
	StateUnstarted  State = "unstarted"
	StateStarting   State = "starting"
	StateRunning    State = "running"
	StateCrashed    State = "crashed"
	StateRestarting State = "restarting"
	StateStopped    State = "stopped"
	StateFailed     State = "failed"
)

// EventKind identifies a supervisor notification.
type EventKind string

const (
	// EventConnectivityChanged carries the new value of Connected.
	EventConnectivityChanged EventKind = "connectivity"

	// EventLogsUpdated signals new text in the log buffer.
	EventLogsUpdated EventKind = "logs"

	// EventStateChanged carries the new process State.
	EventStateChanged EventKind = "state"

	// EventError carries an error recorded as LastError.
	EventError EventKind = "error"
)

// Event is a notification emitted by the Supervisor.
type Event struct {
	Kind      EventKind
	At        time.Time
	State     State
	Connected bool
	Err       error
}

// Observer receives supervisor events in the order they happened.
// Observers run synchronously and must not call Start or Stop.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent calls f(e).
func (f ObserverFunc) OnEvent(e Event) {
	f(e)
}
