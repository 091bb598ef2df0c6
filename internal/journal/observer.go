package journal

import (
	"context"
	"log/slog"

	"github.com/nao1215/torkeeper/internal/tor"
)

// Observer returns a tor.Observer that journals supervisor events.
// Log updates are skipped. Write failures are logged and otherwise ignored
// so a broken journal never stalls the supervisor.
func (j *Journal) Observer(ctx context.Context, logger *slog.Logger) tor.Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return tor.ObserverFunc(func(e tor.Event) {
		entry, ok := EntryFromEvent(e)
		if !ok {
			return
		}
		if _, err := j.Record(ctx, entry); err != nil {
			logger.Warn("failed to journal event", "kind", e.Kind, "error", err)
		}
	})
}

// EntryFromEvent converts a supervisor event. ok is false for events that
// are not journaled.
func EntryFromEvent(e tor.Event) (entry Entry, ok bool) {
	entry = Entry{
		Timestamp: e.At,
		Kind:      string(e.Kind),
		State:     string(e.State),
		Connected: e.Connected,
	}

	switch e.Kind {
	case tor.EventLogsUpdated:
		return Entry{}, false
	case tor.EventConnectivityChanged:
		if e.Connected {
			entry.Message = "tor connected"
		} else {
			entry.Message = "tor disconnected"
		}
	case tor.EventStateChanged:
		entry.Message = "state changed to " + string(e.State)
	case tor.EventError:
		if e.Err != nil {
			entry.Message = e.Err.Error()
		}
	}
	return entry, true
}
