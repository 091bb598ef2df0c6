package report

import (
	"context"
	"strings"
	"time"

	"github.com/nao1215/torkeeper/internal/config"
	"github.com/nao1215/torkeeper/internal/journal"
	"github.com/nao1215/torkeeper/internal/tor"
)

// Source is the supervisor view Collect reads from. *tor.Supervisor
// satisfies it.
type Source interface {
	Mode() tor.Mode
	State() tor.State
	Peer() tor.Peer
	Connected() bool
	LocalTor() bool
	RestartCount() int
	LastError() string
	Plan() (tor.LaunchPlan, bool)
	Version(ctx context.Context) (string, error)
	Logs() string
	LogsDropped() int64
}

// Diagnostics is a point-in-time snapshot of the anonymizing transport.
type Diagnostics struct {
	GeneratedAt  time.Time       `json:"generatedAt"`
	Mode         string          `json:"mode"`
	State        string          `json:"state"`
	Environment  string          `json:"environment"`
	Endpoint     string          `json:"endpoint"`
	Connected    bool            `json:"connected"`
	LocalTor     bool            `json:"localTor"`
	RestartCount int             `json:"restartCount"`
	LastError    string          `json:"lastError,omitempty"`
	TorVersion   string          `json:"torVersion,omitempty"`
	VersionError string          `json:"versionError,omitempty"`
	BinaryPath   string          `json:"binaryPath,omitempty"`
	DataDir      string          `json:"dataDir,omitempty"`
	ProxyStatus  string          `json:"proxyStatus,omitempty"`
	History      []journal.Entry `json:"history,omitempty"`
	LogTail      string          `json:"logTail,omitempty"`
	LogDropped   int64           `json:"logDroppedBytes"`
	// JournalSize is the number of journaled events, -1 when unknown.
	JournalSize  int64           `json:"journalSize"`
}

// Collect builds Diagnostics from src. history is attached as is and the
// last logLines lines of Tor output are kept. JournalSize is left unknown
// for the caller to fill in.
func Collect(ctx context.Context, src Source, env config.Environment, history []journal.Entry, logLines int) *Diagnostics {
	d := &Diagnostics{
		GeneratedAt:  time.Now(),
		Mode:         src.Mode().String(),
		State:        string(src.State()),
		Environment:  env.String(),
		Endpoint:     src.Peer().Addr(),
		Connected:    src.Connected(),
		LocalTor:     src.LocalTor(),
		RestartCount: src.RestartCount(),
		LastError:    src.LastError(),
		History:      history,
		LogTail:      tailLines(src.Logs(), logLines),
		LogDropped:   src.LogsDropped(),
		JournalSize:  -1,
	}

	if plan, ok := src.Plan(); ok {
		d.BinaryPath = plan.BinaryPath
		d.DataDir = plan.DataDir
		if v, err := src.Version(ctx); err != nil {
			d.VersionError = err.Error()
		} else {
			d.TorVersion = v
		}
	}
	return d
}

// Problems lists what keeps the transport from being usable, most severe
// first. An empty result means healthy.
func (d *Diagnostics) Problems() []string {
	var out []string
	if d.State == string(tor.StateFailed) {
		out = append(out, "tor supervisor failed permanently")
	}
	if d.LastError != "" {
		out = append(out, d.LastError)
	}
	if !d.Connected {
		out = append(out, "no usable Tor connection on "+d.Endpoint)
	}
	if d.ProxyStatus != "" && d.ProxyStatus != tor.ProxyStatusOK.String() {
		out = append(out, "SOCKS5 check: "+d.ProxyStatus)
	}
	if d.VersionError != "" {
		out = append(out, "tor version: "+d.VersionError)
	}
	return out
}

// Healthy reports whether no problems were found.
func (d *Diagnostics) Healthy() bool {
	return len(d.Problems()) == 0
}

func tailLines(s string, n int) string {
	if n <= 0 || s == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
