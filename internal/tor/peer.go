package tor

import (
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Default SOCKS endpoint of a system Tor daemon.
const (
	DefaultPeerHost        = "127.0.0.1"
	DefaultPeerPort uint16 = 9050
)

// socksPortPattern matches a torrc SocksPort directive. The captured value
// may only contain digits, dots and colons, so flags such as
// "SocksPort 9050 IsolateDestAddr" yield "9050" and unix sockets never match.
var socksPortPattern = regexp.MustCompile(`^SocksPort ([\d.:]+)`)

// Peer describes a SOCKS endpoint of a Tor instance.
// It is a value type; a returned Peer is never modified afterwards.
type Peer struct {
	Host   string
	Port   uint16
	Active bool
}

// Addr returns the endpoint in "host:port" form.
func (p Peer) Addr() string {
	return JoinHostPort(p.Host, p.Port)
}

// ParseConfig discovers the SOCKS endpoint of another Tor instance from its
// torrc at path.
//
// A missing file yields the default endpoint 127.0.0.1:9050. Otherwise the
// first valid "SocksPort host:port" or "SocksPort port" line wins; lines
// whose value does not validate are skipped. Active is always the result of
// a live probe of the resolved endpoint.
func ParseConfig(path string, probe PortProber) Peer {
	peer := Peer{Host: DefaultPeerHost, Port: DefaultPeerPort}

	data, err := os.ReadFile(path) //nolint:gosec // torrc path is user supplied
	if err == nil {
		if host, port, ok := scanSocksPort(data); ok {
			peer.Host = host
			peer.Port = port
		}
	}

	peer.Active = probe(peer.Host, peer.Port)
	return peer
}

// scanSocksPort returns the first valid SocksPort endpoint in a torrc.
// host is DefaultPeerHost for a port-only directive.
func scanSocksPort(data []byte) (host string, port uint16, ok bool) {
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimRight(raw, "\r")
		match := socksPortPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		value := match[1]

		if idx := strings.IndexByte(value, ':'); idx >= 1 {
			p, valid := parsePort(value[idx+1:])
			if !valid {
				continue
			}
			return value[:idx], p, true
		}

		if p, valid := parsePort(value); valid {
			return DefaultPeerHost, p, true
		}
	}
	return "", 0, false
}

// parsePort accepts a non-empty all-digit string that fits in a port number.
func parsePort(s string) (uint16, bool) {
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}
