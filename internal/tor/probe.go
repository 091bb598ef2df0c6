package tor

import (
	"net"
	"strconv"
	"time"
)

// PortProber reports whether something accepts TCP connections on host:port.
// Every call is a live check; results are never cached.
type PortProber func(host string, port uint16) bool

// NewDialProber returns a PortProber that opens and closes a TCP
// connection with the given timeout.
func NewDialProber(timeout time.Duration) PortProber {
	return func(host string, port uint16) bool {
		conn, err := net.DialTimeout("tcp", JoinHostPort(host, port), timeout)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
}

// JoinHostPort formats host and a numeric port as "host:port".
func JoinHostPort(host string, port uint16) string {
	return net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10))
}
