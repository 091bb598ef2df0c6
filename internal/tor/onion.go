package tor

import (
	"encoding/base32"
	"net"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Onion address constants.
const (
	// OnionV3Length is the length of a v3 onion name without ".onion".
	OnionV3Length = 56

	// OnionV3Version is the version byte embedded in v3 addresses.
	OnionV3Version = 0x03

	// OnionSuffix is the suffix of every onion address.
	OnionSuffix = ".onion"
)

var (
	onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)
	onionV2Pattern = regexp.MustCompile(`^[a-z2-7]{16}\.onion$`)
)

// checksumPrefix is hashed in front of the key in a v3 address checksum.
var checksumPrefix = []byte(".onion checksum")

// IsValidV3Address reports whether address is a v3 onion address with a
// correct checksum. Remote node lists are user supplied, so a typo must be
// caught before a circuit is built for it.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(address, OnionSuffix)))
	if err != nil || len(decoded) != 35 {
		return false
	}

	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != OnionV3Version {
		return false
	}
	want := computeV3Checksum(pubkey, version)
	return checksum[0] == want[0] && checksum[1] == want[1]
}

// computeV3Checksum returns SHA3-256(".onion checksum" || pubkey || version)[:2].
func computeV3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)
	hash := sha3.Sum256(data)
	return hash[:2]
}

// checkOnionTarget validates the host of a "host:port" dial target when it
// is an onion name. Other hosts pass unchanged.
func checkOnionTarget(address string) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = address
	}
	host = strings.ToLower(host)
	if !strings.HasSuffix(host, OnionSuffix) {
		return nil
	}
	if onionV2Pattern.MatchString(host) {
		return ErrV2AddressDeprecated
	}
	if !IsValidV3Address(host) {
		return ErrInvalidOnionAddress
	}
	return nil
}
