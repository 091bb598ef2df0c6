// Package assets holds the files embedded into the torkeeper binary.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed tor
var bundle embed.FS

// Bundle returns the embedded file tree. Tor resources live under "tor/".
func Bundle() fs.FS {
	return bundle
}
