package tor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
)

// binaryMode is applied to the staged binary on POSIX systems:
// owner rwx, group and others r-x, never writable by anyone but the owner.
const binaryMode fs.FileMode = 0o755

// bundledResource describes the Tor files shipped for one platform.
type bundledResource struct {
	binary     string
	companions []string
}

// bundledResources maps GOOS to the resource names inside the bundle.
var bundledResources = map[string]bundledResource{
	"linux":   {binary: "tor/tor"},
	"darwin":  {binary: "tor/tor", companions: []string{"tor/libevent-2.1.7.dylib"}},
	"windows": {binary: "tor/tor.exe"},
}

// Stager copies the bundled Tor executable into a writable directory.
type Stager struct {
	bundle fs.FS
	dir    string
	goos   string
}

// StagerOption configures a Stager.
type StagerOption func(*Stager)

// WithGOOS overrides the target platform. Used by tests.
func WithGOOS(goos string) StagerOption {
	return func(s *Stager) {
		s.goos = goos
	}
}

// NewStager creates a Stager that copies from bundle into dir.
func NewStager(bundle fs.FS, dir string, opts ...StagerOption) *Stager {
	s := &Stager{
		bundle: bundle,
		dir:    dir,
		goos:   runtime.GOOS,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Available reports whether the bundle carries a binary for the platform.
func (s *Stager) Available() bool {
	res, ok := bundledResources[s.goos]
	if !ok || s.bundle == nil {
		return false
	}
	_, err := fs.Stat(s.bundle, res.binary)
	return err == nil
}

// Stage writes the platform binary into the stage directory and returns its
// path. It returns ErrNotBundled when the platform has no resource or the
// resource is absent from the bundle. Staging again overwrites the copy.
func (s *Stager) Stage() (string, error) {
	res, ok := bundledResources[s.goos]
	if !ok || s.bundle == nil {
		return "", ErrNotBundled
	}

	data, err := fs.ReadFile(s.bundle, res.binary)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotBundled
		}
		return "", fmt.Errorf("failed to read bundled tor: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create tor directory: %w", err)
	}

	binPath := filepath.Join(s.dir, path.Base(res.binary))
	if err := writeFileAtomic(binPath, data); err != nil {
		return "", fmt.Errorf("failed to stage tor binary: %w", err)
	}
	if s.goos != "windows" {
		if err := os.Chmod(binPath, binaryMode); err != nil {
			return "", fmt.Errorf("failed to mark tor binary executable: %w", err)
		}
	}

	for _, name := range res.companions {
		lib, err := fs.ReadFile(s.bundle, name)
		if err != nil {
			continue
		}
		if err := writeFileAtomic(filepath.Join(s.dir, path.Base(name)), lib); err != nil {
			return "", fmt.Errorf("failed to stage %s: %w", path.Base(name), err)
		}
	}

	return binPath, nil
}

// writeFileAtomic writes data to a temporary file in the target directory
// and renames it over dst.
func writeFileAtomic(dst string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
