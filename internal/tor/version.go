package tor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
)

// versionPrefix starts the first line of "tor --version".
const versionPrefix = "Tor version"

// Version runs the staged binary with --version and returns its first line,
// e.g. "Tor version 0.4.8.12.". The query is bounded by VersionTimeout.
func (s *Supervisor) Version(ctx context.Context) (string, error) {
	if s.mode != ModeEmbedded {
		return "", ErrNotBundled
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.VersionTimeout)
	defer cancel()

	out, err := s.runner.Run(ctx, s.plan.BinaryPath, "--version")
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.logger.Warn("could not grab tor version", "error", ErrTimeout)
		return "", ErrTimeout
	}
	if err != nil && len(out) == 0 {
		s.logger.Warn("could not grab tor version", "error", err)
		return "", fmt.Errorf("%w: %w", ErrVersionUnparseable, err)
	}

	version, perr := parseVersion(out)
	if perr != nil {
		s.logger.Warn("could not parse tor version", "output", string(out))
		return "", perr
	}
	return version, nil
}

// parseVersion extracts the version line from "tor --version" output.
func parseVersion(out []byte) (string, error) {
	if len(bytes.TrimSpace(out)) == 0 {
		return "", ErrVersionUnparseable
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	if !scanner.Scan() {
		return "", ErrVersionUnparseable
	}
	line := strings.TrimRight(scanner.Text(), "\r")
	if !strings.HasPrefix(line, versionPrefix) {
		return "", ErrVersionUnparseable
	}
	return line, nil
}
