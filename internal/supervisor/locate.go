package supervisor

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/webagency/opencode-bridge/internal/config"
	"github.com/webagency/opencode-bridge/internal/errors"
)

// Installed locates the opencode binary without starting anything.
//
// If an explicit path is configured it is used and only it. Otherwise the
// search order is the system PATH followed by common installation
// directories (/usr/local/bin, /usr/bin, ~/.local/bin).
//
// Returns BinaryNotFoundError listing every searched location.
func (s *Supervisor) Installed() (string, error) {
	return s.locate()
}

func (s *Supervisor) locate() (string, error) {
	if s.opts.BinaryPath != "" {
		s.log.Debug("Using explicit binary path", "path", s.opts.BinaryPath)

		if _, err := os.Stat(s.opts.BinaryPath); err == nil {
			return s.opts.BinaryPath, nil
		}

		return "", &errors.BinaryNotFoundError{SearchedPaths: []string{s.opts.BinaryPath}}
	}

	searched := make([]string, 0, 4)

	if path, err := exec.LookPath(config.DefaultBinaryName); err == nil {
		s.log.Debug("Found opencode in PATH", "path", path)

		return path, nil
	}

	searched = append(searched, "$PATH")

	commonPaths := []string{
		"/usr/local/bin/" + config.DefaultBinaryName,
		"/usr/bin/" + config.DefaultBinaryName,
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		commonPaths = append(commonPaths, filepath.Join(homeDir, ".local/bin", config.DefaultBinaryName))
	}

	for _, path := range commonPaths {
		searched = append(searched, path)

		if _, err := os.Stat(path); err == nil {
			s.log.Debug("Found opencode at common path", "path", path)

			return path, nil
		}
	}

	s.log.Warn("opencode binary not found", "searched_paths", searched)

	return "", &errors.BinaryNotFoundError{SearchedPaths: searched}
}
