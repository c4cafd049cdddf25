package reporting

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/config"
)

// DefaultPathManager implements path management functionality
type DefaultPathManager struct{}

// NewDefaultPathManager creates a new path manager
func NewDefaultPathManager() *DefaultPathManager {
	return &DefaultPathManager{}
}

// GetRunOutputDir returns the directory holding the files of one run
func (p *DefaultPathManager) GetRunOutputDir(baseDir, runID string) string {
	base := strings.TrimSpace(baseDir)
	if base == "" {
		base = config.ResultsDir
	}
	id := strings.TrimSpace(runID)
	if id == "" {
		id = "unknown"
	}
	return filepath.Join(base, id)
}

// EnsureDirectoryExists creates the parent directory of path
func (p *DefaultPathManager) EnsureDirectoryExists(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// RunOutputDir is a convenience wrapper around the default path manager
func RunOutputDir(baseDir, runID string) string {
	return NewDefaultPathManager().GetRunOutputDir(baseDir, runID)
}
