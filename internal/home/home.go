package home

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultDirName is the default name for the runsheets home directory.
	DefaultDirName = ".runsheets"

	// WorkDirName is the subdirectory holding per-invocation scratch space.
	WorkDirName = "work"

	// LedgerDirName is the subdirectory for the processed-document ledger.
	LedgerDirName = "ledger"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the runsheets home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.runsheets).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// LedgerPath returns the directory of the badger ledger used by watch.
func (d *Dir) LedgerPath() string {
	return filepath.Join(d.path, LedgerDirName)
}

// WorkRoot returns the parent of all per-invocation work directories.
func (d *Dir) WorkRoot() string {
	return filepath.Join(d.path, WorkDirName)
}

// WorkDir returns the scratch directory for one pipeline invocation.
func (d *Dir) WorkDir(id string) string {
	return filepath.Join(d.WorkRoot(), id)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.WorkRoot(), 0o755); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	return nil
}

// EnsureWorkDir creates the scratch directory for an invocation. The caller
// owns removal.
func (d *Dir) EnsureWorkDir(id string) (string, error) {
	dir := d.WorkDir(id)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}
	return dir, nil
}

// PruneWork removes work directories last modified before cutoff. A process
// killed mid-run cannot run its deferred cleanup, so long-running commands
// call this on startup.
func (d *Dir) PruneWork(cutoff time.Time) ([]string, error) {
	entries, err := os.ReadDir(d.WorkRoot())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list work directories: %w", err)
	}

	var removed []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		dir := filepath.Join(d.WorkRoot(), e.Name())
		if err := os.RemoveAll(dir); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", dir, err)
		}
		removed = append(removed, e.Name())
	}
	return removed, nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
