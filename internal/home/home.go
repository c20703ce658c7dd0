package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the paperpulse home directory.
	DefaultDirName = ".paperpulse"

	// DataDirName is the subdirectory for the local database.
	DataDirName = "data"

	// DigestsDirName holds the daily digest JSON files.
	DigestsDirName = "digests"

	// TmpDirName holds scratch space for PDF extraction.
	TmpDirName = "tmp"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// LockFileName guards against overlapping digest runs.
	LockFileName = "run.lock"

	// DatabaseFileName is the local sqlite database.
	DatabaseFileName = "paperpulse.db"

	// SubscribersFileName is the JSON subscriber list used without a database.
	SubscribersFileName = "subscribers.json"
)

// Dir represents the paperpulse home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.paperpulse).
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

// DataPath returns the path to the data directory.
func (d *Dir) DataPath() string {
	return filepath.Join(d.path, DataDirName)
}

// DatabasePath returns the default sqlite database file.
func (d *Dir) DatabasePath() string {
	return filepath.Join(d.DataPath(), DatabaseFileName)
}

// DigestsDir returns the directory of daily digest files.
func (d *Dir) DigestsDir() string {
	return filepath.Join(d.path, DigestsDirName)
}

// DigestPath returns the digest file for a YYYY-MM-DD date.
func (d *Dir) DigestPath(date string) string {
	return filepath.Join(d.DigestsDir(), date+".json")
}

// TmpDir returns the scratch directory.
func (d *Dir) TmpDir() string {
	return filepath.Join(d.path, TmpDirName)
}

// LockPath returns the run lock file.
func (d *Dir) LockPath() string {
	return filepath.Join(d.path, LockFileName)
}

// SubscribersPath returns the default subscriber list.
func (d *Dir) SubscribersPath() string {
	return filepath.Join(d.path, SubscribersFileName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.DataPath(), d.DigestsDir(), d.TmpDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
