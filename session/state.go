package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrStateLocked is returned when another run is already writing AuthState.
var ErrStateLocked = errors.New("session: auth state is locked by another run")

// StateStore owns the persisted AuthState file. The content is opaque; the
// store only knows whether it exists and how to replace it atomically.
type StateStore struct {
	path string
}

// NewStateStore returns a store for the file at path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path is the AuthState location.
func (s *StateStore) Path() string {
	return s.path
}

// Exists reports whether a usable AuthState file is present. Empty files and
// directories do not count.
func (s *StateStore) Exists() (bool, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat auth state: %w", err)
	}
	return info.Mode().IsRegular() && info.Size() > 0, nil
}

// Lock takes the exclusive writer lock on the file next to the state file.
// The lock is held by the OS for this process, so a run that dies without
// unlocking does not block later runs. The returned func releases it.
func (s *StateStore) Lock() (func() error, error) {
	lockPath := s.path + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (%s)", ErrStateLocked, lockPath)
	}

	return func() error {
		if err := lock.Unlock(); err != nil {
			return fmt.Errorf("release lock: %w", err)
		}
		return nil
	}, nil
}

// Write lets save serialise into a temporary file in the same directory and
// renames it over the state file once save succeeds.
func (s *StateStore) Write(save func(tmpPath string) error) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp state: %w", err)
	}

	if err := save(tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if info, err := os.Stat(tmpPath); err != nil || info.Size() == 0 {
		os.Remove(tmpPath)
		return fmt.Errorf("auth state was not written")
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace auth state: %w", err)
	}
	return nil
}
