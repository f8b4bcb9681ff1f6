package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/qnlab/station-go/pkg/station"
)

// SnapshotVersion is the current version of the snapshot file format.
const SnapshotVersion = 1

// snapshotFile is the file name used inside the store directory.
const snapshotFile = "snapshot.json"

// SnapshotEnvelope wraps a station snapshot with format metadata.
type SnapshotEnvelope struct {
	// Version is the snapshot file format version.
	Version int `json:"version"`

	// SavedAt is when the snapshot was written to disk.
	SavedAt time.Time `json:"saved_at"`

	// Snapshot is the captured station state.
	Snapshot *station.Snapshot `json:"snapshot"`
}

// Store manages persistence of station snapshots to a JSON file.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore creates a snapshot store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string {
	return filepath.Join(s.dir, snapshotFile)
}

// SaveSnapshot persists the snapshot to disk.
func (s *Store) SaveSnapshot(snap *station.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}

	env := SnapshotEnvelope{
		Version:  SnapshotVersion,
		SavedAt:  time.Now(),
		Snapshot: snap,
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.Path(), data, 0644)
}

// LoadSnapshot reads the last saved snapshot from disk.
// Returns nil, nil if no snapshot has been saved.
func (s *Store) LoadSnapshot() (*station.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	env := &SnapshotEnvelope{}
	if err := json.Unmarshal(data, env); err != nil {
		return nil, err
	}
	if env.Version > SnapshotVersion {
		return nil, fmt.Errorf("snapshot format version %d is newer than supported version %d", env.Version, SnapshotVersion)
	}

	return env.Snapshot, nil
}

// Clear removes the snapshot file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.Path())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
