package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SnapshotVersion is the payload version written by SaveSnapshot.
const SnapshotVersion = 1

// Snapshot is the persisted capacity state of an edge factory: the occupancy
// limit reached by each edge type.
type Snapshot struct {
	Version int            `json:"version"`
	SavedAt time.Time      `json:"saved_at"`
	Limits  map[string]int `json:"limits"`
}

// SaveSnapshot writes s as a single frame to a temporary file next to path
// and renames it over path, so readers never see a partial snapshot.
func SaveSnapshot(path string, s Snapshot) error {
	if s.Version == 0 {
		s.Version = SnapshotVersion
	}
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	buf := bufio.NewWriter(tmp)
	if err := NewFrameWriter(buf).WriteFrame(OpCodeSnapshot, payload); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := buf.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}
	return nil
}

// LoadSnapshot reads and validates the snapshot at path. A missing file
// yields an error matching os.ErrNotExist.
func LoadSnapshot(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	op, payload, _, err := ReadFrame(bufio.NewReader(f))
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	if op != OpCodeSnapshot {
		return Snapshot{}, fmt.Errorf("%w: 0x%02x in %s", ErrUnexpectedOpCode, op, path)
	}

	var s Snapshot
	if err := json.Unmarshal(payload, &s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	return s, nil
}
