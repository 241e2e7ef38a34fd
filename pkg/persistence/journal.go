package persistence

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// GrowthEvent records one occupancy limit increase of an edge builder.
type GrowthEvent struct {
	EdgeType string    `json:"edge_type"`
	From     int       `json:"from"`
	To       int       `json:"to"`
	At       time.Time `json:"at"`
}

// Journal is an append-only file of growth frames. Together with the last
// snapshot it reproduces the current limits after a restart; a snapshot
// compacts it through Truncate.
type Journal struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	fw   *FrameWriter
	path string
}

// OpenJournal opens or creates the journal file at path.
func OpenJournal(path string) (*Journal, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}
	buf := bufio.NewWriter(file)
	return &Journal{
		file: file,
		buf:  buf,
		fw:   NewFrameWriter(buf),
		path: path,
	}, nil
}

// Append writes ev as one frame and syncs it to disk before returning.
func (j *Journal) Append(ev GrowthEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode growth event: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.fw.WriteFrame(OpCodeGrowth, payload); err != nil {
		return err
	}
	return j.syncLocked()
}

// Sync forces a flush to disk (fsync).
func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.syncLocked()
}

func (j *Journal) syncLocked() error {
	if err := j.buf.Flush(); err != nil {
		return err
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.buf.Flush(); err != nil {
		_ = j.file.Close()
		return err
	}
	return j.file.Close()
}

// Truncate clears the journal. Called once its events are covered by a snapshot.
func (j *Journal) Truncate() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.buf.Reset(j.file)
	if err := j.file.Truncate(0); err != nil {
		return err
	}
	_, err := j.file.Seek(0, io.SeekStart)
	return err
}

// Path returns the file path.
func (j *Journal) Path() string {
	return j.path
}

// ReplayJournal reads the growth events stored at path in order and calls fn
// for each. A missing file replays nothing. A torn frame at the end of the
// file (crash during append) stops the replay with a warning; any other
// corruption is an error.
func ReplayJournal(path string, fn func(GrowthEvent)) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	count := 0
	offset := 0
	for {
		op, payload, n, err := ReadFrame(r)
		if err == io.EOF {
			return count, nil
		}
		if errors.Is(err, ErrIncompleteFrame) {
			slog.Warn("journal ends with an incomplete frame, ignoring tail", "path", path, "offset", offset)
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("journal %s at offset %d: %w", path, offset, err)
		}
		if op != OpCodeGrowth {
			return count, fmt.Errorf("%w: 0x%02x in journal %s at offset %d", ErrUnexpectedOpCode, op, path, offset)
		}
		var ev GrowthEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return count, fmt.Errorf("journal %s at offset %d: %w", path, offset, err)
		}
		fn(ev)
		count++
		offset += n
	}
}

// Limits folds a snapshot and the journal at path into the highest known
// occupancy limit per edge type. A zero Snapshot is allowed.
func Limits(s Snapshot, journalPath string) (map[string]int, error) {
	out := make(map[string]int, len(s.Limits))
	for t, l := range s.Limits {
		out[t] = l
	}
	_, err := ReplayJournal(journalPath, func(ev GrowthEvent) {
		if ev.To > out[ev.EdgeType] {
			out[ev.EdgeType] = ev.To
		}
	})
	return out, err
}
