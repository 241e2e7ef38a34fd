package persistence

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)
	require.NoError(t, fw.WriteFrame(OpCodeGrowth, []byte("hello")))
	require.NoError(t, fw.WriteFrame(OpCodeSnapshot, nil))

	op, payload, n, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, byte(OpCodeGrowth), op)
	assert.Equal(t, []byte("hello"), payload)
	assert.Equal(t, HeaderSize+5, n)

	op, payload, n, err = ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, byte(OpCodeSnapshot), op)
	assert.Empty(t, payload)
	assert.Equal(t, HeaderSize, n)

	_, _, _, err = ReadFrame(&buf)
	assert.Equal(t, io.EOF, err)
}

func TestFrameCorruption(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFrameWriter(&buf).WriteFrame(OpCodeGrowth, []byte("payload")))
	raw := buf.Bytes()

	t.Run("checksum", func(t *testing.T) {
		bad := append([]byte(nil), raw...)
		bad[len(bad)-1] ^= 0xFF
		_, _, _, err := ReadFrame(bytes.NewReader(bad))
		assert.ErrorIs(t, err, ErrChecksumMismatch)
	})

	t.Run("magic", func(t *testing.T) {
		bad := append([]byte(nil), raw...)
		bad[0] = 0x00
		_, _, _, err := ReadFrame(bytes.NewReader(bad))
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("torn header", func(t *testing.T) {
		_, _, _, err := ReadFrame(bytes.NewReader(raw[:4]))
		assert.ErrorIs(t, err, ErrIncompleteFrame)
	})

	t.Run("torn payload", func(t *testing.T) {
		_, _, _, err := ReadFrame(bytes.NewReader(raw[:len(raw)-2]))
		assert.ErrorIs(t, err, ErrIncompleteFrame)
	})
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.snap")
	saved := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	in := Snapshot{SavedAt: saved, Limits: map[string]int{"ne": 8, "same": 3}}
	require.NoError(t, SaveSnapshot(path, in))

	out, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, SnapshotVersion, out.Version)
	assert.True(t, saved.Equal(out.SavedAt))
	assert.Equal(t, in.Limits, out.Limits)

	// Overwriting leaves no temporary files behind.
	require.NoError(t, SaveSnapshot(path, Snapshot{Limits: map[string]int{"ne": 9}}))
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	out, err = LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ne": 9}, out.Limits)
	assert.False(t, out.SavedAt.IsZero())
}

func TestLoadSnapshotErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadSnapshot(filepath.Join(dir, "missing"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	path := filepath.Join(dir, "limits.snap")
	require.NoError(t, SaveSnapshot(path, Snapshot{Limits: map[string]int{"nn": 2}}))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-2] ^= 0x01
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	_, err = LoadSnapshot(path)
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	var buf bytes.Buffer
	require.NoError(t, NewFrameWriter(&buf).WriteFrame(OpCodeGrowth, []byte("{}")))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	_, err = LoadSnapshot(path)
	assert.ErrorIs(t, err, ErrUnexpectedOpCode)
}

func TestJournalReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "growth.journal")
	j, err := OpenJournal(path)
	require.NoError(t, err)
	require.NoError(t, j.Append(GrowthEvent{EdgeType: "ne", From: 2, To: 5}))
	require.NoError(t, j.Append(GrowthEvent{EdgeType: "same", From: 2, To: 4}))
	require.NoError(t, j.Append(GrowthEvent{EdgeType: "ne", From: 5, To: 7}))
	require.NoError(t, j.Sync())

	var got []GrowthEvent
	n, err := ReplayJournal(path, func(ev GrowthEvent) { got = append(got, ev) })
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, got, 3)
	assert.Equal(t, "same", got[1].EdgeType)
	assert.False(t, got[0].At.IsZero())

	limits, err := Limits(Snapshot{Limits: map[string]int{"ne": 6, "nn": 3}}, path)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ne": 7, "same": 4, "nn": 3}, limits)

	require.NoError(t, j.Truncate())
	require.NoError(t, j.Append(GrowthEvent{EdgeType: "anti", From: 2, To: 3}))
	require.NoError(t, j.Close())

	got = nil
	n, err = ReplayJournal(path, func(ev GrowthEvent) { got = append(got, ev) })
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "anti", got[0].EdgeType)
}

func TestJournalAppendIsDurable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "growth.journal")
	j, err := OpenJournal(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	// No Sync or Close: every Append must already be on disk.
	for i, to := range []int{3, 4} {
		require.NoError(t, j.Append(GrowthEvent{EdgeType: "en", From: to - 1, To: to}))
		n, err := ReplayJournal(path, func(GrowthEvent) {})
		require.NoError(t, err)
		assert.Equal(t, i+1, n)
	}
}

func TestJournalTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "growth.journal")
	j, err := OpenJournal(path)
	require.NoError(t, err)
	require.NoError(t, j.Append(GrowthEvent{EdgeType: "en", From: 2, To: 3}))
	require.NoError(t, j.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte{MagicByte, OpCodeGrowth, 0x40})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	n, err := ReplayJournal(path, func(GrowthEvent) {})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = ReplayJournal(filepath.Join(t.TempDir(), "none"), func(GrowthEvent) {})
	require.NoError(t, err)
	assert.Zero(t, n)
}
