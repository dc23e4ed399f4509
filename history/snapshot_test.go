package history

import (
	"encoding/binary"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/osukit/scoresws/errs"
	"github.com/osukit/scoresws/format"
	"github.com/osukit/scoresws/internal/hash"
	"github.com/osukit/scoresws/score"
)

func populated(t *testing.T) *History {
	t.Helper()

	h := New()
	h.Add(score.New([]byte(`{"id": 123}`), 123))
	h.Add(score.New([]byte(`{"id":456, "user": {"id": 2}}`), 456))
	h.Add(score.New([]byte(`{"user": {"id":2}, "id": 789}`), 789))

	return h
}

func TestSnapshot_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		typ  format.CompressionType
	}{
		{name: "none", typ: format.CompressionNone},
		{name: "zstd", typ: format.CompressionZstd},
		{name: "s2", typ: format.CompressionS2},
		{name: "lz4", typ: format.CompressionLZ4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := populated(t)

			data, err := h.Snapshot(tt.typ)
			require.NoError(t, err)

			restored := New()
			n, err := restored.Restore(data)
			require.NoError(t, err)
			require.Equal(t, 3, n)

			want := h.Since(0)
			got := restored.Since(0)
			require.Equal(t, len(want), len(got))

			for i := range want {
				require.Equal(t, want[i].ID(), got[i].ID())
				require.Equal(t, want[i].Raw(), got[i].Raw())
			}
		})
	}
}

func TestSnapshot_RestoreSkipsKnownIDs(t *testing.T) {
	h := populated(t)

	data, err := h.Snapshot(format.CompressionS2)
	require.NoError(t, err)

	restored := New()
	restored.Add(score.New([]byte(`{"id": 456, "stale": true}`), 456))

	n, err := restored.Restore(data)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 3, restored.Len())
}

func TestSnapshot_PreservesTrimTimes(t *testing.T) {
	h := New()
	now := time.Now()
	h.addAt(score.OnlyID(1), now.Add(-time.Hour))
	h.addAt(score.OnlyID(2), now)

	data, err := h.Snapshot(format.CompressionNone)
	require.NoError(t, err)

	restored := New()
	_, err = restored.Restore(data)
	require.NoError(t, err)

	removed := restored.trimAt(now.Add(-10 * time.Minute))
	require.Equal(t, 1, removed)
	require.Equal(t, 1, restored.Len())
}

func TestSnapshot_EmptyHistory(t *testing.T) {
	h := New()

	data, err := h.Snapshot(format.CompressionZstd)
	require.NoError(t, err)

	restored := New()
	n, err := restored.Restore(data)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Equal(t, 0, restored.Len())
}

func TestRestore_Errors(t *testing.T) {
	h := populated(t)
	valid, err := h.Snapshot(format.CompressionNone)
	require.NoError(t, err)

	t.Run("truncated header", func(t *testing.T) {
		_, err := New().Restore(valid[:8])
		require.ErrorIs(t, err, errs.ErrSnapshotTruncated)
	})

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte(nil), valid...)
		binary.LittleEndian.PutUint32(bad[0:4], 0xDEADBEEF)

		_, err := New().Restore(bad)
		require.ErrorIs(t, err, errs.ErrInvalidMagicNumber)
	})

	t.Run("bad compression type", func(t *testing.T) {
		bad := append([]byte(nil), valid...)
		bad[4] = 0xFF

		_, err := New().Restore(bad)
		require.ErrorIs(t, err, errs.ErrInvalidCompressionType)
	})

	t.Run("digest mismatch", func(t *testing.T) {
		bad := append([]byte(nil), valid...)
		bad[len(bad)-1] ^= 0x01

		_, err := New().Restore(bad)
		require.ErrorIs(t, err, errs.ErrDigestMismatch)
	})

	t.Run("truncated payload", func(t *testing.T) {
		bad := append([]byte(nil), valid[:len(valid)-4]...)
		// Fix the digest so truncation is what fails, not the digest check.
		binary.LittleEndian.PutUint64(bad[8:16], hash.Digest(bad[16:]))

		_, err := New().Restore(bad)
		require.ErrorIs(t, err, errs.ErrSnapshotTruncated)
	})
}

func TestSaveLoadSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.snap")

	h := populated(t)
	require.NoError(t, h.SaveSnapshot(path, format.CompressionLZ4))

	restored := New()
	n, err := restored.LoadSnapshot(path)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	// Missing file is not an error.
	n, err = New().LoadSnapshot(filepath.Join(dir, "absent.snap"))
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
