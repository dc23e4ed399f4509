package history

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/osukit/scoresws/compress"
	"github.com/osukit/scoresws/errs"
	"github.com/osukit/scoresws/format"
	"github.com/osukit/scoresws/internal/hash"
	"github.com/osukit/scoresws/internal/pool"
	"github.com/osukit/scoresws/score"
)

// Snapshot layout, all integers little-endian:
//
//	[0:4]   magic number "SWS1"
//	[4]     compression type (format.CompressionType)
//	[5:8]   reserved, zero
//	[8:16]  xxHash64 digest of the uncompressed payload
//	[16:]   compressed payload
//
// Payload: per retained score, in ascending id order:
//
//	id uint64 | recorded-at unix micros int64 | length uint32 | raw bytes
const (
	snapshotMagic      = uint32(0x31535753) // "SWS1"
	snapshotHeaderSize = 16
	entryHeaderSize    = 8 + 8 + 4
)

// Snapshot serializes the retained window into a self-describing byte
// blob compressed with the given codec.
func (h *History) Snapshot(typ format.CompressionType) ([]byte, error) {
	codec, err := compress.GetCodec(typ)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()

	buf := pool.GetSnapshotBuffer()
	defer pool.PutSnapshotBuffer(buf)

	var scratch [entryHeaderSize]byte
	for sc := range h.scores.All() {
		at := h.seen[sc.ID()]

		binary.LittleEndian.PutUint64(scratch[0:8], sc.ID())
		binary.LittleEndian.PutUint64(scratch[8:16], uint64(at.UnixMicro())) //nolint:gosec
		binary.LittleEndian.PutUint32(scratch[16:20], uint32(len(sc.Raw()))) //nolint:gosec

		buf.Grow(entryHeaderSize + len(sc.Raw()))
		buf.MustWrite(scratch[:])
		buf.MustWrite(sc.Raw())
	}

	h.mu.Unlock()

	payload := buf.Bytes()
	digest := hash.Digest(payload)

	compressed, err := codec.Compress(payload)
	if err != nil {
		return nil, fmt.Errorf("compress snapshot payload: %w", err)
	}

	out := make([]byte, snapshotHeaderSize, snapshotHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:4], snapshotMagic)
	out[4] = byte(typ)
	binary.LittleEndian.PutUint64(out[8:16], digest)

	return append(out, compressed...), nil
}

// Restore merges a snapshot produced by Snapshot into the history and
// returns the number of scores restored. Scores whose id is already present
// are skipped.
//
// The snapshot is validated before anything is merged: magic number,
// compression type, payload digest and entry framing.
func (h *History) Restore(data []byte) (int, error) {
	if len(data) < snapshotHeaderSize {
		return 0, errs.ErrSnapshotTruncated
	}

	if binary.LittleEndian.Uint32(data[0:4]) != snapshotMagic {
		return 0, errs.ErrInvalidMagicNumber
	}

	typ := format.CompressionType(data[4])
	if !typ.IsValid() {
		return 0, fmt.Errorf("%w: %d", errs.ErrInvalidCompressionType, data[4])
	}

	codec, err := compress.GetCodec(typ)
	if err != nil {
		return 0, err
	}

	payload, err := codec.Decompress(data[snapshotHeaderSize:])
	if err != nil {
		return 0, fmt.Errorf("decompress snapshot payload: %w", err)
	}

	if hash.Digest(payload) != binary.LittleEndian.Uint64(data[8:16]) {
		return 0, errs.ErrDigestMismatch
	}

	// Validate framing fully before merging anything.
	type restoredEntry struct {
		sc score.Score
		at time.Time
	}

	var entries []restoredEntry
	for off := 0; off < len(payload); {
		if len(payload)-off < entryHeaderSize {
			return 0, errs.ErrSnapshotTruncated
		}

		id := binary.LittleEndian.Uint64(payload[off : off+8])
		at := time.UnixMicro(int64(binary.LittleEndian.Uint64(payload[off+8 : off+16]))) //nolint:gosec
		length := int(binary.LittleEndian.Uint32(payload[off+16 : off+20]))
		off += entryHeaderSize

		if len(payload)-off < length {
			return 0, errs.ErrSnapshotTruncated
		}

		entries = append(entries, restoredEntry{
			sc: score.New(payload[off:off+length], id),
			at: at,
		})
		off += length
	}

	restored := 0
	for _, e := range entries {
		if h.addAt(e.sc, e.at) {
			restored++
		}
	}

	return restored, nil
}

// SaveSnapshot writes a snapshot to path atomically (temp file + rename).
func (h *History) SaveSnapshot(path string, typ format.CompressionType) error {
	data, err := h.Snapshot(typ)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write snapshot %q: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename snapshot into place: %w", err)
	}

	return nil
}

// LoadSnapshot restores a snapshot from path and returns the number of
// scores restored. A missing file is not an error; it returns (0, nil).
func (h *History) LoadSnapshot(path string) (int, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read snapshot %q: %w", path, err)
	}

	n, err := h.Restore(data)
	if err != nil {
		return 0, fmt.Errorf("restore snapshot %q: %w", path, err)
	}

	return n, nil
}
