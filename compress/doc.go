// Package compress provides the compression codecs used for history
// snapshots.
//
// Snapshots are written as a single compressed payload, so codecs operate
// on whole byte slices rather than streams. Four algorithms are supported:
//
//   - None: no compression (fastest, largest)
//   - Zstd: best compression ratio; uses the cgo gozstd bindings when cgo
//     is available and falls back to the pure-Go implementation otherwise
//   - S2: balanced compression and speed
//   - LZ4: fast block compression
//
// Codecs are selected via format.CompressionType:
//
//	codec, err := compress.GetCodec(format.CompressionZstd)
//	compressed, err := codec.Compress(payload)
//	restored, err := codec.Decompress(compressed)
//
// All codecs are safe for concurrent use.
package compress
