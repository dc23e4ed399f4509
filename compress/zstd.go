package compress

// ZstdCompressor provides Zstandard compression for snapshot payloads.
//
// Zstd gives the best compression ratio of the supported codecs, which
// suits snapshots: they are written rarely (shutdown, periodic persist) and
// read once at startup, so ratio matters more than speed.
//
// The implementation is selected at build time: the cgo gozstd bindings
// when cgo is available, the pure-Go klauspost implementation otherwise.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd compressor with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
