package compress

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/osukit/scoresws/format"
)

// samplePayload mimics a snapshot payload: repetitive JSON-ish frames.
func samplePayload() []byte {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString(`{"id": 123456789, "user_id": 4171323, "pp": 312.44, "beatmap_id": 1913102}`)
	}

	return []byte(sb.String())
}

func TestGetCodec(t *testing.T) {
	for _, typ := range []format.CompressionType{
		format.CompressionNone,
		format.CompressionZstd,
		format.CompressionS2,
		format.CompressionLZ4,
	} {
		codec, err := GetCodec(typ)
		require.NoError(t, err, typ.String())
		require.NotNil(t, codec, typ.String())
	}

	_, err := GetCodec(format.CompressionType(0xFF))
	require.Error(t, err)
}

func TestCodec_RoundTrip(t *testing.T) {
	payload := samplePayload()

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
			codec, err := GetCodec(tt.typ)
			require.NoError(t, err)

			compressed, err := codec.Compress(payload)
			require.NoError(t, err)

			restored, err := codec.Decompress(compressed)
			require.NoError(t, err)
			require.Equal(t, payload, restored)

			if tt.typ != format.CompressionNone {
				require.Less(t, len(compressed), len(payload))
			}
		})
	}
}

func TestCodec_EmptyInput(t *testing.T) {
	for _, typ := range []format.CompressionType{
		format.CompressionZstd,
		format.CompressionS2,
		format.CompressionLZ4,
	} {
		codec, err := GetCodec(typ)
		require.NoError(t, err)

		compressed, err := codec.Compress(nil)
		require.NoError(t, err)
		require.Nil(t, compressed)

		restored, err := codec.Decompress(nil)
		require.NoError(t, err)
		require.Nil(t, restored)
	}
}

func TestCodec_DecompressGarbage(t *testing.T) {
	for _, typ := range []format.CompressionType{
		format.CompressionZstd,
		format.CompressionS2,
	} {
		codec, err := GetCodec(typ)
		require.NoError(t, err)

		_, err = codec.Decompress([]byte("definitely not compressed data"))
		require.Error(t, err, typ.String())
	}
}
