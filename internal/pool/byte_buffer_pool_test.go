package pool

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByteBuffer_WriteAndReset(t *testing.T) {
	bb := NewByteBuffer(16)

	bb.MustWrite([]byte("hello"))
	require.Equal(t, 5, bb.Len())
	require.Equal(t, []byte("hello"), bb.Bytes())

	n, err := bb.Write([]byte(" world"))
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.Equal(t, "hello world", string(bb.Bytes()))

	bb.Reset()
	require.Equal(t, 0, bb.Len())
	require.GreaterOrEqual(t, bb.Cap(), 11)
}

func TestByteBuffer_Grow(t *testing.T) {
	bb := NewByteBuffer(8)
	bb.MustWrite([]byte("12345678"))

	bb.Grow(1024)
	require.GreaterOrEqual(t, bb.Cap()-bb.Len(), 1024)
	require.Equal(t, "12345678", string(bb.Bytes()))
}

func TestByteBuffer_ReadFrom(t *testing.T) {
	payload := strings.Repeat("x", BodyBufferDefaultSize+100)

	bb := NewByteBuffer(64)
	n, err := bb.ReadFrom(strings.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, int64(len(payload)), n)
	require.Equal(t, payload, string(bb.Bytes()))
}

func TestByteBuffer_WriteTo(t *testing.T) {
	bb := NewByteBuffer(16)
	bb.MustWrite([]byte("payload"))

	var out bytes.Buffer
	n, err := bb.WriteTo(&out)
	require.NoError(t, err)
	require.Equal(t, int64(7), n)
	require.Equal(t, "payload", out.String())
}

func TestByteBufferPool_Reuse(t *testing.T) {
	p := NewByteBufferPool(32, 1024)

	bb := p.Get()
	require.NotNil(t, bb)
	bb.MustWrite([]byte("data"))
	p.Put(bb)

	got := p.Get()
	require.Equal(t, 0, got.Len())
}

func TestByteBufferPool_DiscardsOversized(t *testing.T) {
	p := NewByteBufferPool(32, 64)

	bb := p.Get()
	bb.Grow(1024)
	p.Put(bb) // above threshold, dropped

	got := p.Get()
	require.LessOrEqual(t, got.Cap(), 1024)
	require.Equal(t, 0, got.Len())
}

func TestDefaultPools(t *testing.T) {
	body := GetBodyBuffer()
	require.NotNil(t, body)
	body.MustWrite([]byte("abc"))
	PutBodyBuffer(body)

	snap := GetSnapshotBuffer()
	require.NotNil(t, snap)
	PutSnapshotBuffer(snap)
}
