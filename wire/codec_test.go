package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLengthPrefixedRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, LengthPrefixed)
	require.NoError(t, w.WriteFrame([]byte(`{"jsonrpc":"2.0"}`)))
	require.NoError(t, w.WriteFrame([]byte(`{"id":2}`)))

	r := NewReader(&buf, LengthPrefixed)
	f1, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, `{"jsonrpc":"2.0"}`, string(f1))

	f2, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, `{"id":2}`, string(f2))

	_, err = r.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestLFTerminatedRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, LFTerminated)
	require.NoError(t, w.WriteFrame([]byte(`{"a":1}`)))
	require.NoError(t, w.WriteFrame([]byte(`{"b":2}`)))

	r := NewReader(&buf, LFTerminated)
	f1, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(f1))

	f2, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(f2))
}

func TestWriteFrameRejectsOversizeFrame(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, LengthPrefixed)
	oversized := make([]byte, MaxFrameSize+1)
	err := w.WriteFrame(oversized)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameRejectsOversizeLengthPrefix(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	r := NewReader(&buf, LengthPrefixed)
	_, err := r.ReadFrame()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}
