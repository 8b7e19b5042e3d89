package bgzf

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOffsetVirtualRoundTrip(t *testing.T) {
	off := Offset{File: 1 << 20, Block: 1234}
	v := off.Virtual()
	got := OffsetFromVirtual(v)
	require.Equal(t, off, got)
}

func TestOffsetLess(t *testing.T) {
	a := Offset{File: 0, Block: 10}
	b := Offset{File: 1, Block: 0}
	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
}

func TestWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	want := strings.Repeat("the quick brown fox jumps over the lazy dog\n", 5000)
	_, err := w.Write([]byte(want))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := NewReader(bytes.NewReader(buf.Bytes()))
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, want, string(got))
}

func TestWriterProducesMultipleBlocks(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	data := bytes.Repeat([]byte{'x'}, BlockSize*3+17)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := NewReader(bytes.NewReader(buf.Bytes()))
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestReaderSeekToVirtualOffset(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	_, err := w.Write([]byte("hello, "))
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	voffset := w.Tell()
	_, err = w.Write([]byte("world"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, r.Seek(voffset))
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "world", string(got))
}

func TestReaderSeekRequiresSeeker(t *testing.T) {
	r := NewReader(io.NopCloser(strings.NewReader("")))
	err := r.Seek(0)
	require.ErrorIs(t, err, ErrNotASeeker)
}

func TestReadUntilAndReadLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	_, err := w.Write([]byte("line one\nline two\nline three"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := NewReader(bytes.NewReader(buf.Bytes()))
	l1, err := r.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "line one", string(l1))

	l2, err := r.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "line two", string(l2))

	l3, err := r.ReadLine()
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, "line three", string(l3))
}

func TestEmptyStreamIsJustEOFBlock(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Close())
	require.Equal(t, eofBlock, buf.Bytes())

	r := NewReader(bytes.NewReader(buf.Bytes()))
	_, err := io.ReadAll(r)
	require.NoError(t, err)
}

func TestBlockHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, blockHeaderLen)
	writeBlockHeader(buf, 0x1234)
	hdr, err := readBlockHeader(buf)
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), hdr.bsize)
}

func TestReadBlockHeaderRejectsBadMagic(t *testing.T) {
	buf := make([]byte, blockHeaderLen)
	writeBlockHeader(buf, 10)
	buf[0] = 0x00
	_, err := readBlockHeader(buf)
	require.ErrorIs(t, err, ErrHeader)
}
