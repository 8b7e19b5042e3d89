package bgzf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// Writer packs written bytes into BGZF blocks of at most BlockSize
// uncompressed bytes, flushing a block whenever that soft limit is
// reached or Flush/Close is called. Each call to Write that starts a
// fresh block position is a valid virtual-offset block boundary:
// callers that need to record a Chunk boundary should call Flush
// first so the boundary lands on a block edge, then Tell.
type Writer struct {
	w   io.Writer
	buf bytes.Buffer

	fileOffset int64
	closed     bool

	level int
}

// NewWriter returns a Writer that emits BGZF blocks to w using the
// default compression level.
func NewWriter(w io.Writer) *Writer {
	return NewWriterLevel(w, flate.DefaultCompression)
}

// NewWriterLevel is like NewWriter but specifies the flate
// compression level, as in compress/flate.
func NewWriterLevel(w io.Writer, level int) *Writer {
	return &Writer{w: w, level: level}
}

// Write appends p to the current block, flushing full blocks to the
// underlying writer as the soft BlockSize limit is crossed.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	n := 0
	for len(p) > 0 {
		room := BlockSize - w.buf.Len()
		if room <= 0 {
			if err := w.flushBlock(); err != nil {
				return n, err
			}
			room = BlockSize
		}
		chunk := p
		if len(chunk) > room {
			chunk = chunk[:room]
		}
		m, err := w.buf.Write(chunk)
		n += m
		p = p[m:]
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Tell returns the virtual offset of the next byte that will be
// written: the current compressed file offset combined with the
// number of uncompressed bytes already buffered for the in-progress
// block.
func (w *Writer) Tell() uint64 {
	return Offset{File: w.fileOffset, Block: uint16(w.buf.Len())}.Virtual()
}

// Flush compresses and emits any buffered data as a complete BGZF
// block, regardless of size. After Flush, Tell reports a virtual
// offset at the start of a fresh block.
func (w *Writer) Flush() error {
	if w.closed {
		return ErrClosed
	}
	if w.buf.Len() == 0 {
		return nil
	}
	return w.flushBlock()
}

func (w *Writer) flushBlock() error {
	data := w.buf.Bytes()

	var compressed bytes.Buffer
	fw, err := flate.NewWriter(&compressed, w.level)
	if err != nil {
		return fmt.Errorf("bgzf: creating deflate writer: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("bgzf: deflating block: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("bgzf: closing deflate stream: %w", err)
	}

	total := blockHeaderLen + compressed.Len() + blockFooterLen
	if total > MaxBlockSize {
		return ErrBlockOverflow
	}

	block := make([]byte, total)
	writeBlockHeader(block, uint16(total-1))
	copy(block[blockHeaderLen:], compressed.Bytes())
	writeBlockFooter(block[blockHeaderLen+compressed.Len():], data)

	if _, err := w.w.Write(block); err != nil {
		return fmt.Errorf("bgzf: writing block: %w", err)
	}
	w.fileOffset += int64(total)
	w.buf.Reset()
	return nil
}

// Close flushes any buffered data, appends the canonical empty EOF
// block, and marks w closed. It does not close the underlying
// io.Writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if _, err := w.w.Write(eofBlock); err != nil {
		return fmt.Errorf("bgzf: writing eof block: %w", err)
	}
	w.fileOffset += int64(len(eofBlock))
	w.closed = true
	return nil
}
