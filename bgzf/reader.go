package bgzf

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/sentieon/vcflib/internal/pool"
)

// countingReader wraps an io.Reader, tracking the total number of
// bytes consumed from it so the Reader can report virtual offsets
// even when reading a non-seekable stream.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Reader decodes a BGZF stream block by block, presenting the
// concatenation of decompressed block payloads as a single byte
// stream, and tracking virtual offsets so callers can record and
// later Seek back to any position that was returned by Tell.
type Reader struct {
	cr *countingReader
	br *bufio.Reader

	rs io.ReadSeeker // non-nil only if the underlying reader supports Seek

	blockStart int64 // file offset of the start of the block currently buffered in data
	data       []byte
	pos        int

	eof bool
}

// NewReader returns a Reader reading BGZF blocks from r.
func NewReader(r io.Reader) *Reader {
	rd := &Reader{cr: &countingReader{r: r}}
	rd.br = bufio.NewReaderSize(rd.cr, MaxBlockSize)
	if rs, ok := r.(io.ReadSeeker); ok {
		rd.rs = rs
	}
	return rd
}

// Tell returns the virtual offset of the next byte Read will return.
func (r *Reader) Tell() uint64 {
	return Offset{File: r.blockStart, Block: uint16(r.pos)}.Virtual()
}

// Seek repositions the reader at the virtual offset v, which must
// have been obtained from Tell (or from an index built over this
// stream). It returns ErrNotASeeker if the underlying reader does not
// support io.Seeker.
func (r *Reader) Seek(v uint64) error {
	if r.rs == nil {
		return ErrNotASeeker
	}
	off := OffsetFromVirtual(v)
	if off.File == r.blockStart && r.data != nil {
		r.pos = int(off.Block)
		r.eof = false
		return nil
	}
	if _, err := r.rs.Seek(off.File, io.SeekStart); err != nil {
		return fmt.Errorf("bgzf: seeking: %w", err)
	}
	r.cr.n = off.File
	r.br.Reset(r.cr)
	r.data = nil
	r.pos = 0
	r.eof = false
	if err := r.loadBlock(); err != nil {
		return err
	}
	if int(off.Block) > len(r.data) {
		return fmt.Errorf("bgzf: virtual offset within-block component out of range: %w", ErrHeader)
	}
	r.pos = int(off.Block)
	return nil
}

// loadBlock decodes the next BGZF block from the underlying stream
// into r.data, updating r.blockStart to the file offset at which it
// began. It is a no-op (leaving r.data nil) once the EOF marker block
// has been consumed.
func (r *Reader) loadBlock() error {
	r.blockStart = r.cr.n - int64(r.br.Buffered())
	header := pool.GetBuffer(blockHeaderLen)
	defer pool.PutBuffer(header)
	_, err := io.ReadFull(r.br, header)
	if err == io.EOF {
		// A BGZF stream should always end with the explicit EOF
		// marker, but tolerate a bare end-of-file too.
		r.data = nil
		r.eof = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("bgzf: reading block header: %w", err)
	}
	hdr, err := readBlockHeader(header)
	if err != nil {
		return err
	}
	total := int(hdr.bsize) + 1
	rest := pool.GetBuffer(total - blockHeaderLen)
	defer pool.PutBuffer(rest)
	if _, err := io.ReadFull(r.br, rest); err != nil {
		return fmt.Errorf("bgzf: reading block body: %w", err)
	}
	compressed := rest[:len(rest)-blockFooterLen]
	footer := readBlockFooter(rest[len(rest)-blockFooterLen:])

	if footer.isize == 0 {
		full := append(append([]byte{}, header...), rest...)
		if isEOFBlock(full) {
			r.data = nil
			r.eof = true
			return nil
		}
	}

	fr := flate.NewReader(bytes.NewReader(compressed))
	data, err := io.ReadAll(fr)
	fr.Close()
	if err != nil {
		return fmt.Errorf("bgzf: inflating block: %w", err)
	}
	if err := footer.validate(data); err != nil {
		return err
	}
	r.data = data
	r.pos = 0
	return nil
}

// Read implements io.Reader, decoding further blocks as needed.
func (r *Reader) Read(p []byte) (int, error) {
	n := 0
	for len(p) > 0 {
		if r.data == nil || r.pos >= len(r.data) {
			if r.eof {
				if n > 0 {
					return n, nil
				}
				return 0, io.EOF
			}
			if err := r.loadBlock(); err != nil {
				return n, err
			}
			continue
		}
		m := copy(p, r.data[r.pos:])
		r.pos += m
		n += m
		p = p[m:]
	}
	return n, nil
}

// ReadUntil reads and returns bytes up to and including the first
// occurrence of delim, decoding further blocks as needed. The
// returned slice includes delim unless the stream ends first, in
// which case io.EOF is returned alongside whatever was read.
func (r *Reader) ReadUntil(delim byte) ([]byte, error) {
	var out []byte
	for {
		if r.data == nil || r.pos >= len(r.data) {
			if r.eof {
				if len(out) > 0 {
					return out, io.EOF
				}
				return nil, io.EOF
			}
			if err := r.loadBlock(); err != nil {
				return out, err
			}
			continue
		}
		if i := bytes.IndexByte(r.data[r.pos:], delim); i >= 0 {
			out = append(out, r.data[r.pos:r.pos+i+1]...)
			r.pos += i + 1
			return out, nil
		}
		out = append(out, r.data[r.pos:]...)
		r.pos = len(r.data)
	}
}

// ReadLine reads a single newline-terminated line, with the trailing
// newline stripped. A final line with no newline is returned together
// with io.EOF.
func (r *Reader) ReadLine() ([]byte, error) {
	line, err := r.ReadUntil('\n')
	if err != nil && err != io.EOF {
		return line, err
	}
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	if len(line) == 0 && err == io.EOF {
		return nil, io.EOF
	}
	return line, err
}
