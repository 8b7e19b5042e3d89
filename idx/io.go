package idx

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// ReadFrom decodes an Index from r, which must yield the raw bytes of
// a .idx file (Tribble indexes are not BGZF compressed).
func ReadFrom(r io.Reader) (*Index, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("idx: reading index: %w", err)
	}
	off := 0

	if len(data) < 12 {
		return nil, fmt.Errorf("idx: file too short for header")
	}
	magic := int32(binary.LittleEndian.Uint32(data[off:]))
	typ := int32(binary.LittleEndian.Uint32(data[off+4:]))
	version := int32(binary.LittleEndian.Uint32(data[off+8:]))
	off += 12
	if magic != Magic {
		return nil, fmt.Errorf("idx: bad magic %#x", magic)
	}
	if version != Version {
		return nil, fmt.Errorf("idx: unsupported version %d", version)
	}
	if typ != TypeLinear && typ != TypeIntervalTree {
		return nil, fmt.Errorf("idx: unknown index type %d", typ)
	}

	filename, n := readCString(data, off)
	if n < 0 {
		return nil, fmt.Errorf("idx: unterminated filename")
	}
	off = n

	if off+16 > len(data) {
		return nil, fmt.Errorf("idx: truncated header")
	}
	filesize := binary.LittleEndian.Uint64(data[off:])
	timestamp := binary.LittleEndian.Uint64(data[off+8:])
	off += 16

	md5, n := readCStringBytes(data, off)
	if n < 0 {
		return nil, fmt.Errorf("idx: unterminated md5")
	}
	off = n

	if off+8 > len(data) {
		return nil, fmt.Errorf("idx: truncated flags/nprop")
	}
	flags := int32(binary.LittleEndian.Uint32(data[off:]))
	nprop := int32(binary.LittleEndian.Uint32(data[off+4:]))
	off += 8

	var props [][2]string
	for i := int32(0); i < nprop; i++ {
		k, n := readCString(data, off)
		if n < 0 {
			return nil, fmt.Errorf("idx: unterminated property key")
		}
		off = n
		v, n := readCString(data, off)
		if n < 0 {
			return nil, fmt.Errorf("idx: unterminated property value")
		}
		off = n
		props = append(props, [2]string{k, v})
	}

	if off+4 > len(data) {
		return nil, fmt.Errorf("idx: truncated contig count")
	}
	nchrs := int32(binary.LittleEndian.Uint32(data[off:]))
	off += 4

	idx := &Index{
		Header: Header{
			Type:       typ,
			Filename:   filename,
			Filesize:   filesize,
			Timestamp:  timestamp,
			MD5:        md5,
			Flags:      flags,
			Properties: props,
		},
		refs: map[string]chromIndex{},
	}

	for i := int32(0); i < nchrs; i++ {
		var ci chromIndex
		if typ == TypeLinear {
			ci = &linearIndex{}
		} else {
			ci = &intervalTreeIndex{}
		}
		var err error
		off, err = ci.decode(data, off)
		if err != nil {
			return nil, err
		}
		idx.names = append(idx.names, ci.contig())
		idx.refs[ci.contig()] = ci
	}
	return idx, nil
}

// WriteTo encodes idx to w in the Tribble .idx binary format.
func (x *Index) WriteTo(w io.Writer) error {
	bw := bufio.NewWriter(w)

	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(Magic))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(x.Header.Type))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(Version))
	if _, err := bw.Write(hdr[:]); err != nil {
		return err
	}

	if _, err := bw.WriteString(x.Header.Filename); err != nil {
		return err
	}
	if err := bw.WriteByte(0); err != nil {
		return err
	}

	var sizes [16]byte
	binary.LittleEndian.PutUint64(sizes[0:8], x.Header.Filesize)
	binary.LittleEndian.PutUint64(sizes[8:16], x.Header.Timestamp)
	if _, err := bw.Write(sizes[:]); err != nil {
		return err
	}

	if _, err := bw.Write(x.Header.MD5); err != nil {
		return err
	}
	if err := bw.WriteByte(0); err != nil {
		return err
	}

	var flags [8]byte
	binary.LittleEndian.PutUint32(flags[0:4], uint32(x.Header.Flags))
	binary.LittleEndian.PutUint32(flags[4:8], uint32(len(x.Header.Properties)))
	if _, err := bw.Write(flags[:]); err != nil {
		return err
	}
	for _, kv := range x.Header.Properties {
		if _, err := bw.WriteString(kv[0]); err != nil {
			return err
		}
		if err := bw.WriteByte(0); err != nil {
			return err
		}
		if _, err := bw.WriteString(kv[1]); err != nil {
			return err
		}
		if err := bw.WriteByte(0); err != nil {
			return err
		}
	}

	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(x.names)))
	if _, err := bw.Write(n[:]); err != nil {
		return err
	}
	for _, name := range x.names {
		if _, err := bw.Write(x.refs[name].encode()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Stamp fills in Filesize and Timestamp on the header the way
// TribbleIndex.save does immediately before writing, so callers don't
// need to compute a timestamp themselves (time.Now is deliberately
// kept out of the idx package's core encode path so ReadFrom/WriteTo
// stay pure).
func (x *Index) Stamp(filesize uint64) {
	x.Header.Filesize = filesize
	x.Header.Timestamp = uint64(time.Now().Unix())
}

func readCString(data []byte, off int) (string, int) {
	i := bytes.IndexByte(data[off:], 0)
	if i < 0 {
		return "", -1
	}
	return string(data[off : off+i]), off + i + 1
}

func readCStringBytes(data []byte, off int) ([]byte, int) {
	i := bytes.IndexByte(data[off:], 0)
	if i < 0 {
		return nil, -1
	}
	if i == 0 {
		return nil, off + 1
	}
	out := make([]byte, i)
	copy(out, data[off:off+i])
	return out, off + i + 1
}
