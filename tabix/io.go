package tabix

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/sentieon/vcflib/bgzf"
)

func chunkFromVirtual(begin, end uint64) bgzf.Chunk {
	return bgzf.Chunk{Begin: bgzf.OffsetFromVirtual(begin), End: bgzf.OffsetFromVirtual(end)}
}

// ReadFrom decodes an Index from r, which must yield the
// already-decompressed bytes of a .tbi or .csi index file (the
// on-disk file itself is BGZF compressed; decompress with a
// bgzf.Reader before calling ReadFrom).
func ReadFrom(r io.Reader) (*Index, error) {
	br := bufio.NewReader(r)

	magic, err := readU32(br)
	if err != nil {
		return nil, fmt.Errorf("tabix: reading magic: %w", err)
	}

	idx := &Index{Magic: magic, refs: map[string]*refIndex{}}

	var nRef uint32
	var names []byte
	switch magic {
	case TBIMagic:
		idx.MinShift, idx.Depth = 14, 5
		if nRef, err = readU32(br); err != nil {
			return nil, fmt.Errorf("tabix: reading n_ref: %w", err)
		}
		if idx.Header, err = readHeader(br); err != nil {
			return nil, err
		}
		if names, err = readNames(br); err != nil {
			return nil, err
		}
	case CSIMagic:
		if idx.MinShift, err = readU32(br); err != nil {
			return nil, fmt.Errorf("tabix: reading min_shift: %w", err)
		}
		if idx.Depth, err = readU32(br); err != nil {
			return nil, fmt.Errorf("tabix: reading depth: %w", err)
		}
		lAux, err := readU32(br)
		if err != nil {
			return nil, fmt.Errorf("tabix: reading l_aux: %w", err)
		}
		if lAux < 28 {
			return nil, fmt.Errorf("tabix: invalid aux length %d", lAux)
		}
		if idx.Header, err = readHeader(br); err != nil {
			return nil, err
		}
		nm, err := readNames(br)
		if err != nil {
			return nil, err
		}
		names = nm
		consumed := 28 + len(nm)
		if pad := int(lAux) - consumed; pad > 0 {
			if _, err := io.CopyN(io.Discard, br, int64(pad)); err != nil {
				return nil, fmt.Errorf("tabix: skipping aux padding: %w", err)
			}
		} else if pad < 0 {
			return nil, fmt.Errorf("tabix: aux length %d shorter than its contents", lAux)
		}
		if nRef, err = readU32(br); err != nil {
			return nil, fmt.Errorf("tabix: reading n_ref: %w", err)
		}
	default:
		return nil, fmt.Errorf("tabix: not a tabix or csi index (magic %#x)", magic)
	}

	contigs := bytes.Split(names, []byte{0})
	if uint32(len(contigs)) != nRef+1 || len(contigs[len(contigs)-1]) != 0 {
		return nil, fmt.Errorf("tabix: name table length mismatch: got %d names for %d contigs", len(contigs), nRef)
	}

	for i := uint32(0); i < nRef; i++ {
		ref := &refIndex{bins: map[uint32]*bin{}}
		name := string(contigs[i])
		idx.Names = append(idx.Names, name)
		idx.refs[name] = ref

		nBin, err := readU32(br)
		if err != nil {
			return nil, fmt.Errorf("tabix: reading n_bin for %s: %w", name, err)
		}
		for b := uint32(0); b < nBin; b++ {
			binNum, err := readU32(br)
			if err != nil {
				return nil, fmt.Errorf("tabix: reading bin number: %w", err)
			}
			var loffset uint64
			if magic == CSIMagic {
				if loffset, err = readU64(br); err != nil {
					return nil, fmt.Errorf("tabix: reading bin loffset: %w", err)
				}
			}
			nChunk, err := readU32(br)
			if err != nil {
				return nil, fmt.Errorf("tabix: reading n_chunk: %w", err)
			}
			bn := &bin{loffset: loffset}
			for c := uint32(0); c < nChunk; c++ {
				begin, err := readU64(br)
				if err != nil {
					return nil, fmt.Errorf("tabix: reading chunk begin: %w", err)
				}
				end, err := readU64(br)
				if err != nil {
					return nil, fmt.Errorf("tabix: reading chunk end: %w", err)
				}
				bn.chunks = append(bn.chunks, chunkFromVirtual(begin, end))
			}
			ref.bins[binNum] = bn
		}

		if magic == TBIMagic {
			nIntv, err := readU32(br)
			if err != nil {
				return nil, fmt.Errorf("tabix: reading n_intv: %w", err)
			}
			for v := uint32(0); v < nIntv; v++ {
				o, err := readU64(br)
				if err != nil {
					return nil, fmt.Errorf("tabix: reading interval: %w", err)
				}
				ref.intervals = append(ref.intervals, o)
			}
			if nIntv == 0 {
				ref.intervals = append(ref.intervals, 0)
			}
		}
	}
	return idx, nil
}

// WriteTo encodes idx to w in the format selected by idx.Magic. The
// caller is responsible for wrapping w in a bgzf.Writer so the result
// is a well-formed compressed index file.
func (x *Index) WriteTo(w io.Writer) error {
	names := make([]byte, 0, 64)
	for _, n := range x.Names {
		names = append(names, n...)
		names = append(names, 0)
	}

	if err := writeU32(w, x.Magic); err != nil {
		return err
	}
	switch x.Magic {
	case TBIMagic:
		if err := writeU32(w, uint32(len(x.Names))); err != nil {
			return err
		}
		if err := writeHeader(w, x.Header); err != nil {
			return err
		}
		if err := writeU32(w, uint32(len(names))); err != nil {
			return err
		}
		if _, err := w.Write(names); err != nil {
			return err
		}
	case CSIMagic:
		lAux := 28 + len(names)
		if err := writeU32(w, x.MinShift); err != nil {
			return err
		}
		if err := writeU32(w, x.Depth); err != nil {
			return err
		}
		if err := writeU32(w, uint32(lAux)); err != nil {
			return err
		}
		if err := writeHeader(w, x.Header); err != nil {
			return err
		}
		if err := writeU32(w, uint32(len(names))); err != nil {
			return err
		}
		if _, err := w.Write(names); err != nil {
			return err
		}
		if err := writeU32(w, uint32(len(x.Names))); err != nil {
			return err
		}
	default:
		return fmt.Errorf("tabix: unknown index magic %#x", x.Magic)
	}

	for _, name := range x.Names {
		ref := x.refs[name]
		keys := make([]uint32, 0, len(ref.bins))
		for k := range ref.bins {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		if err := writeU32(w, uint32(len(keys))); err != nil {
			return err
		}
		for _, binNum := range keys {
			bn := ref.bins[binNum]
			if err := writeU32(w, binNum); err != nil {
				return err
			}
			if x.Magic == CSIMagic {
				if err := writeU64(w, bn.loffset); err != nil {
					return err
				}
			}
			if err := writeU32(w, uint32(len(bn.chunks))); err != nil {
				return err
			}
			for _, c := range bn.chunks {
				if err := writeU64(w, c.Begin.Virtual()); err != nil {
					return err
				}
				if err := writeU64(w, c.End.Virtual()); err != nil {
					return err
				}
			}
		}
		if x.Magic == TBIMagic {
			if err := writeU32(w, uint32(len(ref.intervals))); err != nil {
				return err
			}
			for _, o := range ref.intervals {
				if err := writeU64(w, o); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func readHeader(r io.Reader) (Header, error) {
	var raw [6]uint32
	for i := range raw {
		v, err := readU32(r)
		if err != nil {
			return Header{}, fmt.Errorf("tabix: reading header field %d: %w", i, err)
		}
		raw[i] = v
	}
	return Header{
		Format: int32(raw[0]),
		ColSeq: int32(raw[1]),
		ColBeg: int32(raw[2]),
		ColEnd: int32(raw[3]),
		Meta:   int32(raw[4]),
		Skip:   int32(raw[5]),
	}, nil
}

func writeHeader(w io.Writer, h Header) error {
	raw := [6]uint32{
		uint32(h.Format), uint32(h.ColSeq), uint32(h.ColBeg),
		uint32(h.ColEnd), uint32(h.Meta), uint32(h.Skip),
	}
	for _, v := range raw {
		if err := writeU32(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readNames(r io.Reader) ([]byte, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("tabix: reading l_nm: %w", err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("tabix: reading name table: %w", err)
	}
	return buf, nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}
