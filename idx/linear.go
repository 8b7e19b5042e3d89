package idx

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// linearIndex buckets records on one contig into fixed-width position
// bins, each recording the file offset immediately before its first
// record. A query that cannot rule out a widened bin (to cover the
// longest record seen) conservatively returns everything from that
// bin to the end of the contig: ported from vcflib's LinearIndex.
type linearIndex struct {
	chrom   string
	end     uint64
	width   int64
	longest int64
	count   int32
	blocks  []uint64
}

func newLinearIndex(chrom string, off uint64, width int64) *linearIndex {
	return &linearIndex{chrom: chrom, end: off, width: width}
}

func (l *linearIndex) contig() string { return l.chrom }

func (l *linearIndex) add(s, e, off uint64) {
	bin := int64(s) / l.width
	for int64(len(l.blocks)) <= bin {
		l.blocks = append(l.blocks, l.end)
	}
	if span := int64(e - s); span > l.longest {
		l.longest = span
	}
	l.count++
	l.end = off
}

func (l *linearIndex) done() {
	l.blocks = append(l.blocks, l.end)
	l.optimize()
}

// optimize coalesces bins when the index has grown sparse relative to
// its busiest bin, widening bin width to keep the serialized blocks
// array small. Ported from LinearIndex.optimize.
func (l *linearIndex) optimize() {
	if len(l.blocks) < 2 || l.count == 0 {
		return
	}
	var maxSize uint64
	for i := 1; i < len(l.blocks); i++ {
		if d := l.blocks[i] - l.blocks[i-1]; d > maxSize {
			maxSize = d
		}
	}
	if maxSize == 0 {
		return
	}
	fullSize := l.blocks[len(l.blocks)-1] - l.blocks[0]
	scale := (uint64(MaxFeaturesPerBin) * fullSize) / (uint64(l.count) * maxSize)
	if scale <= 1 {
		return
	}
	bins := (uint64(len(l.blocks)-1) + scale - 1) / scale
	widened := make([]uint64, 0, bins)
	for i := uint64(0); i < bins; i++ {
		widened = append(widened, l.blocks[i*scale])
	}
	widened = append(widened, l.blocks[len(l.blocks)-1])
	l.blocks = widened
	l.width *= int64(scale)
}

func (l *linearIndex) query(s, e uint64) []Span {
	start := int64(s)
	if start < l.longest {
		start = 0
	} else {
		start -= l.longest
	}
	i := start / l.width
	if i < 0 || i >= int64(len(l.blocks)) {
		return nil
	}
	return []Span{{Begin: l.blocks[i], End: l.blocks[len(l.blocks)-1]}}
}

func (l *linearIndex) encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(l.chrom)
	buf.WriteByte(0)
	var fields [5]int32
	fields[0] = int32(l.width)
	fields[1] = int32(len(l.blocks) - 1)
	fields[2] = int32(l.longest)
	fields[3] = 0
	fields[4] = l.count
	binary.Write(&buf, binary.LittleEndian, fields)
	binary.Write(&buf, binary.LittleEndian, l.blocks)
	return buf.Bytes()
}

func (l *linearIndex) decode(data []byte, off int) (int, error) {
	nul := bytes.IndexByte(data[off:], 0)
	if nul < 0 {
		return off, fmt.Errorf("idx: linear index: unterminated contig name")
	}
	l.chrom = string(data[off : off+nul])
	off += nul + 1

	if off+20 > len(data) {
		return off, fmt.Errorf("idx: linear index: truncated header for %s", l.chrom)
	}
	width := int32(binary.LittleEndian.Uint32(data[off:]))
	bins := int32(binary.LittleEndian.Uint32(data[off+4:]))
	longest := int32(binary.LittleEndian.Uint32(data[off+8:]))
	count := int32(binary.LittleEndian.Uint32(data[off+16:]))
	off += 20
	l.width, l.longest, l.count = int64(width), int64(longest), count

	n := int(bins) + 1
	if n < 0 || off+n*8 > len(data) {
		return off, fmt.Errorf("idx: linear index: truncated block array for %s", l.chrom)
	}
	l.blocks = make([]uint64, n)
	for i := 0; i < n; i++ {
		l.blocks[i] = binary.LittleEndian.Uint64(data[off:])
		off += 8
	}
	return off, nil
}
