// Package tabix implements the tabix family of binning indexes: the
// BAM/tabix TBI format (fixed min-shift 14, depth 5) and its
// general-purpose successor CSI (configurable min-shift and depth),
// as used to provide random access into a coordinate-sorted BGZF file
// by contig and position range. A single Index value can hold either
// format; the builder promotes a TBI-shaped index to CSI in place
// when a contig's length outgrows what the fixed TBI depth can
// address.
package tabix

import (
	"fmt"

	"github.com/sentieon/vcflib/bgzf"
	"github.com/sentieon/vcflib/internal/rangeutil"
)

// Magic numbers identifying the on-disk format, read as the first
// little-endian uint32 of the (bgzf-compressed) index file.
const (
	TBIMagic uint32 = 0x01494254
	CSIMagic uint32 = 0x01495343
)

// Format values for Header.Format, describing the column layout of
// the indexed text file.
const (
	FormatGeneric = 0
	FormatSAM     = 1
	FormatVCF     = 2

	// FormatZeroBased is OR'd into Format when the indexed format's
	// coordinates are zero-based, half-open (BED-like) rather than
	// the default one-based, inclusive (SAM/VCF-like).
	FormatZeroBased = 0x10000
)

// Header carries the tabix auxiliary fields describing how to parse
// coordinates out of each indexed line: which columns hold the
// sequence name, start and end (or single position), which byte
// introduces a comment/header line, and how many leading lines to
// skip unconditionally.
type Header struct {
	Format int32
	ColSeq int32
	ColBeg int32
	ColEnd int32
	Meta   int32
	Skip   int32
}

// VCFHeader is the Header used by vcflib when building a VCF tabix
// index: one-based columns 1 (CHROM) and 2 (POS, used for both begin
// and end since VCF has no dedicated end column), '#' comment lines,
// no lines unconditionally skipped.
var VCFHeader = Header{Format: FormatVCF, ColSeq: 1, ColBeg: 2, ColEnd: 2, Meta: int32('#'), Skip: 0}

type bin struct {
	loffset uint64
	chunks  []bgzf.Chunk
}

type refIndex struct {
	bins      map[uint32]*bin
	intervals []uint64
}

// Index is a loaded or assembled tabix/CSI index.
type Index struct {
	Magic    uint32
	MinShift uint32
	Depth    uint32
	Header   Header

	// Names lists indexed contigs in file order; Query and the
	// builder both key off this plus refs.
	Names []string

	refs map[string]*refIndex
}

// maxShift is the shift of the single root bin, derived from
// MinShift and Depth exactly as vcflib's Tabix.max_shift is.
func (x *Index) maxShift() uint32 { return x.MinShift + x.Depth*3 }

// NewIndex returns an empty Index of the given shape. Use TBIMagic
// with MinShift 14 and Depth 5 for a standard TBI index, or CSIMagic
// with a MinShift/Depth of the caller's choosing for CSI.
func NewIndex(magic uint32, minShift, depth uint32, header Header) *Index {
	return &Index{
		Magic:    magic,
		MinShift: minShift,
		Depth:    depth,
		Header:   header,
		refs:     map[string]*refIndex{},
	}
}

func binOffset(maxShift, shift uint32) uint32 {
	return (uint32(1)<<(maxShift-shift) - 1) / 7
}

// Query returns the set of BGZF chunks that may contain records on
// contig overlapping the half-open, zero-based range [start, end).
// The returned chunks are merged and sorted but may still include
// records outside the query range; callers must filter by position
// after decoding.
func (x *Index) Query(contig string, start, end uint64) ([]bgzf.Chunk, error) {
	ref, ok := x.refs[contig]
	if !ok {
		return nil, nil
	}
	if end == 0 {
		return nil, fmt.Errorf("tabix: query end must be > 0")
	}
	maxShift := x.maxShift()

	i := start >> x.MinShift
	var minoff uint64
	if len(ref.intervals) > 0 {
		if i >= uint64(len(ref.intervals)) {
			i = uint64(len(ref.intervals) - 1)
		}
		minoff = ref.intervals[i]
	}

	var ranges []bgzf.Chunk
	for shift := int(maxShift); shift >= int(x.MinShift); shift -= 3 {
		bo := binOffset(maxShift, uint32(shift))
		bs := bo + uint32(start>>uint(shift))
		be := bo + uint32((end-1)>>uint(shift))

		if len(ref.intervals) == 0 {
			for bi := int64(bs); bi >= int64(bo); bi-- {
				if b, ok := ref.bins[uint32(bi)]; ok {
					if b.loffset > minoff {
						minoff = b.loffset
					}
					break
				}
			}
		}
		for bi := bs; bi <= be; bi++ {
			if b, ok := ref.bins[bi]; ok {
				ranges = append(ranges, b.chunks...)
			}
		}
	}

	if minoff > 0 {
		filtered := ranges[:0]
		for _, c := range ranges {
			if c.End.Virtual() > minoff {
				if c.Begin.Virtual() < minoff {
					c.Begin = bgzf.OffsetFromVirtual(minoff)
				}
				filtered = append(filtered, c)
			}
		}
		ranges = filtered
	}
	return rangeutil.MergeAtShift(ranges, 16), nil
}
