package tabix

import (
	"fmt"
	"sort"

	"github.com/sentieon/vcflib/bgzf"
	"github.com/sentieon/vcflib/internal/rangeutil"
)

// Builder assembles an Index one record at a time as a file is
// written, mirroring the streaming add()/save() protocol of
// vcflib's Tabix writer: callers feed it strictly non-decreasing
// (contig, start, end, offset) tuples in file order, then call
// Finish to obtain the completed Index ready to be written to disk.
type Builder struct {
	idx *Index

	cur     *refIndex
	curName string
	pos     uint64
	end     uint64
}

// BuilderConfig controls the shape of the index a Builder produces.
// A zero-value BuilderConfig selects a standard TBI index; see
// vcf.Config for how the VCF_INDEX_TYPE environment convention maps
// into this struct.
type BuilderConfig struct {
	// CSI requests a CSI index outright, rather than only promoting
	// to one automatically when a contig's length requires it.
	CSI bool

	// MinShift and Depth override the CSI index's binning shape.
	// Ignored unless CSI is set; both default to the TBI values (14
	// and 5) when zero.
	MinShift uint32
	Depth    uint32

	Header Header
}

// NewBuilder returns a Builder configured per cfg.
func NewBuilder(cfg BuilderConfig) *Builder {
	magic := TBIMagic
	minShift, depth := uint32(14), uint32(5)
	if cfg.CSI {
		magic = CSIMagic
		if cfg.MinShift != 0 {
			minShift = cfg.MinShift
		}
		if cfg.Depth != 0 {
			depth = cfg.Depth
		}
	}
	header := cfg.Header
	if header == (Header{}) {
		header = VCFHeader
	}
	return &Builder{idx: NewIndex(magic, minShift, depth, header)}
}

// AddContigLength informs the builder of a contig's declared length,
// allowing it to promote from TBI to CSI (or to a deeper CSI) before
// any bins for that contig are populated, exactly as vcflib calls
// index.add(None, maxlen, 0, offset) once from emit_header. Callers
// should invoke this for the longest contig in the header before
// adding any records.
func (b *Builder) AddContigLength(maxLen uint64, offset uint64) error {
	return b.add("", maxLen, 0, offset, true)
}

// Add records that a decoded entity on contig spans the half-open
// range [start, end) and that the compressed stream position
// immediately following it is offset (a BGZF virtual offset).
// Records for a single contig must be added in non-decreasing start
// order; Add must be called for every contig in ascending file order,
// never revisiting a contig once a different one has been added.
func (b *Builder) Add(contig string, start, end uint64, offset uint64) error {
	return b.add(contig, start, end, offset, false)
}

func (b *Builder) add(contig string, start, end uint64, offset uint64, isLengthHint bool) error {
	idx := b.idx

	if isLengthHint && start > 0 {
		shift := idx.MinShift
		limit := uint64(1) << shift
		for start > limit {
			limit <<= 1
			shift++
		}
		if shift >= 32 {
			return fmt.Errorf("tabix: some contigs are too long")
		}
		if shift > idx.MinShift+idx.Depth*3 {
			idx.Magic = CSIMagic
			idx.Depth = (shift - idx.MinShift + 2) / 3
		}
	}

	if b.cur != nil && b.curName != contig {
		b.optimize(b.cur)
		b.cur = nil
	}
	if b.cur == nil && contig != "" {
		ref := &refIndex{bins: map[uint32]*bin{}}
		idx.refs[contig] = ref
		idx.Names = append(idx.Names, contig)
		b.cur = ref
		b.curName = contig
		b.pos = 0
	}

	if b.cur != nil {
		ref := b.cur
		maxShift := idx.maxShift()

		be := (end - 1) >> idx.MinShift
		for uint64(len(ref.intervals)) <= be {
			ref.intervals = append(ref.intervals, b.end)
		}

		var binNum uint32
		for shift := idx.MinShift; shift <= maxShift; shift += 3 {
			bs, bEnd := start>>shift, (end-1)>>shift
			if bs == bEnd {
				binNum = binOffset(maxShift, shift) + uint32(bs)
				break
			}
		}
		bn := ref.bins[binNum]
		if bn == nil {
			bn = &bin{}
			ref.bins[binNum] = bn
		}
		if n := len(bn.chunks); n > 0 && bn.chunks[n-1].End.Virtual() == b.end {
			bn.chunks[n-1].End = bgzf.OffsetFromVirtual(offset)
		} else {
			bn.chunks = append(bn.chunks, bgzf.Chunk{
				Begin: bgzf.OffsetFromVirtual(b.end),
				End:   bgzf.OffsetFromVirtual(offset),
			})
		}
		b.pos = start
	}
	b.end = offset
	return nil
}

// Finish flushes the last contig's bins and returns the completed
// Index. The Builder must not be reused afterwards. err is non-nil
// only if a contig turned out to be too long to address even after
// promoting to CSI, which Finish's own zero-length final add cannot
// trigger in practice but is still checked for symmetry with Add.
func (b *Builder) Finish() (*Index, error) {
	if err := b.add("", 0, 0, b.end, false); err != nil {
		return nil, err
	}
	return b.idx, nil
}

// optimize merges sparse fine-grained bins up into their parent and,
// for bins that remain, records the linear-index offset that query
// uses to skip leading chunks. This is vcflib's Tabix.optimize,
// ported one to one.
func (b *Builder) optimize(ref *refIndex) {
	idx := b.idx
	maxShift := idx.maxShift()

	for shift := idx.MinShift; shift <= maxShift; shift += 3 {
		bo := binOffset(maxShift, shift)

		keys := make([]uint32, 0, len(ref.bins))
		for k := range ref.bins {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		for _, binNum := range keys {
			if binNum < bo {
				continue
			}
			if binNum > bo<<3 {
				break
			}
			bn, ok := ref.bins[binNum]
			if !ok {
				continue
			}
			if len(bn.chunks) == 0 {
				delete(ref.bins, binNum)
				continue
			}
			bs := bn.chunks[0].Begin.Virtual() >> 16
			be := bn.chunks[len(bn.chunks)-1].End.Virtual() >> 16
			if be-bs < 65536 && bo > 0 {
				delete(ref.bins, binNum)
				parent := (binNum - 1) >> 3
				pb := ref.bins[parent]
				if pb == nil {
					pb = &bin{}
					ref.bins[parent] = pb
				}
				pb.chunks = rangeutil.MergeAtShift(append(append([]bgzf.Chunk{}, bn.chunks...), pb.chunks...), 16)
			} else if len(ref.intervals) > 0 {
				intv := (binNum - bo) << (shift - idx.MinShift)
				if int(intv) >= len(ref.intervals) {
					intv = uint32(len(ref.intervals) - 1)
				}
				bn.loffset = ref.intervals[intv]
			}
		}
	}
}
