package idx

// BuilderConfig selects the index shape a Builder produces.
type BuilderConfig struct {
	// Type is TypeLinear or TypeIntervalTree; the zero value selects
	// TypeLinear, matching vcflib's default when VCF_INDEX_TYPE is
	// unset.
	Type int32

	// GVCF widens a LinearIndex's starting bin width from
	// DefaultIndexBinWidth to GVCFIndexBinWidth, matching vcflib's
	// special-case for files named "*.g.vcf.idx".
	GVCF bool

	// Filename is recorded in the written Header so a reader can
	// detect a stale index built against a different file.
	Filename string

	// IdxPath is the sidecar path the Builder's finished Index will be
	// written to. NewBuilder rejects one that does not end in ".idx",
	// matching TribbleIndex.__init__'s constructor check.
	IdxPath string
}

// Builder assembles an Index one record at a time, mirroring
// vcflib's TribbleIndex add()/save() streaming protocol: callers feed
// it strictly non-decreasing (contig, start, end, offset) tuples in
// file order, then call Finish.
type Builder struct {
	cfg BuilderConfig

	names []string
	refs  map[string]chromIndex

	cur     chromIndex
	curName string
	pos     uint64
	end     uint64
}

// NewBuilder returns a Builder configured per cfg, or an error if
// cfg.IdxPath does not end in ".idx".
func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if err := ValidatePath(cfg.IdxPath); err != nil {
		return nil, err
	}
	if cfg.Type != TypeIntervalTree {
		cfg.Type = TypeLinear
	}
	return &Builder{cfg: cfg, refs: map[string]chromIndex{}}, nil
}

// Add records that a decoded entity on contig spans the half-open
// range [start, end) and that the uncompressed file position
// immediately following it is offset.
func (b *Builder) Add(contig string, start, end uint64, offset uint64) {
	if b.cur != nil && b.curName != contig {
		b.cur.done()
		b.cur = nil
	}
	if b.cur == nil && contig != "" {
		switch b.cfg.Type {
		case TypeIntervalTree:
			b.cur = newIntervalTreeIndex(contig, b.end, MaxFeaturesPerInterval)
		default:
			width := int64(DefaultIndexBinWidth)
			if b.cfg.GVCF {
				width = GVCFIndexBinWidth
			}
			b.cur = newLinearIndex(contig, b.end, width)
		}
		b.names = append(b.names, contig)
		b.refs[contig] = b.cur
		b.curName = contig
		b.pos = 0
	}
	if b.cur != nil {
		b.cur.add(start, end, offset)
		b.pos = start
	}
	b.end = offset
}

// Finish flushes the last contig's state and returns the completed
// Index. The Builder must not be reused afterwards.
func (b *Builder) Finish() *Index {
	if b.cur != nil {
		b.cur.done()
		b.cur = nil
	}
	return &Index{
		Header: Header{Type: b.cfg.Type, Filename: b.cfg.Filename, Filesize: b.end},
		names:  b.names,
		refs:   b.refs,
	}
}
