// Package idx implements the Tribble ".idx" index format used for
// uncompressed, plain-text VCF files: a small, whole-file-resident
// sidecar that maps a contig and position range to the byte offsets a
// reader should seek to, without requiring the target file itself to
// be block-compressed. Two index shapes are supported, matching
// vcflib's TribbleIndex: a fixed-width LinearIndex bucketing records
// into evenly sized position bins, and an IntervalTreeIndex grouping
// consecutive records into density-bounded intervals addressed with a
// split-point sweep tree.
package idx

import (
	"fmt"
	"strings"
)

// Magic is the fixed four-byte signature ("TIDX" read little-endian)
// at the start of every Tribble index file.
const Magic int32 = 0x58444954

// Version is the only on-disk layout version this package writes or
// accepts.
const Version int32 = 3

// Index type discriminators, stored in Header.Type.
const (
	TypeLinear       int32 = 1
	TypeIntervalTree int32 = 2
)

// SequenceDictionaryFlag, historically OR'd into Header.Flags when a
// sequence dictionary follows the index; vcflib never sets it, but
// a reader should not reject a file that does.
const SequenceDictionaryFlag int32 = 0x8000

// Bin sizing constants controlling how a LinearIndex's Builder
// buckets records, and how many records an IntervalTreeIndex groups
// per tree leaf.
const (
	DefaultIndexBinWidth   = 8000
	GVCFIndexBinWidth      = 128000
	MaxFeaturesPerBin      = 100
	MaxFeaturesPerInterval = 600
)

// ValidatePath rejects an idx sidecar path that does not end in
// ".idx", matching TribbleIndex.__init__'s suffix check on the path
// passed to it for both read and write modes.
func ValidatePath(idxf string) error {
	if !strings.HasSuffix(idxf, ".idx") {
		return fmt.Errorf("idx: file name suffix is not .idx: %s", idxf)
	}
	return nil
}

// Span is a half-open byte range [Begin, End) in the uncompressed
// target file that a query may need to read to find all matching
// records.
type Span struct {
	Begin, End uint64
}

// Header carries the Tribble file-level metadata: the name, size and
// modification time of the file the index was built for, an optional
// checksum, and a small property bag mirrored from the on-disk
// format. vcflib never populates MD5 or Properties; they round-trip
// for files produced by other Tribble-format writers.
type Header struct {
	Type       int32
	Filename   string
	Filesize   uint64
	Timestamp  uint64
	MD5        []byte
	Flags      int32
	Properties [][2]string
}

type chromIndex interface {
	contig() string
	query(s, e uint64) []Span
	add(s, e, off uint64)
	done()
	encode() []byte
	decode(data []byte, off int) (int, error)
}

// Index is a loaded or assembled Tribble index.
type Index struct {
	Header Header

	names []string
	refs  map[string]chromIndex
}

// Query returns the spans of the uncompressed target file that must
// be scanned to find every record on contig overlapping the
// half-open range [start, end).
func (x *Index) Query(contig string, start, end uint64) []Span {
	ci, ok := x.refs[contig]
	if !ok {
		return nil
	}
	return ci.query(start, end)
}

// Names lists the indexed contigs in file order.
func (x *Index) Names() []string {
	return x.names
}

func (x *Index) String() string {
	return fmt.Sprintf("idx.Index{type=%d, contigs=%d}", x.Header.Type, len(x.names))
}
