// Package rangeutil provides the virtual-offset range merge used by
// the tabix-family binning index when collapsing candidate chunk lists
// returned by a bin query. The Tribble index in package idx merges its
// plain byte spans with its own mergeSpans instead.
package rangeutil

import (
	"sort"

	"github.com/sentieon/vcflib/bgzf"
)

// MergeAtShift sorts chunks and merges any two whose begin/end, right
// shifted by shift bits, land in the same or an overlapping bucket.
// With shift=16 this merges chunks whose compressed-block boundaries
// (the upper 48 bits of a virtual offset) are contiguous or
// overlapping, discarding the sub-block byte offset from the
// comparison; this is how tabix-family queries collapse many small
// per-bin chunks addressing the same BGZF block run into one read.
func MergeAtShift(ranges []bgzf.Chunk, shift uint) []bgzf.Chunk {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]bgzf.Chunk, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		bi, bj := sorted[i].Begin.Virtual(), sorted[j].Begin.Virtual()
		if bi != bj {
			return bi < bj
		}
		return sorted[i].End.Virtual() < sorted[j].End.Virtual()
	})

	out := make([]bgzf.Chunk, 0, len(sorted))
	cur := sorted[0]
	for _, r := range sorted[1:] {
		if r.Begin.Virtual()>>shift > cur.End.Virtual()>>shift {
			out = append(out, cur)
			cur = r
			continue
		}
		if r.End.Virtual() > cur.End.Virtual() {
			cur.End = r.End
		}
	}
	out = append(out, cur)
	return out
}
