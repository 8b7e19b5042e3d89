package idx

import (
	"bytes"
	"container/heap"
	"encoding/binary"
	"fmt"
	"sort"
)

// intervalEntry is one leaf of an intervalTree: a position range and
// the file span it corresponds to. The very first entry in every tree
// is a sentinel with no span, matching vcflib's IntervalTree
// initializer.
type intervalEntry struct {
	start, end int64
	span       *Span
}

// intervalTree is a split-point sweep-line interval index: Update
// partitions the position axis into maximal runs where the same set
// of entries is active, so Query can binary-search to the run
// containing a point and return every entry live at that point.
// Ported from vcflib's IntervalTree.
type intervalTree struct {
	entries []intervalEntry
	splits  []int64
	values  [][]int
}

func newIntervalTree() *intervalTree {
	return &intervalTree{entries: []intervalEntry{{start: 1<<32 - 1, end: 1<<32 - 1}}}
}

func (t *intervalTree) insert(s, e int64, span Span) {
	t.entries = append(t.entries, intervalEntry{start: s, end: e, span: &span})
}

type sweepItem struct {
	end int64
	idx int
}

type sweepHeap []sweepItem

func (h sweepHeap) Len() int            { return len(h) }
func (h sweepHeap) Less(i, j int) bool  { return h[i].end < h[j].end }
func (h sweepHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *sweepHeap) Push(x interface{}) { *h = append(*h, x.(sweepItem)) }
func (h *sweepHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

func (t *intervalTree) update() {
	sort.SliceStable(t.entries, func(i, j int) bool {
		if t.entries[i].start != t.entries[j].start {
			return t.entries[i].start < t.entries[j].start
		}
		return t.entries[i].end < t.entries[j].end
	})

	var h sweepHeap
	cur := int64(0)
	var splits []int64
	var values [][]int

	snapshot := func() []int {
		vals := make([]int, len(h))
		for i, it := range h {
			vals[i] = it.idx
		}
		return vals
	}

	for i, v := range t.entries {
		for len(h) > 0 && h[0].end <= v.start {
			splits = append(splits, cur, h[0].end)
			values = append(values, snapshot())
			cur = heap.Pop(&h).(sweepItem).end
		}
		if len(h) > 0 && cur < v.start {
			splits = append(splits, cur, v.start)
			values = append(values, snapshot())
		}
		cur = v.start
		heap.Push(&h, sweepItem{end: v.end, idx: i})
	}
	t.splits = splits
	t.values = values
}

func (t *intervalTree) query(s, e int64) []Span {
	i := sort.Search(len(t.splits), func(k int) bool { return t.splits[k] > s }) / 2
	seen := make(map[int]bool)
	var out []Span
	for i < len(t.values) {
		if e <= t.splits[i*2] {
			break
		}
		for _, idx := range t.values[i] {
			if seen[idx] {
				continue
			}
			seen[idx] = true
			if sp := t.entries[idx].span; sp != nil {
				out = append(out, *sp)
			}
		}
		i++
	}
	return out
}

// intervalTreeIndex groups consecutive records on one contig into
// density-bounded intervals, each recording the file span it spans,
// then indexes those intervals with an intervalTree. Ported from
// vcflib's IntervalTreeIndex.
type intervalTreeIndex struct {
	chrom   string
	density int

	tree *intervalTree

	curStart, curEnd     int64
	curOffBegin, curOffEnd uint64
	curCount             int
}

func newIntervalTreeIndex(chrom string, off uint64, density int) *intervalTreeIndex {
	return &intervalTreeIndex{
		chrom:       chrom,
		density:     density,
		tree:        newIntervalTree(),
		curOffBegin: off,
		curOffEnd:   off,
	}
}

func (x *intervalTreeIndex) contig() string { return x.chrom }

func (x *intervalTreeIndex) add(s, e, off uint64) {
	if x.curCount == x.density {
		x.tree.insert(x.curStart, x.curEnd, Span{Begin: x.curOffBegin, End: x.curOffEnd})
		x.curStart = int64(s)
		x.curOffBegin = x.curOffEnd
		x.curCount = 0
	}
	x.curEnd = int64(e)
	x.curOffEnd = off
	x.curCount++
}

func (x *intervalTreeIndex) done() {
	if x.curCount > 0 {
		x.tree.insert(x.curStart, x.curEnd, Span{Begin: x.curOffBegin, End: x.curOffEnd})
	}
	x.tree.update()
}

func (x *intervalTreeIndex) query(s, e uint64) []Span {
	spans := x.tree.query(int64(s), int64(e))
	return mergeSpans(spans)
}

// mergeSpans merges overlapping or abutting spans exactly as
// vcflib's TribbleIndex.merge(ranges, 0) does: plain interval merge
// with no shift bucketing, since .idx spans address an uncompressed
// file, not a BGZF virtual offset.
func mergeSpans(spans []Span) []Span {
	if len(spans) == 0 {
		return nil
	}
	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Begin != sorted[j].Begin {
			return sorted[i].Begin < sorted[j].Begin
		}
		return sorted[i].End < sorted[j].End
	})
	out := make([]Span, 0, len(sorted))
	cur := sorted[0]
	for _, r := range sorted[1:] {
		if r.Begin > cur.End {
			out = append(out, cur)
			cur = r
			continue
		}
		if r.End > cur.End {
			cur.End = r.End
		}
	}
	out = append(out, cur)
	return out
}

func (x *intervalTreeIndex) encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(x.chrom)
	buf.WriteByte(0)

	var n int32
	for _, e := range x.tree.entries {
		if e.span != nil {
			n++
		}
	}
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(n))
	buf.Write(hdr[:])

	for _, e := range x.tree.entries {
		if e.span == nil {
			continue
		}
		var rec [20]byte
		binary.LittleEndian.PutUint32(rec[0:4], uint32(int32(e.start+1)))
		binary.LittleEndian.PutUint32(rec[4:8], uint32(int32(e.end)))
		binary.LittleEndian.PutUint64(rec[8:16], e.span.Begin)
		binary.LittleEndian.PutUint32(rec[16:20], uint32(int32(e.span.End-e.span.Begin)))
		buf.Write(rec[:])
	}
	return buf.Bytes()
}

func (x *intervalTreeIndex) decode(data []byte, off int) (int, error) {
	nul := bytes.IndexByte(data[off:], 0)
	if nul < 0 {
		return off, fmt.Errorf("idx: interval tree index: unterminated contig name")
	}
	x.chrom = string(data[off : off+nul])
	off += nul + 1

	if off+4 > len(data) {
		return off, fmt.Errorf("idx: interval tree index: truncated count for %s", x.chrom)
	}
	n := int32(binary.LittleEndian.Uint32(data[off:]))
	off += 4

	x.tree = newIntervalTree()
	for i := int32(0); i < n; i++ {
		if off+20 > len(data) {
			return off, fmt.Errorf("idx: interval tree index: truncated record for %s", x.chrom)
		}
		sloc := int32(binary.LittleEndian.Uint32(data[off:]))
		eloc := int32(binary.LittleEndian.Uint32(data[off+4:]))
		boff := binary.LittleEndian.Uint64(data[off+8:])
		size := int32(binary.LittleEndian.Uint32(data[off+16:]))
		off += 20
		x.tree.insert(int64(sloc)-1, int64(eloc), Span{Begin: boff, End: boff + uint64(size)})
	}
	x.tree.update()
	return off, nil
}
