package idx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildLinear(t *testing.T) *Index {
	t.Helper()
	b, err := NewBuilder(BuilderConfig{Type: TypeLinear, Filename: "sample.vcf", IdxPath: "sample.vcf.idx"})
	require.NoError(t, err)
	off := uint64(0)
	add := func(contig string, start, end uint64) {
		off += 37
		b.Add(contig, start, end, off)
	}
	add("chr1", 100, 200)
	add("chr1", 9000, 9100)
	add("chr1", 50000, 50100)
	add("chr2", 10, 50)
	return b.Finish()
}

func buildIntervalTree(t *testing.T) *Index {
	t.Helper()
	b, err := NewBuilder(BuilderConfig{Type: TypeIntervalTree, IdxPath: "sample.vcf.idx"})
	require.NoError(t, err)
	off := uint64(0)
	add := func(contig string, start, end uint64) {
		off += 41
		b.Add(contig, start, end, off)
	}
	add("chr1", 100, 200)
	add("chr1", 9000, 9100)
	add("chr1", 50000, 50100)
	return b.Finish()
}

func TestLinearIndexQueryFindsBlock(t *testing.T) {
	idx := buildLinear(t)
	spans := idx.Query("chr1", 9000, 9050)
	require.NotEmpty(t, spans)
	require.Equal(t, []string{"chr1", "chr2"}, idx.Names())
}

func TestLinearIndexQueryUnknownContig(t *testing.T) {
	idx := buildLinear(t)
	require.Nil(t, idx.Query("chrX", 0, 100))
}

func TestLinearIndexWriteToReadFromRoundTrip(t *testing.T) {
	idx := buildLinear(t)
	idx.Stamp(idx.Header.Filesize)

	var buf bytes.Buffer
	require.NoError(t, idx.WriteTo(&buf))

	got, err := ReadFrom(&buf)
	require.NoError(t, err)
	require.Equal(t, TypeLinear, got.Header.Type)
	require.Equal(t, idx.Names(), got.Names())

	want := idx.Query("chr1", 9000, 9050)
	gotSpans := got.Query("chr1", 9000, 9050)
	require.Equal(t, want, gotSpans)
}

func TestIntervalTreeIndexQueryFindsOverlap(t *testing.T) {
	idx := buildIntervalTree(t)
	spans := idx.Query("chr1", 150, 160)
	require.NotEmpty(t, spans)
}

func TestIntervalTreeIndexWriteToReadFromRoundTrip(t *testing.T) {
	idx := buildIntervalTree(t)

	var buf bytes.Buffer
	require.NoError(t, idx.WriteTo(&buf))

	got, err := ReadFrom(&buf)
	require.NoError(t, err)
	require.Equal(t, TypeIntervalTree, got.Header.Type)

	want := idx.Query("chr1", 150, 160)
	gotSpans := got.Query("chr1", 150, 160)
	require.Equal(t, want, gotSpans)
}

func TestReadFromRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBuffer(make([]byte, 12))
	_, err := ReadFrom(buf)
	require.Error(t, err)
}

func TestNewBuilderRejectsNonIdxPath(t *testing.T) {
	_, err := NewBuilder(BuilderConfig{Type: TypeLinear, IdxPath: "sample.vcf"})
	require.Error(t, err)
}

func TestMergeSpansCoalescesOverlaps(t *testing.T) {
	got := mergeSpans([]Span{{Begin: 0, End: 10}, {Begin: 5, End: 20}, {Begin: 100, End: 110}})
	require.Equal(t, []Span{{Begin: 0, End: 20}, {Begin: 100, End: 110}}, got)
}
