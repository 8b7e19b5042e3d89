package tabix

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sentieon/vcflib/bgzf"
)

func buildSample(t *testing.T, cfg BuilderConfig) *Index {
	t.Helper()
	b := NewBuilder(cfg)
	require.NoError(t, b.AddContigLength(1<<20, 0))

	off := uint64(0)
	add := func(contig string, start, end uint64) {
		off += 100
		require.NoError(t, b.Add(contig, start, end, off))
	}
	add("chr1", 100, 200)
	add("chr1", 1000, 1100)
	add("chr1", 500000, 500100)
	idx, err := b.Finish()
	require.NoError(t, err)
	return idx
}

func TestBuilderProducesTBIByDefault(t *testing.T) {
	idx := buildSample(t, BuilderConfig{})
	require.Equal(t, TBIMagic, idx.Magic)
	require.Equal(t, uint32(14), idx.MinShift)
	require.Equal(t, uint32(5), idx.Depth)
	require.Equal(t, []string{"chr1"}, idx.Names)
}

func TestBuilderCSIConfig(t *testing.T) {
	idx := buildSample(t, BuilderConfig{CSI: true, MinShift: 12, Depth: 6})
	require.Equal(t, CSIMagic, idx.Magic)
	require.Equal(t, uint32(12), idx.MinShift)
	require.Equal(t, uint32(6), idx.Depth)
}

func TestBuilderPromotesLongContigToCSI(t *testing.T) {
	b := NewBuilder(BuilderConfig{})
	// A contig longer than the TBI depth (5) can address at min_shift
	// 14 (2^(14+5*3) = 2^29) forces promotion to CSI with more depth,
	// while staying well short of the shift>=32 "too long" rejection.
	require.NoError(t, b.AddContigLength(1<<30, 0))
	require.NoError(t, b.Add("chr1", 0, 100, 50))
	idx, err := b.Finish()
	require.NoError(t, err)
	require.Equal(t, CSIMagic, idx.Magic)
	require.Greater(t, idx.Depth, uint32(5))
}

func TestAddContigLengthRejectsContigTooLongToAddress(t *testing.T) {
	b := NewBuilder(BuilderConfig{})
	err := b.AddContigLength(uint64(1)<<40, 0)
	require.Error(t, err)
}

func TestQueryFindsOverlappingChunk(t *testing.T) {
	idx := buildSample(t, BuilderConfig{})
	chunks, err := idx.Query("chr1", 150, 160)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
}

func TestQueryMissingContigReturnsNil(t *testing.T) {
	idx := buildSample(t, BuilderConfig{})
	chunks, err := idx.Query("chrX", 0, 100)
	require.NoError(t, err)
	require.Nil(t, chunks)
}

func TestWriteToReadFromTBIRoundTrip(t *testing.T) {
	idx := buildSample(t, BuilderConfig{})

	var buf bytes.Buffer
	require.NoError(t, idx.WriteTo(&buf))

	got, err := ReadFrom(&buf)
	require.NoError(t, err)
	require.Equal(t, idx.Magic, got.Magic)
	require.Equal(t, idx.Names, got.Names)

	chunksWant, err := idx.Query("chr1", 100, 200)
	require.NoError(t, err)
	chunksGot, err := got.Query("chr1", 100, 200)
	require.NoError(t, err)
	require.Equal(t, chunksWant, chunksGot)
}

func TestWriteToReadFromCSIRoundTrip(t *testing.T) {
	idx := buildSample(t, BuilderConfig{CSI: true, MinShift: 12, Depth: 6})

	var buf bytes.Buffer
	require.NoError(t, idx.WriteTo(&buf))

	got, err := ReadFrom(&buf)
	require.NoError(t, err)
	require.Equal(t, CSIMagic, got.Magic)
	require.Equal(t, idx.MinShift, got.MinShift)
	require.Equal(t, idx.Depth, got.Depth)
	require.Equal(t, idx.Names, got.Names)
}

func TestReadFromRejectsUnknownMagic(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0})
	_, err := ReadFrom(buf)
	require.Error(t, err)
}

func TestChunkFromVirtualRoundTrips(t *testing.T) {
	c := chunkFromVirtual(42, 4200)
	require.Equal(t, uint64(42), c.Begin.Virtual())
	require.Equal(t, uint64(4200), c.End.Virtual())
	require.IsType(t, bgzf.Chunk{}, c)
}
