package vcf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShardWriterFiltersOutsideRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.vcf")
	wc, err := Open(path, "w", Config{})
	require.NoError(t, err)
	w := wc.(*Writer)
	h, err := ParseHeader(sampleHeaderLines)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(h))

	sw := w.Project("chr1", 100, 200).(*ShardWriter)
	in := &Record{Chrom: "chr1", Pos: 150, Ref: "A", End: 151, Info: map[string]any{}}
	out := &Record{Chrom: "chr1", Pos: 500, Ref: "A", End: 501, Info: map[string]any{}}
	require.NoError(t, sw.Emit(in))
	require.NoError(t, sw.Emit(out))

	payload := sw.ReduceData()
	require.NotNil(t, payload)
	data, err := os.ReadFile(payload.(string))
	require.NoError(t, err)
	require.Contains(t, string(data), "151")
	require.NotContains(t, string(data), "501")

	require.NoError(t, w.Accumulate(payload))
	require.NoError(t, w.Close())

	_, err = os.Stat(payload.(string))
	require.True(t, os.IsNotExist(err))
}

func TestDeriveCoordsNoInfoEnd(t *testing.T) {
	chrom, pos, end := deriveCoords("chr1\t101\t.\tACG\tA\t.\t.\t.")
	require.Equal(t, "chr1", chrom)
	require.Equal(t, uint64(100), pos)
	require.Equal(t, uint64(103), end)
}
