package vcf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var sampleHeaderLines = []string{
	`##fileformat=VCFv4.2`,
	`##contig=<ID=chr1,length=10000>`,
	`##INFO=<ID=DP,Number=1,Type=Integer,Description="Depth">`,
	`##INFO=<ID=AC,Number=A,Type=Integer,Description="Allele count">`,
	`##INFO=<ID=DB,Number=0,Type=Flag,Description="In dbSNP">`,
	`##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">`,
	`##FORMAT=<ID=AD,Number=R,Type=Integer,Description="Allele depth">`,
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tNA12878",
}

func TestParseHeaderCatalogues(t *testing.T) {
	h, err := ParseHeader(sampleHeaderLines)
	require.NoError(t, err)
	require.Equal(t, 10000, h.Contigs["chr1"].Length)
	require.Equal(t, NumberFixed, h.Infos["DP"].Number.Kind)
	require.Equal(t, NumberPerAlt, h.Infos["AC"].Number.Kind)
	require.Equal(t, NumberFlag, h.Infos["DB"].Number.Kind)
	require.Equal(t, []string{"NA12878"}, h.Samples)
	require.Equal(t, 10000, h.MaxContigLength())
}

func TestParseRecordDecodesTypedFields(t *testing.T) {
	h, err := ParseHeader(sampleHeaderLines)
	require.NoError(t, err)

	line := "chr1\t101\trs1\tA\tG,T\t30.00\tPASS\tDP=20;AC=3,1;DB\tGT:AD\t0/1:10,5,2"
	rec, err := h.ParseRecord(line)
	require.NoError(t, err)
	require.Equal(t, "chr1", rec.Chrom)
	require.Equal(t, 100, rec.Pos)
	require.Equal(t, []string{"G", "T"}, rec.Alt)
	require.Equal(t, 30.0, *rec.Qual)
	require.Equal(t, 20, rec.Info["DP"])
	require.Equal(t, []any{3, 1}, rec.Info["AC"])
	require.Equal(t, true, rec.Info["DB"])
	require.Equal(t, 101, rec.End) // Pos + len(Ref)
	require.Equal(t, "0/1", rec.Samples[0]["GT"])
	require.Equal(t, []any{10, 5, 2}, rec.Samples[0]["AD"])
}

func TestParseRecordUsesInfoEnd(t *testing.T) {
	h, err := ParseHeader(sampleHeaderLines)
	require.NoError(t, err)
	rec, err := h.ParseRecord("chr1\t101\t.\tA\t<DEL>\t.\t.\tEND=200")
	require.NoError(t, err)
	require.Equal(t, 200, rec.End)
}

func TestFormatRecordRoundTrip(t *testing.T) {
	h, err := ParseHeader(sampleHeaderLines)
	require.NoError(t, err)

	line := "chr1\t101\trs1\tA\tG,T\t30.00\tPASS\tAC=3,1;DB;DP=20\tGT:AD\t0/1:10,5,2"
	rec, err := h.ParseRecord(line)
	require.NoError(t, err)

	rec.line = ""
	got := h.FormatRecord(rec)
	require.Equal(t, line, got)
}

func TestFormatRecordEmptyFields(t *testing.T) {
	h, err := ParseHeader(sampleHeaderLines[:len(sampleHeaderLines)-1])
	require.NoError(t, err)
	rec := &Record{Chrom: "chr1", Pos: 5, Ref: "A", End: 6, Info: map[string]any{}}
	got := h.FormatRecord(rec)
	require.Equal(t, "chr1\t6\t\tA\t.\t.\t.\t.", got)
}

func TestHeaderMergeUpdateAndRemove(t *testing.T) {
	h, err := ParseHeader(sampleHeaderLines)
	require.NoError(t, err)

	merged := h.Merge(h,
		[]string{`##INFO=<ID=NEW,Number=1,Type=Integer,Description="New field">`},
		[]string{`##FORMAT=<ID=AD,Number=R,Type=Integer,Description="Allele depth">`},
	)
	require.NotNil(t, merged.Infos["NEW"])
	require.Nil(t, merged.Formats["AD"])
	require.NotNil(t, merged.Formats["GT"])
}

func TestHeaderMergePreservesGroupOrder(t *testing.T) {
	h, err := ParseHeader(sampleHeaderLines)
	require.NoError(t, err)
	merged := h.Merge(h, nil, nil)
	require.Equal(t, h.Lines, merged.Lines)
}

func TestSortFieldForAltsPerAllele(t *testing.T) {
	h, err := ParseHeader(sampleHeaderLines)
	require.NoError(t, err)
	got := h.SortFieldForAlts([]string{"T", "G"}, "AD", []any{10, 5, 2})
	require.Equal(t, []any{2, 10, 5}, got)
}

func TestSortFieldForAltsPerAlt(t *testing.T) {
	h, err := ParseHeader(sampleHeaderLines)
	require.NoError(t, err)
	got := h.SortFieldForAlts([]string{"T", "G"}, "AC", []any{3, 1})
	require.Equal(t, []any{1, 3}, got)
}

func TestWriterReaderPlainRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.vcf")

	wc, err := Open(path, "w", Config{})
	require.NoError(t, err)
	w := wc.(*Writer)
	h, err := ParseHeader(sampleHeaderLines)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(h))

	rec, err := h.ParseRecord("chr1\t101\trs1\tA\tG\t30.00\tPASS\tDP=20\tGT\t0/1")
	require.NoError(t, err)
	rec.line = ""
	require.NoError(t, w.Emit(rec))
	require.NoError(t, w.Close())

	_, err = os.Stat(path + ".idx")
	require.NoError(t, err)

	rc, err := Open(path, "r", Config{})
	require.NoError(t, err)
	r := rc.(*Reader)
	got, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, "chr1", got.Chrom)
	require.Equal(t, 100, got.Pos)
	require.NoError(t, r.Close())
}

func TestConcurrentViewsDoNotShareReadHandle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.vcf.gz")

	h, err := ParseHeader([]string{
		`##fileformat=VCFv4.2`,
		`##contig=<ID=chr1,length=10000>`,
		`##contig=<ID=chr2,length=10000>`,
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO",
	})
	require.NoError(t, err)

	wc, err := Open(path, "w", Config{})
	require.NoError(t, err)
	w := wc.(*Writer)
	require.NoError(t, w.WriteHeader(h))

	const n = 200
	for _, contig := range []string{"chr1", "chr2"} {
		for i := 0; i < n; i++ {
			rec, err := h.ParseRecord(fmt.Sprintf("%s\t%d\t.\tA\tG\t.\t.\t.", contig, 1+i))
			require.NoError(t, err)
			require.NoError(t, w.Emit(rec))
		}
	}
	require.NoError(t, w.Close())

	rc, err := Open(path, "r", Config{})
	require.NoError(t, err)
	r := rc.(*Reader)
	defer r.Close()

	var wg sync.WaitGroup
	var mu sync.Mutex
	counts := map[string]int{}
	for _, contig := range []string{"chr1", "chr2"} {
		contig := contig
		wg.Add(1)
		go func() {
			defer wg.Done()
			view := r.Range(contig, 0, 10000)
			defer view.Close()
			for {
				rec, err := view.Next()
				if err != nil {
					break
				}
				require.Equal(t, contig, rec.Chrom)
				mu.Lock()
				counts[contig]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, n, counts["chr1"])
	require.Equal(t, n, counts["chr2"])
}

func TestOpenRejectsStdinForRead(t *testing.T) {
	_, err := Open("-", "r", Config{})
	require.Error(t, err)
}

func TestDeriveCoordsFindsUnescapedEnd(t *testing.T) {
	chrom, pos, end := deriveCoords("chr1\t101\t.\tA\t<DEL>\t.\t.\tSVTYPE=DEL;END=500")
	require.Equal(t, "chr1", chrom)
	require.Equal(t, uint64(100), pos)
	require.Equal(t, uint64(500), end)
}
