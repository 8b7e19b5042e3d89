package shard

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCutSplitsOnStepBoundary(t *testing.T) {
	regions := []Region{{Contig: "chr1", Begin: 0, End: 1000}}
	var shards [][]Region
	Cut(regions, 300, func(s []Region) {
		shards = append(shards, append([]Region(nil), s...))
	})
	require.Len(t, shards, 4)
	for _, s := range shards[:3] {
		total := 0
		for _, r := range s {
			total += r.End - r.Begin
		}
		require.Equal(t, 300, total)
	}
	last := shards[3]
	require.Equal(t, 100, last[0].End-last[0].Begin)
}

func TestCutAcrossMultipleContigs(t *testing.T) {
	regions := []Region{
		{Contig: "chr1", Begin: 0, End: 150},
		{Contig: "chr2", Begin: 0, End: 150},
	}
	var shards [][]Region
	Cut(regions, 100, func(s []Region) {
		shards = append(shards, append([]Region(nil), s...))
	})
	require.Len(t, shards, 3)
	require.Len(t, shards[0], 1)
	require.Equal(t, "chr1", shards[0][0].Contig)
	require.Len(t, shards[1], 2)
	require.Equal(t, "chr1", shards[1][0].Contig)
	require.Equal(t, "chr2", shards[1][1].Contig)
}

type fakeProjectable struct {
	mu   sync.Mutex
	seen []Region
}

func (f *fakeProjectable) Project(contig string, start, end int) any {
	return &fakeView{contig: contig, start: start, end: end}
}

type fakeView struct {
	contig     string
	start, end int
}

func (v *fakeView) ReduceData() any { return v.end - v.start }

type fakeAccumulator struct {
	fakeProjectable
	mu    sync.Mutex
	total int
}

func (a *fakeAccumulator) Accumulate(payload any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if payload == nil {
		return nil
	}
	a.total += payload.(int)
	return nil
}

func TestRunReducesInShardOrder(t *testing.T) {
	var order []int
	var mu sync.Mutex

	mapFn := func(ctx context.Context, args []any) (any, error) {
		v := args[0].(*fakeView)
		return v.start, nil
	}
	reduceFn := func(acc, rv any) any {
		mu.Lock()
		order = append(order, rv.(int))
		mu.Unlock()
		return nil
	}

	acc := &fakeAccumulator{}
	src := &fakeProjectable{}
	shards := [][]Region{
		{{Contig: "chr1", Begin: 0, End: 10}},
		{{Contig: "chr1", Begin: 10, End: 20}},
		{{Contig: "chr1", Begin: 20, End: 30}},
	}
	_, err := Run(context.Background(), shards, []any{src, acc}, mapFn, reduceFn, Config{Procs: 4})
	require.NoError(t, err)
	require.Equal(t, []int{0, 10, 20}, order)
	require.Equal(t, 30, acc.total)
}

func TestRunPropagatesMapError(t *testing.T) {
	mapFn := func(ctx context.Context, args []any) (any, error) {
		return nil, errors.New("boom")
	}
	shards := [][]Region{{{Contig: "chr1", Begin: 0, End: 10}}}
	_, err := Run(context.Background(), shards, nil, mapFn, nil, Config{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
}

func TestCutEmitsNothingForEmptyInput(t *testing.T) {
	var shards [][]Region
	Cut(nil, 100, func(s []Region) { shards = append(shards, s) })
	require.Empty(t, shards)
}

func TestCutPreservesOrder(t *testing.T) {
	regions := []Region{{Contig: "chr1", Begin: 0, End: 500}}
	var starts []int
	Cut(regions, 200, func(s []Region) {
		for _, r := range s {
			starts = append(starts, r.Begin)
		}
	})
	require.True(t, sort.IntsAreSorted(starts))
}
