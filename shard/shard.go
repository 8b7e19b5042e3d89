// Package shard partitions a genome into equal-byte-sized work units and
// drives a bounded worker pool over them, reducing results back in strict
// shard order. Ported from vcflib's sharder.py: Cut replaces
// Sharder.cut, Run replaces Sharder.run, and the three capability
// interfaces replace the isinstance(obj, Shardable/ShardResult) checks
// apply() made around each map-function argument.
package shard

// Region is one (contig, begin, end) genomic interval, half-open on end.
type Region struct {
	Contig string
	Begin  int
	End    int
}

// Projectable is implemented by a map-function argument that can hand
// back a shard-scoped view of itself, e.g. a *vcf.Reader returning a
// *vcf.View restricted to one shard's region. Ported from sharder.py's
// Shardable.__shard__.
type Projectable interface {
	Project(contig string, start, end int) any
}

// Accumulable is implemented by a map-function argument that wants to
// merge a completed shard's payload into itself, in strict ascending
// shard order. Ported from sharder.py's Shardable.__accum__.
type Accumulable interface {
	Accumulate(payload any) error
}

// ReducibleData is implemented by a shard-projection that produces a
// payload to hand to the driver once its shard completes, e.g. a
// temp-file writer handing back its file path. Ported from
// sharder.py's ShardResult.__getdata__.
type ReducibleData interface {
	ReduceData() any
}

func project(arg any, r Region) any {
	if p, ok := arg.(Projectable); ok {
		return p.Project(r.Contig, r.Begin, r.End)
	}
	return arg
}

func reduceData(arg any) any {
	if r, ok := arg.(ReducibleData); ok {
		return r.ReduceData()
	}
	return nil
}

func accumulate(arg any, payload any) error {
	if a, ok := arg.(Accumulable); ok {
		return a.Accumulate(payload)
	}
	return nil
}

// Cut partitions regions into a lazy sequence of shards, each shard's
// total span equal to step bytes-of-genome except possibly the last,
// splitting an interval across two shards when it straddles a step
// boundary. Ported from sharder.py's Sharder.cut, which is a Python
// generator; here the callback yield is modeled by invoking emit for
// each completed shard.
func Cut(regions []Region, step int, emit func(shard []Region)) {
	var cur []Region
	size := 0
	for _, r := range regions {
		s, e := r.Begin, r.End
		for s < e {
			n := e - s
			if step-size < n {
				n = step - size
			}
			cur = append(cur, Region{Contig: r.Contig, Begin: s, End: s + n})
			s += n
			size += n
			if size == step {
				emit(cur)
				cur = nil
				size = 0
			}
		}
	}
	if len(cur) > 0 {
		emit(cur)
	}
}
