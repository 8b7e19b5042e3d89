// Command vcffilter copies a VCF, keeping only records whose INFO/DP
// meets a minimum, parallelizing across contigs when asked. It exists
// to exercise the whole stack end to end the way
// biogo-hts/paper/examples/flagstat exercises biogo-hts, and is
// grounded on filter_dp.py's filter_vcf/main.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/sentieon/vcflib/shard"
	"github.com/sentieon/vcflib/vcf"
)

func main() {
	in := flag.String("in", "", "input VCF path (.vcf or .vcf.gz)")
	out := flag.String("out", "", "output VCF path (.vcf or .vcf.gz)")
	minDP := flag.Int("min-dp", 10, "minimum INFO/DP to keep a record")
	threads := flag.Int("threads", 1, "worker count; >=2 shards across contigs")
	stepSize := flag.Int("step-size", 10_000_000, "shard size in bases when -threads >= 2")
	flag.Parse()

	if *in == "" || *out == "" {
		log.Fatal("vcffilter: -in and -out are required")
	}

	inVCF, err := vcf.Open(*in, "r", vcf.Config{})
	if err != nil {
		log.Fatalf("vcffilter: opening %s: %v", *in, err)
	}
	reader := inVCF.(*vcf.Reader)
	defer reader.Close()

	outVCF, err := vcf.Open(*out, "w", vcf.Config{})
	if err != nil {
		log.Fatalf("vcffilter: opening %s: %v", *out, err)
	}
	writer := outVCF.(*vcf.Writer)

	if err := writer.WriteHeader(reader.Header); err != nil {
		log.Fatalf("vcffilter: writing header: %v", err)
	}

	if *threads < 2 {
		if err := filterSerial(reader, writer, *minDP); err != nil {
			log.Fatalf("vcffilter: %v", err)
		}
	} else {
		if err := filterSharded(reader, writer, *minDP, *threads, *stepSize); err != nil {
			log.Fatalf("vcffilter: %v", err)
		}
	}

	if err := writer.Close(); err != nil {
		log.Fatalf("vcffilter: closing %s: %v", *out, err)
	}
}

// filterSerial ports filter_dp.py's filter_vcf, run directly against
// the whole file without sharding.
func filterSerial(in *vcf.Reader, out *vcf.Writer, minDP int) error {
	for {
		rec, err := in.Next()
		if err != nil {
			break
		}
		if keep(rec, minDP) {
			if err := out.Emit(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func keep(rec *vcf.Record, minDP int) bool {
	dp, ok := rec.Info["DP"]
	if !ok {
		return false
	}
	n, ok := dp.(int)
	return ok && n >= minDP
}

// filterSharded ports filter_dp.py's multi-threaded branch: it cuts
// the declared contigs into step_size shards and runs the same DP
// filter per shard region under shard.Run, with the *vcf.Reader/*vcf.Writer
// supplying the Projectable/Accumulable capabilities.
func filterSharded(in *vcf.Reader, out *vcf.Writer, minDP, threads, stepSize int) error {
	var regions []shard.Region
	for _, name := range in.Header.ContigOrder {
		regions = append(regions, shard.Region{Contig: name, Begin: 0, End: in.Header.Contigs[name].Length})
	}

	var shards [][]shard.Region
	shard.Cut(regions, stepSize, func(s []shard.Region) {
		shards = append(shards, s)
	})

	mapFn := func(ctx context.Context, args []any) (any, error) {
		view := args[0].(*vcf.View)
		defer view.Close()
		sw := args[1].(*vcf.ShardWriter)
		for {
			rec, err := view.Next()
			if err != nil {
				break
			}
			if keep(rec, minDP) {
				if err := sw.Emit(rec); err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	}

	_, err := shard.Run(context.Background(), shards, []any{in, out}, mapFn, nil, shard.Config{Procs: threads})
	return err
}
