// Package vcf implements the VCF text layer: header parsing and
// merging, typed INFO/FORMAT field codecs, record parse/format, and
// the Reader/Writer pair that ties a BGZF or plain file to its tabix
// or Tribble index. Ported from vcflib's vcf.py, field for field.
package vcf

import (
	"regexp"
	"strconv"
	"strings"
)

// Contig is one parsed "##contig=<ID=...,length=...>" header line.
type Contig struct {
	ID     string
	Length int
	Extra  map[string]string
}

// NumberKind classifies a header field's Number attribute.
type NumberKind int

const (
	// NumberFixed means the field always carries Count values.
	// Number=0 is never NumberFixed; ParseNumber maps it to NumberFlag.
	NumberFixed NumberKind = iota
	// NumberPerAlt is VCF Number=A: one value per ALT allele.
	NumberPerAlt
	// NumberPerAllele is VCF Number=R: one value per allele,
	// reference included.
	NumberPerAllele
	// NumberGenotype is VCF Number=G: one value per possible
	// genotype, given the sample's ploidy.
	NumberGenotype
	// NumberUnknown is VCF Number=.: an unspecified, variable count.
	NumberUnknown
	// NumberFlag is VCF Number=0: a bare presence marker, carried as
	// its own enum value (rather than folded into NumberFixed(0)) so
	// callers can switch on Kind without also checking Count.
	NumberFlag
)

// Number is a parsed VCF Number attribute.
type Number struct {
	Kind  NumberKind
	Count int // meaningful only when Kind == NumberFixed
}

// ParseNumber decodes a raw VCF Number string ("0", "1", "A", "R",
// "G", ".", or any other non-negative integer).
func ParseNumber(s string) Number {
	switch s {
	case "A":
		return Number{Kind: NumberPerAlt}
	case "R":
		return Number{Kind: NumberPerAllele}
	case "G":
		return Number{Kind: NumberGenotype}
	case ".":
		return Number{Kind: NumberUnknown}
	case "0":
		return Number{Kind: NumberFlag}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Number{Kind: NumberUnknown}
	}
	return Number{Kind: NumberFixed, Count: n}
}

// isScalar reports whether a field with this Number carries exactly
// one raw value per occurrence (Flag included), matching vcf.py's
// "Number in ('0', '1')" special case in parse_field/format_field.
func (n Number) isScalar() bool {
	return n.Kind == NumberFlag || (n.Kind == NumberFixed && n.Count == 1)
}

// FieldDef is a parsed "##INFO=<...>" or "##FORMAT=<...>" catalogue
// entry.
type FieldDef struct {
	ID          string
	Number      Number
	Type        string
	Description string
}

// Header holds a VCF file's header: the raw lines in file order (used
// by Merge and to reproduce a byte-identical header on emit) plus the
// catalogues parsed out of them.
type Header struct {
	Lines []string

	// ContigOrder lists contig IDs in the order their "##contig=" lines
	// appeared in the header, matching vcf.py's OrderedDict-backed
	// self.contigs so callers that must iterate contigs deterministically
	// (sharding, header re-emission) see file order rather than Go's
	// randomized map order.
	ContigOrder []string
	Contigs     map[string]Contig
	Alts    map[string]map[string]string
	Filters map[string]map[string]string
	Infos   map[string]*FieldDef
	Formats map[string]*FieldDef
	Samples []string
}

var kvPattern = regexp.MustCompile(`(.*?)=(".*?"|.*?)(?:,|$)`)

// parseAngleFields extracts the comma-separated key=value (or
// key="quoted, value") pairs between the first '<' and first '>' in
// line, matching vcf.py's parse_line.
func parseAngleFields(line string) map[string]string {
	s := strings.Index(line, "<")
	e := strings.Index(line, ">")
	if s < 0 || e < 0 || e <= s {
		return nil
	}
	content := line[s+1 : e]
	out := map[string]string{}
	for _, m := range kvPattern.FindAllStringSubmatch(content, -1) {
		if m[1] == "" {
			continue
		}
		out[m[1]] = m[2]
	}
	return out
}

func parseContig(kv map[string]string) Contig {
	c := Contig{ID: kv["ID"], Extra: map[string]string{}}
	for k, v := range kv {
		switch k {
		case "ID":
		case "length":
			if n, err := strconv.Atoi(v); err == nil {
				c.Length = n
			}
		default:
			c.Extra[k] = v
		}
	}
	return c
}

func parseFieldDef(kv map[string]string) FieldDef {
	return FieldDef{
		ID:          kv["ID"],
		Number:      ParseNumber(kv["Number"]),
		Type:        kv["Type"],
		Description: kv["Description"],
	}
}

// ParseHeader builds a Header's catalogues from its raw lines,
// ported from vcf.py's parse_header.
func ParseHeader(lines []string) (*Header, error) {
	h := &Header{
		Lines:   append([]string(nil), lines...),
		Contigs: map[string]Contig{},
		Alts:    map[string]map[string]string{},
		Filters: map[string]map[string]string{},
		Infos:   map[string]*FieldDef{},
		Formats: map[string]*FieldDef{},
	}
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "##contig="):
			c := parseContig(parseAngleFields(line[2:]))
			if _, ok := h.Contigs[c.ID]; !ok {
				h.ContigOrder = append(h.ContigOrder, c.ID)
			}
			h.Contigs[c.ID] = c
		case strings.HasPrefix(line, "##ALT="):
			kv := parseAngleFields(line[2:])
			h.Alts[kv["ID"]] = kv
		case strings.HasPrefix(line, "##FILTER="):
			kv := parseAngleFields(line[2:])
			h.Filters[kv["ID"]] = kv
		case strings.HasPrefix(line, "##INFO="):
			def := parseFieldDef(parseAngleFields(line[2:]))
			h.Infos[def.ID] = &def
		case strings.HasPrefix(line, "##FORMAT="):
			def := parseFieldDef(parseAngleFields(line[2:]))
			h.Formats[def.ID] = &def
		case strings.HasPrefix(line, "#CHROM"):
			fields := strings.Split(line[1:], "\t")
			if len(fields) > 9 {
				h.Samples = fields[9:]
			}
		}
	}
	return h, nil
}

// MaxContigLength returns the largest declared contig length, used to
// decide whether a tabix index must be promoted from TBI to CSI
// before any record is written (vcf.py's emit_header: "maxlen =
// max(...)").
func (h *Header) MaxContigLength() int {
	max := 0
	for _, c := range h.Contigs {
		if c.Length > max {
			max = c.Length
		}
	}
	return max
}
