package vcf

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Record is one parsed VCF data line, ported from vcf.py's Variant.
// Pos and End are 0-based half-open.
type Record struct {
	Chrom   string
	Pos     int
	ID      string
	Ref     string
	Alt     []string
	Qual    *float64
	Filter  []string
	Info    map[string]any
	Samples []map[string]any
	End     int

	line string // cache populated by FormatRecord, cleared on hand construction
}

// ParseRecord tokenizes one tab-separated VCF data line against h's
// INFO/FORMAT catalogues, ported from vcf.py's VCF.parse.
func (h *Header) ParseRecord(line string) (*Record, error) {
	vals := strings.Split(line, "\t")
	if len(vals) < 8 {
		return nil, fmt.Errorf("vcf: record has only %d columns", len(vals))
	}

	pos, err := strconv.Atoi(vals[1])
	if err != nil {
		return nil, fmt.Errorf("vcf: bad POS %q: %w", vals[1], err)
	}
	pos--

	var alt []string
	if vals[4] != "." {
		alt = strings.Split(vals[4], ",")
	}

	var qual *float64
	if vals[5] != "." {
		q, err := strconv.ParseFloat(vals[5], 64)
		if err != nil {
			return nil, fmt.Errorf("vcf: bad QUAL %q: %w", vals[5], err)
		}
		qual = &q
	}

	var filter []string
	if vals[6] != "." {
		filter = strings.Split(vals[6], ";")
	}

	info := map[string]any{}
	if vals[7] != "." {
		for _, kv := range strings.Split(vals[7], ";") {
			k, v, isFlag := splitKV(kv)
			info[k] = decodeFieldValue(h.Infos[k], v, isFlag)
		}
	}

	var fmts []string
	if len(vals) >= 9 && vals[8] != "." {
		fmts = strings.Split(vals[8], ":")
	}

	var samples []map[string]any
	for _, sampleCol := range vals[9:] {
		fields := strings.Split(sampleCol, ":")
		s := map[string]any{}
		for i, k := range fmts {
			if i >= len(fields) {
				break
			}
			s[k] = decodeFieldValue(h.Formats[k], fields[i], false)
		}
		samples = append(samples, s)
	}

	end := pos + len(vals[3])
	if e, ok := info["END"]; ok {
		switch n := e.(type) {
		case int:
			end = n
		case string:
			if x, err := strconv.Atoi(n); err == nil {
				end = x
			}
		}
	}

	return &Record{
		Chrom:   vals[0],
		Pos:     pos,
		ID:      vals[2],
		Ref:     vals[3],
		Alt:     alt,
		Qual:    qual,
		Filter:  filter,
		Info:    info,
		Samples: samples,
		End:     end,
		line:    line,
	}, nil
}

// FormatRecord renders v back to its tab-separated VCF text form,
// ported from vcf.py's VCF.format: INFO/FORMAT keys are emitted
// sorted, GT always leads the per-sample FORMAT key list, and Number/
// Type govern scalar-vs-slice re-encoding.
func (h *Header) FormatRecord(v *Record) string {
	altField := "."
	if len(v.Alt) > 0 {
		altField = strings.Join(v.Alt, ",")
	}
	qualField := "."
	if v.Qual != nil {
		qualField = fmt.Sprintf("%.2f", *v.Qual)
	}
	filterField := "."
	if len(v.Filter) > 0 {
		filterField = strings.Join(v.Filter, ";")
	}

	flds := []string{
		v.Chrom,
		strconv.Itoa(v.Pos + 1),
		v.ID,
		v.Ref,
		altField,
		qualField,
		filterField,
	}

	infoKeys := make([]string, 0, len(v.Info))
	for k := range v.Info {
		infoKeys = append(infoKeys, k)
	}
	sort.Strings(infoKeys)
	infoParts := make([]string, 0, len(infoKeys))
	for _, k := range infoKeys {
		s, bare := encodeFieldValue(h.Infos[k], v.Info[k])
		if bare {
			infoParts = append(infoParts, k)
		} else {
			infoParts = append(infoParts, k+"="+s)
		}
	}
	infoField := "."
	if len(infoParts) > 0 {
		infoField = strings.Join(infoParts, ";")
	}
	flds = append(flds, infoField)

	if len(h.Samples) > 0 {
		seen := map[string]bool{}
		var keys []string
		for _, s := range v.Samples {
			for k := range s {
				if !seen[k] && k != "GT" {
					seen[k] = true
					keys = append(keys, k)
				}
			}
		}
		sort.Strings(keys)
		keys = append([]string{"GT"}, keys...)
		flds = append(flds, strings.Join(keys, ":"))

		for _, s := range v.Samples {
			parts := make([]string, len(keys))
			for i, k := range keys {
				val, ok := s[k]
				if !ok {
					parts[i] = "."
					continue
				}
				str, bare := encodeFieldValue(h.Formats[k], val)
				if bare {
					str = "."
				}
				parts[i] = str
			}
			flds = append(flds, strings.Join(parts, ":"))
		}
	}

	line := strings.Join(flds, "\t")
	v.line = line
	return line
}
