package vcf

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

func splitKV(s string) (key, val string, isFlag bool) {
	if i := strings.IndexByte(s, '='); i >= 0 {
		return s[:i], s[i+1:], false
	}
	return s, "", true
}

func decodeScalar(typ, s string) any {
	switch typ {
	case "Integer":
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		return s
	case "Float":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	default:
		return s
	}
}

func encodeScalar(typ string, v any) string {
	switch typ {
	case "Integer":
		switch n := v.(type) {
		case int:
			return strconv.Itoa(n)
		case float64:
			return strconv.Itoa(int(n))
		}
	case "Float":
		switch f := v.(type) {
		case float64:
			return strconv.FormatFloat(f, 'f', -1, 64)
		case int:
			return strconv.FormatFloat(float64(f), 'f', -1, 64)
		}
	}
	return fmt.Sprintf("%v", v)
}

// decodeFieldValue decodes one raw INFO or FORMAT value against its
// catalogue entry, ported from vcf.py's parse_field. def is nil when
// the key has no matching header declaration, in which case the raw
// token passes through unconverted (a bare flag becomes true).
func decodeFieldValue(def *FieldDef, raw string, isFlag bool) any {
	if isFlag || (def != nil && def.Number.Kind == NumberFlag) {
		return true
	}
	if def == nil {
		return raw
	}
	if raw == "." {
		return nil
	}
	if def.Number.isScalar() {
		return decodeScalar(def.Type, raw)
	}
	parts := strings.Split(raw, ",")
	allDot := true
	for _, p := range parts {
		if p != "." {
			allDot = false
			break
		}
	}
	if allDot {
		return nil
	}
	vals := make([]any, len(parts))
	for i, p := range parts {
		vals[i] = decodeScalar(def.Type, p)
	}
	return vals
}

// encodeFieldValue is the inverse of decodeFieldValue, ported from
// vcf.py's format_field. It returns the formatted value string and
// whether the key should be emitted bare (Flag fields carry no
// "=value").
func encodeFieldValue(def *FieldDef, v any) (s string, bare bool) {
	if def == nil {
		return fmt.Sprintf("%v", v), false
	}
	if v == nil {
		return ".", false
	}
	if def.Number.Kind == NumberFlag {
		return "", true
	}
	if def.Number.isScalar() {
		return encodeScalar(def.Type, v), false
	}
	vals, ok := v.([]any)
	if !ok {
		return encodeScalar(def.Type, v), false
	}
	parts := make([]string, len(vals))
	for i, e := range vals {
		parts[i] = encodeScalar(def.Type, e)
	}
	return strings.Join(parts, ","), false
}

// genotypes enumerates, in VCF genotype order, every unordered
// selection of p alleles with replacement from the allele list a,
// ported from vcf.py's VCF.genotypes (a recursive construction, used
// by SortFieldForAlts to infer how a Number=G field is laid out).
func genotypes(a []string, p int) []string {
	if len(a) == 1 {
		parts := make([]string, p)
		for i := range parts {
			parts[i] = a[0]
		}
		return []string{strings.Join(parts, "")}
	}
	head, tail := a[:len(a)-1], a[len(a)-1]
	var out []string
	for k := 0; k <= p; k++ {
		suffix := strings.Repeat(tail, k)
		for _, g := range genotypes(head, p-k) {
			out = append(out, g+suffix)
		}
	}
	return out
}

type sortPair struct {
	key string
	val any
}

func sortByKey(keys []string, vals []any) []any {
	pairs := make([]sortPair, len(keys))
	for i := range keys {
		pairs[i] = sortPair{keys[i], vals[i]}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })
	out := make([]any, len(pairs))
	for i, p := range pairs {
		out[i] = p.val
	}
	return out
}

// SortFieldForAlts reorders a Number=A/R/G field's value list to
// match a new ALT allele ordering, ported from vcf.py's sort_field.
// key is looked up first in Infos then Formats; val must be a []any
// matching the field's current (pre-reorder) Number-implied length.
// Fields with any other Number, or with no catalogue entry, pass
// through unchanged.
func (h *Header) SortFieldForAlts(alt []string, key string, val any) any {
	def := h.Infos[key]
	if def == nil {
		def = h.Formats[key]
	}
	if def == nil {
		return val
	}
	vals, ok := val.([]any)
	if !ok {
		return val
	}

	switch def.Number.Kind {
	case NumberUnknown:
		if len(vals) != len(alt)+1 {
			return val
		}
		fallthrough
	case NumberPerAllele:
		a := append([]string{"R"}, alt...)
		return sortByKey(a, vals)
	case NumberPerAlt:
		return sortByKey(alt, vals)
	case NumberGenotype:
		a := append([]string{"R"}, alt...)
		ploidy := 2
		glSize := len(a) * (len(a) + 1) / 2
		var g []string
		switch {
		case glSize == len(vals):
			for i, x := range a {
				for _, y := range a[:i+1] {
					if y <= x {
						g = append(g, y+x)
					} else {
						g = append(g, x+y)
					}
				}
			}
		case glSize < len(vals):
			for glSize < len(vals) {
				glSize = glSize * (ploidy + len(a)) / (ploidy + 1)
				ploidy++
			}
			g = genotypes(a, ploidy)
		default:
			g = a
		}
		return sortByKey(g, vals)
	default:
		return val
	}
}
