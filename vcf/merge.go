package vcf

import (
	"path/filepath"
	"regexp"
)

var headerLinePattern = regexp.MustCompile(`^##([^=]+)=(?:<ID=([^,]+).*>)?`)

// fieldGroup is an insertion-order-preserving id -> line map for one
// "##FIELD=..." group, e.g. all "##INFO=..." lines keyed by their ID.
// Lines with no ID (plain "##key=value" lines) are stored under id "".
type fieldGroup struct {
	order []string
	lines map[string]string
}

func newFieldGroup() *fieldGroup {
	return &fieldGroup{lines: map[string]string{}}
}

func (g *fieldGroup) set(id, line string) {
	if _, ok := g.lines[id]; !ok {
		g.order = append(g.order, id)
	}
	g.lines[id] = line
}

func (g *fieldGroup) delete(id string) {
	if _, ok := g.lines[id]; !ok {
		return
	}
	delete(g.lines, id)
	for i, existing := range g.order {
		if existing == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

// orderedFields is the field-name -> fieldGroup map, also
// insertion-order preserving, mirroring copy_header's outer
// OrderedDict keyed by field name ("contig", "INFO", "FORMAT", ...).
type orderedFields struct {
	order []string
	groups map[string]*fieldGroup
}

func newOrderedFields() *orderedFields {
	return &orderedFields{groups: map[string]*fieldGroup{}}
}

func (o *orderedFields) group(fld string) *fieldGroup {
	g, ok := o.groups[fld]
	if !ok {
		g = newFieldGroup()
		o.groups[fld] = g
		o.order = append(o.order, fld)
	}
	return g
}

func splitHeaderLine(line string) (fld, id string, ok bool) {
	m := headerLinePattern.FindStringSubmatch(line)
	if m == nil {
		return line, "", false
	}
	return m[1], m[2], true
}

// Merge rebuilds h's raw header lines from src, with update lines
// upserted by (field, id) and remove lines deleted by (field, id) — or,
// when a remove line carries no id, by glob-matching it against the
// stored line text for that field's id-less slot. This is a port of
// vcf.py's copy_header, which rebuilds collections.OrderedDict groups
// keyed first by field name then by declaration id so that first-seen
// group ordering (all ##contig lines together, then all ##INFO lines,
// and so on) survives the merge. It returns a new Header built by
// re-running ParseHeader over the merged lines.
func (h *Header) Merge(src *Header, update, remove []string) *Header {
	hdrs := newOrderedFields()
	for _, line := range src.Lines {
		fld, id, matched := splitHeaderLine(line)
		if !matched {
			fld, id = line, ""
		}
		hdrs.group(fld).set(id, line)
	}
	for _, line := range update {
		fld, id, matched := splitHeaderLine(line)
		if !matched {
			continue
		}
		hdrs.group(fld).set(id, line)
	}
	for _, line := range remove {
		fld, id, matched := splitHeaderLine(line)
		if !matched {
			continue
		}
		g, ok := hdrs.groups[fld]
		if !ok {
			continue
		}
		if id == "" {
			if ok, _ := filepath.Match(line, g.lines[""]); ok {
				g.delete("")
			}
			continue
		}
		for _, existing := range append([]string(nil), g.order...) {
			if ok, _ := filepath.Match(id, existing); ok {
				g.delete(existing)
			}
		}
	}

	var lines []string
	for _, fld := range hdrs.order {
		g := hdrs.groups[fld]
		for _, id := range g.order {
			lines = append(lines, g.lines[id])
		}
	}
	merged, _ := ParseHeader(lines)
	return merged
}
