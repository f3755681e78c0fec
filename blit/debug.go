package blit

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/tidwall/pretty"
)

const indentStep = "  "

// Dump describes the encoded layout of the document: header widths, the
// string table and every value with its tag and offset. Attached edits are
// not shown; use JSON or PrettyJSON for the effective content.
func (d *Document) Dump() string {
	d.check()
	var buf strings.Builder
	fmt.Fprintf(&buf, "document: %d bytes, offset_width = %d, name_width = %d, strings = %d, edits = %d\n", len(d.data), d.offW, d.nameW, len(d.strOff), len(d.edits))
	for id := range d.strOff {
		fmt.Fprintf(&buf, "%s#%d @%d %q\n", indentStep, id, d.strOff[id], d.strBytes(id))
	}
	fmt.Fprintf(&buf, "root: ")
	d.dumpValue(&buf, indentStep, d.rootTag, d.rootOff)
	return buf.String()
}

func (d *Document) dumpValue(w *strings.Builder, prefix string, tag byte, off uint32) {
	switch tag {
	case tagNull, tagFalse, tagTrue:
		fmt.Fprintf(w, "%s\n", tagName(tag))
	case tagObject:
		o := d.object(off)
		fmt.Fprintf(w, "object @%d (%d)\n", off, o.n)
		decl := make([]int, o.n)
		for j := range o.n {
			decl[o.position(j)] = j
		}
		for i := range o.n {
			id, ctag, coff := o.entry(i)
			fmt.Fprintf(w, "%s%q #%d pos %d: ", prefix, d.strBytes(id), id, decl[i])
			d.dumpValue(w, prefix+indentStep, ctag, coff)
		}
	case tagArray:
		a := d.array(off)
		fmt.Fprintf(w, "array @%d (%d)\n", off, a.n)
		for i := range a.n {
			ctag, coff := a.entry(i)
			fmt.Fprintf(w, "%s%d: ", prefix, i)
			d.dumpValue(w, prefix+indentStep, ctag, coff)
		}
	case tagStringRef:
		id, _ := binary.Uvarint(d.data[off:])
		fmt.Fprintf(w, "%s @%d #%d\n", tagName(tag), off, id)
	default:
		fmt.Fprintf(w, "%s @%d %v\n", tagName(tag), off, d.value(tag, off))
	}
}

// PrettyJSON renders v as indented JSON text.
func PrettyJSON(v Value, preserveOrder bool) ([]byte, error) {
	b, err := AppendJSON(nil, v, preserveOrder)
	if err != nil {
		return nil, err
	}
	return pretty.PrettyOptions(b, &pretty.Options{Width: 80, Indent: indentStep}), nil
}
