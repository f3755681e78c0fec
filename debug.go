package docdb

import (
	"fmt"
	"strings"

	"github.com/andreyvit/docdb/blit"
)

type DumpFlags uint64

const (
	DumpCollectionHeaders = DumpFlags(1 << iota)
	DumpDocs
	DumpStats
	DumpLayout
	DumpPreserveOrder

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the given collections, or all of them if none are named, in
// a human-readable form meant for tests and debugging.
func (tx *Tx) Dump(f DumpFlags, colls ...string) string {
	if len(colls) == 0 {
		colls = tx.Collections()
	}
	var buf strings.Builder
	for _, coll := range colls {
		tx.dumpCollection(&buf, f, coll)
	}
	return buf.String()
}

func (tx *Tx) dumpCollection(w *strings.Builder, f DumpFlags, coll string) {
	s := tx.Stats(coll)
	if f.Contains(DumpCollectionHeaders) {
		fmt.Fprintln(w, dumpSep1)
		fmt.Fprintf(w, "%s (%d docs)\n", coll, s.Docs)
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(w, "%s.stats: data_size = %d, data_alloc = %d\n", coll, s.DataSize, s.DataAlloc)
	}
	if f.Contains(DumpDocs) {
		if f.Contains(DumpStats) {
			fmt.Fprintln(w, dumpSep2)
		}
		c := tx.Scan(coll, AllKeys())
		for c.Next() {
			tx.dumpDoc(w, f, coll, c)
		}
		if err := c.Err(); err != nil {
			fmt.Fprintf(w, "%s ** ERROR: %v\n", coll, err)
		}
	}
}

func (tx *Tx) dumpDoc(w *strings.Builder, f DumpFlags, coll string, c *Cursor) {
	doc := c.Doc()
	if doc == nil {
		return
	}
	text, err := blit.PrettyJSON(doc.Root(), f.Contains(DumpPreserveOrder))
	if err != nil {
		fmt.Fprintf(w, "%s/%s = (m%d) ** ERROR: %v\n", coll, c.Key(), doc.Meta.ModCount, err)
		return
	}
	fmt.Fprintf(w, "%s/%s = (m%d %016x) %s", coll, c.Key(), doc.Meta.ModCount, doc.Meta.ETag, text)
	if f.Contains(DumpLayout) {
		w.WriteString(doc.Dump())
	}
}
