package blit

import (
	"bytes"
	"encoding/binary"
	"iter"
	"math"
	"sort"
	"unsafe"
)

// Document is a parsed binary document. It does not own its bytes: they belong
// to whoever passed them to Context.Parse, and must stay intact until the
// Context is released.
type Document struct {
	ctx  *Context
	data []byte

	offW  int
	nameW int

	rootTag     byte
	rootOff     uint32
	valuesStart uint32

	strOff  []uint32
	strLen  []uint32
	nameIDs []int32 // context intern ids, -1 until first resolved

	edits map[uint32]any // *ObjectEdits or *ArrayEdits keyed by payload offset
}

// Parse validates data and returns a document backed by it. Nothing is copied;
// every table and offset is bounds-checked once here, so views can decode
// without further checks.
func (ctx *Context) Parse(data []byte) (*Document, error) {
	ctx.checkAlive()
	doc := &Document{ctx: ctx}
	if err := doc.load(data); err != nil {
		return nil, err
	}
	return doc, nil
}

func (d *Document) load(data []byte) error {
	if len(data) < headerSize {
		return malformedf(data, 0, "document too short: %d bytes", len(data))
	}
	if data[0] != magicByte {
		return malformedf(data, 0, "bad magic byte %02x", data[0])
	}
	if data[1] != formatVersion {
		return malformedf(data, 1, "unsupported format version %d", data[1])
	}
	widths := data[2]
	d.offW = widthFromCode(widths & 0x3)
	d.nameW = widthFromCode((widths >> 2) & 0x3)
	if d.offW == 0 || d.nameW == 0 || widths>>4 != 0 {
		return malformedf(data, 2, "invalid widths byte %02x", widths)
	}
	d.rootTag = data[3]
	total := binary.LittleEndian.Uint32(data[4:])
	if total < headerSize || uint64(total) > uint64(len(data)) {
		return malformedf(data, 4, "declared length %d outside of buffer of %d bytes", total, len(data))
	}
	data = data[:total]
	d.data = data
	d.rootOff = binary.LittleEndian.Uint32(data[8:])
	if stringsOff := binary.LittleEndian.Uint32(data[12:]); stringsOff != headerSize {
		return malformedf(data, 12, "string table offset %d, wanted %d", stringsOff, headerSize)
	}

	if err := d.loadStrings(); err != nil {
		return err
	}

	st := checkState{budget: int(total)}
	return d.checkValue(d.rootTag, d.rootOff, total, &st)
}

func (d *Document) loadStrings() error {
	off := uint32(headerSize)
	count, n := binary.Uvarint(d.data[off:])
	if n <= 0 {
		return malformedf(d.data, int(off), "bad string table count")
	}
	off += uint32(n)
	if count > uint64(len(d.data))-uint64(off) || count > maxForWidth(d.nameW)+1 {
		return malformedf(d.data, int(off), "string table count %d exceeds bounds", count)
	}
	d.strOff = make([]uint32, count)
	d.strLen = make([]uint32, count)
	d.nameIDs = make([]int32, count)
	var prev []byte
	for i := range int(count) {
		sz, n := binary.Uvarint(d.data[off:])
		if n <= 0 {
			return malformedf(d.data, int(off), "bad length of string %d", i)
		}
		off += uint32(n)
		if sz > uint64(len(d.data))-uint64(off) {
			return malformedf(d.data, int(off), "string %d of %d bytes exceeds bounds", i, sz)
		}
		s := d.data[off : off+uint32(sz)]
		if i > 0 {
			switch bytes.Compare(prev, s) {
			case 0:
				return malformedf(d.data, int(off), "duplicate string %q in string table", s)
			case 1:
				return malformedf(d.data, int(off), "string table not sorted at %q", s)
			}
		}
		d.strOff[i], d.strLen[i], d.nameIDs[i] = off, uint32(sz), -1
		prev = s
		off += uint32(sz)
	}
	d.valuesStart = off
	return nil
}

// checkState tracks validation progress over the whole document. budget
// bounds the total number of values; containers holds the offsets of every
// object and array seen so far.
type checkState struct {
	budget     int
	containers map[uint32]struct{}
}

// claim records a container at off. Every object and array must be
// referenced by exactly one entry.
func (st *checkState) claim(d *Document, tag byte, off uint32) error {
	if _, dup := st.containers[off]; dup {
		return malformedf(d.data, int(off), "%s at offset %d is referenced more than once", tagName(tag), off)
	}
	if st.containers == nil {
		st.containers = make(map[uint32]struct{})
	}
	st.containers[off] = struct{}{}
	return nil
}

// checkValue verifies the value at off. Every child must end at or before
// limit, which is its parent's offset; this rules out cycles.
func (d *Document) checkValue(tag byte, off, limit uint32, st *checkState) error {
	st.budget--
	if st.budget < 0 {
		return malformedf(d.data, int(off), "too many values, tables must be overlapping")
	}
	var size uint64
	switch tag {
	case tagNull, tagFalse, tagTrue:
		return nil
	case tagInt8:
		size = 1
	case tagInt16:
		size = 2
	case tagInt32:
		size = 4
	case tagInt64, tagFloat64:
		size = 8
	case tagString, tagBlob, tagStringRef, tagObject, tagArray:
		if off < d.valuesStart || off >= limit {
			return malformedf(d.data, int(off), "%s offset %d outside of [%d, %d)", tagName(tag), off, d.valuesStart, limit)
		}
		v, n := binary.Uvarint(d.data[off:limit])
		if n <= 0 {
			return malformedf(d.data, int(off), "bad %s header", tagName(tag))
		}
		switch tag {
		case tagStringRef:
			if v >= uint64(len(d.strOff)) {
				return malformedf(d.data, int(off), "string id %d out of range [0:%d]", v, len(d.strOff))
			}
			return nil
		case tagObject:
			if err := st.claim(d, tag, off); err != nil {
				return err
			}
			return d.checkObject(off, uint32(n), v, limit, st)
		case tagArray:
			if err := st.claim(d, tag, off); err != nil {
				return err
			}
			return d.checkArray(off, uint32(n), v, limit, st)
		}
		size = uint64(n) + v
	default:
		return malformedf(d.data, int(off), "unknown type tag %d", tag)
	}
	if off < d.valuesStart || uint64(off)+size > uint64(limit) {
		return malformedf(d.data, int(off), "%s at offset %d outside of [%d, %d)", tagName(tag), off, d.valuesStart, limit)
	}
	return nil
}

func (d *Document) checkObject(off, hdr uint32, count uint64, limit uint32, st *checkState) error {
	es := uint64(d.nameW + 1 + d.offW)
	tbl := uint64(off) + uint64(hdr)
	if count > uint64(limit) || tbl+count*(es+uint64(d.offW)) > uint64(limit) {
		return malformedf(d.data, int(off), "property table of %d entries exceeds bounds", count)
	}
	n := int(count)
	o := Object{d, off, n, uint32(tbl)}
	prevID := -1
	for i := range n {
		id, tag, coff := o.entry(i)
		if id >= len(d.strOff) {
			return malformedf(d.data, int(o.entryOff(i)), "property name id %d out of range [0:%d]", id, len(d.strOff))
		}
		if id == prevID {
			return malformedf(d.data, int(o.entryOff(i)), "duplicate property name %q", d.strBytes(id))
		} else if id < prevID {
			return malformedf(d.data, int(o.entryOff(i)), "property table not sorted at %q", d.strBytes(id))
		}
		prevID = id
		if err := d.checkValue(tag, coff, off, st); err != nil {
			return err
		}
	}
	seen := make([]uint64, (n+63)/64)
	for i := range n {
		pos := o.position(i)
		if pos >= n || seen[pos/64]&(1<<(pos%64)) != 0 {
			return malformedf(d.data, int(o.positionOff(i)), "invalid declaration order entry %d", pos)
		}
		seen[pos/64] |= 1 << (pos % 64)
	}
	return nil
}

func (d *Document) checkArray(off, hdr uint32, count uint64, limit uint32, st *checkState) error {
	es := uint64(1 + d.offW)
	tbl := uint64(off) + uint64(hdr)
	if count > uint64(limit) || tbl+count*es > uint64(limit) {
		return malformedf(d.data, int(off), "array table of %d entries exceeds bounds", count)
	}
	a := Array{d, off, int(count), uint32(tbl)}
	for i := range a.n {
		tag, coff := a.entry(i)
		if err := d.checkValue(tag, coff, off, st); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) check() {
	if d.ctx != nil && d.ctx.released {
		panic("blit: use of document after its Context was released")
	}
}

func (d *Document) Context() *Context { return d.ctx }

// Bytes returns the encoded document (without any pending edits).
func (d *Document) Bytes() []byte {
	d.check()
	return d.data
}

func (d *Document) Size() int { return len(d.data) }

func (d *Document) Root() Value {
	d.check()
	return d.value(d.rootTag, d.rootOff)
}

// Object returns the root object, or a missing Object if the root is not one.
func (d *Document) Object() Object {
	d.check()
	if d.rootTag != tagObject {
		return Object{}
	}
	return d.object(d.rootOff)
}

// IsModified returns whether any view of the document has edits attached.
func (d *Document) IsModified() bool {
	return len(d.edits) > 0
}

func (d *Document) strBytes(id int) []byte {
	off := d.strOff[id]
	return d.data[off : off+d.strLen[id]]
}

func (d *Document) str(id int) string {
	if d.nameIDs[id] < 0 {
		d.nameIDs[id] = int32(d.ctx.names.InternBytes(d.strBytes(id)))
	}
	return d.ctx.names.Resolve(int(d.nameIDs[id]))
}

// findString returns the id of s in the string table, or -1.
func (d *Document) findString(s string) int {
	n := len(d.strOff)
	i := sort.Search(n, func(i int) bool {
		return unsafeString(d.strBytes(i)) >= s
	})
	if i < n && unsafeString(d.strBytes(i)) == s {
		return i
	}
	return -1
}

func (d *Document) value(tag byte, off uint32) Value {
	data := d.data
	switch tag {
	case tagNull:
		return Null()
	case tagFalse:
		return Bool(false)
	case tagTrue:
		return Bool(true)
	case tagInt8:
		return Int(int64(int8(data[off])))
	case tagInt16:
		return Int(int64(int16(binary.LittleEndian.Uint16(data[off:]))))
	case tagInt32:
		return Int(int64(int32(binary.LittleEndian.Uint32(data[off:]))))
	case tagInt64:
		return Int(int64(binary.LittleEndian.Uint64(data[off:])))
	case tagFloat64:
		return Float(math.Float64frombits(binary.LittleEndian.Uint64(data[off:])))
	case tagString:
		return String(string(d.varBytes(off)))
	case tagStringRef:
		id, _ := binary.Uvarint(data[off:])
		return String(d.str(int(id)))
	case tagBlob:
		return Blob(d.varBytes(off))
	case tagObject:
		return ObjectOf(d.object(off))
	case tagArray:
		return ArrayOf(d.array(off))
	default:
		panic("unreachable")
	}
}

func (d *Document) varBytes(off uint32) []byte {
	n, sz := binary.Uvarint(d.data[off:])
	start := off + uint32(sz)
	return d.data[start : start+uint32(n)]
}

func (d *Document) object(off uint32) Object {
	n, sz := binary.Uvarint(d.data[off:])
	return Object{d, off, int(n), off + uint32(sz)}
}

func (d *Document) array(off uint32) Array {
	n, sz := binary.Uvarint(d.data[off:])
	return Array{d, off, int(n), off + uint32(sz)}
}

// Object is a read-only view of an encoded object. The zero Object is a
// missing object with no properties.
type Object struct {
	doc *Document
	off uint32
	n   int
	tbl uint32
}

func (o Object) IsMissing() bool       { return o.doc == nil }
func (o Object) Len() int              { return o.n }
func (o Object) Document() *Document   { return o.doc }
func (o Object) entrySize() uint32     { return uint32(o.doc.nameW + 1 + o.doc.offW) }
func (o Object) entryOff(i int) uint32 { return o.tbl + uint32(i)*o.entrySize() }

func (o Object) positionOff(i int) uint32 {
	return o.tbl + uint32(o.n)*o.entrySize() + uint32(i*o.doc.offW)
}

func (o Object) entry(i int) (nameID int, tag byte, off uint32) {
	d := o.doc
	b := d.data[o.entryOff(i):]
	nameID = int(getUint(b, d.nameW))
	tag = b[d.nameW]
	off = getUint(b[d.nameW+1:], d.offW)
	return
}

func (o Object) position(i int) int {
	return int(getUint(o.doc.data[o.positionOff(i):], o.doc.offW))
}

func (o Object) index(name string) int {
	if o.doc == nil {
		return -1
	}
	o.doc.check()
	id := o.doc.findString(name)
	if id < 0 {
		return -1
	}
	i := sort.Search(o.n, func(i int) bool {
		eid, _, _ := o.entry(i)
		return eid >= id
	})
	if i < o.n {
		if eid, _, _ := o.entry(i); eid == id {
			return i
		}
	}
	return -1
}

// Get looks up a property by name. A missing property is not an error.
func (o Object) Get(name string) (Value, bool) {
	i := o.index(name)
	if i < 0 {
		return Value{}, false
	}
	_, v := o.At(i)
	return v, true
}

func (o Object) Has(name string) bool {
	return o.index(name) >= 0
}

// At returns the i-th property in name order. It panics with an *IndexError
// if i is out of range.
func (o Object) At(i int) (string, Value) {
	if err := checkIndex(i, o.n); err != nil {
		panic(err)
	}
	o.doc.check()
	id, tag, off := o.entry(i)
	return o.doc.str(id), o.doc.value(tag, off)
}

// All yields properties in name order.
func (o Object) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for i := range o.n {
			if !yield(o.At(i)) {
				return
			}
		}
	}
}

// InOrder yields properties in the order they were declared.
func (o Object) InOrder() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for i := range o.n {
			if !yield(o.At(o.position(i))) {
				return
			}
		}
	}
}

// Names returns property names in declaration order.
func (o Object) Names() []string {
	names := make([]string, 0, o.n)
	for name := range o.InOrder() {
		names = append(names, name)
	}
	return names
}

// Edits returns the edit set attached to this object, or nil.
func (o Object) Edits() *ObjectEdits {
	if o.doc == nil {
		return nil
	}
	e, _ := o.doc.edits[o.off].(*ObjectEdits)
	return e
}

// Modify returns the edit set attached to this object, attaching a new empty
// one if there is none.
func (o Object) Modify() *ObjectEdits {
	if e := o.Edits(); e != nil {
		return e
	}
	e := NewObject()
	o.Attach(e)
	return e
}

// Attach makes e the edit set of this object, replacing any previous one.
// The edits in e are reinterpreted relative to this object.
func (o Object) Attach(e *ObjectEdits) {
	if o.doc == nil {
		panic("blit: cannot attach edits to a missing object")
	}
	o.doc.check()
	e.base = o
	if o.doc.edits == nil {
		o.doc.edits = make(map[uint32]any)
	}
	o.doc.edits[o.off] = e
}

func (o Object) Detach() {
	if o.doc != nil {
		delete(o.doc.edits, o.off)
	}
}

// Array is a read-only view of an encoded array. The zero Array is a missing
// array with no items.
type Array struct {
	doc *Document
	off uint32
	n   int
	tbl uint32
}

func (a Array) IsMissing() bool     { return a.doc == nil }
func (a Array) Len() int            { return a.n }
func (a Array) Document() *Document { return a.doc }

func (a Array) entry(i int) (tag byte, off uint32) {
	d := a.doc
	b := d.data[a.tbl+uint32(i*(1+d.offW)):]
	return b[0], getUint(b[1:], d.offW)
}

func (a Array) Get(i int) (Value, error) {
	if err := checkIndex(i, a.n); err != nil {
		return Value{}, err
	}
	a.doc.check()
	return a.doc.value(a.entry(i)), nil
}

func (a Array) All() iter.Seq2[int, Value] {
	return func(yield func(int, Value) bool) {
		if a.n > 0 {
			a.doc.check()
		}
		for i := range a.n {
			if !yield(i, a.doc.value(a.entry(i))) {
				return
			}
		}
	}
}

func (a Array) Edits() *ArrayEdits {
	if a.doc == nil {
		return nil
	}
	e, _ := a.doc.edits[a.off].(*ArrayEdits)
	return e
}

func (a Array) Modify() *ArrayEdits {
	if e := a.Edits(); e != nil {
		return e
	}
	e := NewArray()
	a.Attach(e)
	return e
}

// Attach makes e the edit set of this array, replacing any previous one.
// Items already in e become additions following the original items.
func (a Array) Attach(e *ArrayEdits) {
	if a.doc == nil {
		panic("blit: cannot attach edits to a missing array")
	}
	a.doc.check()
	e.rebase(a)
	if a.doc.edits == nil {
		a.doc.edits = make(map[uint32]any)
	}
	a.doc.edits[a.off] = e
}

func (a Array) Detach() {
	if a.doc != nil {
		delete(a.doc.edits, a.off)
	}
}

func unsafeString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}
