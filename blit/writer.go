package blit

import (
	"encoding/binary"
	"fmt"
	"iter"
	"math"
	"slices"
	"strings"
	"sync"
)

// WriterOptions configure binary serialization. The zero value is ready to use.
type WriterOptions struct {
	// MaxSize limits the encoded size; 0 means MaxDocumentSize.
	MaxSize int
}

func (opt WriterOptions) maxSize() uint64 {
	if opt.MaxSize <= 0 || uint64(opt.MaxSize) > MaxDocumentSize {
		return MaxDocumentSize
	}
	return uint64(opt.MaxSize)
}

// Serialize encodes v, merging in every pending edit reachable from it, into
// a new self-contained buffer.
func Serialize(v Value) ([]byte, error) {
	return WriterOptions{}.AppendBinary(nil, v)
}

func AppendBinary(buf []byte, v Value) ([]byte, error) {
	return WriterOptions{}.AppendBinary(buf, v)
}

func (opt WriterOptions) AppendBinary(buf []byte, v Value) ([]byte, error) {
	w := getWriter(opt)
	defer putWriter(w)
	total, err := w.prepare(v)
	if err != nil {
		return buf, err
	}
	off := len(buf)
	buf = slices.Grow(buf, total)[:off+total]
	w.emit(buf[off:])
	return buf, nil
}

// Serialize re-encodes the document with all attached edits applied.
func (d *Document) Serialize() ([]byte, error) {
	return Serialize(d.Root())
}

// Build encodes v into memory owned by the context and parses the result.
func (ctx *Context) Build(v Value) (*Document, error) {
	return ctx.BuildWith(WriterOptions{}, v)
}

func (ctx *Context) BuildWith(opt WriterOptions, v Value) (*Document, error) {
	ctx.checkAlive()
	w := getWriter(opt)
	defer putWriter(w)
	total, err := w.prepare(v)
	if err != nil {
		return nil, err
	}
	data := ctx.Alloc(total)
	w.emit(data)
	return ctx.Parse(data)
}

// wnode is the planned encoding of one value.
type wnode struct {
	tag    byte
	bits   uint64
	str    string
	blob   []byte
	strID  int      // string table position of a tagStringRef
	names  []int    // intern ids, declaration order
	kids   []*wnode // declaration order
	sorted []int    // declaration indices in name order
}

type writer struct {
	opt    WriterOptions
	names  InternTable
	counts map[string]int
	path   []string
	edits  editStack

	table []int // intern ids in string table order
	docID []int // intern id -> string table position

	root  *wnode
	offW  int
	nameW int
	total int

	buf []byte
	pos int
}

var writerPool = sync.Pool{
	New: func() any {
		return &writer{counts: make(map[string]int)}
	},
}

func getWriter(opt WriterOptions) *writer {
	w := writerPool.Get().(*writer)
	w.opt = opt
	return w
}

func putWriter(w *writer) {
	w.names.Reset()
	clear(w.counts)
	w.path = w.path[:0]
	w.edits.reset()
	w.table = w.table[:0]
	w.docID = w.docID[:0]
	w.root = nil
	w.buf = nil
	w.pos = 0
	writerPool.Put(w)
}

func (w *writer) pathString() string {
	return strings.Join(w.path, ".")
}

func (w *writer) prepare(v Value) (int, error) {
	root, err := w.plan(v)
	if err != nil {
		return 0, err
	}
	w.root = root

	for s, n := range w.counts {
		if n > 1 && len(s) > 1 {
			w.names.Intern(s)
		}
	}
	n := w.names.Len()
	w.table = slices.Grow(w.table[:0], n)
	for id := range n {
		w.table = append(w.table, id)
	}
	slices.SortFunc(w.table, func(a, b int) int {
		return strings.Compare(w.names.Resolve(a), w.names.Resolve(b))
	})
	w.docID = slices.Grow(w.docID[:0], n)[:n]
	for pos, id := range w.table {
		w.docID[id] = pos
	}
	w.resolve(root)

	w.nameW = widthFor(uint64(max(n-1, 0)))
	strSize := uvarintLen(uint64(n))
	for _, id := range w.table {
		s := w.names.Resolve(id)
		strSize += uvarintLen(uint64(len(s))) + len(s)
	}

	limit := w.opt.maxSize()
	for _, offW := range [...]int{1, 2, 4} {
		total := uint64(headerSize+strSize) + w.size(root, offW)
		if total <= maxForWidth(offW) || offW == 4 {
			if total > limit {
				return 0, fmt.Errorf("%w: %d bytes, limit is %d", ErrBufferTooLarge, total, limit)
			}
			w.offW, w.total = offW, int(total)
			break
		}
	}
	return w.total, nil
}

func (w *writer) plan(v Value) (*wnode, error) {
	switch v.kind {
	case KindNull:
		return &wnode{tag: tagNull}, nil
	case KindBool:
		if v.bits != 0 {
			return &wnode{tag: tagTrue}, nil
		}
		return &wnode{tag: tagFalse}, nil
	case KindInt:
		tag, _ := intTag(int64(v.bits))
		return &wnode{tag: tag, bits: v.bits}, nil
	case KindFloat:
		return &wnode{tag: tagFloat64, bits: v.bits}, nil
	case KindString:
		w.counts[v.str]++
		return &wnode{tag: tagString, str: v.str}, nil
	case KindBlob:
		return &wnode{tag: tagBlob, blob: v.blob}, nil
	case KindObject, KindArray:
		e, ok := w.edits.enter(v)
		if !ok {
			return nil, &UnsupportedTypeError{Path: w.pathString(), Value: e}
		}
		defer w.edits.leave(e)
		if v.kind == KindObject {
			return w.planObject(objectItems(v))
		}
		return w.planArray(arrayItems(v))
	default:
		return nil, &UnsupportedTypeError{Path: w.pathString(), Value: v.bad}
	}
}

func (w *writer) planObject(items iter.Seq2[string, Value]) (*wnode, error) {
	node := &wnode{tag: tagObject}
	for name, child := range items {
		w.path = append(w.path, name)
		kid, err := w.plan(child)
		w.path = w.path[:len(w.path)-1]
		if err != nil {
			return nil, err
		}
		node.names = append(node.names, w.names.Intern(name))
		node.kids = append(node.kids, kid)
	}
	return node, nil
}

func (w *writer) planArray(items iter.Seq2[int, Value]) (*wnode, error) {
	node := &wnode{tag: tagArray}
	for i, child := range items {
		w.path = append(w.path, fmt.Sprint(i))
		kid, err := w.plan(child)
		w.path = w.path[:len(w.path)-1]
		if err != nil {
			return nil, err
		}
		node.kids = append(node.kids, kid)
	}
	return node, nil
}

// resolve switches repeated strings to string table references and sorts
// object entries by string table position.
func (w *writer) resolve(n *wnode) {
	switch n.tag {
	case tagString:
		if id, ok := w.names.Lookup(n.str); ok {
			n.tag, n.strID = tagStringRef, w.docID[id]
		}
	case tagObject:
		n.sorted = make([]int, len(n.kids))
		for i := range n.sorted {
			n.sorted[i] = i
		}
		slices.SortFunc(n.sorted, func(a, b int) int {
			return w.docID[n.names[a]] - w.docID[n.names[b]]
		})
		for _, kid := range n.kids {
			w.resolve(kid)
		}
	case tagArray:
		for _, kid := range n.kids {
			w.resolve(kid)
		}
	}
}

// size returns the encoded size of the subtree at n for the given offset width.
func (w *writer) size(n *wnode, offW int) uint64 {
	switch n.tag {
	case tagNull, tagFalse, tagTrue:
		return 0
	case tagInt8, tagInt16, tagInt32, tagInt64:
		_, sz := intTag(int64(n.bits))
		return uint64(sz)
	case tagFloat64:
		return 8
	case tagString:
		return uint64(uvarintLen(uint64(len(n.str))) + len(n.str))
	case tagStringRef:
		return uint64(uvarintLen(uint64(n.strID)))
	case tagBlob:
		return uint64(uvarintLen(uint64(len(n.blob))) + len(n.blob))
	}
	count := len(n.kids)
	sz := uint64(uvarintLen(uint64(count)))
	if n.tag == tagObject {
		sz += uint64(count * (w.nameW + 1 + 2*offW))
	} else {
		sz += uint64(count * (1 + offW))
	}
	for _, kid := range n.kids {
		sz += w.size(kid, offW)
	}
	return sz
}

func (w *writer) emit(buf []byte) {
	w.buf = buf
	buf[0] = magicByte
	buf[1] = formatVersion
	buf[2] = widthCode(w.offW) | widthCode(w.nameW)<<2
	buf[3] = w.root.tag
	binary.LittleEndian.PutUint32(buf[4:], uint32(w.total))
	binary.LittleEndian.PutUint32(buf[12:], headerSize)

	w.pos = headerSize
	w.putUvarint(uint64(len(w.table)))
	for _, id := range w.table {
		s := w.names.Resolve(id)
		w.putUvarint(uint64(len(s)))
		w.pos += copy(buf[w.pos:], s)
	}

	rootOff := w.emitValue(w.root)
	binary.LittleEndian.PutUint32(buf[8:], rootOff)
	if w.pos != w.total {
		panic(fmt.Sprintf("blit: emitted %d bytes, planned %d", w.pos, w.total))
	}
}

func (w *writer) putUvarint(v uint64) {
	w.pos += binary.PutUvarint(w.buf[w.pos:], v)
}

// emitValue writes the subtree at n bottom-up and returns the offset of n.
func (w *writer) emitValue(n *wnode) uint32 {
	var kidOffs []uint32
	if len(n.kids) > 0 {
		kidOffs = make([]uint32, len(n.kids))
		for i, kid := range n.kids {
			kidOffs[i] = w.emitValue(kid)
		}
	}

	off := uint32(w.pos)
	buf := w.buf
	switch n.tag {
	case tagNull, tagFalse, tagTrue:
		return 0
	case tagInt8:
		buf[w.pos] = byte(n.bits)
		w.pos++
	case tagInt16:
		binary.LittleEndian.PutUint16(buf[w.pos:], uint16(n.bits))
		w.pos += 2
	case tagInt32:
		binary.LittleEndian.PutUint32(buf[w.pos:], uint32(n.bits))
		w.pos += 4
	case tagInt64, tagFloat64:
		binary.LittleEndian.PutUint64(buf[w.pos:], n.bits)
		w.pos += 8
	case tagString:
		w.putUvarint(uint64(len(n.str)))
		w.pos += copy(buf[w.pos:], n.str)
	case tagStringRef:
		w.putUvarint(uint64(n.strID))
	case tagBlob:
		w.putUvarint(uint64(len(n.blob)))
		w.pos += copy(buf[w.pos:], n.blob)
	case tagObject:
		w.putUvarint(uint64(len(n.kids)))
		rank := make([]int, len(n.kids))
		for j, i := range n.sorted {
			rank[i] = j
			putUint(buf[w.pos:], w.nameW, uint32(w.docID[n.names[i]]))
			w.pos += w.nameW
			buf[w.pos] = n.kids[i].tag
			w.pos++
			putUint(buf[w.pos:], w.offW, kidOffs[i])
			w.pos += w.offW
		}
		for _, j := range rank {
			putUint(buf[w.pos:], w.offW, uint32(j))
			w.pos += w.offW
		}
	case tagArray:
		w.putUvarint(uint64(len(n.kids)))
		for i, kid := range n.kids {
			buf[w.pos] = kid.tag
			w.pos++
			putUint(buf[w.pos:], w.offW, kidOffs[i])
			w.pos += w.offW
		}
	}
	return off
}

// objectItems yields the effective properties of an object value in
// declaration order.
func objectItems(v Value) iter.Seq2[string, Value] {
	if e := v.ObjectEdits(); e != nil {
		return e.All()
	}
	return v.obj.InOrder()
}

func arrayItems(v Value) iter.Seq2[int, Value] {
	if e := v.ArrayEdits(); e != nil {
		return e.All()
	}
	return v.arr.All()
}

// editStack holds the edit sets of the containers on the current path
// through a value. An edit set that contains itself, directly or through its
// children, cannot be encoded.
type editStack []any

// enter pushes the edit set of v, if any. It returns false, along with the
// edit set, if that edit set is already on the stack.
func (s *editStack) enter(v Value) (any, bool) {
	var e any
	if oe := v.ObjectEdits(); oe != nil {
		e = oe
	} else if ae := v.ArrayEdits(); ae != nil {
		e = ae
	} else {
		return nil, true
	}
	if slices.Contains(*s, e) {
		return e, false
	}
	*s = append(*s, e)
	return e, true
}

func (s *editStack) leave(e any) {
	if e != nil {
		*s = (*s)[:len(*s)-1]
	}
}

func (s *editStack) reset() {
	clear(*s)
	*s = (*s)[:0]
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
