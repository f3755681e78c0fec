package blit

import (
	"math/bits"
	"sync"
)

const (
	minSegmentShift = 12 // 4 KiB
	maxSegmentShift = 26 // 64 MiB
	segmentClasses  = maxSegmentShift - minSegmentShift + 1

	// DefaultSegmentSize is the size of the segments small allocations are
	// carved out of.
	DefaultSegmentSize = 1 << 16
)

var segmentPools [segmentClasses]sync.Pool

func sizeClass(n int) int {
	if n <= 1<<minSegmentShift {
		return 0
	}
	return bits.Len(uint(n-1)) - minSegmentShift
}

func getSegment(n int) []byte {
	c := sizeClass(n)
	if c >= segmentClasses {
		return make([]byte, n)
	}
	if b, ok := segmentPools[c].Get().([]byte); ok {
		return b[:n]
	}
	return make([]byte, n, 1<<(c+minSegmentShift))
}

func putSegment(b []byte) {
	c := sizeClass(cap(b))
	if c >= segmentClasses || cap(b) != 1<<(c+minSegmentShift) {
		return
	}
	segmentPools[c].Put(b[:0])
}

// Context is the arena scoping one operation: it owns the memory of documents
// built or copied within it, interns the property names of every document
// parsed within it, and invalidates all of them on Release.
//
// A Context must not be used concurrently.
type Context struct {
	names    InternTable
	segments [][]byte
	cur      []byte
	released bool
}

func NewContext() *Context {
	return &Context{}
}

// WithContext runs f with a fresh Context and releases it afterwards, even
// if f panics.
func WithContext(f func(ctx *Context) error) error {
	ctx := NewContext()
	defer ctx.Release()
	return f(ctx)
}

func (ctx *Context) Names() *InternTable {
	ctx.checkAlive()
	return &ctx.names
}

// Alloc returns n zeroed bytes owned by the context. Small allocations are
// bump-allocated from a shared segment, large ones get a segment of their own.
func (ctx *Context) Alloc(n int) []byte {
	ctx.checkAlive()
	if n <= 0 {
		return nil
	}
	if n > DefaultSegmentSize/4 {
		seg := getSegment(n)
		clear(seg)
		ctx.segments = append(ctx.segments, seg)
		return seg
	}
	if len(ctx.cur) < n {
		seg := getSegment(DefaultSegmentSize)
		clear(seg)
		ctx.segments = append(ctx.segments, seg)
		ctx.cur = seg
	}
	b := ctx.cur[:n:n]
	ctx.cur = ctx.cur[n:]
	return b
}

// Copy returns a copy of data owned by the context.
func (ctx *Context) Copy(data []byte) []byte {
	b := ctx.Alloc(len(data))
	copy(b, data)
	return b
}

// Release returns all memory to the pools. Documents parsed or built within
// the context must not be used afterwards; doing so panics.
func (ctx *Context) Release() {
	if ctx.released {
		return
	}
	ctx.released = true
	for i, seg := range ctx.segments {
		putSegment(seg)
		ctx.segments[i] = nil
	}
	ctx.segments = nil
	ctx.cur = nil
	ctx.names.Reset()
}

func (ctx *Context) IsReleased() bool {
	return ctx.released
}

func (ctx *Context) checkAlive() {
	if ctx.released {
		panic("blit: use of Context after Release")
	}
}
