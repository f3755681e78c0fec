package blit

import (
	"fmt"
	"iter"
	"slices"
)

// ObjectEdits is a pending change set over an object: values set by name and
// names removed. It never touches the encoded bytes of the object it edits.
//
// The effective properties are the original ones minus the removed ones, with
// set values shadowing originals of the same name, followed by newly added
// names in the order they were first set.
type ObjectEdits struct {
	base    Object
	keys    []string // set names, in insertion order
	vals    map[string]Value
	removed map[string]struct{}
}

// NewObject returns edits over an empty object, i.e. a new object.
func NewObject() *ObjectEdits {
	return &ObjectEdits{}
}

func (e *ObjectEdits) Base() Object {
	return e.base
}

// IsEmpty returns whether e has no pending changes.
func (e *ObjectEdits) IsEmpty() bool {
	return len(e.keys) == 0 && len(e.removed) == 0
}

// Set assigns a value to a property, un-marking its removal if needed. v is
// converted with ValueOf; values that cannot be encoded are reported by the
// writers.
func (e *ObjectEdits) Set(name string, v any) {
	if e.vals == nil {
		e.vals = make(map[string]Value)
	}
	if _, found := e.vals[name]; !found {
		e.keys = append(e.keys, name)
	}
	e.vals[name] = ValueOf(v)
	delete(e.removed, name)
}

// Remove deletes a property. Removing a property that does not exist has no
// visible effect; the marker only matters if e is later attached to an object
// that has the property.
func (e *ObjectEdits) Remove(name string) {
	if _, found := e.vals[name]; found {
		delete(e.vals, name)
		if i := slices.Index(e.keys, name); i >= 0 {
			e.keys = slices.Delete(e.keys, i, i+1)
		}
	}
	if e.removed == nil {
		e.removed = make(map[string]struct{})
	}
	e.removed[name] = struct{}{}
}

// Unremove cancels a previous Remove of an original property.
func (e *ObjectEdits) Unremove(name string) {
	delete(e.removed, name)
}

func (e *ObjectEdits) IsRemoved(name string) bool {
	_, found := e.removed[name]
	return found
}

// Get returns the effective value of a property.
func (e *ObjectEdits) Get(name string) (Value, bool) {
	if v, found := e.vals[name]; found {
		return v, true
	}
	if e.IsRemoved(name) {
		return Value{}, false
	}
	return e.base.Get(name)
}

func (e *ObjectEdits) Has(name string) bool {
	_, found := e.Get(name)
	return found
}

// Len returns the number of effective properties.
func (e *ObjectEdits) Len() int {
	n := e.base.Len()
	for name := range e.removed {
		if e.base.Has(name) {
			n--
		}
	}
	for _, k := range e.keys {
		if !e.base.Has(k) {
			n++
		}
	}
	return n
}

// All yields the effective properties: original ones in declaration order
// (with set values substituted in place), then added ones in insertion order.
func (e *ObjectEdits) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for name, v := range e.base.InOrder() {
			if e.IsRemoved(name) {
				continue
			}
			if nv, found := e.vals[name]; found {
				v = nv
			}
			if !yield(name, v) {
				return
			}
		}
		for _, name := range e.keys {
			if e.base.Has(name) {
				continue
			}
			if !yield(name, e.vals[name]) {
				return
			}
		}
	}
}

// EditObject returns a mutable handle of a nested object property. An absent
// property is created as an empty object. Returns false if the property holds
// a non-object value.
func (e *ObjectEdits) EditObject(name string) (*ObjectEdits, bool) {
	v, found := e.Get(name)
	if !found {
		child := NewObject()
		e.Set(name, child)
		return child, true
	}
	return editObjectValue(v)
}

// EditArray is like EditObject, but for arrays.
func (e *ObjectEdits) EditArray(name string) (*ArrayEdits, bool) {
	v, found := e.Get(name)
	if !found {
		child := NewArray()
		e.Set(name, child)
		return child, true
	}
	return editArrayValue(v)
}

func editObjectValue(v Value) (*ObjectEdits, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	if v.oedits != nil {
		return v.oedits, true
	}
	return v.obj.Modify(), true
}

func editArrayValue(v Value) (*ArrayEdits, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	if v.aedits != nil {
		return v.aedits, true
	}
	return v.arr.Modify(), true
}

// arrayItem is either a reference to an original item (orig >= 0) or a new
// value.
type arrayItem struct {
	orig int
	val  Value
}

// ArrayEdits is a pending change set over an array, kept as the effective item
// list. Removal compacts the list, so indices always refer to the current
// effective items.
type ArrayEdits struct {
	base     Array
	items    []arrayItem
	modified bool
}

// NewArray returns edits over an empty array, i.e. a new array.
func NewArray() *ArrayEdits {
	return &ArrayEdits{}
}

func (e *ArrayEdits) rebase(a Array) {
	added := e.items
	e.base = a
	e.items = make([]arrayItem, 0, a.Len()+len(added))
	for i := range a.Len() {
		e.items = append(e.items, arrayItem{orig: i})
	}
	for _, item := range added {
		if item.orig < 0 {
			e.items = append(e.items, item)
		}
	}
}

func (e *ArrayEdits) Base() Array {
	return e.base
}

func (e *ArrayEdits) IsEmpty() bool {
	return !e.modified
}

func (e *ArrayEdits) Len() int {
	return len(e.items)
}

func (e *ArrayEdits) item(it arrayItem) Value {
	if it.orig >= 0 {
		v, err := e.base.Get(it.orig)
		if err != nil {
			panic(err)
		}
		return v
	}
	return it.val
}

func (e *ArrayEdits) Get(i int) (Value, error) {
	if err := checkIndex(i, len(e.items)); err != nil {
		return Value{}, err
	}
	return e.item(e.items[i]), nil
}

func (e *ArrayEdits) Set(i int, v any) error {
	if err := checkIndex(i, len(e.items)); err != nil {
		return err
	}
	e.items[i] = arrayItem{orig: -1, val: ValueOf(v)}
	e.modified = true
	return nil
}

func (e *ArrayEdits) Append(vs ...any) {
	for _, v := range vs {
		e.items = append(e.items, arrayItem{orig: -1, val: ValueOf(v)})
	}
	e.modified = true
}

// Insert inserts v before the item at index i; i == Len() appends.
func (e *ArrayEdits) Insert(i int, v any) error {
	if err := checkIndex(i, len(e.items)+1); err != nil {
		return err
	}
	e.items = slices.Insert(e.items, i, arrayItem{orig: -1, val: ValueOf(v)})
	e.modified = true
	return nil
}

// RemoveAt removes the item at index i, shifting the following items down.
func (e *ArrayEdits) RemoveAt(i int) error {
	if err := checkIndex(i, len(e.items)); err != nil {
		return err
	}
	e.items = slices.Delete(e.items, i, i+1)
	e.modified = true
	return nil
}

func (e *ArrayEdits) All() iter.Seq2[int, Value] {
	return func(yield func(int, Value) bool) {
		for i, it := range e.items {
			if !yield(i, e.item(it)) {
				return
			}
		}
	}
}

func (e *ArrayEdits) EditObject(i int) (*ObjectEdits, error) {
	v, err := e.Get(i)
	if err != nil {
		return nil, err
	}
	child, ok := editObjectValue(v)
	if !ok {
		return nil, fmt.Errorf("blit: item %d is %v, not an object", i, v.kind)
	}
	return child, nil
}

func (e *ArrayEdits) EditArray(i int) (*ArrayEdits, error) {
	v, err := e.Get(i)
	if err != nil {
		return nil, err
	}
	child, ok := editArrayValue(v)
	if !ok {
		return nil, fmt.Errorf("blit: item %d is %v, not an array", i, v.kind)
	}
	return child, nil
}
