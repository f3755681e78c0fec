package blit

import (
	"testing"
)

const initialJSON = `{"Name":"Oren","Dogs":["Arava","Oscar","Sunny"],"State":{"Sleep":false}}`

func assertAfterRoundTrip(t *testing.T, mutate func(root Object), expected string) {
	t.Helper()
	ctx := newContext(t)
	doc := parse(t, ctx, initialJSON)
	mutate(doc.Object())
	out := must(ctx.Build(doc.Root()))
	eq(t, jsonText(t, out.Root(), true), expected)
}

func TestEdits_add_property(t *testing.T) {
	assertAfterRoundTrip(t, func(root Object) {
		root.Modify().Set("Age", 34)
	}, `{"Name":"Oren","Dogs":["Arava","Oscar","Sunny"],"State":{"Sleep":false},"Age":34}`)
}

func TestEdits_modify_array_property(t *testing.T) {
	assertAfterRoundTrip(t, func(root Object) {
		dogs, _ := root.Get("Dogs")
		e := dogs.Array().Modify()
		e.Append("Phoebe")
		ensure(e.RemoveAt(2))
	}, `{"Name":"Oren","Dogs":["Arava","Oscar","Phoebe"],"State":{"Sleep":false}}`)
}

func TestEdits_attach_array_additions(t *testing.T) {
	assertAfterRoundTrip(t, func(root Object) {
		dogs, _ := root.Get("Dogs")
		e := NewArray()
		e.Append("Phoebe")
		dogs.Array().Attach(e)
		ensure(e.RemoveAt(2))
	}, `{"Name":"Oren","Dogs":["Arava","Oscar","Phoebe"],"State":{"Sleep":false}}`)
}

func TestEdits_modify_nested_object_property(t *testing.T) {
	assertAfterRoundTrip(t, func(root Object) {
		state, _ := root.Get("State")
		state.Object().Modify().Set("Sleep", true)
	}, `{"Name":"Oren","Dogs":["Arava","Oscar","Sunny"],"State":{"Sleep":true}}`)
}

func TestEdits_remove_and_add_property(t *testing.T) {
	assertAfterRoundTrip(t, func(root Object) {
		e := root.Modify()
		e.Set("Pie", 3.147)
		e.Remove("Dogs")
	}, `{"Name":"Oren","State":{"Sleep":false},"Pie":3.147}`)
}

func TestEdits_add_and_remove_property(t *testing.T) {
	assertAfterRoundTrip(t, func(root Object) {
		root.Modify().Remove("Dogs")
	}, `{"Name":"Oren","State":{"Sleep":false}}`)
}

func TestEdits_remove_is_idempotent(t *testing.T) {
	ctx := newContext(t)
	doc := parse(t, ctx, initialJSON)
	e := doc.Object().Modify()
	e.Remove("Dogs")
	once := jsonText(t, doc.Root(), true)
	e.Remove("Dogs")
	eq(t, jsonText(t, doc.Root(), true), once)
	eq(t, e.Len(), 2)
}

func TestEdits_remove_absent_is_noop(t *testing.T) {
	ctx := newContext(t)
	doc := parse(t, ctx, initialJSON)
	e := doc.Object().Modify()
	e.Remove("Cats")
	eq(t, e.Len(), 3)
	eq(t, e.Has("Cats"), false)
	eq(t, jsonText(t, doc.Root(), true), initialJSON)
}

func TestEdits_set_shadows_original_in_place(t *testing.T) {
	ctx := newContext(t)
	doc := parse(t, ctx, initialJSON)
	e := doc.Object().Modify()
	e.Set("Name", "Ayende")
	v, ok := e.Get("Name")
	eq(t, ok, true)
	eq(t, v.String(), `"Ayende"`)
	eq(t, e.Len(), 3)

	out := rebuild(t, ctx, doc.Root())
	eq(t, jsonText(t, out.Root(), true), `{"Name":"Ayende","Dogs":["Arava","Oscar","Sunny"],"State":{"Sleep":false}}`)

	// the original bytes are untouched
	orig, _ := doc.Object().Get("Name")
	eq(t, orig.String(), `"Oren"`)
}

func TestEdits_set_after_remove_restores_property(t *testing.T) {
	ctx := newContext(t)
	doc := parse(t, ctx, initialJSON)
	e := doc.Object().Modify()
	e.Remove("Name")
	eq(t, e.IsRemoved("Name"), true)
	eq(t, e.Has("Name"), false)
	e.Set("Name", "Oscar")
	eq(t, e.IsRemoved("Name"), false)
	eq(t, jsonText(t, doc.Root(), true), `{"Name":"Oscar","Dogs":["Arava","Oscar","Sunny"],"State":{"Sleep":false}}`)
}

func TestEdits_remove_added_property(t *testing.T) {
	ctx := newContext(t)
	doc := parse(t, ctx, initialJSON)
	e := doc.Object().Modify()
	e.Set("Age", 34)
	e.Remove("Age")
	eq(t, e.Has("Age"), false)
	eq(t, e.Len(), 3)
	eq(t, jsonText(t, doc.Root(), true), initialJSON)
}

func TestEdits_unremove(t *testing.T) {
	ctx := newContext(t)
	doc := parse(t, ctx, initialJSON)
	e := doc.Object().Modify()
	e.Remove("State")
	e.Unremove("State")
	eq(t, jsonText(t, doc.Root(), true), initialJSON)
}

func TestEdits_order_preserved_or_sorted(t *testing.T) {
	ctx := newContext(t)
	doc := parse(t, ctx, `{"b":1,"c":2,"a":3}`)
	eq(t, jsonText(t, doc.Root(), true), `{"b":1,"c":2,"a":3}`)
	eq(t, jsonText(t, doc.Root(), false), `{"a":3,"b":1,"c":2}`)

	e := doc.Object().Modify()
	e.Set("0", 0)
	e.Remove("c")
	eq(t, jsonText(t, doc.Root(), true), `{"b":1,"a":3,"0":0}`)
	eq(t, jsonText(t, doc.Root(), false), `{"0":0,"a":3,"b":1}`)

	out := rebuild(t, ctx, doc.Root())
	deepEqual(t, out.Object().Names(), []string{"b", "a", "0"})
}

func TestEdits_nested_composition(t *testing.T) {
	ctx := newContext(t)
	doc := parse(t, ctx, initialJSON)
	root := doc.Object().Modify()
	root.Set("Age", 34)

	state, ok := root.EditObject("State")
	eq(t, ok, true)
	state.Set("Awake", true)

	dogs, ok := root.EditArray("Dogs")
	eq(t, ok, true)
	ensure(dogs.Set(0, "Pheobe"))

	cats, ok := root.EditArray("Cats")
	eq(t, ok, true)
	cats.Append("Tom")

	_, ok = root.EditObject("Name")
	eq(t, ok, false)

	eq(t, doc.IsModified(), true)
	out := rebuild(t, ctx, doc.Root())
	eq(t, out.IsModified(), false)
	eq(t, jsonText(t, out.Root(), true), `{"Name":"Oren","Dogs":["Pheobe","Oscar","Sunny"],"State":{"Sleep":false,"Awake":true},"Age":34,"Cats":["Tom"]}`)

	// a second handle on the same nested view is the same edit set
	s, _ := doc.Object().Get("State")
	eq(t, s.Object().Modify(), state)
}

func TestEdits_nested_via_array_items(t *testing.T) {
	ctx := newContext(t)
	doc := parse(t, ctx, `{"items":[{"n":1},[1,2],3]}`)
	items, _ := doc.Object().Get("items")
	e := items.Array().Modify()

	obj := must(e.EditObject(0))
	obj.Set("m", 2)
	arr := must(e.EditArray(1))
	arr.Append(3)
	_, err := e.EditObject(2)
	if err == nil {
		t.Fatalf("** expected an error editing a number as an object")
	}
	_, err = e.EditArray(7)
	isErr(t, err, ErrIndexOutOfRange)

	eq(t, jsonText(t, doc.Root(), true), `{"items":[{"n":1,"m":2},[1,2,3],3]}`)
}

func TestEdits_fresh_containers(t *testing.T) {
	ctx := newContext(t)
	root := NewObject()
	root.Set("name", "Arava")
	tags := NewArray()
	tags.Append("dog", "good")
	root.Set("tags", tags)
	child, _ := root.EditObject("owner")
	child.Set("name", "Oren")
	root.Set("age", map[string]any{"years": 7, "months": 2})
	root.Set("misc", []any{nil, true, 1.5})

	doc := must(ctx.Build(EditedObject(root)))
	eq(t, jsonText(t, doc.Root(), true), `{"name":"Arava","tags":["dog","good"],"owner":{"name":"Oren"},"age":{"months":2,"years":7},"misc":[null,true,1.5]}`)
}

func TestEdits_attach_replaces_previous(t *testing.T) {
	ctx := newContext(t)
	doc := parse(t, ctx, initialJSON)
	o := doc.Object()

	e1 := NewObject()
	e1.Set("A", 1)
	o.Attach(e1)
	e2 := NewObject()
	e2.Set("B", 2)
	e2.Remove("State")
	o.Attach(e2)
	eq(t, o.Edits(), e2)
	eq(t, e2.Base().Len(), 3)
	eq(t, jsonText(t, doc.Root(), true), `{"Name":"Oren","Dogs":["Arava","Oscar","Sunny"],"B":2}`)

	o.Detach()
	eq(t, o.Edits() == nil, true)
	eq(t, doc.IsModified(), false)
	eq(t, jsonText(t, doc.Root(), true), initialJSON)
}

func TestEdits_modify_returns_attached(t *testing.T) {
	ctx := newContext(t)
	doc := parse(t, ctx, initialJSON)
	e := doc.Object().Modify()
	eq(t, doc.Object().Modify(), e)
	eq(t, e.IsEmpty(), true)
	e.Set("x", 1)
	eq(t, e.IsEmpty(), false)
}

func TestArrayEdits_operations(t *testing.T) {
	ctx := newContext(t)
	doc := parse(t, ctx, `[10,20,30]`)
	e := doc.Root().Array().Modify()
	eq(t, e.IsEmpty(), true)
	eq(t, e.Len(), 3)

	ensure(e.Insert(0, 5))
	ensure(e.Insert(4, 40))
	ensure(e.Set(2, "twenty"))
	ensure(e.RemoveAt(3))
	eq(t, e.Len(), 4)
	eq(t, must(e.Get(1)).String(), "10")
	eq(t, jsonText(t, EditedArray(e), true), `[5,10,"twenty",40]`)

	isErr(t, e.RemoveAt(4), ErrIndexOutOfRange)
	isErr(t, e.Set(-1, 0), ErrIndexOutOfRange)
	isErr(t, e.Insert(6, 0), ErrIndexOutOfRange)
	_, err := e.Get(4)
	isErr(t, err, ErrIndexOutOfRange)

	var got []string
	for i, v := range e.All() {
		got = append(got, v.String())
		if i == 1 {
			break
		}
	}
	deepEqual(t, got, []string{"5", "10"})

	// rendering a view applies its edits, Get reads the original bytes
	eq(t, jsonText(t, ArrayOf(doc.Root().Array()), true), `[5,10,"twenty",40]`)
	eq(t, must(doc.Root().Array().Get(1)).String(), "20")
}

func TestArrayEdits_remove_all(t *testing.T) {
	ctx := newContext(t)
	doc := parse(t, ctx, `{"a":[1,2,3]}`)
	a, _ := doc.Object().Get("a")
	e := a.Array().Modify()
	for e.Len() > 0 {
		ensure(e.RemoveAt(0))
	}
	out := rebuild(t, ctx, doc.Root())
	eq(t, jsonText(t, out.Root(), true), `{"a":[]}`)
}
