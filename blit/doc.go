/*
Package blit implements a compact self-describing binary document format,
the views that read it in place, and an edit overlay that lets callers change
a parsed document and re-encode it without decoding it first.

# Reading

A Context scopes one operation. Context.Parse validates a buffer once and
returns a Document; its Object and Array views decode values lazily straight
from the bytes. Property lookup is a binary search over the document's sorted
string table followed by a binary search over the object's property table.
Views are only valid until the Context is released.

# Editing

Object.Modify and Array.Modify attach an ObjectEdits or ArrayEdits to a view.
The edits record set and removed properties, or the effective item list of an
array; the encoded bytes are never touched. NewObject and NewArray create
containers from scratch.

# Writing

Serialize, AppendBinary and Context.Build merge every pending edit reachable
from a value into a new self-contained document. The writer plans the
effective tree first, picks the narrowest offset width that fits, then emits
values bottom-up. AppendJSON renders the same tree as JSON text, either in
declaration order or sorted by name.

Context.ReadJSON and Context.ReadMsgpack convert JSON text and msgpack data
into documents.
*/
package blit
