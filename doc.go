/*
Package docdb implements a document store on top of a key-value store (Bolt,
or an in-memory map for tests). Documents are kept in the binary format of
package blit, so reading a document never decodes more than the properties
actually accessed, and patching one edits an overlay rather than the bytes.

We implement:

1. Collections, named sets of documents keyed by strings.

2. Transactions, each owning a blit.Context that holds every document read or
built within it until the transaction closes.

3. Patches, applying blit.ObjectEdits to a stored document with optional
optimistic concurrency via ETags.

4. Snapshots, exporting a collection into a checksummed file that is later
mapped into memory and read without copying.

# Technical Details

**Buckets.**
Every collection is a bucket nested in the "docs" root bucket.

**Record**: record header, then the encoded document.

**Record header**:
1. Flags (uvarint); the lower 4 bits hold the format version, currently 1.
2. Mod count (uvarint), incremented on every write.

**ETag**: xxhash64 of the encoded document. Writing identical bytes does not
bump the mod count.
*/
package docdb
