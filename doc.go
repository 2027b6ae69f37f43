/*
Package pkstore implements an ordered key-value store of structured records
addressed by composite (partition key, sort key) pairs, on top of a pluggable
key-value engine (Bolt, LevelDB, SQLite, or memory).

We implement:

1. Composite keys, encoded so that byte order matches key order.

2. Records, bags of named fields with one designated “entity type” field,
encoded with MsgPack (or JSON) inside a checksummed envelope.

3. A Store exposing get/put/delete and lazy ordered iteration over keys,
values and entries.

4. Change events (put, delete, closed) delivered synchronously to
subscribers.

# Technical Details

**Iteration is not a snapshot.**
Scans read the engine in short pages and resume strictly after the last key
seen, so no engine transaction or lock is held while the caller processes
an entry. A mutation at or after the cursor may or may not show up later in
the same scan. Callers that write while iterating must be prepared to see
their own writes again.

**Events.**
A put or delete is announced after the engine applied it and before the call
returns. Writes and their announcements are serialized per store, so every
subscriber observes the same total order, and “closed” is always last.
Listeners may read the store while being notified, but must not write to it.

## Binary encoding

**Key encoding**: PK element, then SK element. Each element is the raw
string with every 0x00 byte written as 0x00 0xFF, followed by the
terminator 0x00 0x01. Since the terminator sorts below any escaped or
regular byte, bytewise comparison of encoded keys matches comparison of
(PK, SK) tuples.

**Value**: value header, then encoded data, then an optional checksum.

**Value header**:
1. Flags (uvarint).
2. Format version (uvarint).
3. Data size (uvarint).

**Value data**: msgpack (or JSON) of the record's field map, keys sorted.
Records hold normalized values: integers are int64 (uint64 above
math.MaxInt64), floats are float64, lists are []any and maps are
map[string]any. Msgpack writes integers in their most compact form, so a
record read back encodes to the same bytes. JSON cannot hold binary
values; integral floats are written with a ".0" fraction so they decode
as floats again.

**Checksum** (if the checksum flag is set): xxhash64 of the data,
8 bytes, little-endian.
*/
package pkstore
