// Package sdt implements the structured data type system used for message
// payloads: a set of typed fields, a machine-independent TLV wire codec, and
// Map/Stream containers built on that codec.
//
// # Wire Format
//
// Every field is encoded as a TLV unit: a one-byte type tag, a big-endian
// length field of 1 to 4 bytes, and the payload. The length field holds the
// TOTAL size of the unit (tag + length field + payload) and uses the smallest
// width that fits. Containers always use a 4-byte length field so that they
// can be patched in place while nested content grows.
//
// The encoding is canonical: the same field always produces the same bytes
// regardless of host byte order, so encodings are portable across platforms.
//
// # Containers
//
// A Map is a named multimap of fields: duplicate names are legal and all
// instances persist. A Stream is an ordered sequence read through a cursor.
// Containers are either elastic (grow as needed) or bounded to a fixed
// serialized-byte capacity; adds that would exceed a bound fail with
// errors.ErrInsufficientSpace and leave the container unmodified.
//
// Containers are not safe for concurrent mutation; callers must not share a
// single container across goroutines without their own synchronization.
package sdt
