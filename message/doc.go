// Package message implements the message envelope exchanged with the
// cache and live delivery paths.
//
// A Message carries header metadata (destination, delivery mode, sender
// identity, timestamps, expiry) plus at most one binary attachment and one
// user-property map. The attachment holds exactly one representation at a
// time: raw bytes, a string, or a structured container encoded with the
// sdt package. Setting one representation clears any previous one of a
// different kind.
//
// Messages built by the application are created with New and released
// exactly once with Free. Messages delivered by a transport are created
// with NewInbound, which is the only path that populates receive-only
// fields (receive timestamp, redelivered flag, delivery count, guaranteed
// message id, cache status, replication group message id).
//
// Dup creates a second envelope sharing the immutable attachment and
// user-property blocks through reference counting. Content set by copy is
// isolated between the two envelopes; content attached by reference is
// excluded from that isolation and must not be mutated by the caller until
// send completion.
//
// The package keeps process-wide pool statistics for every allocate, free,
// duplicate and reset, readable through PoolStats or Stat and exportable
// to Prometheus with RegisterPoolMetrics.
package message
