// Package cachestream provides a messaging-client runtime for retrieving
// cached message streams while live data continues to flow, built on a
// machine-independent structured data codec and a NATS transport binding.
//
// # Architecture
//
// CacheStream is organised as three layers:
//
//	┌─────────────────────────────────────┐
//	│        Cache Session                │  Request state machine,
//	│  (request, cancel, destroy)         │  live-data policies
//	└─────────────────────────────────────┘
//	           ↓ exchanges
//	┌─────────────────────────────────────┐
//	│        Messages                     │  Envelope headers,
//	│  (headers, attachment, user props)  │  structured payloads
//	└─────────────────────────────────────┘
//	           ↓ travel via
//	┌─────────────────────────────────────┐
//	│        Transport                    │  NATS subscriptions,
//	│  (subscribe, request/reply)         │  request/reply
//	└─────────────────────────────────────┘
//
// A cache request asks a message-cache cluster for the most recent
// messages published on a topic. While the request is in flight, live
// messages may arrive on the same topic; the live-data policy decides
// how the two streams interleave:
//
//   - Fulfill: the first live message satisfies the request immediately.
//   - Queue: live data is buffered and replayed after the cached data.
//   - FlowThrough: live data is delivered as it arrives, cached data
//     follows when the cluster responds.
//
// Every request reaches exactly one terminal outcome - completed, timed
// out, or cancelled - delivered synchronously to the blocking caller or
// once through a completion callback.
//
// # Packages
//
// Core:
//   - sdt: structured data types - a machine-independent TLV codec with
//     Map and Stream containers
//   - message: message envelope with header fields, a single attachment
//     region, user properties, and pooled-allocation statistics
//   - rgmid: replication group message id, a 16-byte broker-assigned
//     ordering token
//   - cache: cache session, request flags and policies, configuration
//
// Infrastructure:
//   - natstransport: cache.Transport implementation over NATS
//   - metric: Prometheus metrics registry
//   - errors: classified error handling (transient/invalid/fatal)
//   - pkg/buffer: bounded FIFO used to queue live data
//
// # Usage
//
// Issue a cache request with live data queued behind cached data:
//
//	transport := natstransport.New("nats://localhost:4222")
//	if err := transport.Connect(); err != nil {
//		return err
//	}
//	defer transport.Close()
//
//	cfg := cache.DefaultConfig()
//	cfg.CacheName = "orders-cache"
//
//	session, err := cache.NewSession(transport, cfg, func(m *message.Message) {
//		fmt.Print(m.Dump(message.DumpBrief, 0))
//		m.Free()
//	})
//	if err != nil {
//		return err
//	}
//	defer session.Destroy()
//
//	outcome, err := session.CacheRequest(ctx, cache.Request{
//		RequestID: 1,
//		Topic:     "orders/filled",
//		Flags:     cache.LiveDataQueue,
//	})
//
// Structured payloads use the sdt containers:
//
//	m := message.New()
//	body, _ := m.CreateBinaryAttachmentMap()
//	body.AddString("symbol", "ACME")
//	body.AddFloat64("price", 101.25)
//
// # Design Principles
//
// Explicit ownership:
//   - Messages are freed exactly once; Dup shares payload blocks by
//     reference count instead of copying
//   - By-reference attachment is a documented contract, not a copy
//
// Bounded resources:
//   - Containers can be capacity-bounded in serialized bytes
//   - Outstanding cache requests are capped with a configurable
//     block-or-fail backpressure policy
//
// Testability:
//   - The transport is an interface; the cache state machine is tested
//     against an in-memory fake
//   - Pool and session statistics are always on, Prometheus export is
//     optional
package cachestream
