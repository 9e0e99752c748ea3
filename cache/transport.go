package cache

import (
	"context"

	"github.com/c360/cachestream/errors"
	"github.com/c360/cachestream/message"
	"github.com/c360/cachestream/sdt"
)

// MessageHandler receives one delivered message. The receiver owns the
// message and must free it.
type MessageHandler func(*message.Message)

// Unsubscribe tears down one subscription leg.
type Unsubscribe func() error

// Response is a decoded cache response: the cached messages plus the
// cluster's data-quality flags.
type Response struct {
	Messages []*message.Message
	Suspect  bool
	NoData   bool
}

// RequestSpec is one outbound cache request as handed to the transport.
type RequestSpec struct {
	CacheName     string
	Topic         string
	MaxMessages   int
	MaxAgeSeconds int
	ReplyTo       string

	// Optional sequence range for multi-message replay.
	SequenceStart uint64
	SequenceEnd   uint64
	HasRange      bool
}

// Transport moves bytes for a cache session. Implementations must be safe
// for concurrent use; the session issues many requests at once.
type Transport interface {
	// Subscribe opens a live subscription on topic, delivering inbound
	// messages to handler until the returned Unsubscribe is called.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Unsubscribe, error)

	// CacheRequest performs one request/reply exchange with the cache
	// cluster. It honors ctx cancellation and deadline.
	CacheRequest(ctx context.Context, spec RequestSpec) (*Response, error)
}

// Field names of the request wire form.
const (
	fieldCacheName = "cache"
	fieldTopic     = "topic"
	fieldMaxMsgs   = "max-msgs"
	fieldMaxAge    = "max-age"
	fieldReplyTo   = "reply-to"
	fieldSeqStart  = "seq-start"
	fieldSeqEnd    = "seq-end"
)

// EncodeRequest renders a request spec as an SDT map for the wire.
func EncodeRequest(spec RequestSpec) ([]byte, error) {
	m := sdt.NewMap()
	if err := m.AddString(fieldCacheName, spec.CacheName); err != nil {
		return nil, errors.Wrap(err, "Cache", "EncodeRequest", "add cache name")
	}
	if err := m.AddString(fieldTopic, spec.Topic); err != nil {
		return nil, errors.Wrap(err, "Cache", "EncodeRequest", "add topic")
	}
	if err := m.AddInt32(fieldMaxMsgs, int32(spec.MaxMessages)); err != nil {
		return nil, errors.Wrap(err, "Cache", "EncodeRequest", "add max messages")
	}
	if err := m.AddInt32(fieldMaxAge, int32(spec.MaxAgeSeconds)); err != nil {
		return nil, errors.Wrap(err, "Cache", "EncodeRequest", "add max age")
	}
	if spec.ReplyTo != "" {
		if err := m.AddString(fieldReplyTo, spec.ReplyTo); err != nil {
			return nil, errors.Wrap(err, "Cache", "EncodeRequest", "add reply-to")
		}
	}
	if spec.HasRange {
		if err := m.AddUInt64(fieldSeqStart, spec.SequenceStart); err != nil {
			return nil, errors.Wrap(err, "Cache", "EncodeRequest", "add sequence start")
		}
		if err := m.AddUInt64(fieldSeqEnd, spec.SequenceEnd); err != nil {
			return nil, errors.Wrap(err, "Cache", "EncodeRequest", "add sequence end")
		}
	}
	return m.Encode()
}

// DecodeRequest parses the wire form produced by EncodeRequest. It exists
// for transports that also serve the responding side in tests.
func DecodeRequest(data []byte) (RequestSpec, error) {
	m, err := sdt.DecodeMap(data)
	if err != nil {
		return RequestSpec{}, errors.WrapInvalid(err, "Cache", "DecodeRequest", "decode request map")
	}

	var spec RequestSpec
	if spec.CacheName, err = m.GetString(fieldCacheName); err != nil {
		return RequestSpec{}, errors.WrapInvalid(err, "Cache", "DecodeRequest", "missing cache name")
	}
	if spec.Topic, err = m.GetString(fieldTopic); err != nil {
		return RequestSpec{}, errors.WrapInvalid(err, "Cache", "DecodeRequest", "missing topic")
	}
	maxMsgs, err := m.GetInt32(fieldMaxMsgs)
	if err != nil {
		return RequestSpec{}, errors.WrapInvalid(err, "Cache", "DecodeRequest", "missing max messages")
	}
	spec.MaxMessages = int(maxMsgs)
	maxAge, err := m.GetInt32(fieldMaxAge)
	if err != nil {
		return RequestSpec{}, errors.WrapInvalid(err, "Cache", "DecodeRequest", "missing max age")
	}
	spec.MaxAgeSeconds = int(maxAge)
	if replyTo, err := m.GetString(fieldReplyTo); err == nil {
		spec.ReplyTo = replyTo
	}
	if start, err := m.GetUInt64(fieldSeqStart); err == nil {
		end, err := m.GetUInt64(fieldSeqEnd)
		if err != nil {
			return RequestSpec{}, errors.WrapInvalid(err, "Cache", "DecodeRequest",
				"sequence start without sequence end")
		}
		spec.SequenceStart = start
		spec.SequenceEnd = end
		spec.HasRange = true
	}
	return spec, nil
}
