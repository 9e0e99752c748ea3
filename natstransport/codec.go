package natstransport

import (
	"strings"
	"time"

	"github.com/c360/cachestream/cache"
	"github.com/c360/cachestream/errors"
	"github.com/c360/cachestream/message"
	"github.com/c360/cachestream/rgmid"
	"github.com/c360/cachestream/sdt"
)

// ToSubject maps a topic to its NATS subject form.
func ToSubject(topic string) string {
	return strings.ReplaceAll(topic, "/", ".")
}

// FromSubject maps a NATS subject back to topic form.
func FromSubject(subject string) string {
	return strings.ReplaceAll(subject, ".", "/")
}

// Envelope field names of the message wire form.
const (
	fieldDestination = "destination"
	fieldReplyTo     = "reply-to"
	fieldAppMsgID    = "app-msg-id"
	fieldAppMsgType  = "app-msg-type"
	fieldSenderID    = "sender-id"
	fieldSequence    = "seq"
	fieldSenderTS    = "sender-ts"
	fieldAttachment  = "attachment"
	fieldUserProps   = "user-props"
	fieldRGMID       = "rgmid"

	fieldSuspect  = "suspect"
	fieldNoData   = "no-data"
	fieldMessages = "messages"
)

// EncodeMessage renders an outbound message envelope as an SDT map.
func EncodeMessage(m *message.Message) ([]byte, error) {
	env := sdt.NewMap()

	if dest, ok := m.Destination(); ok {
		if err := env.AddDestination(fieldDestination, dest); err != nil {
			return nil, err
		}
	}
	if reply, ok := m.ReplyTo(); ok {
		if err := env.AddDestination(fieldReplyTo, reply); err != nil {
			return nil, err
		}
	}
	if v := m.ApplicationMessageID(); v != "" {
		if err := env.AddString(fieldAppMsgID, v); err != nil {
			return nil, err
		}
	}
	if v := m.ApplicationMessageType(); v != "" {
		if err := env.AddString(fieldAppMsgType, v); err != nil {
			return nil, err
		}
	}
	if v := m.SenderID(); v != "" {
		if err := env.AddString(fieldSenderID, v); err != nil {
			return nil, err
		}
	}
	if seq, ok := m.SequenceNumber(); ok {
		if err := env.AddInt64(fieldSequence, seq); err != nil {
			return nil, err
		}
	}
	if ts := m.SenderTimestamp(); !ts.IsZero() {
		if err := env.AddInt64(fieldSenderTS, ts.UnixNano()); err != nil {
			return nil, err
		}
	}
	if id, ok := m.ReplicationGroupMessageID(); ok {
		if err := env.AddString(fieldRGMID, id.String()); err != nil {
			return nil, err
		}
	}
	if att, err := m.BinaryAttachment(); err == nil {
		if err := env.AddByteArray(fieldAttachment, att); err != nil {
			return nil, err
		}
	}
	if props, err := m.UserPropertyMap(); err == nil {
		enc, err := props.Encode()
		if err != nil {
			return nil, err
		}
		if err := env.AddByteArray(fieldUserProps, enc); err != nil {
			return nil, err
		}
	}

	return env.Encode()
}

// DecodeMessage parses a message envelope received on subject at the
// given time. Payloads that do not decode as an envelope map become the
// raw attachment of an otherwise bare message.
func DecodeMessage(subject string, payload []byte, received time.Time) (*message.Message, error) {
	in := message.Inbound{
		Destination:      sdt.Destination{Name: FromSubject(subject)},
		ReceiveTimestamp: received,
	}

	env, err := sdt.DecodeMap(payload)
	if err != nil {
		in.Attachment = payload
		return message.NewInbound(in), nil
	}

	if dest, err := env.GetDestination(fieldDestination); err == nil {
		in.Destination = dest
	}
	if reply, err := env.GetDestination(fieldReplyTo); err == nil {
		in.ReplyTo = &reply
	}
	if v, err := env.GetString(fieldAppMsgID); err == nil {
		in.AppMessageID = v
	}
	if v, err := env.GetString(fieldAppMsgType); err == nil {
		in.AppMessageType = v
	}
	if v, err := env.GetString(fieldSenderID); err == nil {
		in.SenderID = v
	}
	if seq, err := env.GetInt64(fieldSequence); err == nil {
		in.SequenceNumber = &seq
	}
	if ns, err := env.GetInt64(fieldSenderTS); err == nil {
		in.SenderTimestamp = time.Unix(0, ns)
	}
	if s, err := env.GetString(fieldRGMID); err == nil {
		id, err := rgmid.FromString(s)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Transport", "DecodeMessage",
				"malformed replication group message id")
		}
		in.ReplicationID = &id
	}
	if att, err := env.GetBytes(fieldAttachment); err == nil {
		in.Attachment = att
	}
	if props, err := env.GetBytes(fieldUserProps); err == nil {
		in.UserProperties = props
	}

	return message.NewInbound(in), nil
}

// EncodeResponse renders a cache response as an SDT map: the quality
// flags plus a stream of encoded message envelopes.
func EncodeResponse(resp *cache.Response) ([]byte, error) {
	env := sdt.NewMap()
	if err := env.AddBool(fieldSuspect, resp.Suspect); err != nil {
		return nil, err
	}
	if err := env.AddBool(fieldNoData, resp.NoData); err != nil {
		return nil, err
	}

	msgs, err := env.OpenSubStream(fieldMessages)
	if err != nil {
		return nil, err
	}
	for _, m := range resp.Messages {
		enc, err := EncodeMessage(m)
		if err != nil {
			return nil, err
		}
		if err := msgs.AddByteArray(enc); err != nil {
			return nil, err
		}
	}
	if err := msgs.Close(); err != nil {
		return nil, err
	}

	return env.Encode()
}

// DecodeResponse parses a cache response produced by EncodeResponse.
func DecodeResponse(payload []byte, received time.Time) (*cache.Response, error) {
	env, err := sdt.DecodeMap(payload)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Transport", "DecodeResponse",
			"malformed cache response")
	}

	resp := &cache.Response{}
	if resp.Suspect, err = env.GetBool(fieldSuspect); err != nil {
		return nil, errors.WrapInvalid(err, "Transport", "DecodeResponse", "missing suspect flag")
	}
	if resp.NoData, err = env.GetBool(fieldNoData); err != nil {
		return nil, errors.WrapInvalid(err, "Transport", "DecodeResponse", "missing no-data flag")
	}

	msgs, err := env.GetStream(fieldMessages)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Transport", "DecodeResponse", "missing message stream")
	}
	for {
		f, err := msgs.GetNext()
		if err != nil {
			break
		}
		enc, err := f.AsBytes()
		if err != nil {
			return nil, errors.WrapInvalid(err, "Transport", "DecodeResponse",
				"message entry is not a byte array")
		}
		m, err := DecodeMessage("", enc, received)
		if err != nil {
			return nil, err
		}
		resp.Messages = append(resp.Messages, m)
	}
	return resp, nil
}
