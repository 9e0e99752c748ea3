package natstransport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cachestream/cache"
	"github.com/c360/cachestream/message"
	"github.com/c360/cachestream/rgmid"
	"github.com/c360/cachestream/sdt"
)

func TestSubjectMapping(t *testing.T) {
	tests := []struct {
		topic   string
		subject string
	}{
		{"orders/filled", "orders.filled"},
		{"orders/*", "orders.*"},
		{"orders/>", "orders.>"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.subject, ToSubject(tt.topic))
		assert.Equal(t, tt.topic, FromSubject(tt.subject))
	}
}

func TestMessageEnvelopeRoundTrip(t *testing.T) {
	m := message.New()
	defer func() { require.NoError(t, m.Free()) }()

	m.SetDestination(sdt.Destination{Name: "orders/filled"})
	m.SetApplicationMessageID("msg-9")
	m.SetSenderID("sender-a")
	m.SetSequenceNumber(44)
	m.SetSenderTimestamp(time.Unix(0, 1700000000000000000))
	require.NoError(t, m.SetBinaryAttachment([]byte{1, 2, 3}))

	props, err := m.CreateUserPropertyMap()
	require.NoError(t, err)
	require.NoError(t, props.AddString("tenant", "acme"))

	enc, err := EncodeMessage(m)
	require.NoError(t, err)

	now := time.Now()
	dec, err := DecodeMessage("ignored.subject", enc, now)
	require.NoError(t, err)
	defer func() { require.NoError(t, dec.Free()) }()

	dest, ok := dec.Destination()
	require.True(t, ok)
	assert.Equal(t, "orders/filled", dest.Name)
	assert.Equal(t, "msg-9", dec.ApplicationMessageID())
	assert.Equal(t, "sender-a", dec.SenderID())
	seq, ok := dec.SequenceNumber()
	require.True(t, ok)
	assert.Equal(t, int64(44), seq)
	assert.Equal(t, int64(1700000000000000000), dec.SenderTimestamp().UnixNano())
	assert.Equal(t, now, dec.ReceiveTimestamp())

	att, err := dec.BinaryAttachment()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, att)

	view, err := dec.UserPropertyMap()
	require.NoError(t, err)
	tenant, err := view.GetString("tenant")
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant)
}

func TestDecodeMessageRawFallback(t *testing.T) {
	// A payload that is not an envelope map becomes the raw attachment.
	raw := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	m, err := DecodeMessage("orders.filled", raw, time.Now())
	require.NoError(t, err)
	defer func() { require.NoError(t, m.Free()) }()

	dest, ok := m.Destination()
	require.True(t, ok)
	assert.Equal(t, "orders/filled", dest.Name)

	att, err := m.BinaryAttachment()
	require.NoError(t, err)
	assert.Equal(t, raw, att)
}

func TestMessageEnvelopeCarriesRGMID(t *testing.T) {
	id := rgmid.ID{1, 2, 3, 4, 5, 6, 7, 8, 0, 0, 0, 0, 0, 0, 0, 1}
	src := message.NewInbound(message.Inbound{ReplicationID: &id})
	defer func() { require.NoError(t, src.Free()) }()

	enc, err := EncodeMessage(src)
	require.NoError(t, err)

	dec, err := DecodeMessage("x", enc, time.Now())
	require.NoError(t, err)
	defer func() { require.NoError(t, dec.Free()) }()

	got, ok := dec.ReplicationGroupMessageID()
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestResponseRoundTrip(t *testing.T) {
	m1 := message.New()
	m1.SetSenderID("c1")
	m2 := message.New()
	m2.SetSenderID("c2")

	resp := &cache.Response{
		Messages: []*message.Message{m1, m2},
		Suspect:  true,
	}

	enc, err := EncodeResponse(resp)
	require.NoError(t, err)

	dec, err := DecodeResponse(enc, time.Now())
	require.NoError(t, err)

	assert.True(t, dec.Suspect)
	assert.False(t, dec.NoData)
	require.Len(t, dec.Messages, 2)
	assert.Equal(t, "c1", dec.Messages[0].SenderID())
	assert.Equal(t, "c2", dec.Messages[1].SenderID())
}

func TestEmptyResponseRoundTrip(t *testing.T) {
	enc, err := EncodeResponse(&cache.Response{NoData: true})
	require.NoError(t, err)

	dec, err := DecodeResponse(enc, time.Now())
	require.NoError(t, err)
	assert.True(t, dec.NoData)
	assert.Empty(t, dec.Messages)
}

func TestDecodeResponseRejectsGarbage(t *testing.T) {
	_, err := DecodeResponse([]byte{0x00}, time.Now())
	require.Error(t, err)
}

func TestTransportStatusLifecycle(t *testing.T) {
	tr := New("nats://localhost:4222", WithRequestPrefix("test.cache"))
	assert.Equal(t, StatusDisconnected, tr.Status())

	// Without a connection every operation reports the transient
	// no-connection condition.
	_, err := tr.Subscribe(context.Background(), "orders/filled", func(*message.Message) {})
	require.Error(t, err)
}
