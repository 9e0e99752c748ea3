package message

import (
	"time"

	"github.com/c360/cachestream/errors"
	"github.com/c360/cachestream/rgmid"
	"github.com/c360/cachestream/sdt"
)

// DeliveryMode selects the quality of service a message is sent with.
type DeliveryMode uint8

// Delivery modes.
const (
	DeliveryDirect DeliveryMode = iota
	DeliveryPersistent
	DeliveryNonPersistent
)

// String returns the string representation of a DeliveryMode.
func (m DeliveryMode) String() string {
	switch m {
	case DeliveryDirect:
		return "direct"
	case DeliveryPersistent:
		return "persistent"
	case DeliveryNonPersistent:
		return "non-persistent"
	default:
		return "invalid"
	}
}

// CacheStatus reports whether a received message came from the live
// delivery path or from a cache response.
type CacheStatus uint8

// Cache statuses.
const (
	StatusLive CacheStatus = iota
	StatusCached
	StatusSuspect
)

// String returns the string representation of a CacheStatus.
func (s CacheStatus) String() string {
	switch s {
	case StatusLive:
		return "live"
	case StatusCached:
		return "cached"
	case StatusSuspect:
		return "suspect"
	default:
		return "invalid"
	}
}

// Message is a single envelope: header metadata plus at most one binary
// attachment and one user-property map. A Message is not safe for
// concurrent use; callers own synchronization across goroutines.
type Message struct {
	deliveryMode    DeliveryMode
	destination     sdt.Destination
	hasDestination  bool
	replyTo         sdt.Destination
	hasReplyTo      bool
	correlationTag  any // local only, never serialized
	appMessageID    string
	appMessageType  string
	senderID        string
	sequenceNumber  int64
	hasSequence     bool
	senderTimestamp time.Time
	timeToLive      time.Duration
	expiration      time.Time
	classOfService  uint8
	topicSequence   int64
	hasTopicSeq     bool

	discard          bool
	isReply          bool
	dmqEligible      bool
	elidingEligible  bool
	ackImmediately   bool

	// Receive-only, populated by NewInbound.
	receiveTimestamp time.Time
	redelivered      bool
	deliveryCount    uint32
	guaranteedID     uint64
	hasGuaranteedID  bool
	cacheStatus      CacheStatus
	replicationID    rgmid.ID
	hasReplicationID bool

	attachment attachment
	userProps  userProperties

	freed bool
}

// Inbound carries the fields a transport populates when constructing a
// received message. It is the only path that sets receive-only state.
type Inbound struct {
	Destination     sdt.Destination
	ReplyTo         *sdt.Destination
	DeliveryMode    DeliveryMode
	AppMessageID    string
	AppMessageType  string
	SenderID        string
	SequenceNumber  *int64
	SenderTimestamp time.Time

	ReceiveTimestamp time.Time
	Redelivered      bool
	DeliveryCount    uint32
	GuaranteedID     *uint64
	CacheStatus      CacheStatus
	ReplicationID    *rgmid.ID

	Attachment     []byte // encoded attachment, structured or raw
	UserProperties []byte // encoded user-property map
}

// New allocates an empty outbound message. The caller owns it and must
// release it exactly once with Free.
func New() *Message {
	recordAlloc()
	return &Message{}
}

// NewInbound builds a received message from transport-decoded fields.
func NewInbound(in Inbound) *Message {
	m := New()
	m.destination = in.Destination
	m.hasDestination = in.Destination.Name != ""
	if in.ReplyTo != nil {
		m.replyTo = *in.ReplyTo
		m.hasReplyTo = true
	}
	m.deliveryMode = in.DeliveryMode
	m.appMessageID = in.AppMessageID
	m.appMessageType = in.AppMessageType
	m.senderID = in.SenderID
	if in.SequenceNumber != nil {
		m.sequenceNumber = *in.SequenceNumber
		m.hasSequence = true
	}
	m.senderTimestamp = in.SenderTimestamp
	m.receiveTimestamp = in.ReceiveTimestamp
	m.redelivered = in.Redelivered
	m.deliveryCount = in.DeliveryCount
	if in.GuaranteedID != nil {
		m.guaranteedID = *in.GuaranteedID
		m.hasGuaranteedID = true
	}
	m.cacheStatus = in.CacheStatus
	if in.ReplicationID != nil {
		m.replicationID = *in.ReplicationID
		m.hasReplicationID = true
	}
	if len(in.Attachment) > 0 {
		m.attachment.setRawBlock(newBlock(in.Attachment))
	}
	if len(in.UserProperties) > 0 {
		m.userProps.setBlock(newBlock(in.UserProperties))
	}
	return m
}

func (m *Message) checkLive(op string) error {
	if m.freed {
		return errors.WrapInvalid(errors.ErrAlreadyFreed, "Message", op,
			"message has been freed")
	}
	return nil
}

// Free releases the message and every block it owns. A message must be
// freed exactly once; a second Free fails with ErrAlreadyFreed.
func (m *Message) Free() error {
	if err := m.checkLive("Free"); err != nil {
		return err
	}
	m.attachment.clear()
	m.userProps.clear()
	m.freed = true
	recordFree()
	return nil
}

// Reset returns the message to its post-allocate state, releasing the
// attachment and user-property content and zeroing every header field.
func (m *Message) Reset() error {
	if err := m.checkLive("Reset"); err != nil {
		return err
	}
	m.attachment.clear()
	m.userProps.clear()
	*m = Message{}
	recordReset()
	return nil
}

// Dup creates a second message sharing the immutable attachment and
// user-property blocks through reference counts. Copy-in content is
// isolated between the two envelopes; by-reference attachment content is
// shared and must not be mutated until send completion. Both messages
// must be freed independently.
func (m *Message) Dup() (*Message, error) {
	if err := m.checkLive("Dup"); err != nil {
		return nil, err
	}
	d := &Message{}
	*d = *m
	var err error
	d.attachment, err = m.attachment.dup()
	if err != nil {
		return nil, errors.Wrap(err, "Message", "Dup", "snapshot attachment")
	}
	d.userProps = m.userProps.dup()
	recordDup()
	return d, nil
}

// DeliveryMode returns the delivery mode.
func (m *Message) DeliveryMode() DeliveryMode { return m.deliveryMode }

// SetDeliveryMode sets the delivery mode.
func (m *Message) SetDeliveryMode(v DeliveryMode) { m.deliveryMode = v }

// Destination returns the destination, if set.
func (m *Message) Destination() (sdt.Destination, bool) {
	return m.destination, m.hasDestination
}

// SetDestination sets the destination.
func (m *Message) SetDestination(d sdt.Destination) {
	m.destination = d
	m.hasDestination = true
}

// ReplyTo returns the reply-to destination, if set.
func (m *Message) ReplyTo() (sdt.Destination, bool) { return m.replyTo, m.hasReplyTo }

// SetReplyTo sets the reply-to destination.
func (m *Message) SetReplyTo(d sdt.Destination) {
	m.replyTo = d
	m.hasReplyTo = true
}

// CorrelationTag returns the local-only correlation tag. It is never
// serialized on the wire.
func (m *Message) CorrelationTag() any { return m.correlationTag }

// SetCorrelationTag stores a local-only correlation tag.
func (m *Message) SetCorrelationTag(v any) { m.correlationTag = v }

// ApplicationMessageID returns the application message id.
func (m *Message) ApplicationMessageID() string { return m.appMessageID }

// SetApplicationMessageID sets the application message id.
func (m *Message) SetApplicationMessageID(v string) { m.appMessageID = v }

// ApplicationMessageType returns the application message type.
func (m *Message) ApplicationMessageType() string { return m.appMessageType }

// SetApplicationMessageType sets the application message type.
func (m *Message) SetApplicationMessageType(v string) { m.appMessageType = v }

// SenderID returns the sender id.
func (m *Message) SenderID() string { return m.senderID }

// SetSenderID sets the sender id.
func (m *Message) SetSenderID(v string) { m.senderID = v }

// SequenceNumber returns the sequence number, if set.
func (m *Message) SequenceNumber() (int64, bool) { return m.sequenceNumber, m.hasSequence }

// SetSequenceNumber sets the sequence number.
func (m *Message) SetSequenceNumber(v int64) {
	m.sequenceNumber = v
	m.hasSequence = true
}

// SenderTimestamp returns the sender timestamp.
func (m *Message) SenderTimestamp() time.Time { return m.senderTimestamp }

// SetSenderTimestamp sets the sender timestamp.
func (m *Message) SetSenderTimestamp(t time.Time) { m.senderTimestamp = t }

// TimeToLive returns the time-to-live.
func (m *Message) TimeToLive() time.Duration { return m.timeToLive }

// SetTimeToLive sets the time-to-live.
func (m *Message) SetTimeToLive(d time.Duration) { m.timeToLive = d }

// Expiration returns the explicit expiration time.
func (m *Message) Expiration() time.Time { return m.expiration }

// SetExpiration sets an explicit expiration time.
func (m *Message) SetExpiration(t time.Time) { m.expiration = t }

// ClassOfService returns the class of service.
func (m *Message) ClassOfService() uint8 { return m.classOfService }

// SetClassOfService sets the class of service.
func (m *Message) SetClassOfService(v uint8) { m.classOfService = v }

// TopicSequenceNumber returns the topic sequence number, if set.
func (m *Message) TopicSequenceNumber() (int64, bool) { return m.topicSequence, m.hasTopicSeq }

// SetTopicSequenceNumber sets the topic sequence number.
func (m *Message) SetTopicSequenceNumber(v int64) {
	m.topicSequence = v
	m.hasTopicSeq = true
}

// DiscardIndication returns the discard-indication flag.
func (m *Message) DiscardIndication() bool { return m.discard }

// SetDiscardIndication sets the discard-indication flag.
func (m *Message) SetDiscardIndication(v bool) { m.discard = v }

// IsReply returns the reply flag.
func (m *Message) IsReply() bool { return m.isReply }

// SetAsReply marks or unmarks the message as a reply.
func (m *Message) SetAsReply(v bool) { m.isReply = v }

// DMQEligible returns the dead-message-queue eligibility flag.
func (m *Message) DMQEligible() bool { return m.dmqEligible }

// SetDMQEligible sets the dead-message-queue eligibility flag.
func (m *Message) SetDMQEligible(v bool) { m.dmqEligible = v }

// ElidingEligible returns the eliding eligibility flag.
func (m *Message) ElidingEligible() bool { return m.elidingEligible }

// SetElidingEligible sets the eliding eligibility flag.
func (m *Message) SetElidingEligible(v bool) { m.elidingEligible = v }

// AckImmediately returns the ack-immediately flag.
func (m *Message) AckImmediately() bool { return m.ackImmediately }

// SetAckImmediately sets the ack-immediately flag.
func (m *Message) SetAckImmediately(v bool) { m.ackImmediately = v }

// Receive-only accessors. These fields are populated only by NewInbound.

// ReceiveTimestamp returns the time the transport received the message.
func (m *Message) ReceiveTimestamp() time.Time { return m.receiveTimestamp }

// Redelivered reports whether the broker redelivered the message.
func (m *Message) Redelivered() bool { return m.redelivered }

// DeliveryCount returns the broker delivery count.
func (m *Message) DeliveryCount() uint32 { return m.deliveryCount }

// GuaranteedMessageID returns the guaranteed-message id, if present.
func (m *Message) GuaranteedMessageID() (uint64, bool) {
	return m.guaranteedID, m.hasGuaranteedID
}

// CacheStatus reports whether the message came from the live path or a
// cache response.
func (m *Message) CacheStatus() CacheStatus { return m.cacheStatus }

// ReplicationGroupMessageID returns the replication group message id, if
// present.
func (m *Message) ReplicationGroupMessageID() (rgmid.ID, bool) {
	return m.replicationID, m.hasReplicationID
}

// TagCacheStatus marks a received message with its cache disposition. It
// is intended for transport and cache-session implementations only.
func (m *Message) TagCacheStatus(s CacheStatus) { m.cacheStatus = s }
