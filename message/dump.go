package message

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// DumpMode selects how much content a Dump includes.
type DumpMode uint8

// Dump modes.
const (
	// DumpBrief prints header fields and only the lengths of the
	// attachment and user-property regions.
	DumpBrief DumpMode = iota
	// DumpFull additionally prints the full content of both regions as a
	// hex dump.
	DumpFull
)

// Dump renders the message in a human-readable form. When limit is
// positive the output is truncated to at most limit bytes. A freed
// message dumps as a one-line marker.
func (m *Message) Dump(mode DumpMode, limit int) string {
	var b strings.Builder

	if m.freed {
		return truncate("Message (freed)\n", limit)
	}

	fmt.Fprintf(&b, "Message (%s)\n", m.deliveryMode)
	if m.hasDestination {
		fmt.Fprintf(&b, "  Destination:         %s\n", m.destination.Name)
	}
	if m.hasReplyTo {
		fmt.Fprintf(&b, "  ReplyTo:             %s\n", m.replyTo.Name)
	}
	if m.appMessageID != "" {
		fmt.Fprintf(&b, "  AppMessageID:        %s\n", m.appMessageID)
	}
	if m.appMessageType != "" {
		fmt.Fprintf(&b, "  AppMessageType:      %s\n", m.appMessageType)
	}
	if m.senderID != "" {
		fmt.Fprintf(&b, "  SenderID:            %s\n", m.senderID)
	}
	if m.hasSequence {
		fmt.Fprintf(&b, "  SequenceNumber:      %d\n", m.sequenceNumber)
	}
	if !m.senderTimestamp.IsZero() {
		fmt.Fprintf(&b, "  SenderTimestamp:     %s\n", m.senderTimestamp.UTC())
	}
	if !m.receiveTimestamp.IsZero() {
		fmt.Fprintf(&b, "  ReceiveTimestamp:    %s\n", m.receiveTimestamp.UTC())
	}
	if m.timeToLive > 0 {
		fmt.Fprintf(&b, "  TimeToLive:          %s\n", m.timeToLive)
	}
	if m.classOfService > 0 {
		fmt.Fprintf(&b, "  ClassOfService:      %d\n", m.classOfService)
	}
	if m.cacheStatus != StatusLive {
		fmt.Fprintf(&b, "  CacheStatus:         %s\n", m.cacheStatus)
	}
	if m.redelivered {
		fmt.Fprintf(&b, "  Redelivered:         true (count %d)\n", m.deliveryCount)
	}
	if m.hasGuaranteedID {
		fmt.Fprintf(&b, "  GuaranteedMessageID: %d\n", m.guaranteedID)
	}
	if m.hasReplicationID {
		fmt.Fprintf(&b, "  ReplicationGroupID:  %s\n", m.replicationID)
	}

	var flags []string
	if m.discard {
		flags = append(flags, "discard")
	}
	if m.isReply {
		flags = append(flags, "reply")
	}
	if m.dmqEligible {
		flags = append(flags, "dmq-eligible")
	}
	if m.elidingEligible {
		flags = append(flags, "eliding-eligible")
	}
	if m.ackImmediately {
		flags = append(flags, "ack-immediately")
	}
	if len(flags) > 0 {
		fmt.Fprintf(&b, "  Flags:               %s\n", strings.Join(flags, ", "))
	}

	if enc, err := m.attachment.encoded(); err == nil {
		fmt.Fprintf(&b, "  Attachment:          %d bytes\n", len(enc))
		if mode == DumpFull {
			dumpHex(&b, enc)
		}
	}
	if enc, ok := m.userProps.encoded(); ok {
		fmt.Fprintf(&b, "  UserProperties:      %d bytes\n", len(enc))
		if mode == DumpFull {
			dumpHex(&b, enc)
		}
	}

	return truncate(b.String(), limit)
}

func dumpHex(b *strings.Builder, data []byte) {
	const perLine = 16
	for off := 0; off < len(data); off += perLine {
		end := off + perLine
		if end > len(data) {
			end = len(data)
		}
		fmt.Fprintf(b, "    %04x  %s\n", off, hex.EncodeToString(data[off:end]))
	}
}

func truncate(s string, limit int) string {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
