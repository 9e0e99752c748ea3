package message

import (
	"sync/atomic"

	"github.com/c360/cachestream/errors"
	"github.com/c360/cachestream/sdt"
)

// Container is the subset of sdt container behavior the envelope needs
// for attachment composition. Both *sdt.Map and *sdt.Stream satisfy it.
type Container interface {
	Encode() ([]byte, error)
	Size() (int, error)
	Close() error
}

// block is an immutable data block shared between duplicated messages.
// The last release returns it to the pool accounting.
type block struct {
	refs atomic.Int64
	data []byte
}

func newBlock(data []byte) *block {
	b := &block{data: data}
	b.refs.Store(1)
	recordBlockAlloc(len(data))
	return b
}

func (b *block) retain() {
	b.refs.Add(1)
}

func (b *block) release() {
	if b.refs.Add(-1) == 0 {
		recordBlockFree(len(b.data))
		b.data = nil
	}
}

type attachmentKind uint8

const (
	attachNone attachmentKind = iota
	attachRaw
	attachString
	attachContainer    // encoded container bytes, set by copy
	attachContainerRef // live container attached by reference
	attachContainerOpen
)

// attachment is the single binary-attachment region of a message. Exactly
// one representation is active at a time; setting a new one clears the
// previous.
type attachment struct {
	kind attachmentKind
	blk  *block    // attachRaw, attachContainer
	str  string    // attachString
	ref  Container // attachContainerRef, caller must not mutate until send completes
	open Container // attachContainerOpen, owned by the message
}

func (a *attachment) clear() {
	if a.blk != nil {
		a.blk.release()
		a.blk = nil
	}
	if a.open != nil {
		_ = a.open.Close()
		a.open = nil
	}
	a.ref = nil
	a.str = ""
	a.kind = attachNone
}

func (a *attachment) setRawBlock(b *block) {
	a.clear()
	a.kind = attachRaw
	a.blk = b
}

// dup snapshots the attachment for a duplicated message. Blocks are
// shared by reference count; an open writable container is serialized so
// the duplicate is isolated from further writes; a by-reference container
// stays shared.
func (a *attachment) dup() (attachment, error) {
	d := attachment{kind: a.kind, str: a.str, ref: a.ref}
	switch a.kind {
	case attachRaw, attachContainer:
		a.blk.retain()
		d.blk = a.blk
	case attachContainerOpen:
		enc, err := a.open.Encode()
		if err != nil {
			return attachment{}, err
		}
		d.kind = attachContainer
		d.blk = newBlock(enc)
	}
	return d, nil
}

// encoded returns the wire bytes of the attachment, whatever its
// representation.
func (a *attachment) encoded() ([]byte, error) {
	switch a.kind {
	case attachRaw, attachContainer:
		return a.blk.data, nil
	case attachString:
		return []byte(a.str), nil
	case attachContainerRef:
		return a.ref.Encode()
	case attachContainerOpen:
		return a.open.Encode()
	default:
		return nil, errors.WrapInvalid(errors.ErrNotFound, "Message", "attachment",
			"no binary attachment present")
	}
}

// SetBinaryAttachment copies data into the attachment region, replacing
// any previous representation.
func (m *Message) SetBinaryAttachment(data []byte) error {
	if err := m.checkLive("SetBinaryAttachment"); err != nil {
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.attachment.setRawBlock(newBlock(cp))
	return nil
}

// BinaryAttachment returns the raw attachment bytes. The returned slice
// is owned by the message; callers must not modify it. Returns
// ErrNotFound when no attachment is present.
func (m *Message) BinaryAttachment() ([]byte, error) {
	if err := m.checkLive("BinaryAttachment"); err != nil {
		return nil, err
	}
	return m.attachment.encoded()
}

// SetBinaryAttachmentString stores a string attachment, replacing any
// previous representation.
func (m *Message) SetBinaryAttachmentString(s string) error {
	if err := m.checkLive("SetBinaryAttachmentString"); err != nil {
		return err
	}
	m.attachment.clear()
	m.attachment.kind = attachString
	m.attachment.str = s
	return nil
}

// BinaryAttachmentString returns the attachment as a string. Returns
// ErrNotFound unless a string attachment is present.
func (m *Message) BinaryAttachmentString() (string, error) {
	if err := m.checkLive("BinaryAttachmentString"); err != nil {
		return "", err
	}
	if m.attachment.kind != attachString {
		return "", errors.WrapInvalid(errors.ErrNotFound, "Message", "BinaryAttachmentString",
			"attachment is not a string")
	}
	return m.attachment.str, nil
}

// SetBinaryAttachmentContainer serializes the container into the
// attachment region. The message holds its own encoded copy; subsequent
// mutation of the container does not affect the message.
func (m *Message) SetBinaryAttachmentContainer(c Container) error {
	if err := m.checkLive("SetBinaryAttachmentContainer"); err != nil {
		return err
	}
	if c == nil {
		return errors.WrapInvalid(errors.ErrNilHandle, "Message", "SetBinaryAttachmentContainer",
			"nil container")
	}
	enc, err := c.Encode()
	if err != nil {
		return errors.Wrap(err, "Message", "SetBinaryAttachmentContainer", "encode container")
	}
	m.attachment.clear()
	m.attachment.kind = attachContainer
	m.attachment.blk = newBlock(enc)
	return nil
}

// SetBinaryAttachmentContainerByRef attaches the container without
// copying. The caller must not mutate the container until send completes;
// for guaranteed messages the obligation extends until acknowledgment,
// since the message may be retransmitted internally.
func (m *Message) SetBinaryAttachmentContainerByRef(c Container) error {
	if err := m.checkLive("SetBinaryAttachmentContainerByRef"); err != nil {
		return err
	}
	if c == nil {
		return errors.WrapInvalid(errors.ErrNilHandle, "Message", "SetBinaryAttachmentContainerByRef",
			"nil container")
	}
	m.attachment.clear()
	m.attachment.kind = attachContainerRef
	m.attachment.ref = c
	return nil
}

// CreateBinaryAttachmentMap creates a writable map in the attachment
// region, replacing any previous representation. The map is owned by the
// message and is closed when the message is freed or reset.
func (m *Message) CreateBinaryAttachmentMap() (*sdt.Map, error) {
	if err := m.checkLive("CreateBinaryAttachmentMap"); err != nil {
		return nil, err
	}
	mp := sdt.NewMap()
	m.attachment.clear()
	m.attachment.kind = attachContainerOpen
	m.attachment.open = mp
	return mp, nil
}

// CreateBinaryAttachmentStream creates a writable stream in the
// attachment region, replacing any previous representation.
func (m *Message) CreateBinaryAttachmentStream() (*sdt.Stream, error) {
	if err := m.checkLive("CreateBinaryAttachmentStream"); err != nil {
		return nil, err
	}
	st := sdt.NewStream()
	m.attachment.clear()
	m.attachment.kind = attachContainerOpen
	m.attachment.open = st
	return st, nil
}

// BinaryAttachmentMap returns a decode-only view of the attachment as a
// map. Returns ErrNotFound when no structured map data is present.
func (m *Message) BinaryAttachmentMap() (*sdt.Map, error) {
	if err := m.checkLive("BinaryAttachmentMap"); err != nil {
		return nil, err
	}
	enc, err := m.attachment.encoded()
	if err != nil {
		return nil, err
	}
	mp, err := sdt.DecodeMap(enc)
	if err != nil {
		return nil, errors.WrapInvalid(errors.ErrNotFound, "Message", "BinaryAttachmentMap",
			"attachment does not hold a map")
	}
	return mp, nil
}

// BinaryAttachmentStream returns a decode-only view of the attachment as
// a stream. Returns ErrNotFound when no structured stream data is present.
func (m *Message) BinaryAttachmentStream() (*sdt.Stream, error) {
	if err := m.checkLive("BinaryAttachmentStream"); err != nil {
		return nil, err
	}
	enc, err := m.attachment.encoded()
	if err != nil {
		return nil, err
	}
	st, err := sdt.DecodeStream(enc)
	if err != nil {
		return nil, errors.WrapInvalid(errors.ErrNotFound, "Message", "BinaryAttachmentStream",
			"attachment does not hold a stream")
	}
	return st, nil
}

// HasBinaryAttachment reports whether any attachment representation is
// present.
func (m *Message) HasBinaryAttachment() bool {
	return m.attachment.kind != attachNone
}

// userProperties is the optional user-property map region.
type userProperties struct {
	blk  *block   // encoded map, set by copy or inbound
	open *sdt.Map // writable map owned by the message
}

func (p *userProperties) clear() {
	if p.blk != nil {
		p.blk.release()
		p.blk = nil
	}
	if p.open != nil {
		_ = p.open.Close()
		p.open = nil
	}
}

func (p *userProperties) setBlock(b *block) {
	p.clear()
	p.blk = b
}

func (p *userProperties) dup() userProperties {
	d := userProperties{}
	if p.blk != nil {
		p.blk.retain()
		d.blk = p.blk
	}
	if p.open != nil {
		if enc, err := p.open.Encode(); err == nil {
			d.blk = newBlock(enc)
		}
	}
	return d
}

func (p *userProperties) encoded() ([]byte, bool) {
	if p.open != nil {
		if enc, err := p.open.Encode(); err == nil {
			return enc, true
		}
	}
	if p.blk != nil {
		return p.blk.data, true
	}
	return nil, false
}

// CreateUserPropertyMap creates a writable user-property map, replacing
// any existing one. The map is owned by the message.
func (m *Message) CreateUserPropertyMap() (*sdt.Map, error) {
	if err := m.checkLive("CreateUserPropertyMap"); err != nil {
		return nil, err
	}
	mp := sdt.NewMap()
	m.userProps.clear()
	m.userProps.open = mp
	return mp, nil
}

// SetUserPropertyMap serializes the map into the user-property region.
func (m *Message) SetUserPropertyMap(mp *sdt.Map) error {
	if err := m.checkLive("SetUserPropertyMap"); err != nil {
		return err
	}
	if mp == nil {
		return errors.WrapInvalid(errors.ErrNilHandle, "Message", "SetUserPropertyMap", "nil map")
	}
	enc, err := mp.Encode()
	if err != nil {
		return errors.Wrap(err, "Message", "SetUserPropertyMap", "encode map")
	}
	m.userProps.setBlock(newBlock(enc))
	return nil
}

// UserPropertyMap returns a decode-only view of the user-property map.
// Returns ErrNotFound when no user properties are present.
func (m *Message) UserPropertyMap() (*sdt.Map, error) {
	if err := m.checkLive("UserPropertyMap"); err != nil {
		return nil, err
	}
	enc, ok := m.userProps.encoded()
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrNotFound, "Message", "UserPropertyMap",
			"no user properties present")
	}
	mp, err := sdt.DecodeMap(enc)
	if err != nil {
		return nil, errors.Wrap(err, "Message", "UserPropertyMap", "decode map")
	}
	return mp, nil
}

// DeleteUserPropertyMap removes the user-property map, if any.
func (m *Message) DeleteUserPropertyMap() error {
	if err := m.checkLive("DeleteUserPropertyMap"); err != nil {
		return err
	}
	m.userProps.clear()
	return nil
}
