package sdt

import (
	"github.com/c360/cachestream/errors"
)

// Stream is an ordered sequence of fields read through a cursor. The cursor
// only advances; Rewind resets it to the first entry.
type Stream struct {
	container
	cursor int
}

// Add appends a field to the stream.
func (s *Stream) Add(f Field) error { return s.addField("Add", "", f) }

// AddNull appends a null field.
func (s *Stream) AddNull() error { return s.addField("AddNull", "", NullField()) }

// AddBool appends a boolean field.
func (s *Stream) AddBool(v bool) error { return s.addField("AddBool", "", BoolField(v)) }

// AddInt8 appends an int8 field.
func (s *Stream) AddInt8(v int8) error { return s.addField("AddInt8", "", Int8Field(v)) }

// AddUInt8 appends a uint8 field.
func (s *Stream) AddUInt8(v uint8) error { return s.addField("AddUInt8", "", UInt8Field(v)) }

// AddInt16 appends an int16 field.
func (s *Stream) AddInt16(v int16) error { return s.addField("AddInt16", "", Int16Field(v)) }

// AddUInt16 appends a uint16 field.
func (s *Stream) AddUInt16(v uint16) error { return s.addField("AddUInt16", "", UInt16Field(v)) }

// AddInt32 appends an int32 field.
func (s *Stream) AddInt32(v int32) error { return s.addField("AddInt32", "", Int32Field(v)) }

// AddUInt32 appends a uint32 field.
func (s *Stream) AddUInt32(v uint32) error { return s.addField("AddUInt32", "", UInt32Field(v)) }

// AddInt64 appends an int64 field.
func (s *Stream) AddInt64(v int64) error { return s.addField("AddInt64", "", Int64Field(v)) }

// AddUInt64 appends a uint64 field.
func (s *Stream) AddUInt64(v uint64) error { return s.addField("AddUInt64", "", UInt64Field(v)) }

// AddChar appends a single-byte character field.
func (s *Stream) AddChar(v byte) error { return s.addField("AddChar", "", CharField(v)) }

// AddWChar appends a 2-byte code unit field.
func (s *Stream) AddWChar(v uint16) error { return s.addField("AddWChar", "", WCharField(v)) }

// AddFloat32 appends a float32 field.
func (s *Stream) AddFloat32(v float32) error { return s.addField("AddFloat32", "", Float32Field(v)) }

// AddFloat64 appends a float64 field.
func (s *Stream) AddFloat64(v float64) error { return s.addField("AddFloat64", "", Float64Field(v)) }

// AddByteArray appends a byte array field. The slice is not copied.
func (s *Stream) AddByteArray(v []byte) error { return s.addField("AddByteArray", "", ByteArrayField(v)) }

// AddString appends a string field.
func (s *Stream) AddString(v string) error { return s.addField("AddString", "", StringField(v)) }

// AddDestination appends a destination field.
func (s *Stream) AddDestination(v Destination) error {
	return s.addField("AddDestination", "", DestinationField(v))
}

// OpenSubMap opens a nested map for writing. Stream entries carry no name.
func (s *Stream) OpenSubMap() (*Map, error) {
	f, err := s.openSub("OpenSubMap", "", kindMap)
	if err != nil {
		return nil, err
	}
	return f.m, nil
}

// OpenSubStream opens a nested stream for writing.
func (s *Stream) OpenSubStream() (*Stream, error) {
	f, err := s.openSub("OpenSubStream", "", kindStream)
	if err != nil {
		return nil, err
	}
	return f.st, nil
}

// GetNext returns the field at the cursor and advances it. Past the last
// entry it returns ErrEndOfStream and the cursor does not advance further.
func (s *Stream) GetNext() (Field, error) {
	if err := s.checkOpen("GetNext"); err != nil {
		return Field{}, err
	}
	if s.cursor >= len(s.entries) {
		return Field{}, errors.WrapInvalid(errors.ErrEndOfStream, "Stream", "GetNext",
			"cursor past last entry")
	}
	f := viewField(s.entries[s.cursor].field)
	s.cursor++
	return f, nil
}

// Rewind resets the read cursor to the first entry.
func (s *Stream) Rewind() error {
	if err := s.checkOpen("Rewind"); err != nil {
		return err
	}
	s.cursor = 0
	return nil
}

// Len returns the number of entries.
func (s *Stream) Len() (int, error) {
	if err := s.checkOpen("Len"); err != nil {
		return 0, err
	}
	return len(s.entries), nil
}

// Size returns the serialized size in bytes, including the container's
// 5 bytes of framing.
func (s *Stream) Size() (int, error) {
	if err := s.checkOpen("Size"); err != nil {
		return 0, err
	}
	return s.size(), nil
}

// Encode returns the canonical wire form of the stream.
func (s *Stream) Encode() ([]byte, error) {
	if err := s.checkOpen("Encode"); err != nil {
		return nil, err
	}
	return EncodeField(StreamField(s))
}

// Close finalizes the container. If this is a sub-container opened for
// writing, the parent retains the content. Any open descendants are closed
// first; every subsequent operation on this handle or a descendant handle
// fails with ErrClosed.
func (s *Stream) Close() error {
	return s.finishSub()
}

// Closed reports whether the container has been closed.
func (s *Stream) Closed() bool {
	return s.closed
}
