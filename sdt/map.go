package sdt

import (
	"fmt"

	"github.com/c360/cachestream/errors"
)

// Map is a named multimap of fields. Names are byte-exact, case-sensitive
// keys; duplicate names are legal and all instances persist. Lookup by name
// returns an unspecified instance among duplicates; enumeration visits all.
type Map struct {
	container
}

// Add appends a field under the given name.
func (m *Map) Add(name string, f Field) error {
	return m.addField("Add", name, f)
}

// AddNull appends a null field.
func (m *Map) AddNull(name string) error { return m.addField("AddNull", name, NullField()) }

// AddBool appends a boolean field.
func (m *Map) AddBool(name string, v bool) error { return m.addField("AddBool", name, BoolField(v)) }

// AddInt8 appends an int8 field.
func (m *Map) AddInt8(name string, v int8) error { return m.addField("AddInt8", name, Int8Field(v)) }

// AddUInt8 appends a uint8 field.
func (m *Map) AddUInt8(name string, v uint8) error { return m.addField("AddUInt8", name, UInt8Field(v)) }

// AddInt16 appends an int16 field.
func (m *Map) AddInt16(name string, v int16) error { return m.addField("AddInt16", name, Int16Field(v)) }

// AddUInt16 appends a uint16 field.
func (m *Map) AddUInt16(name string, v uint16) error {
	return m.addField("AddUInt16", name, UInt16Field(v))
}

// AddInt32 appends an int32 field.
func (m *Map) AddInt32(name string, v int32) error { return m.addField("AddInt32", name, Int32Field(v)) }

// AddUInt32 appends a uint32 field.
func (m *Map) AddUInt32(name string, v uint32) error {
	return m.addField("AddUInt32", name, UInt32Field(v))
}

// AddInt64 appends an int64 field.
func (m *Map) AddInt64(name string, v int64) error { return m.addField("AddInt64", name, Int64Field(v)) }

// AddUInt64 appends a uint64 field.
func (m *Map) AddUInt64(name string, v uint64) error {
	return m.addField("AddUInt64", name, UInt64Field(v))
}

// AddChar appends a single-byte character field.
func (m *Map) AddChar(name string, v byte) error { return m.addField("AddChar", name, CharField(v)) }

// AddWChar appends a 2-byte code unit field.
func (m *Map) AddWChar(name string, v uint16) error { return m.addField("AddWChar", name, WCharField(v)) }

// AddFloat32 appends a float32 field.
func (m *Map) AddFloat32(name string, v float32) error {
	return m.addField("AddFloat32", name, Float32Field(v))
}

// AddFloat64 appends a float64 field.
func (m *Map) AddFloat64(name string, v float64) error {
	return m.addField("AddFloat64", name, Float64Field(v))
}

// AddByteArray appends a byte array field. The slice is not copied.
func (m *Map) AddByteArray(name string, v []byte) error {
	return m.addField("AddByteArray", name, ByteArrayField(v))
}

// AddString appends a string field.
func (m *Map) AddString(name, v string) error { return m.addField("AddString", name, StringField(v)) }

// AddDestination appends a destination field.
func (m *Map) AddDestination(name string, v Destination) error {
	return m.addField("AddDestination", name, DestinationField(v))
}

// OpenSubMap opens a nested map for writing under the given name. The child
// must be closed before the parent is serialized; writes to the parent while
// the child is open remain correct but force data shifting on the wire form.
func (m *Map) OpenSubMap(name string) (*Map, error) {
	f, err := m.openSub("OpenSubMap", name, kindMap)
	if err != nil {
		return nil, err
	}
	return f.m, nil
}

// OpenSubStream opens a nested stream for writing under the given name.
func (m *Map) OpenSubStream(name string) (*Stream, error) {
	f, err := m.openSub("OpenSubStream", name, kindStream)
	if err != nil {
		return nil, err
	}
	return f.st, nil
}

// GetField returns a field by name. Among duplicates, which instance is
// returned is unspecified.
func (m *Map) GetField(name string) (Field, error) {
	if err := m.checkOpen("GetField"); err != nil {
		return Field{}, err
	}
	for i := range m.entries {
		if m.entries[i].name == name {
			return viewField(m.entries[i].field), nil
		}
	}
	return Field{}, errors.WrapInvalid(errors.ErrNotFound, "Map", "GetField",
		fmt.Sprintf("no field named %q", name))
}

// GetBool returns a named field as a boolean.
func (m *Map) GetBool(name string) (bool, error) {
	f, err := m.GetField(name)
	if err != nil {
		return false, err
	}
	return f.AsBool()
}

// GetInt32 returns a named field as an int32.
func (m *Map) GetInt32(name string) (int32, error) {
	f, err := m.GetField(name)
	if err != nil {
		return 0, err
	}
	return f.AsInt32()
}

// GetInt64 returns a named field as an int64.
func (m *Map) GetInt64(name string) (int64, error) {
	f, err := m.GetField(name)
	if err != nil {
		return 0, err
	}
	return f.AsInt64()
}

// GetUInt64 returns a named field as a uint64.
func (m *Map) GetUInt64(name string) (uint64, error) {
	f, err := m.GetField(name)
	if err != nil {
		return 0, err
	}
	return f.AsUInt64()
}

// GetFloat64 returns a named field as a float64.
func (m *Map) GetFloat64(name string) (float64, error) {
	f, err := m.GetField(name)
	if err != nil {
		return 0, err
	}
	return f.AsFloat64()
}

// GetString returns a named field as a string.
func (m *Map) GetString(name string) (string, error) {
	f, err := m.GetField(name)
	if err != nil {
		return "", err
	}
	return f.AsString()
}

// GetBytes returns a named field as a byte slice.
func (m *Map) GetBytes(name string) ([]byte, error) {
	f, err := m.GetField(name)
	if err != nil {
		return nil, err
	}
	return f.AsBytes()
}

// GetDestination returns a named field as a destination.
func (m *Map) GetDestination(name string) (Destination, error) {
	f, err := m.GetField(name)
	if err != nil {
		return Destination{}, err
	}
	return f.AsDestination()
}

// GetMap returns a named field as a map container. The returned container
// is a fresh read view; closing it does not affect this map.
func (m *Map) GetMap(name string) (*Map, error) {
	f, err := m.GetField(name)
	if err != nil {
		return nil, err
	}
	return f.AsMap()
}

// GetStream returns a named field as a stream container, as a fresh read
// view.
func (m *Map) GetStream(name string) (*Stream, error) {
	f, err := m.GetField(name)
	if err != nil {
		return nil, err
	}
	return f.AsStream()
}

// Fields enumerates all entries in insertion order, duplicates included.
func (m *Map) Fields() ([]NamedField, error) {
	if err := m.checkOpen("Fields"); err != nil {
		return nil, err
	}
	out := make([]NamedField, len(m.entries))
	for i := range m.entries {
		out[i] = NamedField{Name: m.entries[i].name, Field: m.entries[i].field}
	}
	return out, nil
}

// Len returns the number of entries, duplicates included.
func (m *Map) Len() (int, error) {
	if err := m.checkOpen("Len"); err != nil {
		return 0, err
	}
	return len(m.entries), nil
}

// DeleteField removes exactly one instance of the named field; among
// duplicates, which instance is removed is unspecified. The serialized size
// shrinks by exactly that instance's size.
func (m *Map) DeleteField(name string) error {
	if err := m.checkOpen("DeleteField"); err != nil {
		return err
	}
	for i := range m.entries {
		if m.entries[i].name == name {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return errors.WrapInvalid(errors.ErrNotFound, "Map", "DeleteField",
		fmt.Sprintf("no field named %q", name))
}

// Size returns the serialized size in bytes, including the container's
// 5 bytes of framing.
func (m *Map) Size() (int, error) {
	if err := m.checkOpen("Size"); err != nil {
		return 0, err
	}
	return m.size(), nil
}

// Encode returns the canonical wire form of the map.
func (m *Map) Encode() ([]byte, error) {
	if err := m.checkOpen("Encode"); err != nil {
		return nil, err
	}
	return EncodeField(MapField(m))
}

// Close finalizes the container. If this is a sub-container opened for
// writing, the parent retains the content. Any open descendants are closed
// first; every subsequent operation on this handle or a descendant handle
// fails with ErrClosed.
func (m *Map) Close() error {
	return m.finishSub()
}

// Closed reports whether the container has been closed.
func (m *Map) Closed() bool {
	return m.closed
}
