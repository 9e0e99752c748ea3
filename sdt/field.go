package sdt

import (
	"fmt"
	"math"

	"github.com/c360/cachestream/errors"
)

// Type identifies the variant held by a Field.
type Type uint8

// Field type variants.
const (
	TypeNull Type = iota
	TypeBool
	TypeInt8
	TypeUInt8
	TypeInt16
	TypeUInt16
	TypeInt32
	TypeUInt32
	TypeInt64
	TypeUInt64
	TypeChar
	TypeWChar
	TypeFloat32
	TypeFloat64
	TypeByteArray
	TypeString
	TypeDestination
	TypeMap
	TypeStream
	TypeUnknown
)

// String returns the string representation of a Type.
func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeBool:
		return "bool"
	case TypeInt8:
		return "int8"
	case TypeUInt8:
		return "uint8"
	case TypeInt16:
		return "int16"
	case TypeUInt16:
		return "uint16"
	case TypeInt32:
		return "int32"
	case TypeUInt32:
		return "uint32"
	case TypeInt64:
		return "int64"
	case TypeUInt64:
		return "uint64"
	case TypeChar:
		return "char"
	case TypeWChar:
		return "wchar"
	case TypeFloat32:
		return "float32"
	case TypeFloat64:
		return "float64"
	case TypeByteArray:
		return "bytearray"
	case TypeString:
		return "string"
	case TypeDestination:
		return "destination"
	case TypeMap:
		return "map"
	case TypeStream:
		return "stream"
	case TypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// DestKind distinguishes topic destinations from queue destinations.
type DestKind uint8

// Destination kinds.
const (
	DestTopic DestKind = iota
	DestQueue
)

// Destination names a topic or queue endpoint.
type Destination struct {
	Name string
	Kind DestKind
}

// Field is a tagged value. Use the typed constructors to build one and the
// As* accessors to read one back; accessors perform lossless coercions and
// fail with errors.ErrInvalidConversion otherwise.
type Field struct {
	Type Type

	b    bool
	i    int64
	u    uint64
	f    float64
	s    string
	dst  Destination
	data []byte // bytearray payload, or raw TLV bytes for TypeUnknown
	m    *Map
	st   *Stream
}

// Constructors.

// NullField returns the null field.
func NullField() Field { return Field{Type: TypeNull} }

// BoolField wraps a boolean value.
func BoolField(v bool) Field { return Field{Type: TypeBool, b: v} }

// Int8Field wraps an int8 value.
func Int8Field(v int8) Field { return Field{Type: TypeInt8, i: int64(v)} }

// UInt8Field wraps a uint8 value.
func UInt8Field(v uint8) Field { return Field{Type: TypeUInt8, u: uint64(v)} }

// Int16Field wraps an int16 value.
func Int16Field(v int16) Field { return Field{Type: TypeInt16, i: int64(v)} }

// UInt16Field wraps a uint16 value.
func UInt16Field(v uint16) Field { return Field{Type: TypeUInt16, u: uint64(v)} }

// Int32Field wraps an int32 value.
func Int32Field(v int32) Field { return Field{Type: TypeInt32, i: int64(v)} }

// UInt32Field wraps a uint32 value.
func UInt32Field(v uint32) Field { return Field{Type: TypeUInt32, u: uint64(v)} }

// Int64Field wraps an int64 value.
func Int64Field(v int64) Field { return Field{Type: TypeInt64, i: v} }

// UInt64Field wraps a uint64 value.
func UInt64Field(v uint64) Field { return Field{Type: TypeUInt64, u: v} }

// CharField wraps a single-byte character.
func CharField(v byte) Field { return Field{Type: TypeChar, u: uint64(v)} }

// WCharField wraps a 2-byte code unit.
func WCharField(v uint16) Field { return Field{Type: TypeWChar, u: uint64(v)} }

// Float32Field wraps a float32 value.
func Float32Field(v float32) Field { return Field{Type: TypeFloat32, f: float64(v)} }

// Float64Field wraps a float64 value.
func Float64Field(v float64) Field { return Field{Type: TypeFloat64, f: v} }

// ByteArrayField wraps a byte slice. The slice is not copied.
func ByteArrayField(v []byte) Field { return Field{Type: TypeByteArray, data: v} }

// StringField wraps a UTF-8 string.
func StringField(v string) Field { return Field{Type: TypeString, s: v} }

// DestinationField wraps a topic or queue destination.
func DestinationField(d Destination) Field { return Field{Type: TypeDestination, dst: d} }

// MapField wraps a nested map container.
func MapField(m *Map) Field { return Field{Type: TypeMap, m: m} }

// StreamField wraps a nested stream container.
func StreamField(s *Stream) Field { return Field{Type: TypeStream, st: s} }

// UnknownField wraps a raw pre-encoded TLV unit with an unrecognized tag.
// It re-encodes byte-identically for pass-through.
func UnknownField(raw []byte) Field { return Field{Type: TypeUnknown, data: raw} }

// signedValue reports the field's numeric value as a signed integer.
func (f Field) signedValue() (int64, bool) {
	switch f.Type {
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return f.i, true
	case TypeUInt8, TypeUInt16, TypeUInt32, TypeChar, TypeWChar:
		return int64(f.u), true
	case TypeUInt64:
		if f.u > math.MaxInt64 {
			return 0, false
		}
		return int64(f.u), true
	case TypeBool:
		if f.b {
			return 1, true
		}
		return 0, true
	case TypeFloat32, TypeFloat64:
		if f.f != math.Trunc(f.f) || f.f < math.MinInt64 || f.f >= math.MaxInt64 {
			return 0, false
		}
		return int64(f.f), true
	default:
		return 0, false
	}
}

// unsignedValue reports the field's numeric value as an unsigned integer.
func (f Field) unsignedValue() (uint64, bool) {
	switch f.Type {
	case TypeUInt8, TypeUInt16, TypeUInt32, TypeUInt64, TypeChar, TypeWChar:
		return f.u, true
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		if f.i < 0 {
			return 0, false
		}
		return uint64(f.i), true
	case TypeBool:
		if f.b {
			return 1, true
		}
		return 0, true
	case TypeFloat32, TypeFloat64:
		if f.f != math.Trunc(f.f) || f.f < 0 || f.f >= math.MaxUint64 {
			return 0, false
		}
		return uint64(f.f), true
	default:
		return 0, false
	}
}

func convErr(from Type, to string) error {
	return errors.WrapInvalid(errors.ErrInvalidConversion, "Field", "As"+to,
		fmt.Sprintf("cannot convert %s to %s", from, to))
}

// AsBool returns the field as a boolean. Numeric 0/1 coerce.
func (f Field) AsBool() (bool, error) {
	if f.Type == TypeBool {
		return f.b, nil
	}
	if v, ok := f.signedValue(); ok && (v == 0 || v == 1) {
		return v == 1, nil
	}
	return false, convErr(f.Type, "Bool")
}

// AsInt8 returns the field as an int8, coercing in-range numerics.
func (f Field) AsInt8() (int8, error) {
	if v, ok := f.signedValue(); ok && v >= math.MinInt8 && v <= math.MaxInt8 {
		return int8(v), nil
	}
	return 0, convErr(f.Type, "Int8")
}

// AsUInt8 returns the field as a uint8, coercing in-range numerics.
func (f Field) AsUInt8() (uint8, error) {
	if v, ok := f.unsignedValue(); ok && v <= math.MaxUint8 {
		return uint8(v), nil
	}
	return 0, convErr(f.Type, "UInt8")
}

// AsInt16 returns the field as an int16, coercing in-range numerics.
func (f Field) AsInt16() (int16, error) {
	if v, ok := f.signedValue(); ok && v >= math.MinInt16 && v <= math.MaxInt16 {
		return int16(v), nil
	}
	return 0, convErr(f.Type, "Int16")
}

// AsUInt16 returns the field as a uint16, coercing in-range numerics.
func (f Field) AsUInt16() (uint16, error) {
	if v, ok := f.unsignedValue(); ok && v <= math.MaxUint16 {
		return uint16(v), nil
	}
	return 0, convErr(f.Type, "UInt16")
}

// AsInt32 returns the field as an int32, coercing in-range numerics.
func (f Field) AsInt32() (int32, error) {
	if v, ok := f.signedValue(); ok && v >= math.MinInt32 && v <= math.MaxInt32 {
		return int32(v), nil
	}
	return 0, convErr(f.Type, "Int32")
}

// AsUInt32 returns the field as a uint32, coercing in-range numerics.
func (f Field) AsUInt32() (uint32, error) {
	if v, ok := f.unsignedValue(); ok && v <= math.MaxUint32 {
		return uint32(v), nil
	}
	return 0, convErr(f.Type, "UInt32")
}

// AsInt64 returns the field as an int64, coercing in-range numerics.
func (f Field) AsInt64() (int64, error) {
	if v, ok := f.signedValue(); ok {
		return v, nil
	}
	return 0, convErr(f.Type, "Int64")
}

// AsUInt64 returns the field as a uint64, coercing in-range numerics.
func (f Field) AsUInt64() (uint64, error) {
	if v, ok := f.unsignedValue(); ok {
		return v, nil
	}
	return 0, convErr(f.Type, "UInt64")
}

// AsChar returns the field as a single-byte character.
func (f Field) AsChar() (byte, error) {
	if v, ok := f.unsignedValue(); ok && v <= math.MaxUint8 {
		return byte(v), nil
	}
	return 0, convErr(f.Type, "Char")
}

// AsWChar returns the field as a 2-byte code unit.
func (f Field) AsWChar() (uint16, error) {
	if v, ok := f.unsignedValue(); ok && v <= math.MaxUint16 {
		return uint16(v), nil
	}
	return 0, convErr(f.Type, "WChar")
}

// AsFloat32 returns the field as a float32. Integers coerce when exactly
// representable.
func (f Field) AsFloat32() (float32, error) {
	v, err := f.AsFloat64()
	if err != nil {
		return 0, convErr(f.Type, "Float32")
	}
	if v != 0 && !math.IsInf(v, 0) && (math.Abs(v) > math.MaxFloat32) {
		return 0, convErr(f.Type, "Float32")
	}
	return float32(v), nil
}

// AsFloat64 returns the field as a float64. Integers coerce.
func (f Field) AsFloat64() (float64, error) {
	switch f.Type {
	case TypeFloat32, TypeFloat64:
		return f.f, nil
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return float64(f.i), nil
	case TypeUInt8, TypeUInt16, TypeUInt32, TypeUInt64, TypeChar, TypeWChar:
		return float64(f.u), nil
	default:
		return 0, convErr(f.Type, "Float64")
	}
}

// AsString returns the field as a string. Only string fields convert.
func (f Field) AsString() (string, error) {
	if f.Type == TypeString {
		return f.s, nil
	}
	return "", convErr(f.Type, "String")
}

// AsBytes returns the field payload as a byte slice. Strings convert to
// their UTF-8 bytes.
func (f Field) AsBytes() ([]byte, error) {
	switch f.Type {
	case TypeByteArray:
		return f.data, nil
	case TypeString:
		return []byte(f.s), nil
	default:
		return nil, convErr(f.Type, "Bytes")
	}
}

// AsDestination returns the field as a destination.
func (f Field) AsDestination() (Destination, error) {
	if f.Type == TypeDestination {
		return f.dst, nil
	}
	return Destination{}, convErr(f.Type, "Destination")
}

// AsMap returns the field as a nested map container.
func (f Field) AsMap() (*Map, error) {
	if f.Type == TypeMap {
		return f.m, nil
	}
	return nil, convErr(f.Type, "Map")
}

// AsStream returns the field as a nested stream container.
func (f Field) AsStream() (*Stream, error) {
	if f.Type == TypeStream {
		return f.st, nil
	}
	return nil, convErr(f.Type, "Stream")
}

// Raw returns the pre-encoded TLV bytes of an unknown field.
func (f Field) Raw() ([]byte, error) {
	if f.Type == TypeUnknown {
		return f.data, nil
	}
	return nil, convErr(f.Type, "Raw")
}
