package sdt

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/c360/cachestream/errors"
)

// Wire type codes, carried in the high nibble of the tag byte. The low
// nibble holds the width of the length field (1-4 bytes), so a decoder can
// always skip a unit it does not understand.
const (
	codeNull      = 0x0
	codeBool      = 0x1
	codeInt       = 0x2
	codeUInt      = 0x3
	codeChar      = 0x4
	codeWChar     = 0x5
	codeFloat     = 0x6
	codeByteArray = 0x7
	codeString    = 0x8
	codeDest      = 0x9
	codeMap       = 0xA
	codeStream    = 0xB
)

// Fixed-width integer and float variants share a type code; the payload
// width selects the variant (1/2/4/8 for integers, 4/8 for floats).

const (
	// containerLengthWidth is the fixed length-field width for Map and
	// Stream units: 5 bytes of framing regardless of content size.
	containerLengthWidth = 4

	// maxPayload is the largest payload a 4-byte length field can frame.
	maxPayload = math.MaxUint32 - 5
)

// lengthWidth returns the smallest length-field width (1-4 bytes) such that
// the total unit size (tag + length field + payload) fits the field.
func lengthWidth(payload int) int {
	switch {
	case payload <= math.MaxUint8-2:
		return 1
	case payload <= math.MaxUint16-3:
		return 2
	case payload <= 1<<24-1-4:
		return 3
	default:
		return 4
	}
}

// payloadSize returns the wire payload size of a field, excluding tag and
// length field. Containers report their full content size.
func payloadSize(f Field) int {
	switch f.Type {
	case TypeNull:
		return 0
	case TypeBool, TypeInt8, TypeUInt8:
		return 1
	case TypeInt16, TypeUInt16, TypeChar, TypeWChar:
		return 2
	case TypeInt32, TypeUInt32, TypeFloat32:
		return 4
	case TypeInt64, TypeUInt64, TypeFloat64:
		return 8
	case TypeByteArray:
		return len(f.data)
	case TypeString:
		return len(f.s) + 1 // NUL terminator
	case TypeDestination:
		return 1 + len(f.dst.Name) + 1 // kind byte + name + NUL
	case TypeMap:
		return contentSize(&f.m.container)
	case TypeStream:
		return contentSize(&f.st.container)
	case TypeUnknown:
		// Raw TLV re-encodes verbatim; it has no separate payload.
		return 0
	default:
		return 0
	}
}

// EncodedSize returns the total wire size of a field in bytes, including
// its tag and length field.
func EncodedSize(f Field) int {
	if f.Type == TypeUnknown {
		return len(f.data)
	}
	p := payloadSize(f)
	if f.Type == TypeMap || f.Type == TypeStream {
		return 1 + containerLengthWidth + p
	}
	return 1 + lengthWidth(p) + p
}

// stringEncodedSize returns the wire size of a string unit, used for map
// entry names.
func stringEncodedSize(s string) int {
	p := len(s) + 1
	return 1 + lengthWidth(p) + p
}

// contentSize returns the serialized size of a container's entries,
// excluding the container's own 5 bytes of framing.
func contentSize(c *container) int {
	total := 0
	for i := range c.entries {
		e := &c.entries[i]
		if c.kind == kindMap {
			total += stringEncodedSize(e.name)
		}
		total += EncodedSize(e.field)
	}
	return total
}

// appendHeader appends the tag byte and big-endian length field framing a
// payload of the given size.
func appendHeader(dst []byte, code int, payload int, widthOverride int) []byte {
	width := widthOverride
	if width == 0 {
		width = lengthWidth(payload)
	}
	total := 1 + width + payload
	dst = append(dst, byte(code<<4|width))
	for i := width - 1; i >= 0; i-- {
		dst = append(dst, byte(total>>(8*i)))
	}
	return dst
}

// AppendField appends the canonical wire encoding of f to dst and returns
// the extended slice.
func AppendField(dst []byte, f Field) ([]byte, error) {
	switch f.Type {
	case TypeNull:
		return appendHeader(dst, codeNull, 0, 0), nil

	case TypeBool:
		dst = appendHeader(dst, codeBool, 1, 0)
		if f.b {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil

	case TypeInt8:
		dst = appendHeader(dst, codeInt, 1, 0)
		return append(dst, byte(int8(f.i))), nil

	case TypeInt16:
		dst = appendHeader(dst, codeInt, 2, 0)
		return binary.BigEndian.AppendUint16(dst, uint16(int16(f.i))), nil

	case TypeInt32:
		dst = appendHeader(dst, codeInt, 4, 0)
		return binary.BigEndian.AppendUint32(dst, uint32(int32(f.i))), nil

	case TypeInt64:
		dst = appendHeader(dst, codeInt, 8, 0)
		return binary.BigEndian.AppendUint64(dst, uint64(f.i)), nil

	case TypeUInt8:
		dst = appendHeader(dst, codeUInt, 1, 0)
		return append(dst, byte(f.u)), nil

	case TypeUInt16:
		dst = appendHeader(dst, codeUInt, 2, 0)
		return binary.BigEndian.AppendUint16(dst, uint16(f.u)), nil

	case TypeUInt32:
		dst = appendHeader(dst, codeUInt, 4, 0)
		return binary.BigEndian.AppendUint32(dst, uint32(f.u)), nil

	case TypeUInt64:
		dst = appendHeader(dst, codeUInt, 8, 0)
		return binary.BigEndian.AppendUint64(dst, f.u), nil

	case TypeChar:
		dst = appendHeader(dst, codeChar, 2, 0)
		return binary.BigEndian.AppendUint16(dst, uint16(f.u)), nil

	case TypeWChar:
		dst = appendHeader(dst, codeWChar, 2, 0)
		return binary.BigEndian.AppendUint16(dst, uint16(f.u)), nil

	case TypeFloat32:
		dst = appendHeader(dst, codeFloat, 4, 0)
		return binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(f.f))), nil

	case TypeFloat64:
		dst = appendHeader(dst, codeFloat, 8, 0)
		return binary.BigEndian.AppendUint64(dst, math.Float64bits(f.f)), nil

	case TypeByteArray:
		if len(f.data) > maxPayload {
			return nil, errors.WrapInvalid(errors.ErrInvalidParam, "sdt", "AppendField",
				"byte array exceeds maximum encodable size")
		}
		dst = appendHeader(dst, codeByteArray, len(f.data), 0)
		return append(dst, f.data...), nil

	case TypeString:
		if len(f.s)+1 > maxPayload {
			return nil, errors.WrapInvalid(errors.ErrInvalidParam, "sdt", "AppendField",
				"string exceeds maximum encodable size")
		}
		dst = appendHeader(dst, codeString, len(f.s)+1, 0)
		dst = append(dst, f.s...)
		return append(dst, 0), nil

	case TypeDestination:
		dst = appendHeader(dst, codeDest, 1+len(f.dst.Name)+1, 0)
		dst = append(dst, byte(f.dst.Kind))
		dst = append(dst, f.dst.Name...)
		return append(dst, 0), nil

	case TypeMap:
		if f.m == nil {
			return nil, errors.WrapInvalid(errors.ErrNilHandle, "sdt", "AppendField", "nil map container")
		}
		return appendContainer(dst, &f.m.container)

	case TypeStream:
		if f.st == nil {
			return nil, errors.WrapInvalid(errors.ErrNilHandle, "sdt", "AppendField", "nil stream container")
		}
		return appendContainer(dst, &f.st.container)

	case TypeUnknown:
		return append(dst, f.data...), nil

	default:
		return nil, errors.WrapInvalid(errors.ErrInvalidParam, "sdt", "AppendField",
			fmt.Sprintf("unencodable field type %d", f.Type))
	}
}

// appendContainer appends a container unit with its fixed 4-byte length field.
func appendContainer(dst []byte, c *container) ([]byte, error) {
	size := contentSize(c)
	if size > maxPayload {
		return nil, errors.WrapInvalid(errors.ErrInvalidParam, "sdt", "appendContainer",
			"container exceeds maximum encodable size")
	}

	code := codeMap
	if c.kind == kindStream {
		code = codeStream
	}
	dst = appendHeader(dst, code, size, containerLengthWidth)

	var err error
	for i := range c.entries {
		e := &c.entries[i]
		if c.kind == kindMap {
			dst, err = AppendField(dst, StringField(e.name))
			if err != nil {
				return nil, err
			}
		}
		dst, err = AppendField(dst, e.field)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

// EncodeField returns the canonical wire encoding of f.
func EncodeField(f Field) ([]byte, error) {
	return AppendField(nil, f)
}

func malformed(op, detail string) error {
	return errors.WrapInvalid(errors.ErrMalformedData, "sdt", op, detail)
}

// DecodeField decodes one field from data starting at off. It returns the
// field and the offset of the first byte after it. Length prefixes implying
// a read past the end of data are rejected; nothing outside data is touched.
func DecodeField(data []byte, off int) (Field, int, error) {
	if off < 0 || off >= len(data) {
		return Field{}, off, malformed("DecodeField", "offset beyond buffer")
	}

	tag := data[off]
	code := int(tag >> 4)
	width := int(tag & 0x0F)
	if width < 1 || width > 4 {
		return Field{}, off, malformed("DecodeField", "invalid length field width")
	}
	if off+1+width > len(data) {
		return Field{}, off, malformed("DecodeField", "truncated length field")
	}

	total := 0
	for i := 0; i < width; i++ {
		total = total<<8 | int(data[off+1+i])
	}
	if total < 1+width {
		return Field{}, off, malformed("DecodeField", "length smaller than header")
	}
	if off+total > len(data) {
		return Field{}, off, malformed("DecodeField", "length exceeds buffer")
	}

	payload := data[off+1+width : off+total]
	next := off + total

	switch code {
	case codeNull:
		if len(payload) != 0 {
			return Field{}, off, malformed("DecodeField", "null field with payload")
		}
		return NullField(), next, nil

	case codeBool:
		if len(payload) != 1 {
			return Field{}, off, malformed("DecodeField", "boolean payload size")
		}
		return BoolField(payload[0] != 0), next, nil

	case codeInt:
		switch len(payload) {
		case 1:
			return Int8Field(int8(payload[0])), next, nil
		case 2:
			return Int16Field(int16(binary.BigEndian.Uint16(payload))), next, nil
		case 4:
			return Int32Field(int32(binary.BigEndian.Uint32(payload))), next, nil
		case 8:
			return Int64Field(int64(binary.BigEndian.Uint64(payload))), next, nil
		default:
			return Field{}, off, malformed("DecodeField", "integer payload size")
		}

	case codeUInt:
		switch len(payload) {
		case 1:
			return UInt8Field(payload[0]), next, nil
		case 2:
			return UInt16Field(binary.BigEndian.Uint16(payload)), next, nil
		case 4:
			return UInt32Field(binary.BigEndian.Uint32(payload)), next, nil
		case 8:
			return UInt64Field(binary.BigEndian.Uint64(payload)), next, nil
		default:
			return Field{}, off, malformed("DecodeField", "unsigned integer payload size")
		}

	case codeChar:
		if len(payload) != 2 {
			return Field{}, off, malformed("DecodeField", "char payload size")
		}
		return CharField(byte(binary.BigEndian.Uint16(payload))), next, nil

	case codeWChar:
		if len(payload) != 2 {
			return Field{}, off, malformed("DecodeField", "wchar payload size")
		}
		return WCharField(binary.BigEndian.Uint16(payload)), next, nil

	case codeFloat:
		switch len(payload) {
		case 4:
			return Float32Field(math.Float32frombits(binary.BigEndian.Uint32(payload))), next, nil
		case 8:
			return Float64Field(math.Float64frombits(binary.BigEndian.Uint64(payload))), next, nil
		default:
			return Field{}, off, malformed("DecodeField", "float payload size")
		}

	case codeByteArray:
		b := make([]byte, len(payload))
		copy(b, payload)
		return ByteArrayField(b), next, nil

	case codeString:
		if len(payload) < 1 || payload[len(payload)-1] != 0 {
			return Field{}, off, malformed("DecodeField", "string missing terminator")
		}
		return StringField(string(payload[:len(payload)-1])), next, nil

	case codeDest:
		if len(payload) < 2 || payload[len(payload)-1] != 0 {
			return Field{}, off, malformed("DecodeField", "destination missing terminator")
		}
		kind := DestKind(payload[0])
		if kind != DestTopic && kind != DestQueue {
			return Field{}, off, malformed("DecodeField", "destination kind")
		}
		return DestinationField(Destination{
			Name: string(payload[1 : len(payload)-1]),
			Kind: kind,
		}), next, nil

	case codeMap:
		m, err := decodeMapContent(payload)
		if err != nil {
			return Field{}, off, err
		}
		return MapField(m), next, nil

	case codeStream:
		s, err := decodeStreamContent(payload)
		if err != nil {
			return Field{}, off, err
		}
		return StreamField(s), next, nil

	default:
		// Unrecognized type: preserve the raw unit for pass-through.
		raw := make([]byte, total)
		copy(raw, data[off:off+total])
		return UnknownField(raw), next, nil
	}
}

// decodeMapContent decodes a map container payload: alternating name string
// units and value units.
func decodeMapContent(payload []byte) (*Map, error) {
	m := NewMap()
	off := 0
	for off < len(payload) {
		nameField, next, err := DecodeField(payload, off)
		if err != nil {
			return nil, err
		}
		if nameField.Type != TypeString {
			return nil, malformed("decodeMapContent", "map entry name is not a string")
		}
		off = next

		if off >= len(payload) {
			return nil, malformed("decodeMapContent", "map entry missing value")
		}
		value, next, err := DecodeField(payload, off)
		if err != nil {
			return nil, err
		}
		off = next

		m.entries = append(m.entries, entry{name: nameField.s, field: value})
	}
	return m, nil
}

// decodeStreamContent decodes a stream container payload: a sequence of
// value units.
func decodeStreamContent(payload []byte) (*Stream, error) {
	s := NewStream()
	off := 0
	for off < len(payload) {
		value, next, err := DecodeField(payload, off)
		if err != nil {
			return nil, err
		}
		off = next
		s.entries = append(s.entries, entry{field: value})
	}
	return s, nil
}

// DecodeMap decodes a full map container unit from data.
func DecodeMap(data []byte) (*Map, error) {
	f, next, err := DecodeField(data, 0)
	if err != nil {
		return nil, err
	}
	if next != len(data) {
		return nil, malformed("DecodeMap", "trailing bytes after container")
	}
	if f.Type != TypeMap {
		return nil, malformed("DecodeMap", "unit is not a map container")
	}
	return f.m, nil
}

// DecodeStream decodes a full stream container unit from data.
func DecodeStream(data []byte) (*Stream, error) {
	f, next, err := DecodeField(data, 0)
	if err != nil {
		return nil, err
	}
	if next != len(data) {
		return nil, malformed("DecodeStream", "trailing bytes after container")
	}
	if f.Type != TypeStream {
		return nil, malformed("DecodeStream", "unit is not a stream container")
	}
	return f.st, nil
}
