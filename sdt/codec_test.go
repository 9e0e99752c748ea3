package sdt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cachestream/errors"
)

func roundTrip(t *testing.T, f Field) Field {
	t.Helper()
	enc, err := EncodeField(f)
	require.NoError(t, err)
	require.Equal(t, EncodedSize(f), len(enc), "EncodedSize must match actual encoding")

	dec, next, err := DecodeField(enc, 0)
	require.NoError(t, err)
	require.Equal(t, len(enc), next, "decode must consume the whole unit")
	return dec
}

func TestScalarRoundTrips(t *testing.T) {
	tests := []struct {
		name     string
		field    Field
		wireSize int
	}{
		{"null", NullField(), 2},
		{"bool-true", BoolField(true), 3},
		{"bool-false", BoolField(false), 3},
		{"int8-min", Int8Field(-128), 3},
		{"int8-max", Int8Field(127), 3},
		{"uint8", UInt8Field(255), 3},
		{"int16", Int16Field(-32768), 4},
		{"uint16", UInt16Field(65535), 4},
		{"int32", Int32Field(-2147483648), 6},
		{"uint32", UInt32Field(4294967295), 6},
		{"int64", Int64Field(-9223372036854775808), 10},
		{"uint64", UInt64Field(18446744073709551615), 10},
		{"char", CharField('Z'), 4},
		{"wchar", WCharField(0x30C4), 4},
		{"float32", Float32Field(3.1415927), 6},
		{"float64", Float64Field(-2.718281828459045), 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := roundTrip(t, tt.field)
			assert.Equal(t, tt.field, dec)
			assert.Equal(t, tt.wireSize, EncodedSize(tt.field))
		})
	}
}

func TestVariableRoundTrips(t *testing.T) {
	dec := roundTrip(t, StringField("hello"))
	s, err := dec.AsString()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
	// tag + 1-byte length + NUL = 3 bytes of overhead
	assert.Equal(t, 5+3, EncodedSize(StringField("hello")))

	dec = roundTrip(t, ByteArrayField([]byte{1, 2, 3}))
	b, err := dec.AsBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b)

	dest := Destination{Name: "orders/filled", Kind: DestTopic}
	dec = roundTrip(t, DestinationField(dest))
	d, err := dec.AsDestination()
	require.NoError(t, err)
	assert.Equal(t, dest, d)

	queue := Destination{Name: "work-queue", Kind: DestQueue}
	dec = roundTrip(t, DestinationField(queue))
	d, err = dec.AsDestination()
	require.NoError(t, err)
	assert.Equal(t, queue, d)
}

func TestByteArrayOverheadBands(t *testing.T) {
	tests := []struct {
		length   int
		overhead int
	}{
		{0, 2},
		{1, 2},
		{253, 2},
		{254, 3},
		{65532, 3},
		{65533, 4},
		{16777211, 4},
		{16777212, 5},
	}

	for _, tt := range tests {
		f := ByteArrayField(make([]byte, tt.length))
		assert.Equal(t, tt.length+tt.overhead, EncodedSize(f),
			"byte array of length %d", tt.length)
	}
}

func TestByteArrayBoundaryRoundTrip(t *testing.T) {
	for _, n := range []int{253, 254, 65532, 65533} {
		payload := bytes.Repeat([]byte{0xA5}, n)
		dec := roundTrip(t, ByteArrayField(payload))
		got, err := dec.AsBytes()
		require.NoError(t, err)
		assert.Equal(t, payload, got, "length %d", n)
	}
}

func TestStringOverheadBands(t *testing.T) {
	// Strings carry a NUL terminator: one byte more than a byte array in
	// every band.
	assert.Equal(t, 0+3, EncodedSize(StringField("")))
	assert.Equal(t, 252+3, EncodedSize(StringField(string(make([]byte, 252)))))
	assert.Equal(t, 253+4, EncodedSize(StringField(string(make([]byte, 253)))))
}

func TestDestinationOverheadBands(t *testing.T) {
	name251 := string(bytes.Repeat([]byte{'t'}, 251))
	assert.Equal(t, 251+4, EncodedSize(DestinationField(Destination{Name: name251})))

	name252 := string(bytes.Repeat([]byte{'t'}, 252))
	assert.Equal(t, 252+5, EncodedSize(DestinationField(Destination{Name: name252})))
}

func TestContainerFramingOverhead(t *testing.T) {
	m := NewMap()
	size, err := m.Size()
	require.NoError(t, err)
	assert.Equal(t, 5, size, "empty map is pure framing")

	s := NewStream()
	size, err = s.Size()
	require.NoError(t, err)
	assert.Equal(t, 5, size, "empty stream is pure framing")
}

func TestMapRoundTrip(t *testing.T) {
	m := NewMap()
	require.NoError(t, m.AddBool("ok", true))
	require.NoError(t, m.AddInt32("count", -42))
	require.NoError(t, m.AddString("label", "widgets"))
	require.NoError(t, m.AddByteArray("blob", []byte{9, 8, 7}))

	sub, err := m.OpenSubStream("readings")
	require.NoError(t, err)
	require.NoError(t, sub.AddFloat64(1.5))
	require.NoError(t, sub.AddFloat64(-2.5))
	require.NoError(t, sub.Close())

	enc, err := m.Encode()
	require.NoError(t, err)

	size, err := m.Size()
	require.NoError(t, err)
	assert.Equal(t, size, len(enc))

	dec, err := DecodeMap(enc)
	require.NoError(t, err)

	ok, err := dec.GetBool("ok")
	require.NoError(t, err)
	assert.True(t, ok)

	count, err := dec.GetInt32("count")
	require.NoError(t, err)
	assert.Equal(t, int32(-42), count)

	label, err := dec.GetString("label")
	require.NoError(t, err)
	assert.Equal(t, "widgets", label)

	blob, err := dec.GetBytes("blob")
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 8, 7}, blob)

	readings, err := dec.GetStream("readings")
	require.NoError(t, err)
	f, err := readings.GetNext()
	require.NoError(t, err)
	v, err := f.AsFloat64()
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)
}

func TestStreamRoundTrip(t *testing.T) {
	s := NewStream()
	require.NoError(t, s.AddString("first"))
	require.NoError(t, s.AddInt64(123456789))
	require.NoError(t, s.AddNull())

	enc, err := s.Encode()
	require.NoError(t, err)

	dec, err := DecodeStream(enc)
	require.NoError(t, err)

	f, err := dec.GetNext()
	require.NoError(t, err)
	assert.Equal(t, TypeString, f.Type)

	f, err = dec.GetNext()
	require.NoError(t, err)
	v, err := f.AsInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(123456789), v)

	f, err = dec.GetNext()
	require.NoError(t, err)
	assert.Equal(t, TypeNull, f.Type)
}

func TestEncodingIsCanonical(t *testing.T) {
	// Same value encodes to identical bytes every time.
	f := Int32Field(0x01020304)
	a, err := EncodeField(f)
	require.NoError(t, err)
	b, err := EncodeField(f)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// Big-endian on the wire regardless of host order.
	assert.Equal(t, []byte{0x21, 0x06, 0x01, 0x02, 0x03, 0x04}, a)
}

func TestUnknownFieldPassThrough(t *testing.T) {
	raw := []byte{0xC1, 0x04, 0xAA, 0xBB} // unrecognized type code 0xC
	f, next, err := DecodeField(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, len(raw), next)
	assert.Equal(t, TypeUnknown, f.Type)

	re, err := EncodeField(f)
	require.NoError(t, err)
	assert.Equal(t, raw, re, "unknown field must re-encode byte-identically")
}

func TestDecodeRejectsMalformedData(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"zero length width", []byte{0x10, 0x00}},
		{"oversized length width", []byte{0x15, 0x01, 0x02, 0x03, 0x04, 0x05}},
		{"length past buffer", []byte{0x71, 0xFF, 0x00}},
		{"length smaller than header", []byte{0x71, 0x01}},
		{"truncated length field", []byte{0x72}},
		{"string missing terminator", []byte{0x81, 0x04, 'h', 'i'}},
		{"null with payload", []byte{0x01, 0x03, 0x00}},
		{"bad integer width", []byte{0x21, 0x05, 0x00, 0x00, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeField(tt.data, 0)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err), "malformed data must classify invalid")
		})
	}
}

func TestDecodeMapRejectsNonStringName(t *testing.T) {
	// Hand-build a map whose first entry name is an int32 instead of a string.
	inner, err := EncodeField(Int32Field(1))
	require.NoError(t, err)

	data := appendHeader(nil, codeMap, len(inner), containerLengthWidth)
	data = append(data, inner...)

	_, err = DecodeMap(data)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestDecodeOffsetChaining(t *testing.T) {
	var buf []byte
	var err error
	buf, err = AppendField(buf, BoolField(true))
	require.NoError(t, err)
	buf, err = AppendField(buf, StringField("mid"))
	require.NoError(t, err)
	buf, err = AppendField(buf, UInt64Field(7))
	require.NoError(t, err)

	off := 0
	var f Field
	f, off, err = DecodeField(buf, off)
	require.NoError(t, err)
	assert.Equal(t, TypeBool, f.Type)

	f, off, err = DecodeField(buf, off)
	require.NoError(t, err)
	assert.Equal(t, TypeString, f.Type)

	f, off, err = DecodeField(buf, off)
	require.NoError(t, err)
	assert.Equal(t, TypeUInt64, f.Type)
	assert.Equal(t, len(buf), off)
}
