package sdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cachestream/errors"
)

func TestMapMultimapLaw(t *testing.T) {
	m := NewMap()
	require.NoError(t, m.AddInt32("dup", 1))
	require.NoError(t, m.AddInt32("dup", 2))

	// Both instances persist.
	n, err := m.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Lookup returns one of the duplicates.
	v, err := m.GetInt32("dup")
	require.NoError(t, err)
	assert.Contains(t, []int32{1, 2}, v)

	// Enumeration visits both.
	fields, err := m.Fields()
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "dup", fields[0].Name)
	assert.Equal(t, "dup", fields[1].Name)

	// DeleteField removes exactly one instance and shrinks the size by
	// exactly that instance's serialized bytes.
	before, err := m.Size()
	require.NoError(t, err)
	instanceSize := stringEncodedSize("dup") + EncodedSize(Int32Field(1))

	require.NoError(t, m.DeleteField("dup"))

	after, err := m.Size()
	require.NoError(t, err)
	assert.Equal(t, before-instanceSize, after)

	n, err = m.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, m.DeleteField("dup"))
	err = m.DeleteField("dup")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestMapNamesAreCaseSensitive(t *testing.T) {
	m := NewMap()
	require.NoError(t, m.AddInt32("Key", 1))

	_, err := m.GetField("key")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestStreamCursorLaw(t *testing.T) {
	s := NewStream()
	values := []int32{10, 20, 30}
	for _, v := range values {
		require.NoError(t, s.AddInt32(v))
	}

	readAll := func() []int32 {
		var out []int32
		for {
			f, err := s.GetNext()
			if err != nil {
				assert.ErrorIs(t, err, errors.ErrEndOfStream)
				break
			}
			v, err := f.AsInt32()
			require.NoError(t, err)
			out = append(out, v)
		}
		return out
	}

	assert.Equal(t, values, readAll())

	// Past the end, GetNext keeps returning end-of-stream without advancing.
	_, err := s.GetNext()
	assert.ErrorIs(t, err, errors.ErrEndOfStream)
	_, err = s.GetNext()
	assert.ErrorIs(t, err, errors.ErrEndOfStream)

	// Rewind reproduces the original insertion order.
	require.NoError(t, s.Rewind())
	assert.Equal(t, values, readAll())
}

func TestBoundedCapacity(t *testing.T) {
	m := NewMap(WithBoundedCapacity(20))

	// Empty map is 5 bytes of framing; one small entry fits.
	require.NoError(t, m.AddString("a", "xy"))

	before, err := m.Size()
	require.NoError(t, err)

	// The next add would exceed the bound and must leave the map unmodified.
	err = m.AddString("b", "xy")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInsufficientSpace)

	after, err := m.Size()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	n, err := m.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBoundedCapacityCoversNestedWrites(t *testing.T) {
	m := NewMap(WithBoundedCapacity(30))

	sub, err := m.OpenSubStream("s")
	require.NoError(t, err)

	// Fill through the child until the shared bound trips.
	var lastErr error
	for i := 0; i < 64; i++ {
		if lastErr = sub.AddInt64(int64(i)); lastErr != nil {
			break
		}
	}
	require.Error(t, lastErr)
	assert.ErrorIs(t, lastErr, errors.ErrInsufficientSpace)
}

func TestElasticContainerGrows(t *testing.T) {
	m := NewMap()
	for i := 0; i < 1000; i++ {
		require.NoError(t, m.AddInt64("n", int64(i)))
	}
	n, err := m.Len()
	require.NoError(t, err)
	assert.Equal(t, 1000, n)
}

func TestClosedContainerLaw(t *testing.T) {
	m := NewMap()
	require.NoError(t, m.AddBool("flag", true))
	require.NoError(t, m.Close())

	assertClosed := func(err error) {
		t.Helper()
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrClosed)
	}

	assertClosed(m.AddBool("x", false))
	_, err := m.GetField("flag")
	assertClosed(err)
	_, err = m.Fields()
	assertClosed(err)
	_, err = m.Len()
	assertClosed(err)
	_, err = m.Size()
	assertClosed(err)
	assertClosed(m.DeleteField("flag"))
	_, err = m.OpenSubMap("sub")
	assertClosed(err)
	_, err = m.Encode()
	assertClosed(err)
	assertClosed(m.Close())
}

func TestParentCloseCascades(t *testing.T) {
	m := NewMap()
	child, err := m.OpenSubMap("child")
	require.NoError(t, err)
	grandchild, err := child.OpenSubStream("grandchild")
	require.NoError(t, err)

	// Closing the root recursively closes every open descendant.
	require.NoError(t, m.Close())

	assert.True(t, child.Closed())
	assert.True(t, grandchild.Closed())
	assert.ErrorIs(t, child.AddBool("x", true), errors.ErrClosed)
	assert.ErrorIs(t, grandchild.AddBool(true), errors.ErrClosed)
}

func TestSubContainerCloseFinalizesWrites(t *testing.T) {
	m := NewMap()
	sub, err := m.OpenSubMap("inner")
	require.NoError(t, err)
	require.NoError(t, sub.AddString("k", "v"))
	require.NoError(t, sub.Close())

	// The closed write handle is unusable.
	assert.ErrorIs(t, sub.AddString("k2", "v2"), errors.ErrClosed)

	// But the parent retains the content and serves a fresh read view.
	view, err := m.GetMap("inner")
	require.NoError(t, err)
	v, err := view.GetString("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestWritingToParentWithOpenChild(t *testing.T) {
	// Correctness is preserved even while a child is open for writing.
	m := NewMap()
	sub, err := m.OpenSubStream("child")
	require.NoError(t, err)
	require.NoError(t, sub.AddInt32(1))

	require.NoError(t, m.AddString("sibling", "present"))
	require.NoError(t, sub.AddInt32(2))
	require.NoError(t, sub.Close())

	enc, err := m.Encode()
	require.NoError(t, err)

	dec, err := DecodeMap(enc)
	require.NoError(t, err)

	s, err := dec.GetString("sibling")
	require.NoError(t, err)
	assert.Equal(t, "present", s)

	child, err := dec.GetStream("child")
	require.NoError(t, err)
	n, err := child.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStreamOpenSubMapCarriesNoName(t *testing.T) {
	s := NewStream()
	sub, err := s.OpenSubMap()
	require.NoError(t, err)
	require.NoError(t, sub.AddBool("ok", true))
	require.NoError(t, sub.Close())

	require.NoError(t, s.Rewind())
	f, err := s.GetNext()
	require.NoError(t, err)
	assert.Equal(t, TypeMap, f.Type)
}

func TestTypeCoercions(t *testing.T) {
	m := NewMap()
	require.NoError(t, m.AddInt8("small", 42))
	require.NoError(t, m.AddInt64("big", 1<<40))
	require.NoError(t, m.AddString("text", "not a number"))

	// Widening succeeds.
	v64, err := m.GetInt64("small")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v64)

	f64, err := m.GetFloat64("small")
	require.NoError(t, err)
	assert.Equal(t, 42.0, f64)

	// Narrowing succeeds only when the value fits.
	f, err := m.GetField("big")
	require.NoError(t, err)
	_, err = f.AsInt8()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConversion)

	// No coercion exists between string and numeric.
	_, err = m.GetInt32("text")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConversion)
}

func TestNegativeToUnsignedFails(t *testing.T) {
	f := Int32Field(-1)
	_, err := f.AsUInt32()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConversion)
}

func TestSizeTracksEncoding(t *testing.T) {
	m := NewMap()
	require.NoError(t, m.AddString("name", "value"))
	require.NoError(t, m.AddInt64("num", 7))

	enc, err := m.Encode()
	require.NoError(t, err)
	size, err := m.Size()
	require.NoError(t, err)
	assert.Equal(t, size, len(enc))
}
