package abi

import (
	"encoding/binary"
	"testing"

	"github.com/ast-ral/divine/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceMemory is a flat byte arena standing in for guest linear memory.
type sliceMemory struct {
	buf []byte
}

func (m *sliceMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	end := uint64(offset) + uint64(byteCount)
	if end > uint64(len(m.buf)) {
		return nil, false
	}
	return m.buf[offset:end], true
}

func (m *sliceMemory) Write(offset uint32, v []byte) bool {
	end := uint64(offset) + uint64(len(v))
	if end > uint64(len(m.buf)) {
		return false
	}
	copy(m.buf[offset:], v)
	return true
}

func newTestView(size int, order binary.ByteOrder) (View, *sliceMemory) {
	mem := &sliceMemory{buf: make([]byte, size)}
	return NewView(func() Memory { return mem }, order), mem
}

func TestProbeByteOrder(t *testing.T) {
	order, err := ProbeByteOrder()
	require.NoError(t, err)

	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], Sentinel)
	assert.Equal(t, Sentinel, order.Uint32(buf[:]))
}

func TestProbe(t *testing.T) {
	tests := []struct {
		name string
		put  func([]byte, uint32)
		want binary.ByteOrder
	}{
		{"little", binary.LittleEndian.PutUint32, binary.LittleEndian},
		{"big", binary.BigEndian.PutUint32, binary.BigEndian},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := probe(tt.put)
			require.NoError(t, err)
			assert.Equal(t, tt.want, order)
		})
	}
}

func TestProbe_Unknown(t *testing.T) {
	// Middle-endian layout matches neither reinterpretation.
	scrambled := func(b []byte, v uint32) {
		binary.LittleEndian.PutUint32(b, v)
		b[0], b[1] = b[1], b[0]
	}

	order, err := probe(scrambled)
	assert.Nil(t, order)

	var endianErr *errors.EndiannessError
	require.ErrorAs(t, err, &endianErr)
}

func TestView_LittleEndianSentinel(t *testing.T) {
	view, mem := newTestView(8, binary.LittleEndian)
	copy(mem.buf[4:], []byte{0xde, 0xc0, 0xad, 0xde})

	got, err := view.ReadU32(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadc0de), got)
}

func TestView_RoundTrip(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(order.String(), func(t *testing.T) {
			view, _ := newTestView(16, order)

			require.NoError(t, view.WriteU32(0, 0x01020304))
			require.NoError(t, view.WriteU16(4, 0xbeef))

			u32, err := view.ReadU32(0)
			require.NoError(t, err)
			assert.Equal(t, uint32(0x01020304), u32)

			u16, err := view.ReadU16(4)
			require.NoError(t, err)
			assert.Equal(t, uint16(0xbeef), u16)
		})
	}
}

func TestView_OutOfBounds(t *testing.T) {
	view, _ := newTestView(8, binary.LittleEndian)

	_, err := view.ReadU32(6)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, err = view.ReadU32(0xffffffff)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	assert.ErrorIs(t, view.WriteU16(7, 1), ErrOutOfBounds)

	_, err = view.ReadU16s(0, 0x80000001)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestView_NoMemory(t *testing.T) {
	view := NewView(func() Memory { return nil }, binary.LittleEndian)

	_, err := view.ReadU32(0)
	assert.ErrorIs(t, err, ErrNoMemory)
}

func TestView_FollowsGrownMemory(t *testing.T) {
	small := &sliceMemory{buf: make([]byte, 4)}
	current := small
	view := NewView(func() Memory { return current }, binary.LittleEndian)

	_, err := view.ReadU32(8)
	require.ErrorIs(t, err, ErrOutOfBounds)

	// Growth replaces the backing buffer; the view must see the new one.
	current = &sliceMemory{buf: make([]byte, 64)}
	require.NoError(t, view.WriteU32(8, 42))

	got, err := view.ReadU32(8)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), got)
	assert.Len(t, small.buf, 4)
}

func TestRecord_RoundTrip(t *testing.T) {
	view, mem := newTestView(32, binary.LittleEndian)
	rec := RawVec{Ptr: 0x100, Len: 3, Cap: 4}

	require.NoError(t, view.WriteRecord(8, rec))
	assert.Equal(t, []byte{0x00, 0x01, 0, 0, 3, 0, 0, 0, 4, 0, 0, 0}, mem.buf[8:20])

	got, err := view.ReadRecord(8)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestReadRecord_Truncated(t *testing.T) {
	view, _ := newTestView(16, binary.LittleEndian)

	_, err := view.ReadRecord(8)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestElementOffset(t *testing.T) {
	got, err := ElementOffset(0x100, 2, RecordElem)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x100+24), got)

	got, err = ElementOffset(0x100, 3, CodeUnitElem)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x106), got)

	_, err = ElementOffset(0xfffffff0, 2, RecordElem)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestStrings(t *testing.T) {
	view, _ := newTestView(64, binary.LittleEndian)

	units := CodeUnits("abc")
	assert.Equal(t, []uint16{97, 98, 99}, units)
	require.NoError(t, view.WriteU16s(16, units))

	s, err := view.ReadString(RawVec{Ptr: 16, Len: 3, Cap: 3})
	require.NoError(t, err)
	assert.Equal(t, "abc", s)

	s, err = view.ReadString(RawVec{Ptr: 0xffff0000, Len: 0, Cap: 0})
	require.NoError(t, err)
	assert.Equal(t, "", s)
}

func TestCodeUnits_SurrogatePairs(t *testing.T) {
	units := CodeUnits("a😀")
	assert.Equal(t, []uint16{0x61, 0xd83d, 0xde00}, units)

	view, _ := newTestView(16, binary.LittleEndian)
	require.NoError(t, view.WriteU16s(0, units))
	s, err := view.ReadString(RawVec{Ptr: 0, Len: uint32(len(units))})
	require.NoError(t, err)
	assert.Equal(t, "a😀", s)
}
