package abi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/tetratelabs/wazero/api"
)

// ErrOutOfBounds is returned when an access falls outside guest memory.
var ErrOutOfBounds = errors.New("out of bounds")

// ErrNoMemory is returned when the guest exposes no linear memory.
var ErrNoMemory = errors.New("guest has no memory")

// Memory is the subset of api.Memory the view needs.
type Memory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
}

// View reads and writes fixed-width integers in guest memory.
type View struct {
	memory func() Memory
	order  binary.ByteOrder
}

// NewView creates a View that asks memory for the current buffer on every
// access.
func NewView(memory func() Memory, order binary.ByteOrder) View {
	return View{memory: memory, order: order}
}

// ModuleView creates a View over the exported memory of mod.
func ModuleView(mod api.Module, order binary.ByteOrder) View {
	return NewView(func() Memory {
		mem := mod.Memory()
		if mem == nil {
			return nil
		}
		return mem
	}, order)
}

// Order returns the byte order used by the view.
func (v View) Order() binary.ByteOrder {
	return v.order
}

// read returns a slice of current guest memory. The slice must not be kept
// past the next guest call.
func (v View) read(offset, size uint32) ([]byte, error) {
	mem := v.memory()
	if mem == nil {
		return nil, ErrNoMemory
	}
	if uint64(offset)+uint64(size) > math.MaxUint32+1 {
		return nil, fmt.Errorf("%w: %d bytes at %#x", ErrOutOfBounds, size, offset)
	}
	buf, ok := mem.Read(offset, size)
	if !ok {
		return nil, fmt.Errorf("%w: %d bytes at %#x", ErrOutOfBounds, size, offset)
	}
	return buf, nil
}

func (v View) write(offset uint32, data []byte) error {
	mem := v.memory()
	if mem == nil {
		return ErrNoMemory
	}
	if !mem.Write(offset, data) {
		return fmt.Errorf("%w: %d bytes at %#x", ErrOutOfBounds, len(data), offset)
	}
	return nil
}

// ReadU16 reads a 16-bit unsigned integer.
func (v View) ReadU16(offset uint32) (uint16, error) {
	buf, err := v.read(offset, 2)
	if err != nil {
		return 0, err
	}
	return v.order.Uint16(buf), nil
}

// ReadU32 reads a 32-bit unsigned integer.
func (v View) ReadU32(offset uint32) (uint32, error) {
	buf, err := v.read(offset, 4)
	if err != nil {
		return 0, err
	}
	return v.order.Uint32(buf), nil
}

// WriteU16 writes a 16-bit unsigned integer.
func (v View) WriteU16(offset uint32, value uint16) error {
	var buf [2]byte
	v.order.PutUint16(buf[:], value)
	return v.write(offset, buf[:])
}

// WriteU32 writes a 32-bit unsigned integer.
func (v View) WriteU32(offset uint32, value uint32) error {
	var buf [4]byte
	v.order.PutUint32(buf[:], value)
	return v.write(offset, buf[:])
}

// ReadU16s reads count consecutive 16-bit unsigned integers starting at offset.
func (v View) ReadU16s(offset, count uint32) ([]uint16, error) {
	size := uint64(count) * uint64(CodeUnitSize)
	if size > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d code units at %#x", ErrOutOfBounds, count, offset)
	}
	if count == 0 {
		return []uint16{}, nil
	}
	buf, err := v.read(offset, uint32(size))
	if err != nil {
		return nil, err
	}
	out := make([]uint16, count)
	for i := range out {
		out[i] = v.order.Uint16(buf[i*2:])
	}
	return out, nil
}

// WriteU16s writes values as consecutive 16-bit unsigned integers.
func (v View) WriteU16s(offset uint32, values []uint16) error {
	if len(values) == 0 {
		return nil
	}
	buf := make([]byte, len(values)*int(CodeUnitSize))
	for i, value := range values {
		v.order.PutUint16(buf[i*2:], value)
	}
	return v.write(offset, buf)
}
