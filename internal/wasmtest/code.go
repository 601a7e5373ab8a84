package wasmtest

import (
	"encoding/binary"
	"math"
)

const (
	opUnreachable  = 0x00
	opBlock        = 0x02
	opLoop         = 0x03
	opIf           = 0x04
	opEnd          = 0x0b
	opBr           = 0x0c
	opBrIf         = 0x0d
	opCall         = 0x10
	opDrop         = 0x1a
	opLocalGet     = 0x20
	opLocalSet     = 0x21
	opLocalTee     = 0x22
	opGlobalGet    = 0x23
	opGlobalSet    = 0x24
	opI32Load      = 0x28
	opI32Load16U   = 0x2f
	opI32Store     = 0x36
	opI32Store16   = 0x3b
	opMemorySize   = 0x3f
	opMemoryGrow   = 0x40
	opI32Const     = 0x41
	opF64Const     = 0x44
	opI32Eqz       = 0x45
	opI32LtU       = 0x49
	opI32GtU       = 0x4b
	opI32Add       = 0x6a
	opI32Sub       = 0x6b
	opI32Mul       = 0x6c
	opI32And       = 0x71
	opI32Shl       = 0x74
	opI32ShrU      = 0x76
	opF64Mul       = 0xa2
	opI32TruncF64U = 0xab

	blockTypeEmpty = 0x40
)

// Code is a function body under construction. The terminating end opcode is
// added when the body is attached to a module.
type Code struct {
	buf []byte
}

// NewCode returns an empty body.
func NewCode() *Code {
	return &Code{}
}

func (c *Code) op(b ...byte) *Code {
	c.buf = append(c.buf, b...)
	return c
}

func (c *Code) u32(v uint32) *Code {
	c.buf = appendU32(c.buf, v)
	return c
}

func (c *Code) memarg(align, offset uint32) *Code {
	return c.u32(align).u32(offset)
}

func (c *Code) bytes() []byte {
	return append(append([]byte(nil), c.buf...), opEnd)
}

func (c *Code) Unreachable() *Code { return c.op(opUnreachable) }
func (c *Code) Drop() *Code        { return c.op(opDrop) }
func (c *Code) End() *Code         { return c.op(opEnd) }

// Block opens a block with no result.
func (c *Code) Block() *Code { return c.op(opBlock, blockTypeEmpty) }

// Loop opens a loop with no result.
func (c *Code) Loop() *Code { return c.op(opLoop, blockTypeEmpty) }

// If opens an if with no result.
func (c *Code) If() *Code { return c.op(opIf, blockTypeEmpty) }

func (c *Code) Br(depth uint32) *Code   { return c.op(opBr).u32(depth) }
func (c *Code) BrIf(depth uint32) *Code { return c.op(opBrIf).u32(depth) }
func (c *Code) Call(fn uint32) *Code    { return c.op(opCall).u32(fn) }

func (c *Code) LocalGet(i uint32) *Code  { return c.op(opLocalGet).u32(i) }
func (c *Code) LocalSet(i uint32) *Code  { return c.op(opLocalSet).u32(i) }
func (c *Code) LocalTee(i uint32) *Code  { return c.op(opLocalTee).u32(i) }
func (c *Code) GlobalGet(i uint32) *Code { return c.op(opGlobalGet).u32(i) }
func (c *Code) GlobalSet(i uint32) *Code { return c.op(opGlobalSet).u32(i) }

// I32Load loads a 4-byte aligned i32 from address+offset.
func (c *Code) I32Load(offset uint32) *Code { return c.op(opI32Load).memarg(2, offset) }

// I32Load16U loads a 2-byte aligned u16 from address+offset.
func (c *Code) I32Load16U(offset uint32) *Code { return c.op(opI32Load16U).memarg(1, offset) }

// I32Store stores an i32 at address+offset.
func (c *Code) I32Store(offset uint32) *Code { return c.op(opI32Store).memarg(2, offset) }

// I32Store16 stores the low 16 bits of an i32 at address+offset.
func (c *Code) I32Store16(offset uint32) *Code { return c.op(opI32Store16).memarg(1, offset) }

func (c *Code) MemorySize() *Code { return c.op(opMemorySize, 0x00) }
func (c *Code) MemoryGrow() *Code { return c.op(opMemoryGrow, 0x00) }

func (c *Code) I32Const(v int32) *Code {
	c.op(opI32Const)
	c.buf = appendS32(c.buf, v)
	return c
}

// U32Const pushes v reinterpreted as i32.
func (c *Code) U32Const(v uint32) *Code { return c.I32Const(int32(v)) }

func (c *Code) F64Const(v float64) *Code {
	c.op(opF64Const)
	c.buf = binary.LittleEndian.AppendUint64(c.buf, math.Float64bits(v))
	return c
}

func (c *Code) I32Eqz() *Code       { return c.op(opI32Eqz) }
func (c *Code) I32LtU() *Code       { return c.op(opI32LtU) }
func (c *Code) I32GtU() *Code       { return c.op(opI32GtU) }
func (c *Code) I32Add() *Code       { return c.op(opI32Add) }
func (c *Code) I32Sub() *Code       { return c.op(opI32Sub) }
func (c *Code) I32Mul() *Code       { return c.op(opI32Mul) }
func (c *Code) I32And() *Code       { return c.op(opI32And) }
func (c *Code) I32Shl() *Code       { return c.op(opI32Shl) }
func (c *Code) I32ShrU() *Code      { return c.op(opI32ShrU) }
func (c *Code) F64Mul() *Code       { return c.op(opF64Mul) }
func (c *Code) I32TruncF64U() *Code { return c.op(opI32TruncF64U) }
