package wasmtest

import "unicode/utf16"

// Import and export names of the guest ABI.
const (
	RandomModule = "js"
	RandomName   = "random"
	TargetModule = "target"
	TargetName   = "target_callback"

	// TraceModule is imported by guests built WithTrace. trace.alloc and
	// trace.dealloc each receive (ptr, bytes).
	TraceModule = "trace"
)

// heapBase is where the bump allocator starts handing out memory.
const heapBase = 1024

// GuestOption adjusts how a Guest is assembled.
type GuestOption func(*guestConfig)

type guestConfig struct {
	omit          map[string]bool
	extra         []importEntryDef
	trace         bool
	legacyDealloc bool
}

type importEntryDef struct {
	module string
	name   string
	ft     FuncType
}

// WithTrace makes the allocator report every allocation and deallocation
// to the trace import module.
func WithTrace() GuestOption {
	return func(c *guestConfig) { c.trace = true }
}

// WithLegacyDealloc exports dealloc_raw_vec(ptr, cap, elem_size, elem_align)
// without the length parameter.
func WithLegacyDealloc() GuestOption {
	return func(c *guestConfig) { c.legacyDealloc = true }
}

// WithoutExport leaves the named export out of the module.
func WithoutExport(name string) GuestOption {
	return func(c *guestConfig) { c.omit[name] = true }
}

// WithImport declares an additional, never-called function import.
func WithImport(module, name string, ft FuncType) GuestOption {
	return func(c *guestConfig) {
		c.extra = append(c.extra, importEntryDef{module: module, name: name, ft: ft})
	}
}

// Guest is a module exposing the allocator ABI with a bump allocator.
// Deallocation never frees; with tracing enabled it is only reported.
type Guest struct {
	*Module
	config     guestConfig
	Random     uint32
	Target     uint32
	AllocBox   uint32
	DeallocBox uint32
	AllocVec   uint32
	DeallocVec uint32
}

// NewGuest assembles the imports, memory and allocator exports. The caller
// supplies main with SetMain.
func NewGuest(opts ...GuestOption) *Guest {
	cfg := guestConfig{omit: make(map[string]bool)}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := New()
	g := &Guest{Module: m, config: cfg}

	g.Random = m.ImportFunc(RandomModule, RandomName, Func(nil, F64))
	g.Target = m.ImportFunc(TargetModule, TargetName, Func(nil, I32))

	var traceAlloc, traceDealloc uint32
	if cfg.trace {
		traceAlloc = m.ImportFunc(TraceModule, "alloc", Func(Params(I32, I32)))
		traceDealloc = m.ImportFunc(TraceModule, "dealloc", Func(Params(I32, I32)))
	}
	for _, imp := range cfg.extra {
		m.ImportFunc(imp.module, imp.name, imp.ft)
	}

	m.Memory(1)
	heap := m.GlobalI32(true, heapBase)

	// alloc(size, align) -> ptr
	alloc := NewCode().
		GlobalGet(heap).LocalGet(1).I32Add().I32Const(1).I32Sub().
		I32Const(0).LocalGet(1).I32Sub().I32And().LocalSet(2).
		LocalGet(2).LocalGet(0).I32Add().GlobalSet(heap).
		GlobalGet(heap).MemorySize().I32Const(16).I32Shl().I32GtU().
		If().
		GlobalGet(heap).U32Const(0xffff).I32Add().I32Const(16).I32ShrU().
		MemorySize().I32Sub().MemoryGrow().Drop().
		End()
	if cfg.trace {
		alloc.LocalGet(2).LocalGet(0).Call(traceAlloc)
	}
	alloc.LocalGet(2)
	allocFn := m.Func(Func(Params(I32, I32), I32), []ValType{I32}, alloc)

	g.AllocBox = m.Func(Func(Params(I32, I32), I32), nil,
		NewCode().LocalGet(0).LocalGet(1).Call(allocFn))

	deallocBox := NewCode()
	if cfg.trace {
		deallocBox.LocalGet(0).LocalGet(1).Call(traceDealloc)
	}
	g.DeallocBox = m.Func(Func(Params(I32, I32, I32)), nil, deallocBox)

	g.AllocVec = m.Func(Func(Params(I32, I32, I32), I32), nil,
		NewCode().LocalGet(0).LocalGet(1).I32Mul().LocalGet(2).Call(allocFn))

	deallocVec := NewCode()
	if cfg.legacyDealloc {
		if cfg.trace {
			deallocVec.LocalGet(0).LocalGet(1).LocalGet(2).I32Mul().Call(traceDealloc)
		}
		g.DeallocVec = m.Func(Func(Params(I32, I32, I32, I32)), nil, deallocVec)
	} else {
		if cfg.trace {
			deallocVec.LocalGet(0).LocalGet(2).LocalGet(3).I32Mul().Call(traceDealloc)
		}
		g.DeallocVec = m.Func(Func(Params(I32, I32, I32, I32, I32)), nil, deallocVec)
	}

	g.export("alloc_raw_box", g.AllocBox)
	g.export("dealloc_raw_box", g.DeallocBox)
	g.export("alloc_raw_vec", g.AllocVec)
	g.export("dealloc_raw_vec", g.DeallocVec)
	if !cfg.omit["memory"] {
		m.ExportMemory("memory")
	}
	return g
}

func (g *Guest) export(name string, fn uint32) {
	if !g.config.omit[name] {
		g.ExportFunc(name, fn)
	}
}

// SetMain defines main() -> ptr with the given locals and body and returns
// the finished module bytes.
func (g *Guest) SetMain(locals []ValType, body *Code) []byte {
	fn := g.Func(Func(nil, I32), locals, body)
	g.export("main", fn)
	return g.Bytes()
}

// storeRecord writes {ptr, len, len} at base+offset, with ptr taken from a
// local.
func storeRecord(c *Code, base uint32, offset uint32, ptrLocal uint32, length int32) {
	c.LocalGet(base).LocalGet(ptrLocal).I32Store(offset)
	c.LocalGet(base).I32Const(length).I32Store(offset + 4)
	c.LocalGet(base).I32Const(length).I32Store(offset + 8)
}

// finishList boxes the outer vector held in local outer and leaves the box
// pointer on the stack.
func (g *Guest) finishList(c *Code, outer, box uint32, count int32) {
	c.I32Const(12).I32Const(4).Call(g.AllocBox).LocalSet(box)
	storeRecord(c, box, 0, outer, count)
	c.LocalGet(box)
}

// FixedGuest returns a module whose main returns fragments, building every
// string inside the guest.
func FixedGuest(fragments []string, opts ...GuestOption) []byte {
	return fixedList(fragments, false, opts)
}

// BrokenTailGuest is FixedGuest with one extra trailing entry whose string
// pointer lies outside linear memory.
func BrokenTailGuest(fragments []string, opts ...GuestOption) []byte {
	return fixedList(fragments, true, opts)
}

func fixedList(fragments []string, brokenTail bool, opts []GuestOption) []byte {
	g := NewGuest(opts...)
	const outer, box, tmp = 0, 1, 2
	n := int32(len(fragments))
	if brokenTail {
		n++
	}

	c := NewCode().I32Const(n).I32Const(12).I32Const(4).Call(g.AllocVec).LocalSet(outer)
	for i, s := range fragments {
		units := utf16.Encode([]rune(s))
		c.I32Const(int32(len(units))).I32Const(2).I32Const(2).Call(g.AllocVec).LocalSet(tmp)
		for j, u := range units {
			c.LocalGet(tmp).I32Const(int32(u)).I32Store16(uint32(2 * j))
		}
		storeRecord(c, outer, uint32(12*i), tmp, int32(len(units)))
	}
	if brokenTail {
		c.U32Const(0xfffffff0).LocalSet(tmp)
		storeRecord(c, outer, uint32(12*len(fragments)), tmp, 4)
	}
	g.finishList(c, outer, box, n)
	return g.SetMain([]ValType{I32, I32, I32}, c)
}

// EchoGuest returns a module whose main calls target_callback calls times,
// moves each returned record into its list, frees the callback box itself,
// and returns the list.
func EchoGuest(calls int, opts ...GuestOption) []byte {
	g := NewGuest(opts...)
	const outer, box, cb = 0, 1, 2
	n := int32(calls)

	c := NewCode().I32Const(n).I32Const(12).I32Const(4).Call(g.AllocVec).LocalSet(outer)
	for k := 0; k < calls; k++ {
		c.Call(g.Target).LocalSet(cb)
		for _, f := range []uint32{0, 4, 8} {
			c.LocalGet(outer).LocalGet(cb).I32Load(f).I32Store(uint32(12*k) + f)
		}
		c.LocalGet(cb).I32Const(12).I32Const(4).Call(g.DeallocBox)
	}
	g.finishList(c, outer, box, n)
	return g.SetMain([]ValType{I32, I32, I32}, c)
}

// RandomGuest returns a module whose main returns one single-unit fragment
// holding uint16(1000 * js.random()).
func RandomGuest(opts ...GuestOption) []byte {
	g := NewGuest(opts...)
	const outer, box, tmp = 0, 1, 2

	c := NewCode().
		I32Const(1).I32Const(2).I32Const(2).Call(g.AllocVec).LocalSet(tmp).
		LocalGet(tmp).Call(g.Random).F64Const(1000).F64Mul().I32TruncF64U().I32Store16(0).
		I32Const(1).I32Const(12).I32Const(4).Call(g.AllocVec).LocalSet(outer)
	storeRecord(c, outer, 0, tmp, 1)
	g.finishList(c, outer, box, 1)
	return g.SetMain([]ValType{I32, I32, I32}, c)
}

// PointerGuest returns a module whose main returns ptr unchanged.
func PointerGuest(ptr uint32, opts ...GuestOption) []byte {
	g := NewGuest(opts...)
	return g.SetMain(nil, NewCode().U32Const(ptr))
}

// CorruptListGuest returns a module whose main returns a valid box that
// describes a list of length entries at listPtr.
func CorruptListGuest(listPtr uint32, length int32, opts ...GuestOption) []byte {
	g := NewGuest(opts...)
	const box, list = 0, 1
	c := NewCode().U32Const(listPtr).LocalSet(list)
	c.I32Const(12).I32Const(4).Call(g.AllocBox).LocalSet(box)
	storeRecord(c, box, 0, list, length)
	c.LocalGet(box)
	return g.SetMain([]ValType{I32, I32}, c)
}

// TrapGuest returns a module whose main traps.
func TrapGuest(opts ...GuestOption) []byte {
	g := NewGuest(opts...)
	return g.SetMain(nil, NewCode().Unreachable())
}

// LoopGuest returns a module whose main never returns.
func LoopGuest(opts ...GuestOption) []byte {
	g := NewGuest(opts...)
	return g.SetMain(nil, NewCode().Loop().Br(0).End().Unreachable())
}
