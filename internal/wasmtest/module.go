// Package wasmtest assembles small WebAssembly core modules in memory for
// tests. It covers only the instructions the test guests need.
package wasmtest

import "fmt"

// ValType is a WebAssembly value type.
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
	F32 ValType = 0x7d
	F64 ValType = 0x7c
)

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Func returns a FuncType with the given params and results.
func Func(params []ValType, results ...ValType) FuncType {
	return FuncType{Params: params, Results: results}
}

// Params is shorthand for a parameter list.
func Params(types ...ValType) []ValType {
	return types
}

const (
	magic   = "\x00asm"
	version = "\x01\x00\x00\x00"

	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionGlobal   = 6
	sectionExport   = 7
	sectionCode     = 10

	kindFunc   = 0x00
	kindMemory = 0x02

	funcTypeByte = 0x60
)

type importEntry struct {
	module  string
	name    string
	typeIdx uint32
}

type funcEntry struct {
	locals  []ValType
	body    []byte
	typeIdx uint32
}

type globalEntry struct {
	typ     ValType
	init    int32
	mutable bool
}

type exportEntry struct {
	name  string
	kind  byte
	index uint32
}

// Module is a module under construction. Imports must be declared before
// any function is defined so that function indices stay stable.
type Module struct {
	types     []FuncType
	imports   []importEntry
	funcs     []funcEntry
	globals   []globalEntry
	exports   []exportEntry
	memoryMin uint32
	hasMemory bool
}

// New returns an empty module.
func New() *Module {
	return &Module{}
}

func (m *Module) addType(ft FuncType) uint32 {
	m.types = append(m.types, ft)
	return uint32(len(m.types) - 1)
}

// ImportFunc declares an imported function and returns its function index.
func (m *Module) ImportFunc(module, name string, ft FuncType) uint32 {
	if len(m.funcs) > 0 {
		panic("wasmtest: ImportFunc after Func")
	}
	m.imports = append(m.imports, importEntry{module: module, name: name, typeIdx: m.addType(ft)})
	return uint32(len(m.imports) - 1)
}

// Func defines a function and returns its function index. Parameters are
// locals 0..len(Params)-1; extra locals follow them.
func (m *Module) Func(ft FuncType, locals []ValType, body *Code) uint32 {
	m.funcs = append(m.funcs, funcEntry{typeIdx: m.addType(ft), locals: locals, body: body.bytes()})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// Memory defines the module's linear memory with an initial size in pages.
func (m *Module) Memory(minPages uint32) {
	m.hasMemory = true
	m.memoryMin = minPages
}

// GlobalI32 defines an i32 global and returns its index.
func (m *Module) GlobalI32(mutable bool, init int32) uint32 {
	m.globals = append(m.globals, globalEntry{typ: I32, mutable: mutable, init: init})
	return uint32(len(m.globals) - 1)
}

// ExportFunc exports function index under name.
func (m *Module) ExportFunc(name string, index uint32) {
	m.exports = append(m.exports, exportEntry{name: name, kind: kindFunc, index: index})
}

// ExportMemory exports memory 0 under name.
func (m *Module) ExportMemory(name string) {
	if !m.hasMemory {
		panic(fmt.Sprintf("wasmtest: export %q of undefined memory", name))
	}
	m.exports = append(m.exports, exportEntry{name: name, kind: kindMemory, index: 0})
}

// Bytes encodes the module in the binary format.
func (m *Module) Bytes() []byte {
	out := []byte(magic + version)

	if len(m.types) > 0 {
		sec := appendU32(nil, uint32(len(m.types)))
		for _, ft := range m.types {
			sec = append(sec, funcTypeByte)
			sec = appendValTypes(sec, ft.Params)
			sec = appendValTypes(sec, ft.Results)
		}
		out = appendSection(out, sectionType, sec)
	}

	if len(m.imports) > 0 {
		sec := appendU32(nil, uint32(len(m.imports)))
		for _, imp := range m.imports {
			sec = appendName(sec, imp.module)
			sec = appendName(sec, imp.name)
			sec = append(sec, kindFunc)
			sec = appendU32(sec, imp.typeIdx)
		}
		out = appendSection(out, sectionImport, sec)
	}

	if len(m.funcs) > 0 {
		sec := appendU32(nil, uint32(len(m.funcs)))
		for _, fn := range m.funcs {
			sec = appendU32(sec, fn.typeIdx)
		}
		out = appendSection(out, sectionFunction, sec)
	}

	if m.hasMemory {
		sec := appendU32(nil, 1)
		sec = append(sec, 0x00)
		sec = appendU32(sec, m.memoryMin)
		out = appendSection(out, sectionMemory, sec)
	}

	if len(m.globals) > 0 {
		sec := appendU32(nil, uint32(len(m.globals)))
		for _, g := range m.globals {
			sec = append(sec, byte(g.typ))
			if g.mutable {
				sec = append(sec, 0x01)
			} else {
				sec = append(sec, 0x00)
			}
			sec = append(sec, opI32Const)
			sec = appendS32(sec, g.init)
			sec = append(sec, opEnd)
		}
		out = appendSection(out, sectionGlobal, sec)
	}

	if len(m.exports) > 0 {
		sec := appendU32(nil, uint32(len(m.exports)))
		for _, exp := range m.exports {
			sec = appendName(sec, exp.name)
			sec = append(sec, exp.kind)
			sec = appendU32(sec, exp.index)
		}
		out = appendSection(out, sectionExport, sec)
	}

	if len(m.funcs) > 0 {
		sec := appendU32(nil, uint32(len(m.funcs)))
		for _, fn := range m.funcs {
			body := appendU32(nil, uint32(len(fn.locals)))
			for _, l := range fn.locals {
				body = appendU32(body, 1)
				body = append(body, byte(l))
			}
			body = append(body, fn.body...)
			sec = appendU32(sec, uint32(len(body)))
			sec = append(sec, body...)
		}
		out = appendSection(out, sectionCode, sec)
	}

	return out
}

func appendSection(out []byte, id byte, contents []byte) []byte {
	out = append(out, id)
	out = appendU32(out, uint32(len(contents)))
	return append(out, contents...)
}

func appendValTypes(out []byte, types []ValType) []byte {
	out = appendU32(out, uint32(len(types)))
	for _, t := range types {
		out = append(out, byte(t))
	}
	return out
}

func appendName(out []byte, name string) []byte {
	out = appendU32(out, uint32(len(name)))
	return append(out, name...)
}

// appendU32 appends v as unsigned LEB128.
func appendU32(out []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		out = append(out, c)
		if v == 0 {
			return out
		}
	}
}

// appendS32 appends v as signed LEB128.
func appendS32(out []byte, v int32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0)
		if !done {
			c |= 0x80
		}
		out = append(out, c)
		if done {
			return out
		}
	}
}
