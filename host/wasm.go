package host

import (
	"context"
	"encoding/binary"
	stdErrors "errors"
	"fmt"

	"github.com/ast-ral/divine/domain/errors"
	wazeroadapter "github.com/ast-ral/divine/infrastructure/wazero"
	"github.com/ast-ral/divine/internal/abi"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Guest export names.
const (
	exportMemory     = "memory"
	exportAllocBox   = "alloc_raw_box"
	exportDeallocBox = "dealloc_raw_box"
	exportAllocVec   = "alloc_raw_vec"
	exportDeallocVec = "dealloc_raw_vec"
	exportMain       = "main"
)

// Link failures.
var (
	ErrMissingExport     = stdErrors.New("missing export")
	ErrUnknownImport     = stdErrors.New("unknown import")
	ErrSignatureMismatch = stdErrors.New("signature mismatch")
	ErrImportedMemory    = stdErrors.New("guest must export its memory, not import it")
)

func i32s(n int) []api.ValueType {
	out := make([]api.ValueType, n)
	for i := range out {
		out[i] = api.ValueTypeI32
	}
	return out
}

// abiExports lists the required function exports. The first signature is
// canonical; later ones are also accepted.
var abiExports = []struct {
	name string
	sigs []wazeroadapter.Signature
}{
	{exportAllocBox, []wazeroadapter.Signature{{Params: i32s(2), Results: i32s(1)}}},
	{exportDeallocBox, []wazeroadapter.Signature{{Params: i32s(3)}}},
	{exportAllocVec, []wazeroadapter.Signature{{Params: i32s(3), Results: i32s(1)}}},
	// Older guests omit the length: dealloc_raw_vec(ptr, cap, elem_size, elem_align).
	{exportDeallocVec, []wazeroadapter.Signature{{Params: i32s(5)}, {Params: i32s(4)}}},
	{exportMain, []wazeroadapter.Signature{{Results: i32s(1)}}},
}

// checkLink verifies a compiled guest against the allocator ABI and the
// host functions registered with the runtime.
func checkLink(compiled wazero.CompiledModule, imports wazeroadapter.Imports) error {
	if _, ok := compiled.ExportedMemories()[exportMemory]; !ok {
		return &errors.LinkError{Err: ErrMissingExport, Name: exportMemory}
	}
	if len(compiled.ImportedMemories()) > 0 {
		return &errors.LinkError{Err: ErrImportedMemory}
	}

	exports := compiled.ExportedFunctions()
	for _, req := range abiExports {
		def, ok := exports[req.name]
		if !ok {
			return &errors.LinkError{Err: ErrMissingExport, Name: req.name}
		}
		got := wazeroadapter.SignatureOf(def)
		if !acceptsAny(req.sigs, got) {
			return &errors.LinkError{
				Err:  fmt.Errorf("%w: got %s, want %s", ErrSignatureMismatch, got, req.sigs[0]),
				Name: req.name,
			}
		}
	}

	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		want, ok := imports.Lookup(module, name)
		if !ok {
			return &errors.LinkError{Err: ErrUnknownImport, Module: module, Name: name}
		}
		if got := wazeroadapter.SignatureOf(def); !want.Equal(got) {
			return &errors.LinkError{
				Err:    fmt.Errorf("%w: got %s, want %s", ErrSignatureMismatch, got, want),
				Module: module,
				Name:   name,
			}
		}
	}
	return nil
}

func acceptsAny(sigs []wazeroadapter.Signature, got wazeroadapter.Signature) bool {
	for _, s := range sigs {
		if s.Equal(got) {
			return true
		}
	}
	return false
}

// guest is one instantiated guest's allocator exports and memory.
// It implements hostfuncs.Guest.
type guest struct {
	view          abi.View
	allocBox      api.Function
	deallocBox    api.Function
	allocVec      api.Function
	deallocVec    api.Function
	main          api.Function
	legacyDealloc bool
}

func bindGuest(mod api.Module, order binary.ByteOrder) (*guest, error) {
	g := &guest{
		view:       abi.ModuleView(mod, order),
		allocBox:   mod.ExportedFunction(exportAllocBox),
		deallocBox: mod.ExportedFunction(exportDeallocBox),
		allocVec:   mod.ExportedFunction(exportAllocVec),
		deallocVec: mod.ExportedFunction(exportDeallocVec),
		main:       mod.ExportedFunction(exportMain),
	}
	for name, fn := range map[string]api.Function{
		exportAllocBox:   g.allocBox,
		exportDeallocBox: g.deallocBox,
		exportAllocVec:   g.allocVec,
		exportDeallocVec: g.deallocVec,
		exportMain:       g.main,
	} {
		if fn == nil {
			return nil, &errors.LinkError{Err: ErrMissingExport, Name: name}
		}
	}
	if mod.Memory() == nil {
		return nil, &errors.LinkError{Err: ErrMissingExport, Name: exportMemory}
	}
	g.legacyDealloc = len(g.deallocVec.Definition().ParamTypes()) == 4
	return g, nil
}

func (g *guest) Memory() abi.View {
	return g.view
}

func (g *guest) AllocBox(ctx context.Context, elem abi.Elem) (uint32, error) {
	results, err := g.allocBox.Call(ctx, api.EncodeU32(elem.Size), api.EncodeU32(elem.Align))
	if err != nil {
		return 0, err
	}
	return api.DecodeU32(results[0]), nil
}

func (g *guest) AllocVec(ctx context.Context, length uint32, elem abi.Elem) (uint32, error) {
	results, err := g.allocVec.Call(ctx, api.EncodeU32(length), api.EncodeU32(elem.Size), api.EncodeU32(elem.Align))
	if err != nil {
		return 0, err
	}
	return api.DecodeU32(results[0]), nil
}

func (g *guest) DeallocBox(ctx context.Context, ptr uint32, elem abi.Elem) error {
	_, err := g.deallocBox.Call(ctx, api.EncodeU32(ptr), api.EncodeU32(elem.Size), api.EncodeU32(elem.Align))
	return err
}

func (g *guest) DeallocVec(ctx context.Context, rec abi.RawVec, elem abi.Elem) error {
	if g.legacyDealloc {
		_, err := g.deallocVec.Call(ctx, api.EncodeU32(rec.Ptr), api.EncodeU32(rec.Cap),
			api.EncodeU32(elem.Size), api.EncodeU32(elem.Align))
		return err
	}
	_, err := g.deallocVec.Call(ctx, api.EncodeU32(rec.Ptr), api.EncodeU32(rec.Len), api.EncodeU32(rec.Cap),
		api.EncodeU32(elem.Size), api.EncodeU32(elem.Align))
	return err
}

func (g *guest) Main(ctx context.Context) (uint32, error) {
	results, err := g.main.Call(ctx)
	if err != nil {
		return 0, err
	}
	return api.DecodeU32(results[0]), nil
}
