package host

import (
	"context"
	"fmt"

	"github.com/ast-ral/divine/domain/errors"
	"github.com/ast-ral/divine/internal/abi"
)

// preallocLimit caps the fragment slice capacity taken from an untrusted
// length field.
const preallocLimit = 1024

// decodeFragments reads the RawBox<RawVec<RawBox<RawVec<u16>>>> at boxPtr.
// Each entry's code units are released as soon as they are read, then the
// outer vector, then the box; the guest allocator may reuse a freed slot on
// its next allocation.
func decodeFragments(ctx context.Context, g *guest, boxPtr uint32, inv *invocation) ([]string, error) {
	view := g.Memory()

	outer, err := view.ReadRecord(boxPtr)
	if err != nil {
		return nil, &errors.DecodeError{Err: err, Phase: inv.phase, Record: "RawBox", Offset: boxPtr}
	}

	fragments := make([]string, 0, min(outer.Len, preallocLimit))
	for i := uint32(0); i < outer.Len; i++ {
		at, err := abi.ElementOffset(outer.Ptr, i, abi.RecordElem)
		if err != nil {
			return nil, &errors.DecodeError{Err: err, Phase: inv.phase, Record: "RawVec", Offset: outer.Ptr}
		}
		entry, err := view.ReadRecord(at)
		if err != nil {
			return nil, &errors.DecodeError{Err: err, Phase: inv.phase, Record: fmt.Sprintf("entry %d", i), Offset: at}
		}
		text, err := view.ReadString(entry)
		if err != nil {
			return nil, &errors.DecodeError{Err: err, Phase: inv.phase, Record: "RawVec<u16>", Offset: entry.Ptr}
		}
		if err := g.DeallocVec(ctx, entry, abi.CodeUnitElem); err != nil {
			return nil, inv.trap(ctx, exportDeallocVec, err)
		}
		fragments = append(fragments, text)
	}
	inv.advance(ctx, errors.PhaseDecoded)

	if err := g.DeallocVec(ctx, outer, abi.RecordElem); err != nil {
		return nil, inv.trap(ctx, exportDeallocVec, err)
	}
	if err := g.DeallocBox(ctx, boxPtr, abi.RecordElem); err != nil {
		return nil, inv.trap(ctx, exportDeallocBox, err)
	}
	inv.advance(ctx, errors.PhaseDeallocated)
	return fragments, nil
}
