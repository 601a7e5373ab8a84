package hostfuncs

import (
	"context"
	stdErrors "errors"
	"fmt"
	"math"
	"sync"

	"github.com/ast-ral/divine/domain/entities"
	"github.com/ast-ral/divine/domain/errors"
	"github.com/ast-ral/divine/internal/abi"
)

// ErrUnbound is returned when the guest calls back before the binding has
// been attached to the instance's exports.
var ErrUnbound = stdErrors.New("callback invoked before guest exports were bound")

// ErrNoTarget is the cause recorded when a guest calls back during an
// invocation that has no target generator.
var ErrNoTarget = stdErrors.New("no target generator")

// ErrReentrant is the cause recorded when the guest calls back while a
// previous callback is still running, e.g. from inside its allocator.
var ErrReentrant = stdErrors.New("callback re-entered from guest allocator")

// Guest is the allocator and memory surface of one instantiated guest.
// Allocations go through the guest's own exports so that returned pointers
// are valid in guest address space.
type Guest interface {
	AllocBox(ctx context.Context, elem abi.Elem) (uint32, error)
	AllocVec(ctx context.Context, length uint32, elem abi.Elem) (uint32, error)
	Memory() abi.View
}

// BindingOption configures a Binding.
type BindingOption func(*Binding)

// WithRandom overrides the randomness source for this invocation only.
func WithRandom(src RandomSource) BindingOption {
	return func(b *Binding) {
		b.random = src
	}
}

// WithMiddleware wraps the target generator.
func WithMiddleware(mws ...Middleware) BindingOption {
	return func(b *Binding) {
		b.middleware = append(b.middleware, mws...)
	}
}

// Binding connects one invocation's target generator to the callback import.
//
// Imports must exist before a guest is instantiated but the allocator exports
// they need only exist afterwards, so a Binding is created first, handed to
// the runtime through the context, and bound to the instance with Bind once
// instantiation completes.
type Binding struct {
	target     entities.TargetFunc
	random     RandomSource
	guest      Guest
	err        error
	middleware []Middleware
	calls      int
	active     bool
	mu         sync.Mutex
}

// NewBinding creates an unbound Binding for target. A nil target is allowed;
// any callback then fails.
func NewBinding(target entities.TargetFunc, opts ...BindingOption) *Binding {
	b := &Binding{}
	for _, opt := range opts {
		opt(b)
	}
	if target != nil {
		b.target = Chain(target, b.middleware...)
	}
	return b
}

// Bind attaches the instance's exports. It must be called after
// instantiation and before the guest's entry point runs.
func (b *Binding) Bind(g Guest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.guest = g
}

// Random returns the per-invocation randomness source, or nil.
func (b *Binding) Random() RandomSource {
	return b.random
}

// Calls returns how many times the guest has called back.
func (b *Binding) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// Err returns the first callback failure, if any. Once set, the invocation
// must be treated as failed regardless of what the guest returns.
func (b *Binding) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// TargetCallback runs the target generator and hands its text to the guest
// as a RawBox<RawVec<u16>> allocated through the guest's exports. The box
// pointer is returned; ownership passes to the guest.
//
// The target and the guest allocator run without b.mu held. A callback made
// while another is still in progress fails with ErrReentrant.
//
// Any failure is also recorded for Err.
func (b *Binding) TargetCallback(ctx context.Context) (uint32, error) {
	guest, err := b.enter()
	if err != nil {
		return 0, err
	}
	defer b.leave()

	if b.target == nil {
		return 0, b.fail(ErrNoTarget)
	}
	text, err := b.target(ctx)
	if err != nil {
		return 0, b.fail(err)
	}

	units := abi.CodeUnits(text)
	if uint64(len(units)) > math.MaxUint32 {
		return 0, b.fail(fmt.Errorf("target text of %d code units does not fit a RawVec", len(units)))
	}
	n := uint32(len(units))

	box, err := guest.AllocBox(ctx, abi.RecordElem)
	if err != nil {
		return 0, b.fail(fmt.Errorf("alloc_raw_box: %w", err))
	}
	vec, err := guest.AllocVec(ctx, n, abi.CodeUnitElem)
	if err != nil {
		return 0, b.fail(fmt.Errorf("alloc_raw_vec: %w", err))
	}

	view := guest.Memory()
	if err := view.WriteU16s(vec, units); err != nil {
		return 0, b.fail(fmt.Errorf("write code units: %w", err))
	}
	if err := view.WriteRecord(box, abi.RawVec{Ptr: vec, Len: n, Cap: n}); err != nil {
		return 0, b.fail(fmt.Errorf("write record: %w", err))
	}
	// A nested callback from the allocator may have failed the binding.
	if err := b.Err(); err != nil {
		return 0, err
	}
	return box, nil
}

// enter checks the binding state, counts the call and marks it in progress.
func (b *Binding) enter() (Guest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return nil, b.err
	}
	if b.guest == nil {
		return nil, b.failLocked(ErrUnbound)
	}
	b.calls++
	if b.active {
		return nil, b.failLocked(ErrReentrant)
	}
	b.active = true
	return b.guest, nil
}

func (b *Binding) leave() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = false
}

// fail records err as a CallbackError. The first recorded failure wins.
func (b *Binding) fail(err error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failLocked(err)
}

func (b *Binding) failLocked(err error) error {
	if b.err == nil {
		b.err = &errors.CallbackError{Err: err, Calls: b.calls}
	}
	return b.err
}
