package hostfuncs

import (
	"bytes"
	"context"
	"encoding/binary"
	stdErrors "errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ast-ral/divine/domain/entities"
	"github.com/ast-ral/divine/domain/errors"
	"github.com/ast-ral/divine/internal/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// arena is a growable stand-in for guest linear memory.
type arena struct {
	buf []byte
}

func (a *arena) Read(offset, byteCount uint32) ([]byte, bool) {
	end := uint64(offset) + uint64(byteCount)
	if end > uint64(len(a.buf)) {
		return nil, false
	}
	return a.buf[offset:end], true
}

func (a *arena) Write(offset uint32, v []byte) bool {
	end := uint64(offset) + uint64(len(v))
	if end > uint64(len(a.buf)) {
		return false
	}
	copy(a.buf[offset:], v)
	return true
}

// fakeGuest bump-allocates from an arena that doubles when full.
type fakeGuest struct {
	mem      *arena
	allocErr error
	onAlloc  func()
	next     uint32
	boxes    []uint32
	vecs     []uint32
}

func newFakeGuest(size int) *fakeGuest {
	return &fakeGuest{mem: &arena{buf: make([]byte, size)}, next: 16}
}

func (g *fakeGuest) alloc(size, align uint32) uint32 {
	ptr := (g.next + align - 1) &^ (align - 1)
	g.next = ptr + size
	for int(g.next) > len(g.mem.buf) {
		grown := make([]byte, 2*len(g.mem.buf))
		copy(grown, g.mem.buf)
		g.mem.buf = grown
	}
	return ptr
}

func (g *fakeGuest) AllocBox(_ context.Context, elem abi.Elem) (uint32, error) {
	if g.allocErr != nil {
		return 0, g.allocErr
	}
	if g.onAlloc != nil {
		g.onAlloc()
	}
	ptr := g.alloc(elem.Size, elem.Align)
	g.boxes = append(g.boxes, ptr)
	return ptr, nil
}

func (g *fakeGuest) AllocVec(_ context.Context, length uint32, elem abi.Elem) (uint32, error) {
	ptr := g.alloc(length*elem.Size, elem.Align)
	g.vecs = append(g.vecs, ptr)
	return ptr, nil
}

func (g *fakeGuest) Memory() abi.View {
	return abi.NewView(func() abi.Memory { return g.mem }, binary.LittleEndian)
}

func constant(text string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return text, nil }
}

func TestTargetCallback(t *testing.T) {
	ctx := context.Background()
	guest := newFakeGuest(64)
	b := NewBinding(constant("abc"))
	b.Bind(guest)

	box, err := b.TargetCallback(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Calls())
	require.Len(t, guest.boxes, 1)
	assert.Equal(t, guest.boxes[0], box)

	view := guest.Memory()
	rec, err := view.ReadRecord(box)
	require.NoError(t, err)
	assert.Equal(t, abi.RawVec{Ptr: guest.vecs[0], Len: 3, Cap: 3}, rec)

	units, err := view.ReadU16s(rec.Ptr, rec.Len)
	require.NoError(t, err)
	assert.Equal(t, []uint16{97, 98, 99}, units)
	assert.NoError(t, b.Err())
}

func TestTargetCallback_EmptyText(t *testing.T) {
	guest := newFakeGuest(64)
	b := NewBinding(constant(""))
	b.Bind(guest)

	box, err := b.TargetCallback(context.Background())
	require.NoError(t, err)

	rec, err := guest.Memory().ReadRecord(box)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), rec.Len)
	assert.Equal(t, uint32(0), rec.Cap)
}

func TestTargetCallback_GrowsMemory(t *testing.T) {
	guest := newFakeGuest(32)
	text := string(bytes.Repeat([]byte("x"), 500))
	b := NewBinding(constant(text))
	b.Bind(guest)

	box, err := b.TargetCallback(context.Background())
	require.NoError(t, err)
	assert.Greater(t, len(guest.mem.buf), 1000)

	rec, err := guest.Memory().ReadRecord(box)
	require.NoError(t, err)
	s, err := guest.Memory().ReadString(rec)
	require.NoError(t, err)
	assert.Equal(t, text, s)
}

func TestTargetCallback_SurrogatePair(t *testing.T) {
	guest := newFakeGuest(64)
	b := NewBinding(constant("😀"))
	b.Bind(guest)

	box, err := b.TargetCallback(context.Background())
	require.NoError(t, err)

	rec, err := guest.Memory().ReadRecord(box)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), rec.Len)
}

func TestTargetCallback_Failures(t *testing.T) {
	ctx := context.Background()
	targetErr := stdErrors.New("no fragments today")

	t.Run("unbound", func(t *testing.T) {
		b := NewBinding(constant("x"))
		_, err := b.TargetCallback(ctx)
		assert.ErrorIs(t, err, ErrUnbound)
		assert.ErrorIs(t, b.Err(), ErrUnbound)
	})

	t.Run("no target", func(t *testing.T) {
		b := NewBinding(nil)
		b.Bind(newFakeGuest(64))
		_, err := b.TargetCallback(ctx)
		assert.ErrorIs(t, err, ErrNoTarget)
	})

	t.Run("target error", func(t *testing.T) {
		guest := newFakeGuest(64)
		calls := 0
		b := NewBinding(func(context.Context) (string, error) {
			calls++
			if calls == 2 {
				return "", targetErr
			}
			return "ok", nil
		})
		b.Bind(guest)

		_, err := b.TargetCallback(ctx)
		require.NoError(t, err)

		_, err = b.TargetCallback(ctx)
		var cbErr *errors.CallbackError
		require.ErrorAs(t, err, &cbErr)
		assert.Equal(t, 2, cbErr.Calls)
		assert.ErrorIs(t, err, targetErr)

		// The binding stays failed; the target is not called again.
		_, err = b.TargetCallback(ctx)
		assert.ErrorIs(t, err, targetErr)
		assert.Equal(t, 2, calls)
		assert.Len(t, guest.boxes, 1)
	})

	t.Run("allocation error", func(t *testing.T) {
		guest := newFakeGuest(64)
		guest.allocErr = stdErrors.New("trap")
		b := NewBinding(constant("x"))
		b.Bind(guest)

		_, err := b.TargetCallback(ctx)
		assert.ErrorContains(t, err, "alloc_raw_box: trap")
		var cbErr *errors.CallbackError
		assert.ErrorAs(t, b.Err(), &cbErr)
	})
}

func TestTargetCallback_Reentrant(t *testing.T) {
	ctx := context.Background()
	guest := newFakeGuest(64)
	b := NewBinding(constant("x"))
	b.Bind(guest)

	var innerErr error
	guest.onAlloc = func() {
		guest.onAlloc = nil
		_, innerErr = b.TargetCallback(ctx)
	}

	done := make(chan error, 1)
	go func() {
		_, err := b.TargetCallback(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, innerErr, ErrReentrant)
		assert.ErrorIs(t, err, ErrReentrant)
		assert.ErrorIs(t, b.Err(), ErrReentrant)
		assert.Equal(t, 2, b.Calls())
	case <-time.After(5 * time.Second):
		t.Fatal("re-entrant callback deadlocked")
	}
}

func TestMiddleware_FIFO(t *testing.T) {
	var order []string
	trace := func(name string) Middleware {
		return func(next entities.TargetFunc) entities.TargetFunc {
			return func(ctx context.Context) (string, error) {
				order = append(order, name+"-before")
				text, err := next(ctx)
				order = append(order, name+"-after")
				return text, err
			}
		}
	}

	target := Chain(func(context.Context) (string, error) {
		order = append(order, "target")
		return "t", nil
	}, trace("mw1"), trace("mw2"))

	text, err := target(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t", text)
	assert.Equal(t, []string{"mw1-before", "mw2-before", "target", "mw2-after", "mw1-after"}, order)
}

func TestPanicRecoveryMiddleware(t *testing.T) {
	guest := newFakeGuest(64)
	b := NewBinding(func(context.Context) (string, error) {
		panic("target exploded")
	}, WithMiddleware(PanicRecoveryMiddleware()))
	b.Bind(guest)

	_, err := b.TargetCallback(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: target exploded")

	sentinel := stdErrors.New("boom")
	wrapped := PanicRecoveryMiddleware()(func(context.Context) (string, error) { panic(sentinel) })
	_, err = wrapped(context.Background())
	assert.ErrorIs(t, err, sentinel)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ok := LoggingMiddleware(logger)(constant("hello"))
	_, err := ok(context.Background())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "target returned")
	assert.Contains(t, buf.String(), "length=5")

	failing := LoggingMiddleware(logger)(func(context.Context) (string, error) {
		return "", stdErrors.New("nope")
	})
	_, err = failing(context.Background())
	require.Error(t, err)
	assert.Contains(t, buf.String(), "target failed")
}

func TestBindingContext(t *testing.T) {
	ctx := context.Background()
	_, ok := BindingFromContext(ctx)
	assert.False(t, ok)

	b := NewBinding(nil, WithRandom(RandomFunc(func() float64 { return 0.25 })))
	got, ok := BindingFromContext(WithBinding(ctx, b))
	require.True(t, ok)
	assert.Same(t, b, got)
	assert.Equal(t, 0.25, got.Random().Float64())

	_, ok = BindingFromContext(WithBinding(ctx, nil))
	assert.False(t, ok)
}

func TestDefaultRandom(t *testing.T) {
	for i := 0; i < 100; i++ {
		v := DefaultRandom.Float64()
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}
