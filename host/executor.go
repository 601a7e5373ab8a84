package host

import (
	"context"
	"encoding/binary"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ast-ral/divine/artifact"
	"github.com/ast-ral/divine/domain/entities"
	"github.com/ast-ral/divine/domain/errors"
	"github.com/ast-ral/divine/hostfuncs"
	wazeroadapter "github.com/ast-ral/divine/infrastructure/wazero"
	"github.com/ast-ral/divine/internal/abi"
	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
)

// ErrClosed is returned when running on a closed Executor.
var ErrClosed = stdErrors.New("executor closed")

// Executor manages the wazero runtime and compiled module caching.
// It is safe for concurrent use; every Run gets its own guest instance.
type Executor struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled map[artifact.Digest]wazero.CompiledModule
	imports  wazeroadapter.Imports
	order    binary.ByteOrder
	config   executorConfig
	mu       sync.RWMutex
	closed   bool
}

// NewExecutor creates an Executor. Unless WithByteOrder is given, the host
// byte order is probed first and an unknown order fails with an
// EndiannessError.
func NewExecutor(ctx context.Context, opts ...ExecutorOption) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	order := cfg.order
	if order == nil {
		probed, err := abi.ProbeByteOrder()
		if err != nil {
			return nil, err
		}
		order = probed
	}

	var cache wazero.CompilationCache
	if cfg.diskCache {
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(cfg.cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)

	adapterOpts := []wazeroadapter.AdapterOption{
		wazeroadapter.WithRandomSource(cfg.random),
		wazeroadapter.WithLogger(cfg.logger),
	}
	for _, h := range cfg.handlers {
		adapterOpts = append(adapterOpts, wazeroadapter.WithCustomHandler(h))
	}
	imports, err := wazeroadapter.RegisterWithRuntime(ctx, rt, adapterOpts...)
	if err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("register host functions: %w", err)
	}

	return &Executor{
		runtime:  rt,
		cache:    cache,
		compiled: make(map[artifact.Digest]wazero.CompiledModule),
		imports:  imports,
		order:    order,
		config:   cfg,
	}, nil
}

// ByteOrder returns the byte order used to read guest memory.
func (e *Executor) ByteOrder() binary.ByteOrder {
	return e.order
}

// Close releases the runtime and every cached module.
func (e *Executor) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.compiled = nil

	err := e.runtime.Close(ctx)
	if e.cache != nil {
		if cerr := e.cache.Close(ctx); err == nil {
			err = cerr
		}
	}
	return err
}

// Compile compiles and link-checks an artifact without running it, leaving
// it in the compiled cache when caching is enabled.
func (e *Executor) Compile(ctx context.Context, wasm []byte) (artifact.Digest, error) {
	digest := artifact.Sum(wasm)

	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return digest, ErrClosed
	}

	_, release, err := e.getCompiled(ctx, digest, wasm)
	if err != nil {
		return digest, err
	}
	release()
	return digest, nil
}

// Run executes one invocation of the artifact. target supplies the text for
// each guest callback.
//
// The returned Invocation holds the fragments in the order the guest listed
// them. On any error no fragments are returned.
func (e *Executor) Run(ctx context.Context, wasm []byte, target entities.TargetFunc, opts ...Option) (*entities.Invocation, error) {
	start := time.Now()

	cfg := runConfig{timeout: e.config.timeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	inv := &invocation{
		id:     uuid.NewString(),
		digest: artifact.Sum(wasm),
		phase:  errors.PhaseUninitialized,
	}
	inv.logger = e.config.logger.With("invocation", inv.id, "digest", inv.digest.Short())

	fragments, err := e.run(ctx, inv, wasm, target, cfg)
	elapsed := time.Since(start)
	if err != nil {
		inv.logger.WarnContext(ctx, "invocation failed", "phase", string(inv.phase), "error", err, "elapsed", elapsed)
		inv.phase = errors.PhaseFailed
		return nil, err
	}

	inv.advance(ctx, errors.PhaseDone)
	inv.logger.InfoContext(ctx, "invocation complete", "fragments", len(fragments), "elapsed", elapsed)
	return &entities.Invocation{
		ID:        inv.id,
		Digest:    inv.digest.String(),
		Fragments: fragments,
		Elapsed:   elapsed,
	}, nil
}

func (e *Executor) run(ctx context.Context, inv *invocation, wasm []byte, target entities.TargetFunc, cfg runConfig) ([]string, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	compiled, release, err := e.getCompiled(ctx, inv.digest, wasm)
	if err != nil {
		return nil, err
	}
	defer release()
	inv.advance(ctx, errors.PhaseCompiled)

	bindingOpts := []hostfuncs.BindingOption{hostfuncs.WithMiddleware(e.config.middleware...)}
	if cfg.random != nil {
		bindingOpts = append(bindingOpts, hostfuncs.WithRandom(cfg.random))
	}
	binding := hostfuncs.NewBinding(target, bindingOpts...)
	ctx = hostfuncs.WithBinding(ctx, binding)

	// An empty name keeps concurrent instances of one artifact from colliding.
	mod, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		if cbErr := binding.Err(); cbErr != nil {
			return nil, cbErr
		}
		if ctx.Err() != nil {
			return nil, inv.trap(ctx, "start", err)
		}
		return nil, &errors.LinkError{Err: err}
	}
	defer mod.Close(context.WithoutCancel(ctx))

	g, err := bindGuest(mod, e.order)
	if err != nil {
		return nil, err
	}
	binding.Bind(g)
	inv.advance(ctx, errors.PhaseInstantiated)

	boxPtr, err := g.Main(ctx)
	if cbErr := binding.Err(); cbErr != nil {
		return nil, cbErr
	}
	if err != nil {
		return nil, inv.trap(ctx, exportMain, err)
	}
	inv.advance(ctx, errors.PhaseEntryInvoked)

	return decodeFragments(ctx, g, boxPtr, inv)
}

// getCompiled returns a link-checked compiled module and a function that
// releases it. Cached modules are released on Close instead.
func (e *Executor) getCompiled(ctx context.Context, digest artifact.Digest, wasm []byte) (wazero.CompiledModule, func(), error) {
	noop := func() {}

	if !e.config.cacheCompiled {
		compiled, err := e.compile(ctx, digest, wasm)
		if err != nil {
			return nil, nil, err
		}
		return compiled, func() { compiled.Close(context.Background()) }, nil
	}

	e.mu.RLock()
	if compiled, ok := e.compiled[digest]; ok {
		e.mu.RUnlock()
		return compiled, noop, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, nil, ErrClosed
	}
	if compiled, ok := e.compiled[digest]; ok {
		return compiled, noop, nil
	}

	compiled, err := e.compile(ctx, digest, wasm)
	if err != nil {
		return nil, nil, err
	}
	e.compiled[digest] = compiled
	return compiled, noop, nil
}

func (e *Executor) compile(ctx context.Context, digest artifact.Digest, wasm []byte) (wazero.CompiledModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, &errors.CompileError{Err: err, Digest: digest.Short()}
	}
	if err := checkLink(compiled, e.imports); err != nil {
		compiled.Close(ctx)
		return nil, err
	}
	return compiled, nil
}

// invocation tracks one Run through the lifecycle phases.
type invocation struct {
	logger *slog.Logger
	id     string
	phase  errors.Phase
	digest artifact.Digest
}

func (inv *invocation) advance(ctx context.Context, phase errors.Phase) {
	inv.phase = phase
	inv.logger.DebugContext(ctx, "phase", "phase", string(phase))
}

// trap wraps a failed guest call. An expired context is reported as the
// cause so that callers can match context.DeadlineExceeded.
func (inv *invocation) trap(ctx context.Context, export string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w: %v", ctxErr, err)
	}
	return &errors.TrapError{Err: err, Export: export, Phase: inv.phase}
}
