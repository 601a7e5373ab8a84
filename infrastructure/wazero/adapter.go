package wazero

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/ast-ral/divine/hostfuncs"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// ErrNoBinding is raised inside the guest when target_callback runs without
// a hostfuncs.Binding in the call context.
var ErrNoBinding = errors.New("target_callback called without a binding")

// Import identifies a host function by module and name.
type Import struct {
	Module string
	Name   string
}

func (i Import) String() string {
	return i.Module + "." + i.Name
}

// Host functions every guest may import.
var (
	RandomImport = Import{Module: "js", Name: "random"}
	TargetImport = Import{Module: "target", Name: "target_callback"}
)

// Signature is a function's parameter and result types.
type Signature struct {
	Params  []api.ValueType
	Results []api.ValueType
}

// SignatureOf returns the signature of a function definition.
func SignatureOf(def api.FunctionDefinition) Signature {
	return Signature{Params: def.ParamTypes(), Results: def.ResultTypes()}
}

// Equal reports whether two signatures have identical types.
func (s Signature) Equal(o Signature) bool {
	return slices.Equal(s.Params, o.Params) && slices.Equal(s.Results, o.Results)
}

func (s Signature) String() string {
	return fmt.Sprintf("(%s) -> (%s)", valueTypeNames(s.Params), valueTypeNames(s.Results))
}

func valueTypeNames(types []api.ValueType) string {
	out := ""
	for i, t := range types {
		if i > 0 {
			out += ", "
		}
		out += api.ValueTypeName(t)
	}
	return out
}

// Imports is the set of host functions registered with a runtime.
type Imports map[Import]Signature

// Lookup returns the signature registered for module.name.
func (im Imports) Lookup(module, name string) (Signature, bool) {
	sig, ok := im[Import{Module: module, Name: name}]
	return sig, ok
}

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// Random backs js.random unless the invocation's Binding overrides it.
	Random hostfuncs.RandomSource

	// Logger receives callback failures.
	Logger *slog.Logger

	// CustomHandlers adds host functions in further import modules, such as
	// tracing hooks for diagnostic guests.
	CustomHandlers []CustomHandler
}

// CustomHandler represents an extra host function.
type CustomHandler struct {
	// Module is the import module name.
	Module string

	// Name is the exported function name.
	Name string

	// Handler is the wazero GoModuleFunc implementation.
	Handler api.GoModuleFunc

	// ParamTypes are the WASM parameter types.
	ParamTypes []api.ValueType

	// ResultTypes are the WASM result types.
	ResultTypes []api.ValueType
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithRandomSource sets the default source behind js.random.
func WithRandomSource(src hostfuncs.RandomSource) AdapterOption {
	return func(c *AdapterConfig) {
		c.Random = src
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) AdapterOption {
	return func(c *AdapterConfig) {
		c.Logger = l
	}
}

// WithCustomHandler adds a custom host function.
func WithCustomHandler(h CustomHandler) AdapterOption {
	return func(c *AdapterConfig) {
		c.CustomHandlers = append(c.CustomHandlers, h)
	}
}

// defaultAdapterConfig returns the default adapter configuration.
func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		Random: hostfuncs.DefaultRandom,
		Logger: slog.Default(),
	}
}

// RegisterWithRuntime instantiates the host modules in runtime and returns
// the set of functions they export. It must be called once per runtime,
// before any guest is instantiated.
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, opts ...AdapterOption) (Imports, error) {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	handlers := []CustomHandler{
		{
			Module:      RandomImport.Module,
			Name:        RandomImport.Name,
			Handler:     randomHandler(cfg.Random),
			ResultTypes: []api.ValueType{api.ValueTypeF64},
		},
		{
			Module:      TargetImport.Module,
			Name:        TargetImport.Name,
			Handler:     targetHandler(cfg.Logger),
			ResultTypes: []api.ValueType{api.ValueTypeI32},
		},
	}
	handlers = append(handlers, cfg.CustomHandlers...)

	imports := make(Imports, len(handlers))
	byModule := make(map[string][]CustomHandler)
	for _, h := range handlers {
		key := Import{Module: h.Module, Name: h.Name}
		if h.Module == "" || h.Name == "" || h.Handler == nil {
			return nil, fmt.Errorf("invalid host function %q", key)
		}
		if _, dup := imports[key]; dup {
			return nil, fmt.Errorf("host function %s registered twice", key)
		}
		imports[key] = Signature{Params: h.ParamTypes, Results: h.ResultTypes}
		byModule[h.Module] = append(byModule[h.Module], h)
	}

	modules := make([]string, 0, len(byModule))
	for name := range byModule {
		modules = append(modules, name)
	}
	sort.Strings(modules)

	for _, name := range modules {
		builder := runtime.NewHostModuleBuilder(name)
		for _, h := range byModule[name] {
			builder.NewFunctionBuilder().
				WithGoModuleFunction(h.Handler, h.ParamTypes, h.ResultTypes).
				Export(h.Name)
		}
		if _, err := builder.Instantiate(ctx); err != nil {
			return nil, fmt.Errorf("instantiate host module %q: %w", name, err)
		}
	}

	return imports, nil
}

func randomHandler(def hostfuncs.RandomSource) api.GoModuleFunc {
	return func(ctx context.Context, _ api.Module, stack []uint64) {
		src := def
		if b, ok := hostfuncs.BindingFromContext(ctx); ok && b.Random() != nil {
			src = b.Random()
		}
		stack[0] = api.EncodeF64(src.Float64())
	}
}

// targetHandler forwards to the invocation's Binding. A failed callback
// panics, which wazero turns into an error returned from the guest's entry
// point; the Binding keeps the typed cause.
func targetHandler(logger *slog.Logger) api.GoModuleFunc {
	return func(ctx context.Context, _ api.Module, stack []uint64) {
		b, ok := hostfuncs.BindingFromContext(ctx)
		if !ok {
			logger.ErrorContext(ctx, "wazero: "+ErrNoBinding.Error())
			panic(ErrNoBinding)
		}

		ptr, err := b.TargetCallback(ctx)
		if err != nil {
			logger.DebugContext(ctx, "wazero: target callback failed", "error", err, "calls", b.Calls())
			panic(err)
		}
		stack[0] = api.EncodeU32(ptr)
	}
}
