// Package wazero registers the host side of the guest ABI with a wazero
// runtime.
//
// Two host modules are always provided: js.random, backed by a
// hostfuncs.RandomSource, and target.target_callback, which forwards to the
// hostfuncs.Binding found in the call context. Extra modules can be added
// with WithCustomHandler.
//
// # Basic Usage
//
//	runtime := wazero.NewRuntime(ctx)
//	imports, err := wazeroadapter.RegisterWithRuntime(ctx, runtime)
//	if err != nil {
//	    return err
//	}
//
//	binding := hostfuncs.NewBinding(target)
//	ctx = hostfuncs.WithBinding(ctx, binding)
//	mod, err := runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
//	// bind the instance's allocator exports, then call main
//	binding.Bind(guest)
//
// Host modules are registered once per runtime; every invocation supplies its
// own Binding through the context.
package wazero
