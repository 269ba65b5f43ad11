// Package jsruntime is the module resolution and bytecode loading kernel of
// a lightweight JavaScript runtime.
//
// Given an import specifier and the module importing it, the kernel decides
// which canonical module is meant, finds its code (builtin, precompiled
// bytecode container, embedded registry entry, or source file), adapts it
// for the engine (CommonJS interop, JSON wrapping, shebang stripping) and
// declares it. The scripting engine itself is an external collaborator
// behind a small interface.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	jsruntime/
//	├── bytecode/        Container codec: "lrt01" header, zstd with a shared dictionary
//	├── registry/        Immutable embedded artifact registry and CBOR archives
//	├── resolve/         Node-compatible resolution, package.json, resolver chain
//	├── interop/         CommonJS/ESM interop shims and specifier markers
//	├── hooks/           Ordered user resolve/load hook pipeline
//	├── engine/          Engine contract and an in-memory recording engine
//	├── loader/          Kernel: Resolve and Load over the resolver and loader chains
//	├── cjs/             Runtime-global CommonJS require on goja, JS hook adapter
//	├── config/          Configuration from defaults, lrt.toml and LRT_* variables
//	├── runtime/         Facade wiring every component from a configuration
//	├── errors/          Structured error types for debugging
//	└── cmd/lrt/         CLI: resolve, load, pack, inspect, registry, explore
//
// # Quick Start
//
// Resolve and declare an entry script:
//
//	rt, err := runtime.New(ctx, runtime.WithEngine(myEngine))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	name, err := rt.Entry(ctx, "main.js")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mod, err := rt.Load(ctx, name)
//
// Nested imports are resolved from the importing module's canonical name:
//
//	name, err := rt.Resolve(ctx, "/app/main.js", "./lib/util")
//
// # Resolution Order
//
// Registered resolve hooks run first. Without a deciding hook, specifiers go
// through builtins, the embedded registry, the Node algorithm, and finally a
// plain file lookup under the configured search paths. The first resolver
// that accepts a specifier wins.
//
// # Loading
//
// Load hooks run first and may supply source directly. Otherwise builtins
// are declared from Go, and files are loaded in this order: JSON, CommonJS
// interop, registry bytecode, explicit ".lrt" files, ".lrt" siblings of
// source files, and finally the source itself. Each loaded module receives
// an import.meta.url.
//
// # Hooks
//
// Hooks are registered from JavaScript through the module builtin:
//
//	const { registerHooks } = require('module');
//	registerHooks({
//	    resolve(specifier, context, next) { return next(specifier, context); },
//	});
//
// The hook list seals the first time a resolution runs.
//
// # Error Handling
//
// Errors are structured with phase and kind information:
//
//	var e *errors.Error
//	if stderrors.As(err, &e) {
//	    fmt.Printf("Phase: %s, Kind: %s\n", e.Phase, e.Kind)
//	}
//
// Container errors match the bytecode sentinels with errors.Is.
package jsruntime
