// Package runtime provides the high-level API wiring configuration, the
// module loading kernel and the CommonJS runtime together.
//
// # Quick Start
//
//	ctx := context.Background()
//	cfg, _, err := config.Load(ctx, config.LoadOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rt, err := runtime.New(ctx, runtime.WithConfig(cfg), runtime.WithEngine(eng))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Register hooks before anything is resolved
//	if err := rt.Preload(ctx, "./hooks.js"); err != nil {
//	    log.Fatal(err)
//	}
//
//	name, err := rt.Entry(ctx, "index.js")
//	mod, err := rt.Load(ctx, name)
//
// # Lifecycle
//
// A Runtime is constructed once per engine instance. Construction reads the
// bytecode dictionary and the embedded registry, after which both are shared
// read-only. Hooks may only be registered, through Preload or the
// "module" builtin, before the first resolution.
//
// Without WithEngine the runtime declares modules into an engine.Recorder,
// which is what the lrt command line tool uses to inspect a load.
package runtime
