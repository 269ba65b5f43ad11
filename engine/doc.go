// Package engine defines the contract between the module loading kernel and
// the scripting engine that executes modules.
//
// The kernel never interprets JavaScript. It hands the engine either module
// source (DeclareModule) or a decoded bytecode payload (LoadBytecode) and gets
// back a Module handle it can attach import.meta properties to.
//
// # Interfaces
//
//	Engine    - declares modules from source or bytecode
//	Module    - a declared module; carries import.meta entries
//	CommonJS  - the runtime-global require used to enumerate CommonJS exports
//
// # Recorder
//
// Recorder is an in-memory Engine that stores everything it is given. The CLI
// uses it to show what a load would hand to a real engine, and the loader
// tests use it to assert on declared sources and metadata.
//
//	rec := engine.NewRecorder()
//	mod, _ := rec.DeclareModule(ctx, "/app/index.js", src)
//	_ = mod.SetMeta("url", "file:///app/index.js")
//	rec.Get("/app/index.js").Meta("url") // "file:///app/index.js"
package engine
