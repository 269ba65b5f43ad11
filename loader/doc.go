// Package loader is the module loading kernel: it answers the two callbacks
// a scripting engine makes while linking an ES module graph.
//
//	Resolve(ctx, base, specifier) -> canonical name
//	Load(ctx, name)               -> declared engine.Module
//
// Resolve runs registered resolve hooks first, then the resolver chain
// (builtin names, embedded registry, Node algorithm, search paths).
//
// Load runs registered load hooks first, then the loader chain:
//
//  1. builtin modules
//  2. JSON documents, wrapped as a default export
//  3. CommonJS files, through a synthesized ES module shim
//  4. precompiled bytecode from the embedded registry
//  5. a ".lrt" sibling of the requested source file
//  6. an explicitly requested ".lrt" file
//  7. raw source, with any shebang line blanked
//
// Every module loaded from a filesystem path gets import.meta.url set to a
// file:// URL; registry and ".lrt" modules get the bare path or key.
package loader
