// Package errors provides structured error types for the module loading kernel.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the canonical module name, the requested specifier and
// the importing base module, plus a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindInvalidVersion).
//		Name("/app/lib/a.js").
//		Detail("invalid bytecode version").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Unresolved("/app/index.js", "./lib/missing")
//	err := errors.MalformedPackage("/app/node_modules/pkg/package.json", cause)
//
// All errors implement the standard error interface and support errors.Is/As.
// Is matches on Phase and Kind, so package-level sentinels built with the
// Builder can be compared against errors carrying more context.
package errors
