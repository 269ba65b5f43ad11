package engine

import "context"

// MetaURL is the import.meta key the loader sets on every module.
const MetaURL = "url"

// Module is a module declared in the engine.
type Module interface {
	Name() string
	SetMeta(key string, value any) error
}

// Engine declares modules. Implementations are not required to be safe for
// concurrent use; the kernel serializes calls per load.
type Engine interface {
	// DeclareModule declares an ES module from source.
	DeclareModule(ctx context.Context, name string, source []byte) (Module, error)
	// LoadBytecode declares a module from a decoded bytecode payload.
	LoadBytecode(ctx context.Context, name string, payload []byte) (Module, error)
}

// Exports describes the value a CommonJS module assigned to module.exports.
type Exports struct {
	// Object is true when the exports value is a non-null object or function.
	Object bool
	// Keys are the own enumerable keys, in engine order.
	Keys []string
}

// CommonJS evaluates a module through the runtime-global require.
type CommonJS interface {
	Require(ctx context.Context, specifier string) (Exports, error)
}

// CommonJSFunc adapts a function to CommonJS.
type CommonJSFunc func(ctx context.Context, specifier string) (Exports, error)

// Require calls f.
func (f CommonJSFunc) Require(ctx context.Context, specifier string) (Exports, error) {
	return f(ctx, specifier)
}
