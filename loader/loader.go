package loader

import (
	"context"
	"sort"

	"github.com/wippyai/js-runtime/engine"
	"github.com/wippyai/js-runtime/errors"
	"github.com/wippyai/js-runtime/resolve"
)

// Loader declares the module named name. ok=false declines and lets the
// next loader run.
type Loader interface {
	Load(ctx context.Context, name string) (mod engine.Module, ok bool, err error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, name string) (engine.Module, bool, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, name string) (engine.Module, bool, error) {
	return f(ctx, name)
}

// Chain tries loaders in order. The first to accept wins.
type Chain []Loader

// Load runs the chain. Exhaustion returns a load-phase not-found error.
func (c Chain) Load(ctx context.Context, name string) (engine.Module, error) {
	for _, l := range c {
		mod, ok, err := l.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			return mod, nil
		}
	}
	return nil, errors.NotFound(errors.PhaseLoad, "module", name)
}

// BuiltinModule declares a builtin module in e.
type BuiltinModule func(ctx context.Context, e engine.Engine, name string) (engine.Module, error)

// SourceModule returns a BuiltinModule declaring a fixed source.
func SourceModule(source []byte) BuiltinModule {
	return func(ctx context.Context, e engine.Engine, name string) (engine.Module, error) {
		return e.DeclareModule(ctx, name, source)
	}
}

// StubModule is a builtin with an empty default export. Tooling uses it for
// builtins implemented natively by the engine.
var StubModule = SourceModule([]byte("export default {};"))

// Builtins is the loader for modules compiled into the runtime.
type Builtins struct {
	engine  engine.Engine
	modules map[string]BuiltinModule
}

// NewBuiltins creates a builtin loader declaring into e.
func NewBuiltins(e engine.Engine, modules map[string]BuiltinModule) *Builtins {
	b := &Builtins{engine: e, modules: make(map[string]BuiltinModule, len(modules))}
	for name, m := range modules {
		b.modules[name] = m
	}
	return b
}

// Names returns the builtin names in sorted order.
func (b *Builtins) Names() []string {
	out := make([]string, 0, len(b.modules))
	for n := range b.modules {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Load implements Loader.
func (b *Builtins) Load(ctx context.Context, name string) (engine.Module, bool, error) {
	name = resolve.BuiltinName(name)
	m, ok := b.modules[name]
	if !ok {
		return nil, false, nil
	}
	mod, err := m(ctx, b.engine, name)
	if err != nil {
		return nil, true, errors.Load(name, "declare builtin", err)
	}
	return mod, true, nil
}
