package cjs

import (
	"context"
	"path"
	"strings"

	"github.com/dop251/goja"
	json "github.com/goccy/go-json"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/wippyai/js-runtime/bytecode"
	"github.com/wippyai/js-runtime/engine"
	"github.com/wippyai/js-runtime/errors"
	"github.com/wippyai/js-runtime/hooks"
	"github.com/wippyai/js-runtime/interop"
	"github.com/wippyai/js-runtime/resolve"
)

// ModuleBuiltin is the name of the hook registration builtin.
const ModuleBuiltin = "module"

// BuiltinValue builds the value require() returns for a builtin.
type BuiltinValue func(vm *goja.Runtime) goja.Value

// Runtime is a goja VM with a Node-style require.
type Runtime struct {
	vm    *goja.Runtime
	node  *resolve.Node
	fs    afero.Fs
	hooks *hooks.Pipeline
	log   *zap.Logger

	builtins map[string]BuiltinValue
	values   map[string]goja.Value
	cache    map[string]*goja.Object
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithNode sets the resolver used by require.
func WithNode(n *resolve.Node) Option {
	return func(r *Runtime) { r.node = n }
}

// WithHooks sets the pipeline registerHooks adds to.
func WithHooks(p *hooks.Pipeline) Option {
	return func(r *Runtime) { r.hooks = p }
}

// WithBuiltins declares builtin names. Builtins without a value require to
// an empty object.
func WithBuiltins(names ...string) Option {
	return func(r *Runtime) {
		for _, n := range names {
			if _, ok := r.builtins[n]; !ok {
				r.builtins[n] = nil
			}
		}
	}
}

// WithBuiltin declares a builtin with a value.
func WithBuiltin(name string, v BuiltinValue) Option {
	return func(r *Runtime) { r.builtins[name] = v }
}

// WithLogger sets the runtime logger. console output is written to it.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) { r.log = l }
}

// New creates a runtime with a global require bound to the resolver's
// working directory.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		vm:       goja.New(),
		builtins: make(map[string]BuiltinValue),
		values:   make(map[string]goja.Value),
		cache:    make(map[string]*goja.Object),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = Logger()
	}
	if r.node == nil {
		r.node = resolve.NewNode(resolve.WithNodeLogger(r.log))
	}
	if r.hooks == nil {
		r.hooks = hooks.New(hooks.WithLogger(r.log))
	}
	r.fs = r.node.Fs()
	r.builtins[ModuleBuiltin] = r.moduleBuiltin

	_ = r.vm.Set("require", r.requireFunc(r.node.Cwd()))
	_ = r.vm.Set("console", r.console())
	return r
}

// VM returns the underlying goja runtime.
func (r *Runtime) VM() *goja.Runtime { return r.vm }

// Hooks returns the pipeline registerHooks adds to.
func (r *Runtime) Hooks() *hooks.Pipeline { return r.hooks }

// Require evaluates specifier from the working directory and describes its
// exports. A leading require() marker is ignored.
func (r *Runtime) Require(_ context.Context, specifier string) (engine.Exports, error) {
	specifier = strings.TrimPrefix(specifier, interop.CJSImportPrefix)
	v, err := r.require(r.node.Cwd(), specifier)
	if err != nil {
		return engine.Exports{}, err
	}
	return describe(v), nil
}

// RunString evaluates src as a script in the global scope.
func (r *Runtime) RunString(name, src string) (goja.Value, error) {
	prog, err := goja.Compile(name, src, false)
	if err != nil {
		return nil, err
	}
	return r.vm.RunProgram(prog)
}

func describe(v goja.Value) engine.Exports {
	obj, ok := v.(*goja.Object)
	if !ok {
		return engine.Exports{}
	}
	return engine.Exports{Object: true, Keys: obj.Keys()}
}

func (r *Runtime) isBuiltin(name string) bool {
	_, ok := r.builtins[resolve.BuiltinName(name)]
	return ok
}

func (r *Runtime) builtin(name string) goja.Value {
	if v, ok := r.values[name]; ok {
		return v
	}
	var v goja.Value
	if b := r.builtins[name]; b != nil {
		v = b(r.vm)
	} else {
		v = r.vm.NewObject()
	}
	r.values[name] = v
	return v
}

// require resolves and evaluates specifier as required from base.
func (r *Runtime) require(base, specifier string) (goja.Value, error) {
	if r.isBuiltin(specifier) {
		return r.builtin(resolve.BuiltinName(specifier)), nil
	}

	name, err := r.node.RequireResolve(specifier, base, false)
	if err != nil {
		return nil, err
	}
	file := interop.StripMarkers(name)
	if m, ok := r.cache[file]; ok {
		return m.Get("exports"), nil
	}

	switch path.Ext(file) {
	case ".json":
		return r.requireJSON(file)
	case ".mjs":
		return nil, errors.New(errors.PhaseLoad, errors.KindUnsupported).
			Name(file).Specifier(specifier).Base(base).
			Detail("require() of ES module").
			Build()
	case bytecode.FileExt:
		return nil, errors.New(errors.PhaseLoad, errors.KindUnsupported).
			Name(file).Specifier(specifier).Base(base).
			Detail("require() of precompiled bytecode").
			Build()
	}
	if !path.IsAbs(file) {
		return nil, errors.New(errors.PhaseLoad, errors.KindUnsupported).
			Name(file).Specifier(specifier).Base(base).
			Detail("require() of embedded module").
			Build()
	}
	return r.evaluate(file)
}

func (r *Runtime) requireJSON(file string) (goja.Value, error) {
	data, err := afero.ReadFile(r.fs, file)
	if err != nil {
		return nil, errors.Load(file, "read json", err)
	}
	if !json.Valid(data) {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Name(file).
			Detail("invalid JSON").
			Build()
	}
	parse, _ := goja.AssertFunction(r.vm.Get("JSON").ToObject(r.vm).Get("parse"))
	v, err := parse(goja.Undefined(), r.vm.ToValue(string(data)))
	if err != nil {
		return nil, errors.Load(file, "parse json", err)
	}

	m := r.vm.NewObject()
	_ = m.Set("exports", v)
	r.cache[file] = m
	return v, nil
}

// evaluate runs file in the CommonJS module wrapper. The module is cached
// before its body runs so cycles see the partial exports.
func (r *Runtime) evaluate(file string) (goja.Value, error) {
	src, err := afero.ReadFile(r.fs, file)
	if err != nil {
		return nil, errors.Load(file, "read module", err)
	}

	var b strings.Builder
	b.Grow(len(src) + 96)
	b.WriteString("(function (exports, require, module, __filename, __dirname) {")
	b.Write(interop.StripShebang(src))
	b.WriteString("\n})")

	prog, err := goja.Compile(file, b.String(), false)
	if err != nil {
		return nil, errors.Load(file, "compile", err)
	}
	fnVal, err := r.vm.RunProgram(prog)
	if err != nil {
		return nil, errors.Load(file, "evaluate wrapper", err)
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, errors.Load(file, "module wrapper is not a function", nil)
	}

	dir := path.Dir(file)
	exports := r.vm.NewObject()
	module := r.vm.NewObject()
	_ = module.Set("exports", exports)
	_ = module.Set("id", file)
	_ = module.Set("filename", file)
	_ = module.Set("path", dir)
	_ = module.Set("loaded", false)
	r.cache[file] = module

	r.log.Debug("evaluating CommonJS module", zap.String("path", file))
	if _, err := fn(exports, exports, r.requireFunc(file), module, r.vm.ToValue(file), r.vm.ToValue(dir)); err != nil {
		delete(r.cache, file)
		return nil, err
	}
	_ = module.Set("loaded", true)
	return module.Get("exports"), nil
}

// requireFunc returns a require function resolving relative to base.
func (r *Runtime) requireFunc(base string) *goja.Object {
	fn := r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		spec := call.Argument(0)
		if goja.IsUndefined(spec) || goja.IsNull(spec) {
			panic(r.vm.NewTypeError("require() expects a module specifier"))
		}
		v, err := r.require(base, spec.String())
		if err != nil {
			panic(r.throwable(err))
		}
		return v
	}).ToObject(r.vm)

	_ = fn.Set("resolve", func(call goja.FunctionCall) goja.Value {
		spec := call.Argument(0).String()
		if r.isBuiltin(spec) {
			return r.vm.ToValue(resolve.BuiltinName(spec))
		}
		name, err := r.node.RequireResolve(spec, base, false)
		if err != nil {
			panic(r.throwable(err))
		}
		return r.vm.ToValue(interop.StripMarkers(name))
	})
	_ = fn.Set("cache", r.vm.NewObject())
	return fn
}

// throwable converts err to a JS error. Exceptions thrown by nested modules
// pass through unchanged.
func (r *Runtime) throwable(err error) goja.Value {
	if ex, ok := err.(*goja.Exception); ok {
		return ex.Value()
	}
	e := r.vm.NewGoError(err)
	if errors.IsNotFound(err) {
		_ = e.Set("code", "MODULE_NOT_FOUND")
	}
	return e
}

func (r *Runtime) console() *goja.Object {
	c := r.vm.NewObject()
	logAt := func(level func(string, ...zap.Field)) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				parts[i] = a.String()
			}
			level(strings.Join(parts, " "), zap.String("source", "console"))
			return goja.Undefined()
		}
	}
	_ = c.Set("log", logAt(r.log.Info))
	_ = c.Set("info", logAt(r.log.Info))
	_ = c.Set("debug", logAt(r.log.Debug))
	_ = c.Set("warn", logAt(r.log.Warn))
	_ = c.Set("error", logAt(r.log.Error))
	return c
}
