package cjs

import (
	"context"
	"sort"
	"strings"

	"github.com/dop251/goja"

	"github.com/wippyai/js-runtime/errors"
	"github.com/wippyai/js-runtime/hooks"
)

// BuiltinNames returns every builtin name, including "module", sorted.
func (r *Runtime) BuiltinNames() []string {
	out := make([]string, 0, len(r.builtins))
	for n := range r.builtins {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (r *Runtime) moduleBuiltin(vm *goja.Runtime) goja.Value {
	m := vm.NewObject()

	names := r.BuiltinNames()
	items := make([]any, len(names))
	for i, n := range names {
		items[i] = n
	}
	_ = m.Set("builtinModules", vm.NewArray(items...))

	_ = m.Set("isBuiltin", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(r.isBuiltin(call.Argument(0).String()))
	})

	_ = m.Set("createRequire", func(call goja.FunctionCall) goja.Value {
		filename := strings.TrimPrefix(call.Argument(0).String(), "file://")
		if !strings.HasPrefix(filename, "/") {
			panic(vm.NewTypeError("createRequire() expects an absolute path or file URL"))
		}
		return r.requireFunc(filename)
	})

	_ = m.Set("registerHooks", func(call goja.FunctionCall) goja.Value {
		opts := call.Argument(0)
		if goja.IsUndefined(opts) || goja.IsNull(opts) {
			panic(vm.NewTypeError("registerHooks() expects an options object"))
		}
		obj := opts.ToObject(vm)

		var h hooks.Hooks
		if fn, ok := goja.AssertFunction(obj.Get("resolve")); ok {
			h.Resolve = r.resolveHook(fn)
		}
		if fn, ok := goja.AssertFunction(obj.Get("load")); ok {
			h.Load = r.loadHook(fn)
		}
		if err := r.hooks.Register(h); err != nil {
			panic(r.throwable(err))
		}
		return goja.Undefined()
	})

	return m
}

// resolveHook adapts resolve(specifier, context, nextResolve).
func (r *Runtime) resolveHook(fn goja.Callable) hooks.ResolveHook {
	vm := r.vm
	return func(ctx context.Context, specifier string, rc hooks.ResolveContext, next hooks.NextResolve) (hooks.ResolveResult, error) {
		jsNext := vm.ToValue(func(call goja.FunctionCall) goja.Value {
			nrc := rc
			if c := call.Argument(1); !goja.IsUndefined(c) && !goja.IsNull(c) {
				if p := c.ToObject(vm).Get("parentURL"); p != nil && !goja.IsUndefined(p) {
					nrc.ParentURL = p.String()
				}
			}
			res, err := next(ctx, call.Argument(0).String(), nrc)
			if err != nil {
				panic(r.throwable(err))
			}
			out := vm.NewObject()
			_ = out.Set("url", res.URL)
			_ = out.Set("shortCircuit", res.ShortCircuit)
			return out
		})

		jsCtx := vm.NewObject()
		_ = jsCtx.Set("parentURL", rc.ParentURL)
		_ = jsCtx.Set("conditions", vm.NewArray("import", "require"))

		v, err := fn(goja.Undefined(), vm.ToValue(specifier), jsCtx, jsNext)
		if err != nil {
			return hooks.ResolveResult{}, err
		}
		obj, err := r.hookResult(v, "resolve")
		if err != nil {
			return hooks.ResolveResult{}, err
		}
		return hooks.ResolveResult{
			URL:          stringField(obj, "url"),
			ShortCircuit: boolField(obj, "shortCircuit"),
		}, nil
	}
}

// loadHook adapts load(url, context, nextLoad).
func (r *Runtime) loadHook(fn goja.Callable) hooks.LoadHook {
	vm := r.vm
	return func(ctx context.Context, url string, lc hooks.LoadContext, next hooks.NextLoad) (hooks.LoadResult, error) {
		jsNext := vm.ToValue(func(call goja.FunctionCall) goja.Value {
			nlc := lc
			if c := call.Argument(1); !goja.IsUndefined(c) && !goja.IsNull(c) {
				if f := c.ToObject(vm).Get("format"); f != nil && !goja.IsUndefined(f) {
					nlc.Format = f.String()
				}
			}
			res, err := next(ctx, call.Argument(0).String(), nlc)
			if err != nil {
				panic(r.throwable(err))
			}
			out := vm.NewObject()
			_ = out.Set("url", res.URL)
			_ = out.Set("format", res.Format)
			_ = out.Set("shortCircuit", res.ShortCircuit)
			if res.Source != nil {
				_ = out.Set("source", string(res.Source))
			}
			return out
		})

		jsCtx := vm.NewObject()
		_ = jsCtx.Set("format", lc.Format)

		v, err := fn(goja.Undefined(), vm.ToValue(url), jsCtx, jsNext)
		if err != nil {
			return hooks.LoadResult{}, err
		}
		obj, err := r.hookResult(v, "load")
		if err != nil {
			return hooks.LoadResult{}, err
		}
		return hooks.LoadResult{
			URL:          stringField(obj, "url"),
			Format:       stringField(obj, "format"),
			Source:       sourceField(obj),
			ShortCircuit: boolField(obj, "shortCircuit"),
		}, nil
	}
}

func (r *Runtime) hookResult(v goja.Value, stage string) (*goja.Object, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, errors.New(errors.PhaseHook, errors.KindInvalidData).
			Detail("%s hook returned no result", stage).
			Build()
	}
	return v.ToObject(r.vm), nil
}

func stringField(obj *goja.Object, key string) string {
	v := obj.Get(key)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

func boolField(obj *goja.Object, key string) bool {
	v := obj.Get(key)
	return v != nil && v.ToBoolean()
}

func sourceField(obj *goja.Object) []byte {
	v := obj.Get("source")
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	switch s := v.Export().(type) {
	case string:
		return []byte(s)
	case []byte:
		return s
	case goja.ArrayBuffer:
		return s.Bytes()
	}
	return []byte(v.String())
}
