package runtime

import (
	"bytes"
	"context"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/wippyai/js-runtime/bytecode"
	"github.com/wippyai/js-runtime/cjs"
	"github.com/wippyai/js-runtime/config"
	"github.com/wippyai/js-runtime/engine"
	"github.com/wippyai/js-runtime/errors"
	"github.com/wippyai/js-runtime/hooks"
	"github.com/wippyai/js-runtime/interop"
	"github.com/wippyai/js-runtime/loader"
	"github.com/wippyai/js-runtime/registry"
	"github.com/wippyai/js-runtime/resolve"
)

// MainModule is the name the entry of a self-contained executable is
// declared under.
const MainModule = "__main"

type Runtime struct {
	cfg      *config.Config
	log      *zap.Logger
	fs       afero.Fs
	engine   engine.Engine
	codec    *bytecode.Codec
	registry *registry.Registry
	hooks    *hooks.Pipeline
	node     *resolve.Node
	commonjs *cjs.Runtime
	kernel   *loader.Kernel
}

type options struct {
	cfg      *config.Config
	log      *zap.Logger
	fs       afero.Fs
	engine   engine.Engine
	registry *registry.Registry
	builtins map[string]loader.BuiltinModule
}

// Option configures a Runtime.
type Option func(*options)

// WithConfig sets the configuration. Defaults apply when omitted.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithFs sets the filesystem modules, dictionaries and registries are read from.
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithEngine sets the engine modules are declared into.
func WithEngine(e engine.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithRegistry replaces the registry named by the configuration.
func WithRegistry(r *registry.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithBuiltinModule provides the ES module declared for a builtin name.
// Configured builtins without a module get an empty default export.
func WithBuiltinModule(name string, m loader.BuiltinModule) Option {
	return func(o *options) {
		if o.builtins == nil {
			o.builtins = make(map[string]loader.BuiltinModule)
		}
		o.builtins[name] = m
	}
}

// New creates a runtime. It fails when the configured dictionary or
// registry cannot be read.
func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.cfg == nil {
		o.cfg = config.DefaultConfig()
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.fs == nil {
		o.fs = afero.NewOsFs()
	}
	if o.engine == nil {
		o.engine = engine.NewRecorder()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := &Runtime{
		cfg:    o.cfg,
		log:    o.log,
		fs:     o.fs,
		engine: o.engine,
		hooks:  hooks.New(hooks.WithLogger(o.log)),
	}

	dict, err := r.dictionary()
	if err != nil {
		return nil, err
	}
	r.codec = bytecode.NewCodec(dict, bytecode.WithMaxDecodedSize(r.cfg.Bytecode.MaxDecodedSize))

	r.registry = o.registry
	if r.registry == nil {
		if r.registry, err = r.openRegistry(); err != nil {
			return nil, err
		}
	}

	nodeOpts := []resolve.NodeOption{
		resolve.WithFs(r.fs),
		resolve.WithRegistry(r.registry),
		resolve.WithPlatform(r.cfg.Platform),
		resolve.WithNodeLogger(r.log),
	}
	if r.cfg.Cwd != "" {
		nodeOpts = append(nodeOpts, resolve.WithCwd(r.cfg.Cwd))
	}
	if r.cfg.Home != "" {
		nodeOpts = append(nodeOpts, resolve.WithHome(r.cfg.Home))
	}
	r.node = resolve.NewNode(nodeOpts...)

	r.commonjs = cjs.New(
		cjs.WithNode(r.node),
		cjs.WithHooks(r.hooks),
		cjs.WithBuiltins(r.cfg.Builtins...),
		cjs.WithLogger(r.log),
	)

	r.kernel, err = loader.New(r.engine,
		loader.WithNode(r.node),
		loader.WithFs(r.fs),
		loader.WithRegistry(r.registry),
		loader.WithCodec(r.codec),
		loader.WithHooks(r.hooks),
		loader.WithCommonJS(r.commonjs),
		loader.WithBuiltins(r.builtinModules(o.builtins)),
		loader.WithSearchPaths(r.cfg.ResolvedSearchPaths()...),
		loader.WithLogger(r.log),
	)
	if err != nil {
		return nil, err
	}

	r.log.Debug("runtime initialized",
		zap.String("platform", r.cfg.Platform),
		zap.Int("registry", r.registry.Len()),
		zap.Strings("search_paths", r.cfg.ResolvedSearchPaths()))
	return r, nil
}

// builtinModules maps every configured builtin to an ES module. The module
// builtin re-exports the CommonJS hook API.
func (r *Runtime) builtinModules(provided map[string]loader.BuiltinModule) map[string]loader.BuiltinModule {
	out := make(map[string]loader.BuiltinModule, len(r.cfg.Builtins)+len(provided)+1)
	for _, name := range r.cfg.Builtins {
		out[name] = loader.StubModule
	}
	out[cjs.ModuleBuiltin] = loader.SourceModule(interop.Synthesize(cjs.ModuleBuiltin,
		[]string{"builtinModules", "createRequire", "isBuiltin", "registerHooks"}))
	for name, m := range provided {
		out[name] = m
	}
	return out
}

func (r *Runtime) dictionary() (*bytecode.Dictionary, error) {
	if r.cfg.Bytecode.Dictionary == "" {
		return bytecode.DefaultDictionary(), nil
	}
	data, err := afero.ReadFile(r.fs, r.cfg.Bytecode.Dictionary)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindNotFound).
			Name(r.cfg.Bytecode.Dictionary).
			Cause(err).
			Detail("read bytecode dictionary").
			Build()
	}
	return bytecode.NewDictionary(data), nil
}

func (r *Runtime) openRegistry() (*registry.Registry, error) {
	switch {
	case r.cfg.Registry.Archive != "":
		data, err := afero.ReadFile(r.fs, r.cfg.Registry.Archive)
		if err != nil {
			return nil, errors.New(errors.PhaseRegistry, errors.KindNotFound).
				Name(r.cfg.Registry.Archive).
				Cause(err).
				Detail("read registry archive").
				Build()
		}
		return registry.Open(bytes.NewReader(data))
	case r.cfg.Registry.Dir != "":
		dir := filepath.ToSlash(r.cfg.Registry.Dir)
		return registry.FromFS(afero.NewIOFS(afero.NewBasePathFs(r.fs, dir)), ".")
	}
	return registry.Empty(), nil
}

// Config returns the configuration the runtime was built with.
func (r *Runtime) Config() *config.Config { return r.cfg }

// Kernel returns the module loading kernel.
func (r *Runtime) Kernel() *loader.Kernel { return r.kernel }

// CommonJS returns the require runtime.
func (r *Runtime) CommonJS() *cjs.Runtime { return r.commonjs }

// Hooks returns the hook pipeline.
func (r *Runtime) Hooks() *hooks.Pipeline { return r.hooks }

// Registry returns the embedded registry.
func (r *Runtime) Registry() *registry.Registry { return r.registry }

// Codec returns the bytecode codec.
func (r *Runtime) Codec() *bytecode.Codec { return r.codec }

// Engine returns the engine modules are declared into.
func (r *Runtime) Engine() engine.Engine { return r.engine }

// BuiltinNames returns every builtin module name, sorted.
func (r *Runtime) BuiltinNames() []string {
	return r.kernel.BuiltinNames()
}

// Preload requires a CommonJS script before any module is resolved. It is
// how hooks get registered from JavaScript.
func (r *Runtime) Preload(ctx context.Context, script string) error {
	_, err := r.commonjs.Require(ctx, script)
	return err
}

// Resolve maps specifier imported from base to a canonical module name.
func (r *Runtime) Resolve(ctx context.Context, base, specifier string) (string, error) {
	return r.kernel.Resolve(ctx, base, specifier)
}

// Load declares the module named name.
func (r *Runtime) Load(ctx context.Context, name string) (engine.Module, error) {
	return r.kernel.Load(ctx, name)
}

// Entry resolves an entry script named on the command line.
func (r *Runtime) Entry(ctx context.Context, script string) (string, error) {
	return r.kernel.Entry(ctx, script)
}

// LoadExecutable declares the bytecode appended to a self-contained
// executable image as MainModule.
func (r *Runtime) LoadExecutable(ctx context.Context, image []byte) (engine.Module, error) {
	blob, ok := bytecode.ExtractExecutable(image)
	if !ok {
		return nil, errors.NotFound(errors.PhaseLoad, "embedded entry", MainModule)
	}
	payload, err := r.codec.Decode(blob)
	if err != nil {
		return nil, errors.Load(MainModule, "decode embedded entry", err)
	}
	mod, err := r.engine.LoadBytecode(ctx, MainModule, payload)
	if err != nil {
		return nil, errors.Load(MainModule, "load embedded entry", err)
	}
	return mod, nil
}
