package loader

import (
	"context"
	"path"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/wippyai/js-runtime/bytecode"
	"github.com/wippyai/js-runtime/engine"
	"github.com/wippyai/js-runtime/errors"
	"github.com/wippyai/js-runtime/hooks"
	"github.com/wippyai/js-runtime/interop"
	"github.com/wippyai/js-runtime/registry"
	"github.com/wippyai/js-runtime/resolve"
)

// Kernel resolves and loads modules for one engine. Construct it once and
// share it for the engine's lifetime.
type Kernel struct {
	engine   engine.Engine
	log      *zap.Logger
	fs       afero.Fs
	registry *registry.Registry
	codec    *bytecode.Codec
	hooks    *hooks.Pipeline
	commonjs engine.CommonJS
	builtins map[string]BuiltinModule
	cache    *resolve.PathCache

	searchPaths []string
	platform    string
	cwd         string
	home        string
	homeSet     bool

	node      *resolve.Node
	resolvers resolve.Chain
	loaders   Chain
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithRegistry sets the embedded artifact registry.
func WithRegistry(r *registry.Registry) Option {
	return func(k *Kernel) { k.registry = r }
}

// WithCodec sets the bytecode codec.
func WithCodec(c *bytecode.Codec) Option {
	return func(k *Kernel) { k.codec = c }
}

// WithFs sets the filesystem modules are read from.
func WithFs(fs afero.Fs) Option {
	return func(k *Kernel) { k.fs = fs }
}

// WithBuiltins adds builtin modules.
func WithBuiltins(m map[string]BuiltinModule) Option {
	return func(k *Kernel) {
		for name, b := range m {
			k.builtins[name] = b
		}
	}
}

// WithCommonJS sets the require runtime used to enumerate CommonJS exports.
func WithCommonJS(c engine.CommonJS) Option {
	return func(k *Kernel) { k.commonjs = c }
}

// WithHooks sets the hook pipeline.
func WithHooks(p *hooks.Pipeline) Option {
	return func(k *Kernel) { k.hooks = p }
}

// WithLogger sets the kernel logger.
func WithLogger(l *zap.Logger) Option {
	return func(k *Kernel) { k.log = l }
}

// WithSearchPaths sets the roots the file resolver searches.
func WithSearchPaths(paths ...string) Option {
	return func(k *Kernel) { k.searchPaths = paths }
}

// WithPlatform sets the exports platform condition.
func WithPlatform(p string) Option {
	return func(k *Kernel) { k.platform = p }
}

// WithCwd sets the directory relative entry names resolve against.
func WithCwd(dir string) Option {
	return func(k *Kernel) { k.cwd = dir }
}

// WithHome sets the home directory for global node_modules folders.
func WithHome(dir string) Option {
	return func(k *Kernel) {
		k.home = dir
		k.homeSet = true
	}
}

// WithNode sets the Node resolver. Fs, registry, platform, cwd and home
// options do not reconfigure a supplied resolver.
func WithNode(n *resolve.Node) Option {
	return func(k *Kernel) { k.node = n }
}

// WithPathCache shares a node_modules path cache.
func WithPathCache(c *resolve.PathCache) Option {
	return func(k *Kernel) { k.cache = c }
}

// New creates a kernel declaring modules into e.
func New(e engine.Engine, opts ...Option) (*Kernel, error) {
	if e == nil {
		return nil, errors.NotInitialized(errors.PhaseLoad, "engine")
	}

	k := &Kernel{
		engine:   e,
		builtins: make(map[string]BuiltinModule),
		platform: resolve.PlatformBrowser,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.log == nil {
		k.log = Logger()
	}
	if k.fs == nil {
		k.fs = afero.NewOsFs()
	}
	if k.registry == nil {
		k.registry = registry.Empty()
	}
	if k.codec == nil {
		k.codec = bytecode.NewCodec(nil)
	}
	if k.hooks == nil {
		k.hooks = hooks.New(hooks.WithLogger(k.log))
	}
	if k.cache == nil {
		k.cache = resolve.NewPathCache()
	}
	if k.searchPaths == nil {
		k.searchPaths = []string{"."}
	}

	if k.node == nil {
		k.node = resolve.NewNode(k.nodeOptions()...)
	}

	builtins := NewBuiltins(e, k.builtins)
	k.resolvers = resolve.Chain{
		resolve.NewBuiltin(builtins.Names()...),
		resolve.NewEmbedded(k.registry),
		resolve.NewNodeResolver(k.node),
		resolve.NewFile(k.fs, k.searchPaths...),
	}
	k.loaders = Chain{
		builtins,
		NewSource(e, k.fs, k.registry, k.codec, k.commonjs, k.log),
	}
	return k, nil
}

func (k *Kernel) nodeOptions() []resolve.NodeOption {
	opts := []resolve.NodeOption{
		resolve.WithFs(k.fs),
		resolve.WithRegistry(k.registry),
		resolve.WithPathCache(k.cache),
		resolve.WithPlatform(k.platform),
		resolve.WithNodeLogger(k.log),
	}
	if k.cwd != "" {
		opts = append(opts, resolve.WithCwd(k.cwd))
	}
	if k.homeSet {
		opts = append(opts, resolve.WithHome(k.home))
	}
	return opts
}

// Engine returns the engine modules are declared into.
func (k *Kernel) Engine() engine.Engine { return k.engine }

// Hooks returns the hook pipeline.
func (k *Kernel) Hooks() *hooks.Pipeline { return k.hooks }

// Node returns the Node resolution algorithm the kernel uses.
func (k *Kernel) Node() *resolve.Node { return k.node }

// Registry returns the embedded artifact registry.
func (k *Kernel) Registry() *registry.Registry { return k.registry }

// IsBuiltin reports whether name is a builtin after prefix stripping.
func (k *Kernel) IsBuiltin(name string) bool {
	_, ok := k.builtins[resolve.BuiltinName(name)]
	return ok
}

// BuiltinNames returns the builtin module names in sorted order.
func (k *Kernel) BuiltinNames() []string {
	return NewBuiltins(k.engine, k.builtins).Names()
}

// Resolve maps specifier imported from base to a canonical module name.
//
// Registered resolve hooks run first. A hook chain that does not reach the
// default, or that returns ShortCircuit, decides the name verbatim.
// Otherwise the URL the chain produced goes through the resolver chain.
func (k *Kernel) Resolve(ctx context.Context, base, specifier string) (string, error) {
	if k.hooks.HasResolve() {
		res, trace, err := k.hooks.RunResolve(ctx, specifier, base)
		if err != nil {
			return "", err
		}
		if res.ShortCircuit || !trace.ReachedDefault {
			k.log.Debug("resolved by hook",
				zap.String("specifier", specifier),
				zap.String("url", res.URL))
			return res.URL, nil
		}
		specifier = res.URL
	} else {
		k.hooks.Seal()
	}

	name, err := k.resolvers.Resolve(base, specifier)
	if err != nil {
		return "", err
	}
	k.log.Debug("resolved",
		zap.String("base", base),
		zap.String("specifier", specifier),
		zap.String("name", name))
	return name, nil
}

// Load declares the module named name in the engine.
//
// A load hook returning Source decides the module. Otherwise the builtin and
// source loaders run on the URL the hook chain produced.
func (k *Kernel) Load(ctx context.Context, name string) (engine.Module, error) {
	if k.hooks.HasLoad() {
		res, _, err := k.hooks.RunLoad(ctx, name)
		if err != nil {
			return nil, err
		}
		if res.Source != nil {
			return k.declareHookSource(ctx, name, res)
		}
		if res.ShortCircuit {
			return nil, errors.New(errors.PhaseHook, errors.KindInvalidData).
				Name(name).
				Detail("load hook short-circuited without source").
				Build()
		}
		name = res.URL
	}

	return k.loaders.Load(ctx, name)
}

func (k *Kernel) declareHookSource(ctx context.Context, name string, res hooks.LoadResult) (engine.Module, error) {
	src := res.Source
	switch res.Format {
	case "json":
		src = interop.JSON(src)
	case "", "module":
		src = interop.StripShebang(src)
	default:
		return nil, errors.New(errors.PhaseHook, errors.KindUnsupported).
			Name(name).
			Detail("load hook format %q", res.Format).
			Build()
	}

	mod, err := k.engine.DeclareModule(ctx, name, src)
	if err != nil {
		return nil, errors.Load(name, "declare hook module", err)
	}

	url := res.URL
	if path.IsAbs(url) {
		url = FileURL(url)
	}
	k.log.Debug("loaded by hook", zap.String("name", name), zap.String("url", url))
	return mod, setURL(mod, url)
}

// ResolveAndLoad resolves specifier from base and loads the result.
func (k *Kernel) ResolveAndLoad(ctx context.Context, base, specifier string) (engine.Module, error) {
	name, err := k.Resolve(ctx, base, specifier)
	if err != nil {
		return nil, err
	}
	return k.Load(ctx, name)
}

// Entry returns the canonical name of an entry script given on the command
// line, relative to the working directory.
func (k *Kernel) Entry(ctx context.Context, script string) (string, error) {
	if !strings.HasPrefix(script, "/") && !strings.HasPrefix(script, ".") && path.Ext(script) != "" {
		script = "./" + script
	}
	return k.Resolve(ctx, k.node.Cwd(), script)
}
