package hooks

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/js-runtime/errors"
)

// ErrSealed is returned by Register once the pipeline has been used.
var ErrSealed = errors.New(errors.PhaseHook, errors.KindSealed).
	Detail("hooks must be registered before the first resolution").Build()

// ResolveContext is passed to resolve hooks.
type ResolveContext struct {
	ParentURL string
}

// ResolveResult is returned by resolve hooks.
type ResolveResult struct {
	URL          string
	ShortCircuit bool
}

// NextResolve continues the resolve chain.
type NextResolve func(ctx context.Context, specifier string, rc ResolveContext) (ResolveResult, error)

// ResolveHook intercepts resolution.
type ResolveHook func(ctx context.Context, specifier string, rc ResolveContext, next NextResolve) (ResolveResult, error)

// LoadContext is passed to load hooks.
type LoadContext struct {
	Format string
}

// LoadResult is returned by load hooks. A nil Source means the hook left
// loading to the default loaders.
type LoadResult struct {
	URL          string
	Format       string
	Source       []byte
	ShortCircuit bool
}

// NextLoad continues the load chain.
type NextLoad func(ctx context.Context, url string, lc LoadContext) (LoadResult, error)

// LoadHook intercepts loading.
type LoadHook func(ctx context.Context, url string, lc LoadContext, next NextLoad) (LoadResult, error)

// Hooks is one registration. Either callable may be nil.
type Hooks struct {
	Resolve ResolveHook
	Load    LoadHook
}

// Trace records how a run ended.
type Trace struct {
	// Visited counts hook invocations.
	Visited int
	// ReachedDefault is set when the last next call ran off the end of the
	// chain. A hook calling next more than once is judged by its final call.
	ReachedDefault bool
}

// Pipeline is an append-only hook list.
type Pipeline struct {
	log    *zap.Logger
	hooks  []Hooks
	mu     sync.Mutex
	sealed bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// New creates an empty pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{log: Logger()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register appends h. It fails with ErrSealed after the first run.
func (p *Pipeline) Register(h Hooks) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sealed {
		return ErrSealed
	}
	p.hooks = append(p.hooks, h)
	p.log.Debug("hooks registered",
		zap.Int("index", len(p.hooks)-1),
		zap.Bool("resolve", h.Resolve != nil),
		zap.Bool("load", h.Load != nil))
	return nil
}

// Len returns the number of registrations.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.hooks)
}

// HasResolve reports whether any registration carries a resolve hook.
func (p *Pipeline) HasResolve() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range p.hooks {
		if h.Resolve != nil {
			return true
		}
	}
	return false
}

// HasLoad reports whether any registration carries a load hook.
func (p *Pipeline) HasLoad() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range p.hooks {
		if h.Load != nil {
			return true
		}
	}
	return false
}

// Seal forbids further registration.
func (p *Pipeline) Seal() {
	p.mu.Lock()
	p.sealed = true
	p.mu.Unlock()
}

// snapshot seals the pipeline and returns the registration list. The list is
// never mutated after sealing.
func (p *Pipeline) snapshot() []Hooks {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sealed = true
	return p.hooks
}

// RunResolve runs the resolve chain for specifier imported from parentURL.
// The default at the end of the chain returns the specifier unchanged with
// ShortCircuit unset. Hook errors are returned unmodified.
func (p *Pipeline) RunResolve(ctx context.Context, specifier, parentURL string) (ResolveResult, Trace, error) {
	hooks := p.snapshot()
	var tr Trace

	var at func(i int) NextResolve
	at = func(i int) NextResolve {
		return func(ctx context.Context, spec string, rc ResolveContext) (ResolveResult, error) {
			tr.ReachedDefault = false
			j := i
			for j < len(hooks) && hooks[j].Resolve == nil {
				j++
			}
			if j == len(hooks) {
				tr.ReachedDefault = true
				return ResolveResult{URL: spec}, nil
			}
			tr.Visited++
			return hooks[j].Resolve(ctx, spec, rc, at(j+1))
		}
	}

	res, err := at(0)(ctx, specifier, ResolveContext{ParentURL: parentURL})
	if err != nil {
		return ResolveResult{}, tr, err
	}
	if res.URL == "" {
		return ResolveResult{}, tr, errors.New(errors.PhaseHook, errors.KindInvalidData).
			Specifier(specifier).
			Base(parentURL).
			Detail("resolve hook returned an empty url").
			Build()
	}
	p.log.Debug("resolve hooks",
		zap.String("specifier", specifier),
		zap.String("url", res.URL),
		zap.Bool("short_circuit", res.ShortCircuit),
		zap.Bool("default", tr.ReachedDefault))
	return res, tr, nil
}

// RunLoad runs the load chain for url. The default at the end of the chain
// returns the url with no source.
func (p *Pipeline) RunLoad(ctx context.Context, url string) (LoadResult, Trace, error) {
	hooks := p.snapshot()
	var tr Trace

	var at func(i int) NextLoad
	at = func(i int) NextLoad {
		return func(ctx context.Context, u string, lc LoadContext) (LoadResult, error) {
			tr.ReachedDefault = false
			j := i
			for j < len(hooks) && hooks[j].Load == nil {
				j++
			}
			if j == len(hooks) {
				tr.ReachedDefault = true
				return LoadResult{URL: u}, nil
			}
			tr.Visited++
			return hooks[j].Load(ctx, u, lc, at(j+1))
		}
	}

	res, err := at(0)(ctx, url, LoadContext{})
	if err != nil {
		return LoadResult{}, tr, err
	}
	if res.URL == "" {
		res.URL = url
	}
	p.log.Debug("load hooks",
		zap.String("url", res.URL),
		zap.Bool("source", res.Source != nil),
		zap.Bool("short_circuit", res.ShortCircuit),
		zap.Bool("default", tr.ReachedDefault))
	return res, tr, nil
}
