package resolve

import (
	"path"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/wippyai/js-runtime/errors"
	"github.com/wippyai/js-runtime/interop"
	"github.com/wippyai/js-runtime/registry"
)

// Resolver maps a specifier imported from base to a canonical name.
// ok=false declines and lets the next resolver run; a declining resolver
// must not have changed any shared state.
type Resolver interface {
	Resolve(base, specifier string) (name string, ok bool, err error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(base, specifier string) (string, bool, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(base, specifier string) (string, bool, error) {
	return f(base, specifier)
}

// Chain tries resolvers in order. The first to accept wins.
type Chain []Resolver

// Resolve runs the chain. Exhaustion returns errors.Unresolved.
func (c Chain) Resolve(base, specifier string) (string, error) {
	for _, r := range c {
		name, ok, err := r.Resolve(base, specifier)
		if err != nil {
			return "", err
		}
		if ok {
			return name, nil
		}
	}
	return "", errors.Unresolved(base, specifier)
}

// Builtin resolves names of modules compiled into the runtime.
type Builtin struct {
	names map[string]struct{}
}

// NewBuiltin creates a builtin resolver for the given module names.
func NewBuiltin(names ...string) *Builtin {
	b := &Builtin{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		b.names[n] = struct{}{}
	}
	return b
}

// BuiltinName strips the prefixes a builtin may be requested with.
func BuiltinName(specifier string) string {
	name := strings.TrimPrefix(specifier, interop.CJSImportPrefix)
	name = strings.TrimPrefix(name, "node:")
	if len(name) > 1 {
		name = strings.TrimSuffix(name, "/")
	}
	return name
}

// Resolve accepts builtin names regardless of filesystem state.
func (b *Builtin) Resolve(_, specifier string) (string, bool, error) {
	name := BuiltinName(specifier)
	if _, ok := b.names[name]; ok {
		return name, true, nil
	}
	return "", false, nil
}

// Has reports whether name is a builtin after prefix stripping.
func (b *Builtin) Has(name string) bool {
	_, ok := b.names[BuiltinName(name)]
	return ok
}

// Names returns the builtin names in sorted order.
func (b *Builtin) Names() []string {
	out := make([]string, 0, len(b.names))
	for n := range b.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Embedded resolves names present in the artifact registry, either verbatim
// or relative to an importing registry module.
type Embedded struct {
	registry *registry.Registry
}

// NewEmbedded creates a registry resolver.
func NewEmbedded(r *registry.Registry) *Embedded {
	return &Embedded{registry: r}
}

// Resolve checks the specifier as a key, then the specifier joined with the
// directory of base, with and without a ".js" extension.
func (e *Embedded) Resolve(base, specifier string) (string, bool, error) {
	if e.registry.Len() == 0 {
		return "", false, nil
	}
	if e.registry.Contains(specifier) {
		return specifier, true, nil
	}
	if !isRelative(specifier) {
		return "", false, nil
	}

	joined := path.Join(path.Dir(interop.StripMarkers(base)), specifier)
	joined = strings.TrimPrefix(joined, "./")
	ext := path.Ext(joined)
	for _, key := range []string{joined, strings.TrimSuffix(joined, ext) + ".js", strings.TrimSuffix(joined, ext)} {
		if e.registry.Contains(key) {
			return key, true, nil
		}
	}
	return "", false, nil
}

// NodeResolver adapts Node to the resolver chain for ES module imports.
type NodeResolver struct {
	node *Node
}

// NewNodeResolver wraps n.
func NewNodeResolver(n *Node) *NodeResolver {
	return &NodeResolver{node: n}
}

// Resolve passes require() requests through unchanged and runs the Node
// algorithm for everything else. Not found declines.
func (r *NodeResolver) Resolve(base, specifier string) (string, bool, error) {
	if strings.HasPrefix(specifier, interop.CJSImportPrefix) {
		return specifier, true, nil
	}
	base = interop.StripMarkers(base)
	name, err := r.node.RequireResolve(specifier, base, true)
	if err != nil {
		if errors.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return name, true, nil
}

// File resolves raw paths relative to base or under a list of search roots,
// preferring a precompiled ".lrt" sibling under a root.
type File struct {
	fs    afero.Fs
	log   *zap.Logger
	paths []string
	exts  []string
}

// NewFile creates a file resolver searching the given roots.
func NewFile(fs afero.Fs, paths ...string) *File {
	return &File{
		fs:    fs,
		log:   Logger(),
		paths: slices.Clone(paths),
		exts:  []string{".js", ".mjs", ".cjs"},
	}
}

// Paths returns the search roots.
func (f *File) Paths() []string {
	return slices.Clone(f.paths)
}

func (f *File) isFile(p string) bool {
	fi, err := f.fs.Stat(p)
	return err == nil && !fi.IsDir()
}

func (f *File) isDir(p string) bool {
	fi, err := f.fs.Stat(p)
	return err == nil && fi.IsDir()
}

// Resolve implements Resolver.
func (f *File) Resolve(base, specifier string) (string, bool, error) {
	base = interop.StripMarkers(base)
	dir := base
	if !f.isDir(base) {
		dir = path.Dir(base)
	}

	candidate := path.Clean(specifier)
	if !path.IsAbs(specifier) {
		candidate = path.Join(dir, specifier)
	}
	if f.isFile(candidate) {
		return candidate, true, nil
	}

	rel := path.Clean(specifier)
	for _, root := range f.paths {
		full := path.Join(root, rel)
		if lrt := strings.TrimSuffix(full, path.Ext(full)) + ".lrt"; f.isFile(lrt) {
			f.log.Debug("resolved precompiled file", zap.String("path", lrt))
			return lrt, true, nil
		}
		if f.isFile(full) {
			return full, true, nil
		}
		for _, ext := range f.exts {
			if f.isFile(full + ext) {
				return full + ext, true, nil
			}
		}
	}
	return "", false, nil
}
