package resolve

import (
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/wippyai/js-runtime/errors"
	"github.com/wippyai/js-runtime/interop"
	"github.com/wippyai/js-runtime/registry"
)

// ErrNotFound is returned by the Node algorithm when no candidate matched.
// Resolver chains treat it as a decline.
var ErrNotFound = errors.New(errors.PhaseResolve, errors.KindNotFound).
	Detail("module not found").Build()

// ResolvedPath is a node_modules hit.
type ResolvedPath struct {
	Path string
	// CommonJS is set when package metadata says the path loads as
	// CommonJS.
	CommonJS bool
}

// Name returns the canonical name for the hit. ESM requests for CommonJS
// paths carry the CommonJS-loader marker.
func (r ResolvedPath) Name(isESM bool) string {
	if r.CommonJS && isESM {
		return interop.CJSLoaderPrefix + r.Path
	}
	return r.Path
}

// Node implements the Node.js module resolution algorithm over an afero.Fs.
type Node struct {
	fs       afero.Fs
	registry *registry.Registry
	cache    *PathCache
	log      *zap.Logger
	cwd      string
	home     string
	platform string
	homeSet  bool
}

// NodeOption configures a Node resolver.
type NodeOption func(*Node)

// WithFs sets the filesystem. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) NodeOption {
	return func(n *Node) { n.fs = fs }
}

// WithRegistry sets the artifact registry consulted before the filesystem.
func WithRegistry(r *registry.Registry) NodeOption {
	return func(n *Node) { n.registry = r }
}

// WithPathCache shares a node_modules path cache.
func WithPathCache(c *PathCache) NodeOption {
	return func(n *Node) { n.cache = c }
}

// WithCwd sets the directory relative paths are made absolute against.
func WithCwd(dir string) NodeOption {
	return func(n *Node) { n.cwd = dir }
}

// WithHome sets the home directory searched for global module folders.
// An empty home disables the global folders.
func WithHome(dir string) NodeOption {
	return func(n *Node) {
		n.home = dir
		n.homeSet = true
	}
}

// WithPlatform sets the platform condition (PlatformBrowser or PlatformNode).
func WithPlatform(p string) NodeOption {
	return func(n *Node) { n.platform = p }
}

// WithNodeLogger sets the logger for resolution traces.
func WithNodeLogger(l *zap.Logger) NodeOption {
	return func(n *Node) { n.log = l }
}

// NewNode creates a Node resolver.
func NewNode(opts ...NodeOption) *Node {
	n := &Node{
		platform: PlatformBrowser,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.fs == nil {
		n.fs = afero.NewOsFs()
	}
	if n.cache == nil {
		n.cache = NewPathCache()
	}
	if n.log == nil {
		n.log = Logger()
	}
	if n.cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			n.cwd = wd
		} else {
			n.cwd = "/"
		}
	}
	if !n.homeSet {
		n.home, _ = os.UserHomeDir()
	}
	return n
}

// Fs returns the filesystem the resolver reads.
func (n *Node) Fs() afero.Fs { return n.fs }

// Cwd returns the directory relative entry names resolve against.
func (n *Node) Cwd() string { return n.cwd }

// Platform returns the platform condition.
func (n *Node) Platform() string { return n.platform }

// PathCache returns the node_modules path cache.
func (n *Node) PathCache() *PathCache { return n.cache }

func (n *Node) isFile(p string) bool {
	fi, err := n.fs.Stat(p)
	return err == nil && !fi.IsDir()
}

func (n *Node) isDir(p string) bool {
	fi, err := n.fs.Stat(p)
	return err == nil && fi.IsDir()
}

func (n *Node) exists(p string) bool {
	_, err := n.fs.Stat(p)
	return err == nil
}

func (n *Node) abs(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(n.cwd, p)
}

// readPackage parses p. Unreadable or malformed files are a miss.
func (n *Node) readPackage(p string) (*Package, bool) {
	data, err := afero.ReadFile(n.fs, p)
	if err != nil {
		return nil, false
	}
	pkg, err := ParsePackage(p, data)
	if err != nil {
		logMalformed(err)
		return nil, false
	}
	return pkg, true
}

// RequireResolve resolves x as required from the module at y.
// isESM selects the import condition and marks CommonJS targets of ESM
// requests with the CommonJS-loader marker.
func (n *Node) RequireResolve(x, y string, isESM bool) (string, error) {
	x = strings.TrimPrefix(x, "file://")
	n.log.Debug("require resolve", zap.String("specifier", x), zap.String("base", y))

	if n.registry.Contains(x) {
		n.log.Debug("resolved by registry", zap.String("name", x))
		return x, nil
	}

	// Fast path for entry-style names carrying an extension. Relative
	// specifiers are resolved against y below, never against cwd.
	supported := IsSupportedExt(path.Ext(x)) && !isRelative(x)
	if supported && n.isFile(n.abs(x)) {
		return n.abs(x), nil
	}

	normalized := path.Clean(x)
	if n.registry.Contains(normalized) {
		n.log.Debug("resolved by registry", zap.String("name", normalized))
		return normalized, nil
	}

	if path.IsAbs(x) {
		y = "/"
	}

	var dirY string
	if n.isDir(y) {
		dirY = n.abs(y)
	} else {
		dirY = n.abs(path.Dir(y))
	}

	if isRelative(x) || path.IsAbs(x) {
		yx := x
		if !path.IsAbs(x) {
			yx = path.Join(dirY, x)
		}
		if p, ok := n.loadAsFile(yx); ok {
			n.log.Debug("resolved as file", zap.String("path", p))
			return n.abs(p), nil
		}
		if p, ok := n.loadAsDirectory(yx); ok {
			n.log.Debug("resolved as directory", zap.String("path", p))
			return n.abs(p), nil
		}
		return "", errors.Unresolved(y, x)
	}

	if strings.HasPrefix(x, "#") {
		if p, ok := n.loadPackageImports(x, dirY); ok {
			n.log.Debug("resolved by package imports", zap.String("path", p))
			return p, nil
		}
	}

	if r, ok := n.loadPackageSelf(x, dirY, isESM); ok {
		n.log.Debug("resolved by package self reference", zap.String("path", r.Path))
		return r.Name(isESM), nil
	}

	if r, err := n.LoadNodeModules(x, dirY, isESM); err == nil {
		n.log.Debug("resolved by node_modules", zap.String("path", r.Path), zap.Bool("cjs", r.CommonJS))
		return r.Name(isESM), nil
	}

	if p, ok := n.loadAsFile(n.abs(x)); ok {
		return p, nil
	}

	return "", errors.Unresolved(y, x)
}

// loadAsFile tries x, then x with each supported extension, then x.json.
func (n *Node) loadAsFile(x string) (string, bool) {
	if n.isFile(x) {
		return x, true
	}
	for _, ext := range SupportedExtensions {
		if f := x + ext; n.isFile(f) {
			return f, true
		}
	}
	if f := x + ".json"; n.isFile(f) {
		return f, true
	}
	return "", false
}

func (n *Node) loadIndex(x string) (string, bool) {
	return n.loadAsFile(joinPath(x, "index"))
}

// loadAsDirectory follows package.json "main", then the index files.
// A main that names nothing stops the search for this directory.
func (n *Node) loadAsDirectory(x string) (string, bool) {
	if pj := joinPath(x, "package.json"); n.isFile(pj) {
		pkg, ok := n.readPackage(pj)
		if !ok {
			return "", false
		}
		if main, ok := pkg.Main(); ok {
			m := joinPath(x, main)
			if p, ok := n.loadAsFile(m); ok {
				return p, true
			}
			if p, ok := n.loadIndex(m); ok {
				return p, true
			}
			return "", false
		}
	}
	return n.loadIndex(x)
}

// NodeModulesPaths lists the existing node_modules directories searched from
// start, nearest first, followed by the global folders under home.
func (n *Node) NodeModulesPaths(start string) []string {
	return n.cache.Get(start, n.nodeModulesPaths)
}

func (n *Node) nodeModulesPaths(start string) []string {
	var dirs []string
	for dir := path.Clean(start); ; dir = path.Dir(dir) {
		if base := path.Base(dir); dir != "/" && dir != "." && base != "node_modules" {
			if nm := joinPath(dir, "node_modules"); n.isDir(nm) {
				dirs = append(dirs, nm)
			}
		}
		if dir == "/" || dir == "." || path.Dir(dir) == dir {
			break
		}
	}
	if n.home != "" {
		for _, g := range []string{".node_modules", ".node_libraries"} {
			if p := joinPath(n.home, g); n.isDir(p) {
				dirs = append(dirs, p)
			}
		}
	}
	return dirs
}

// LoadNodeModules searches the node_modules directories above start for x.
// It returns ErrNotFound when no directory yields a match.
func (n *Node) LoadNodeModules(x, start string, isESM bool) (ResolvedPath, error) {
	for _, dir := range n.NodeModulesPaths(start) {
		if r, err := n.LoadPackageExports(x, dir, isESM); err == nil {
			return r, nil
		}
		dx := joinPath(dir, x)
		if p, ok := n.loadAsFile(dx); ok {
			return ResolvedPath{Path: n.abs(p)}, nil
		}
		if p, ok := n.loadAsDirectory(dx); ok {
			return ResolvedPath{Path: n.abs(p)}, nil
		}
	}
	return ResolvedPath{}, errors.New(errors.PhaseResolve, errors.KindNotFound).
		Specifier(x).
		Base(start).
		Detail("not found in node_modules").
		Build()
}

// LoadPackageExports resolves x against the package it names inside dir.
//
// x is split into a package scope and a subpath, growing the subpath one
// segment at a time until dir/scope/package.json exists. When no split
// matches, the whole of x is tried as the scope with subpath ".". A direct
// file for the subpath wins over the exports map; ".mjs" is returned
// immediately as ESM.
func (n *Node) LoadPackageExports(x, dir string, isESM bool) (ResolvedPath, error) {
	notFound := func() (ResolvedPath, error) {
		return ResolvedPath{}, errors.New(errors.PhaseResolve, errors.KindNotFound).
			Specifier(x).
			Base(dir).
			Detail("no package exports").
			Build()
	}

	sub, scope, last := splitPackage(x, 1)
	pj := joinPath(dir, scope, "package.json")
	found := n.exists(pj)
	for k := 2; !found && !last; k++ {
		sub, scope, last = splitPackage(x, k)
		pj = joinPath(dir, scope, "package.json")
		found = n.exists(pj)
	}

	var direct string
	if !found {
		if sub == "." {
			return notFound()
		}
		scope, sub = x, "."
		pj = joinPath(dir, scope, "package.json")
		if !n.exists(pj) {
			return notFound()
		}
	} else {
		base := joinPath(dir, scope)
		if trimmed := strings.TrimLeft(sub, "."); trimmed != "" {
			base = base + "/" + strings.TrimPrefix(trimmed, "/")
		}
		for _, ext := range JSExtensions {
			if f := base + ext; n.exists(f) {
				if ext == ".mjs" {
					return ResolvedPath{Path: n.abs(f)}, nil
				}
				direct = f
				break
			}
		}
	}

	pkg, ok := n.readPackage(pj)
	if !ok {
		return notFound()
	}

	if direct != "" {
		return ResolvedPath{Path: n.abs(direct), CommonJS: !pkg.IsModule()}, nil
	}

	m := pkg.ResolveExports(subpathKey(sub), n.platform, isESM)
	n.log.Debug("package exports",
		zap.String("package", pj),
		zap.String("subpath", subpathKey(sub)),
		zap.String("rule", m.Rule),
		zap.String("target", m.Target))
	target := n.correctExtensions(joinPath(dir, scope, m.Target))
	return ResolvedPath{Path: n.abs(target), CommonJS: m.CommonJS}, nil
}

// loadPackageSelf resolves x against the closest package whose name is a
// prefix of x and which declares an exports map.
func (n *Node) loadPackageSelf(x, dir string, isESM bool) (ResolvedPath, bool) {
	pj, ok := n.closestPackageScope(dir)
	if !ok {
		return ResolvedPath{}, false
	}
	pkg, ok := n.readPackage(pj)
	if !ok || !pkg.HasExportsObject() || pkg.Name() == "" {
		return ResolvedPath{}, false
	}

	for k := 1; ; k++ {
		sub, scope, last := splitPackage(x, k)
		if pkg.Name() == scope {
			m := pkg.ResolveExports(subpathKey(sub), n.platform, isESM)
			target := n.correctExtensions(joinPath(path.Dir(pj), m.Target))
			return ResolvedPath{Path: n.abs(target), CommonJS: m.CommonJS}, true
		}
		if last {
			return ResolvedPath{}, false
		}
	}
}

// loadPackageImports resolves a "#name" specifier through the imports map of
// the closest package.
func (n *Node) loadPackageImports(x, dir string) (string, bool) {
	pj, ok := n.closestPackageScope(dir)
	if !ok {
		return "", false
	}
	pkg, ok := n.readPackage(pj)
	if !ok {
		return "", false
	}
	target, ok := pkg.ResolveImports(x, n.platform)
	if !ok {
		return "", false
	}
	return n.abs(n.correctExtensions(joinPath(path.Dir(pj), target))), true
}

// closestPackageScope walks up from dir to the nearest package.json.
func (n *Node) closestPackageScope(dir string) (string, bool) {
	for d := path.Clean(dir); ; d = path.Dir(d) {
		if pj := joinPath(d, "package.json"); n.exists(pj) {
			return pj, true
		}
		if d == "/" || d == "." {
			return "", false
		}
	}
}

// correctExtensions completes an export target that names a directory or
// omits its extension.
func (n *Node) correctExtensions(x string) string {
	if n.isFile(x) {
		return x
	}
	base := x
	if n.isDir(x) {
		base = joinPath(x, "index")
	}
	for _, ext := range JSExtensions {
		if f := base + ext; n.isFile(f) {
			return f
		}
	}
	return x
}
