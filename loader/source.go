package loader

import (
	"context"
	stderrors "errors"
	"io/fs"
	"path"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/wippyai/js-runtime/bytecode"
	"github.com/wippyai/js-runtime/engine"
	"github.com/wippyai/js-runtime/errors"
	"github.com/wippyai/js-runtime/interop"
	"github.com/wippyai/js-runtime/registry"
)

// Source loads modules from the registry and the filesystem.
type Source struct {
	engine   engine.Engine
	fs       afero.Fs
	registry *registry.Registry
	codec    *bytecode.Codec
	commonjs engine.CommonJS
	log      *zap.Logger
}

// NewSource creates a source loader. A nil commonjs means CommonJS shims
// carry only a default export.
func NewSource(e engine.Engine, fsys afero.Fs, reg *registry.Registry, codec *bytecode.Codec, commonjs engine.CommonJS, log *zap.Logger) *Source {
	if codec == nil {
		codec = bytecode.NewCodec(nil)
	}
	if log == nil {
		log = Logger()
	}
	return &Source{
		engine:   e,
		fs:       fsys,
		registry: reg,
		codec:    codec,
		commonjs: commonjs,
		log:      log,
	}
}

// FileURL returns the import.meta.url of a module read from p.
func FileURL(p string) string {
	return "file://" + p
}

// Load implements Loader. Missing files decline.
func (s *Source) Load(ctx context.Context, name string) (engine.Module, bool, error) {
	spec := interop.Classify(name)
	s.log.Debug("loading module", zap.String("name", spec.Name), zap.String("path", spec.Path))

	// require() handles JSON and CommonJS itself.
	if !spec.FromCJSImport {
		if strings.HasSuffix(spec.Name, ".json") {
			return s.loadJSON(ctx, spec)
		}
		if spec.IsCJS || strings.HasSuffix(spec.Name, ".cjs") {
			return s.loadCommonJS(ctx, spec)
		}
	}

	if blob, ok := s.registry.Lookup(spec.Path); ok {
		s.log.Debug("loading embedded module", zap.String("name", spec.Path))
		mod, err := s.loadBytecode(ctx, spec.Name, spec.Path, blob)
		return mod, true, err
	}

	if path.Ext(spec.Path) == bytecode.FileExt {
		blob, found, err := s.read(spec.Path)
		if err != nil || !found {
			return nil, found, err
		}
		s.log.Debug("loading binary module", zap.String("path", spec.Path))
		mod, err := s.loadBytecode(ctx, spec.Name, spec.Path, blob)
		return mod, true, err
	}

	if mod, ok, err := s.loadSibling(ctx, spec); ok || err != nil {
		return mod, ok, err
	}

	src, found, err := s.read(spec.Path)
	if err != nil || !found {
		return nil, found, err
	}
	if !spec.FromCJSImport {
		src = interop.StripShebang(src)
	}
	mod, err := s.engine.DeclareModule(ctx, spec.Name, src)
	if err != nil {
		return nil, true, errors.Load(spec.Name, "declare module", err)
	}
	return mod, true, setURL(mod, FileURL(spec.Path))
}

// loadSibling loads the precompiled ".lrt" file next to a source path.
// Decode failures fall back to source, except a version mismatch.
func (s *Source) loadSibling(ctx context.Context, spec interop.Specifier) (engine.Module, bool, error) {
	sibling := strings.TrimSuffix(spec.Path, path.Ext(spec.Path)) + bytecode.FileExt
	blob, found, err := s.read(sibling)
	if err != nil || !found {
		return nil, false, nil
	}

	payload, err := s.codec.Decode(blob)
	if err != nil {
		if stderrors.Is(err, bytecode.ErrInvalidVersion) {
			return nil, true, errors.Load(spec.Name, "bytecode "+sibling, err)
		}
		s.log.Warn("bytecode sibling rejected, loading source",
			zap.String("path", sibling), zap.Error(err))
		return nil, false, nil
	}

	s.log.Debug("loading bytecode sibling", zap.String("path", sibling))
	mod, err := s.engine.LoadBytecode(ctx, spec.Name, payload)
	if err != nil {
		return nil, true, errors.Load(spec.Name, "load bytecode", err)
	}
	return mod, true, setURL(mod, sibling)
}

func (s *Source) loadBytecode(ctx context.Context, name, key string, blob []byte) (engine.Module, error) {
	payload, err := s.codec.Decode(blob)
	if err != nil {
		return nil, errors.Load(name, "bytecode "+key, err)
	}
	mod, err := s.engine.LoadBytecode(ctx, name, payload)
	if err != nil {
		return nil, errors.Load(name, "load bytecode", err)
	}
	return mod, setURL(mod, key)
}

func (s *Source) loadJSON(ctx context.Context, spec interop.Specifier) (engine.Module, bool, error) {
	data, found, err := s.read(spec.Path)
	if err != nil || !found {
		return nil, found, err
	}
	mod, err := s.engine.DeclareModule(ctx, spec.Path, interop.JSON(data))
	if err != nil {
		return nil, true, errors.Load(spec.Path, "declare json module", err)
	}
	return mod, true, setURL(mod, FileURL(spec.Path))
}

func (s *Source) loadCommonJS(ctx context.Context, spec interop.Specifier) (engine.Module, bool, error) {
	var keys []string
	if s.commonjs == nil {
		s.log.Warn("no CommonJS runtime, shim exports default only", zap.String("path", spec.Path))
	} else {
		exp, err := s.commonjs.Require(ctx, interop.CJSImportPrefix+spec.Path)
		if err != nil {
			return nil, true, err
		}
		if exp.Object {
			keys = exp.Keys
		}
	}

	mod, err := s.engine.DeclareModule(ctx, spec.Path, interop.Synthesize(spec.Path, keys))
	if err != nil {
		return nil, true, errors.Load(spec.Path, "declare CommonJS shim", err)
	}
	return mod, true, setURL(mod, FileURL(spec.Path))
}

// read returns found=false for missing files and directories.
func (s *Source) read(p string) ([]byte, bool, error) {
	data, err := afero.ReadFile(s.fs, p)
	if err == nil {
		return data, true, nil
	}
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if fi, serr := s.fs.Stat(p); serr == nil && fi.IsDir() {
		return nil, false, nil
	}
	return nil, false, errors.Load(p, "read module", err)
}

func setURL(mod engine.Module, url string) error {
	if err := mod.SetMeta(engine.MetaURL, url); err != nil {
		return errors.Load(mod.Name(), "set import.meta.url", err)
	}
	return nil
}
