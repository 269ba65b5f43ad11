package registry

import (
	"bytes"
	"io/fs"
	"path"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/js-runtime/bytecode"
	"github.com/wippyai/js-runtime/errors"
)

// ChunkPrefix marks bundler chunk artifacts whose keys keep the extension.
const ChunkPrefix = "lrt-chunk-"

// Entry is a single precompiled module.
type Entry struct {
	Name      string
	Container []byte
}

// Registry is an immutable name to container map.
type Registry struct {
	entries []Entry
}

// Empty returns a registry with no entries.
func Empty() *Registry {
	return &Registry{}
}

// New builds a registry from name to container pairs. Containers are copied.
func New(modules map[string][]byte) *Registry {
	entries := make([]Entry, 0, len(modules))
	for name, c := range modules {
		entries = append(entries, Entry{Name: name, Container: bytes.Clone(c)})
	}
	return fromEntries(entries)
}

func fromEntries(entries []Entry) *Registry {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	// last write wins on duplicate names
	out := entries[:0]
	for _, e := range entries {
		if n := len(out); n > 0 && out[n-1].Name == e.Name {
			out[n-1] = e
			continue
		}
		out = append(out, e)
	}
	return &Registry{entries: out}
}

// FromFS builds a registry from every ".lrt" file under dir.
// Files that do not carry a valid container signature are rejected.
func FromFS(fsys fs.FS, dir string) (*Registry, error) {
	var entries []Entry
	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != bytecode.FileExt {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		if _, err := bytecode.ReadHeader(data); err != nil {
			return errors.New(errors.PhaseRegistry, errors.KindInvalidData).
				Name(p).
				Cause(err).
				Detail("not a bytecode container").
				Build()
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, dir), "/")
		if dir == "." {
			rel = p
		}
		entries = append(entries, Entry{Name: ModuleName(rel), Container: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	reg := fromEntries(entries)
	Logger().Debug("registry loaded", zap.String("dir", dir), zap.Int("modules", reg.Len()))
	return reg, nil
}

// ModuleName derives the registry key for a bundle-relative file path.
func ModuleName(rel string) string {
	rel = strings.TrimPrefix(path.Clean(strings.ReplaceAll(rel, "\\", "/")), "./")
	ext := path.Ext(rel)
	if strings.HasPrefix(rel, ChunkPrefix) {
		if ext == bytecode.FileExt {
			return strings.TrimSuffix(rel, ext) + ".js"
		}
		return rel
	}
	return strings.TrimSuffix(rel, ext)
}

func (r *Registry) find(name string) (int, bool) {
	return slices.BinarySearchFunc(r.entries, name, func(e Entry, n string) int {
		return strings.Compare(e.Name, n)
	})
}

// Lookup returns the container registered under name.
func (r *Registry) Lookup(name string) ([]byte, bool) {
	if r == nil {
		return nil, false
	}
	i, ok := r.find(name)
	if !ok {
		return nil, false
	}
	return r.entries[i].Container, true
}

// Contains reports whether name is registered.
func (r *Registry) Contains(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.find(name)
	return ok
}

// Names returns all registered names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Name
	}
	return names
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Entries returns a copy of the entry list.
func (r *Registry) Entries() []Entry {
	if r == nil {
		return nil
	}
	return slices.Clone(r.entries)
}
