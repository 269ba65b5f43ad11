package resolve

import (
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/wippyai/js-runtime/errors"
)

// Condition names used in exports and imports maps.
const (
	ConditionImport     = "import"
	ConditionRequire    = "require"
	ConditionDefault    = "default"
	ConditionModuleSync = "module-sync"
)

// Platform names selectable as an extra condition.
const (
	PlatformBrowser = "browser"
	PlatformNode    = "node"
)

// Package is a parsed package.json.
type Package struct {
	fields map[string]any
	Path   string
}

// ParsePackage decodes a package.json document. Anything but a JSON object
// is malformed.
func ParsePackage(path string, data []byte) (*Package, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errors.MalformedPackage(path, err)
	}
	if fields == nil {
		return nil, errors.MalformedPackage(path, nil)
	}
	return &Package{Path: path, fields: fields}, nil
}

func (p *Package) str(key string) (string, bool) {
	s, ok := p.fields[key].(string)
	return s, ok && s != ""
}

// Name returns the "name" field.
func (p *Package) Name() string {
	s, _ := p.str("name")
	return s
}

// Type returns the "type" field.
func (p *Package) Type() string {
	s, _ := p.str("type")
	return s
}

// IsModule reports whether the package declares "type": "module".
func (p *Package) IsModule() bool {
	return p.Type() == "module"
}

// Main returns the "main" field.
func (p *Package) Main() (string, bool) {
	return p.str("main")
}

// HasExportsObject reports whether "exports" is an object.
func (p *Package) HasExportsObject() bool {
	_, ok := p.fields["exports"].(map[string]any)
	return ok
}

// Match is the outcome of an exports lookup.
type Match struct {
	// Target is the package-relative path, "./" prefixed.
	Target string
	// Rule names the field that matched, for tracing.
	Rule string
	// CommonJS reports whether the target loads as CommonJS.
	CommonJS bool
}

// ResolveExports applies the exports precedence for the subpath key
// ("." or "./sub") under the given platform. The first rule that yields a
// string wins; when none does the lenient "./index.js" fallback applies.
func (p *Package) ResolveExports(key, platform string, isESM bool) Match {
	cond := ConditionRequire
	if isESM {
		cond = ConditionImport
	}
	m := p.resolveExports(key, cond, platform, isESM)
	m.CommonJS = p.isCommonJS(m, isESM)
	return m
}

func (p *Package) resolveExports(key, cond, platform string, isESM bool) Match {
	switch exports := p.fields["exports"].(type) {
	case string:
		if key == "." {
			return Match{Target: exports, Rule: "exports"}
		}
	case map[string]any:
		if sub, ok := exports[key].(map[string]any); ok {
			if m, ok := resolveSubpath(sub, cond, platform, isESM, ""); ok {
				return m
			}
		} else if s, ok := exports[key].(string); ok {
			return Match{Target: s, Rule: "exports[sub]"}
		}

		if pattern, star, ok := matchPattern(exports, key); ok {
			switch v := exports[pattern].(type) {
			case string:
				return Match{Target: strings.ReplaceAll(v, "*", star), Rule: "exports[pattern]"}
			case map[string]any:
				if m, ok := resolveSubpath(v, cond, platform, isESM, star); ok {
					return m
				}
			}
		}

		if c, ok := exports[cond].(map[string]any); ok {
			if s, ok := c[ConditionDefault].(string); ok {
				return Match{Target: s, Rule: "exports[cond].default"}
			}
		}
		if s, ok := exports[cond].(string); ok {
			return Match{Target: s, Rule: "exports[cond]"}
		}
		if !isESM {
			if s, ok := exports[ConditionDefault].(string); ok {
				return Match{Target: s, Rule: "exports.default"}
			}
		}
	}

	if s, ok := p.str(platform); ok {
		return Match{Target: s, Rule: platform}
	}
	if isESM {
		if s, ok := p.str("module"); ok {
			return Match{Target: s, Rule: "module"}
		}
	}
	if s, ok := p.str("main"); ok {
		return Match{Target: s, Rule: "main"}
	}
	return Match{Target: "./index.js", Rule: "fallback"}
}

// resolveSubpath applies the conditions of a single exports entry. star is
// substituted for "*" in pattern entries.
func resolveSubpath(sub map[string]any, cond, platform string, isESM bool, star string) (Match, bool) {
	expand := func(s string) string {
		if star == "" {
			return s
		}
		return strings.ReplaceAll(s, "*", star)
	}

	if plat, ok := sub[platform].(map[string]any); ok {
		if s, ok := plat[cond].(string); ok {
			return Match{Target: expand(s), Rule: "exports[sub][platform][cond]"}, true
		}
	}
	if c, ok := sub[cond].(map[string]any); ok {
		if s, ok := c[ConditionDefault].(string); ok {
			return Match{Target: expand(s), Rule: "exports[sub][cond].default"}, true
		}
	}
	if s, ok := sub[cond].(string); ok {
		return Match{Target: expand(s), Rule: "exports[sub][cond]"}, true
	}
	if !isESM {
		if s, ok := sub[ConditionDefault].(string); ok {
			return Match{Target: expand(s), Rule: "exports[sub].default"}, true
		}
	}
	if s, ok := sub[platform].(string); ok {
		return Match{Target: expand(s), Rule: "exports[sub][platform]"}, true
	}
	return Match{}, false
}

// matchPattern finds the "*" subpath pattern with the longest prefix that
// matches key.
func matchPattern(m map[string]any, key string) (pattern, star string, ok bool) {
	keys := make([]string, 0, len(m))
	for k := range m {
		if strings.Count(k, "*") == 1 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := strings.IndexByte(keys[i], '*'), strings.IndexByte(keys[j], '*')
		if pi != pj {
			return pi > pj
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		i := strings.IndexByte(k, '*')
		prefix, suffix := k[:i], k[i+1:]
		if len(key) >= len(prefix)+len(suffix) && strings.HasPrefix(key, prefix) && strings.HasSuffix(key, suffix) {
			return k, key[len(prefix) : len(key)-len(suffix)], true
		}
	}
	return "", "", false
}

// isCommonJS decides how a matched target loads. Extensions are
// authoritative; a match through the import condition or the module field is
// ESM; anything else follows the package type.
func (p *Package) isCommonJS(m Match, isESM bool) bool {
	switch {
	case strings.HasSuffix(m.Target, ".cjs"):
		return true
	case strings.HasSuffix(m.Target, ".mjs"):
		return false
	case m.Rule == "module":
		return false
	case isESM && strings.Contains(m.Rule, "[cond]"):
		return false
	}
	return !p.IsModule()
}

// ResolveImports looks up a "#name" specifier in the imports map.
func (p *Package) ResolveImports(name, platform string) (string, bool) {
	imports, ok := p.fields["imports"].(map[string]any)
	if !ok {
		return "", false
	}

	entry, found := imports[name]
	star := ""
	if !found {
		pattern, s, ok := matchPattern(imports, name)
		if !ok {
			return "", false
		}
		entry, star = imports[pattern], s
	}
	expand := func(s string) (string, bool) {
		if star != "" {
			s = strings.ReplaceAll(s, "*", star)
		}
		return s, true
	}

	switch v := entry.(type) {
	case string:
		return expand(v)
	case map[string]any:
		for _, c := range []string{platform, ConditionRequire, ConditionModuleSync, ConditionDefault} {
			if s, ok := v[c].(string); ok {
				return expand(s)
			}
		}
	}
	return "", false
}

func logMalformed(err error) {
	Logger().Debug("ignoring package.json", zap.Error(err))
}
