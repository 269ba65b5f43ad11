package resolve

import (
	"errors"
	"testing"

	lrterrors "github.com/wippyai/js-runtime/errors"
	"github.com/wippyai/js-runtime/registry"
)

func TestBuiltin(t *testing.T) {
	b := NewBuiltin("path", "fs", "fs/promises", "module")

	tests := []struct {
		spec string
		want string
		ok   bool
	}{
		{"node:path", "path", true},
		{"path", "path", true},
		{"fs/promises", "fs/promises", true},
		{"node:fs/promises", "fs/promises", true},
		{"__cjs:fs", "fs", true},
		{"fs/", "fs", true},
		{"lodash", "", false},
		{"./path", "", false},
	}
	for _, tt := range tests {
		got, ok, err := b.Resolve("/app/index.js", tt.spec)
		if err != nil {
			t.Fatalf("Resolve(%q) error = %v", tt.spec, err)
		}
		if ok != tt.ok || got != tt.want {
			t.Errorf("Resolve(%q) = %q, %v; want %q, %v", tt.spec, got, ok, tt.want, tt.ok)
		}
	}

	names := b.Names()
	if len(names) != 4 || names[0] != "fs" {
		t.Errorf("Names() = %v", names)
	}
	if !b.Has("node:module") {
		t.Error("Has(node:module) = false")
	}
}

func TestEmbedded(t *testing.T) {
	reg := registry.New(map[string][]byte{
		"@llrt/std":              []byte("lrt01u"),
		"lrt-chunk-1.js":         []byte("lrt01u"),
		"@aws-sdk/client-s3":     []byte("lrt01u"),
		"@aws-sdk/client-s3/cfg": []byte("lrt01u"),
	})
	e := NewEmbedded(reg)

	tests := []struct {
		base string
		spec string
		want string
		ok   bool
	}{
		{"/app/index.js", "@llrt/std", "@llrt/std", true},
		{"@llrt/std", "../lrt-chunk-1.js", "lrt-chunk-1.js", true},
		{"@llrt/std", "../lrt-chunk-1", "lrt-chunk-1.js", true},
		{"@aws-sdk/client-s3/index", "./cfg.js", "@aws-sdk/client-s3/cfg", true},
		{"/app/index.js", "./missing", "", false},
		{"/app/index.js", "lodash", "", false},
	}
	for _, tt := range tests {
		got, ok, err := e.Resolve(tt.base, tt.spec)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if ok != tt.ok || got != tt.want {
			t.Errorf("Resolve(%q, %q) = %q, %v; want %q, %v", tt.base, tt.spec, got, ok, tt.want, tt.ok)
		}
	}

	if _, ok, _ := NewEmbedded(nil).Resolve("", "@llrt/std"); ok {
		t.Error("nil registry should decline")
	}
}

func TestNodeResolver(t *testing.T) {
	n := newTestNode(t, map[string]string{
		"/app/lib/a.js": "",
	})
	r := NewNodeResolver(n)

	got, ok, err := r.Resolve("/app/index.js", "./lib/a")
	if err != nil || !ok || got != "/app/lib/a.js" {
		t.Errorf("Resolve(./lib/a) = %q, %v, %v", got, ok, err)
	}

	got, ok, err = r.Resolve("/app/index.js", "__cjs:/app/lib/a.js")
	if err != nil || !ok || got != "__cjs:/app/lib/a.js" {
		t.Errorf("Resolve(__cjs:) = %q, %v, %v; want passthrough", got, ok, err)
	}

	got, ok, err = r.Resolve("__cjsm:/app/index.js", "./lib/a")
	if err != nil || !ok || got != "/app/lib/a.js" {
		t.Errorf("Resolve() with marked base = %q, %v, %v", got, ok, err)
	}

	_, ok, err = r.Resolve("/app/index.js", "./missing")
	if err != nil || ok {
		t.Errorf("Resolve(missing) = %v, %v; want decline", ok, err)
	}
}

func TestFile(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/app/rel.js":      "",
		"/opt/handler.lrt": "",
		"/opt/handler.js":  "",
		"/task/tool.mjs":   "",
		"/task/raw":        "",
	})
	f := NewFile(fs, "/opt", "/task")

	tests := []struct {
		base string
		spec string
		want string
		ok   bool
	}{
		{"/app/index.js", "./rel.js", "/app/rel.js", true},
		{"/app", "rel.js", "/app/rel.js", true},
		{"/app/index.js", "handler.js", "/opt/handler.lrt", true},
		{"/app/index.js", "tool", "/task/tool.mjs", true},
		{"/app/index.js", "raw", "/task/raw", true},
		{"/app/index.js", "nothing", "", false},
	}
	for _, tt := range tests {
		got, ok, err := f.Resolve(tt.base, tt.spec)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if ok != tt.ok || got != tt.want {
			t.Errorf("Resolve(%q, %q) = %q, %v; want %q, %v", tt.base, tt.spec, got, ok, tt.want, tt.ok)
		}
	}
}

func TestChain(t *testing.T) {
	reg := registry.New(map[string][]byte{"@llrt/std": []byte("lrt01u")})
	fs := memFs(t, map[string]string{
		"/app/lib/a.js":                        "",
		"/app/node_modules/@llrt/std/index.js": "",
		"/app/node_modules/path/index.js":      "",
	})
	n := NewNode(WithFs(fs), WithCwd("/app"), WithHome(""), WithRegistry(reg))
	chain := Chain{
		NewBuiltin("path"),
		NewEmbedded(reg),
		NewNodeResolver(n),
		NewFile(fs, "/opt"),
	}

	tests := []struct {
		name string
		spec string
		want string
	}{
		{"scenario A", "./lib/a", "/app/lib/a.js"},
		{"scenario B builtin beats node_modules", "node:path", "path"},
		{"bare builtin beats node_modules", "path", "path"},
		{"registry beats node_modules", "@llrt/std", "@llrt/std"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := chain.Resolve("/app/index.js", tt.spec)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("exhausted", func(t *testing.T) {
		_, err := chain.Resolve("/app/index.js", "./nope")
		var e *lrterrors.Error
		if !errors.As(err, &e) {
			t.Fatalf("error = %v, want *errors.Error", err)
		}
		if e.Kind != lrterrors.KindNotFound || e.Base != "/app/index.js" || e.Specifier != "./nope" {
			t.Errorf("error = %+v", e)
		}
	})

	t.Run("error aborts", func(t *testing.T) {
		boom := errors.New("boom")
		c := Chain{
			ResolverFunc(func(string, string) (string, bool, error) { return "", false, boom }),
			NewBuiltin("path"),
		}
		if _, err := c.Resolve("", "path"); !errors.Is(err, boom) {
			t.Errorf("error = %v, want %v", err, boom)
		}
	})
}
