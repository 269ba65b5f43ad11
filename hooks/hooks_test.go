package hooks

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
)

func passthrough(tag string, seen *[]string) ResolveHook {
	return func(ctx context.Context, spec string, rc ResolveContext, next NextResolve) (ResolveResult, error) {
		*seen = append(*seen, tag)
		return next(ctx, spec, rc)
	}
}

func TestRunResolve_Empty(t *testing.T) {
	p := New()
	res, tr, err := p.RunResolve(context.Background(), "./a", "/app/index.js")
	if err != nil {
		t.Fatal(err)
	}
	if res.URL != "./a" || res.ShortCircuit {
		t.Errorf("RunResolve() = %+v, want default", res)
	}
	if !tr.ReachedDefault || tr.Visited != 0 {
		t.Errorf("Trace = %+v", tr)
	}
}

func TestRunResolve_Order(t *testing.T) {
	var seen []string
	p := New(WithLogger(zaptest.NewLogger(t)))
	for _, tag := range []string{"a", "b", "c"} {
		if err := p.Register(Hooks{Resolve: passthrough(tag, &seen)}); err != nil {
			t.Fatal(err)
		}
	}

	res, tr, err := p.RunResolve(context.Background(), "x", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.URL != "x" {
		t.Errorf("URL = %q, want x", res.URL)
	}
	if len(seen) != 3 || seen[0] != "a" || seen[1] != "b" || seen[2] != "c" {
		t.Errorf("visit order = %v", seen)
	}
	if tr.Visited != 3 || !tr.ReachedDefault {
		t.Errorf("Trace = %+v", tr)
	}
}

func TestRunResolve_ShortCircuit(t *testing.T) {
	var seen []string
	p := New()
	_ = p.Register(Hooks{Resolve: passthrough("first", &seen)})
	_ = p.Register(Hooks{Resolve: func(ctx context.Context, spec string, rc ResolveContext, next NextResolve) (ResolveResult, error) {
		seen = append(seen, "stopper")
		return ResolveResult{URL: "virtual:" + spec, ShortCircuit: false}, nil
	}})
	_ = p.Register(Hooks{Resolve: passthrough("never", &seen)})

	res, tr, err := p.RunResolve(context.Background(), "cfg", "/app/index.js")
	if err != nil {
		t.Fatal(err)
	}
	if res.URL != "virtual:cfg" || res.ShortCircuit {
		t.Errorf("RunResolve() = %+v, want verbatim hook result", res)
	}
	if tr.ReachedDefault {
		t.Error("default should not run after a short circuit")
	}
	for _, s := range seen {
		if s == "never" {
			t.Error("hook after the short circuit ran")
		}
	}
}

func TestRunResolve_NextCalledTwice(t *testing.T) {
	tests := []struct {
		name        string
		first       string
		second      string
		wantURL     string
		wantDefault bool
	}{
		{"default then short circuit", "x", "virtual", "virtual:virtual", false},
		{"short circuit then default", "virtual", "x", "x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			_ = p.Register(Hooks{Resolve: func(ctx context.Context, spec string, rc ResolveContext, next NextResolve) (ResolveResult, error) {
				if _, err := next(ctx, tt.first, rc); err != nil {
					return ResolveResult{}, err
				}
				return next(ctx, tt.second, rc)
			}})
			_ = p.Register(Hooks{Resolve: func(ctx context.Context, spec string, rc ResolveContext, next NextResolve) (ResolveResult, error) {
				if spec == "virtual" {
					return ResolveResult{URL: "virtual:" + spec, ShortCircuit: true}, nil
				}
				return next(ctx, spec, rc)
			}})

			res, tr, err := p.RunResolve(context.Background(), "entry", "")
			if err != nil {
				t.Fatal(err)
			}
			if res.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", res.URL, tt.wantURL)
			}
			if tr.ReachedDefault != tt.wantDefault {
				t.Errorf("ReachedDefault = %v, want %v", tr.ReachedDefault, tt.wantDefault)
			}
			if tr.Visited != 3 {
				t.Errorf("Visited = %d, want 3", tr.Visited)
			}
		})
	}
}

func TestRunResolve_SkipsLoadOnly(t *testing.T) {
	var seen []string
	p := New()
	_ = p.Register(Hooks{Load: func(ctx context.Context, url string, lc LoadContext, next NextLoad) (LoadResult, error) {
		return next(ctx, url, lc)
	}})
	_ = p.Register(Hooks{Resolve: passthrough("r", &seen)})

	_, tr, err := p.RunResolve(context.Background(), "x", "")
	if err != nil {
		t.Fatal(err)
	}
	if tr.Visited != 1 || len(seen) != 1 {
		t.Errorf("Visited = %d, seen = %v", tr.Visited, seen)
	}
}

func TestRunResolve_ContextAndRewrite(t *testing.T) {
	p := New()
	_ = p.Register(Hooks{Resolve: func(ctx context.Context, spec string, rc ResolveContext, next NextResolve) (ResolveResult, error) {
		if rc.ParentURL != "/app/index.js" {
			t.Errorf("ParentURL = %q", rc.ParentURL)
		}
		return next(ctx, "./rewritten", rc)
	}})

	res, tr, err := p.RunResolve(context.Background(), "./orig", "/app/index.js")
	if err != nil {
		t.Fatal(err)
	}
	if res.URL != "./rewritten" || !tr.ReachedDefault {
		t.Errorf("RunResolve() = %+v, %+v", res, tr)
	}
}

func TestRunResolve_ErrorPropagates(t *testing.T) {
	boom := errors.New("hook failed")
	p := New()
	_ = p.Register(Hooks{Resolve: func(context.Context, string, ResolveContext, NextResolve) (ResolveResult, error) {
		return ResolveResult{}, boom
	}})
	_, _, err := p.RunResolve(context.Background(), "x", "")
	if err != boom {
		t.Errorf("error = %v, want unmodified %v", err, boom)
	}
}

func TestRunResolve_EmptyURL(t *testing.T) {
	p := New()
	_ = p.Register(Hooks{Resolve: func(context.Context, string, ResolveContext, NextResolve) (ResolveResult, error) {
		return ResolveResult{ShortCircuit: true}, nil
	}})
	if _, _, err := p.RunResolve(context.Background(), "x", ""); err == nil {
		t.Error("empty url should fail")
	}
}

func TestRegister_Sealed(t *testing.T) {
	p := New()
	if err := p.Register(Hooks{}); err != nil {
		t.Fatal(err)
	}
	_, _, _ = p.RunResolve(context.Background(), "x", "")
	if err := p.Register(Hooks{}); !errors.Is(err, ErrSealed) {
		t.Errorf("Register() after run error = %v, want %v", err, ErrSealed)
	}
	if p.Len() != 1 {
		t.Errorf("Len() = %d, want 1", p.Len())
	}

	q := New()
	q.Seal()
	if err := q.Register(Hooks{}); !errors.Is(err, ErrSealed) {
		t.Errorf("Register() after Seal error = %v", err)
	}
}

func TestHas(t *testing.T) {
	p := New()
	if p.HasResolve() || p.HasLoad() {
		t.Error("empty pipeline reports hooks")
	}
	_ = p.Register(Hooks{Load: func(ctx context.Context, url string, lc LoadContext, next NextLoad) (LoadResult, error) {
		return next(ctx, url, lc)
	}})
	if p.HasResolve() || !p.HasLoad() {
		t.Errorf("HasResolve() = %v, HasLoad() = %v", p.HasResolve(), p.HasLoad())
	}
}

func TestRunLoad(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		res, tr, err := New().RunLoad(context.Background(), "/app/a.js")
		if err != nil {
			t.Fatal(err)
		}
		if res.URL != "/app/a.js" || res.Source != nil || !tr.ReachedDefault {
			t.Errorf("RunLoad() = %+v, %+v", res, tr)
		}
	})

	t.Run("source short circuit", func(t *testing.T) {
		p := New()
		_ = p.Register(Hooks{Load: func(ctx context.Context, url string, lc LoadContext, next NextLoad) (LoadResult, error) {
			if url == "virtual:cfg" {
				return LoadResult{Source: []byte("export default 1"), ShortCircuit: true}, nil
			}
			return next(ctx, url, lc)
		}})
		_ = p.Register(Hooks{Load: func(context.Context, string, LoadContext, NextLoad) (LoadResult, error) {
			t.Error("second load hook ran")
			return LoadResult{}, nil
		}})

		res, tr, err := p.RunLoad(context.Background(), "virtual:cfg")
		if err != nil {
			t.Fatal(err)
		}
		if string(res.Source) != "export default 1" || !res.ShortCircuit || res.URL != "virtual:cfg" {
			t.Errorf("RunLoad() = %+v", res)
		}
		if tr.ReachedDefault {
			t.Error("default reached")
		}
	})

	t.Run("next called twice", func(t *testing.T) {
		p := New()
		_ = p.Register(Hooks{Load: func(ctx context.Context, url string, lc LoadContext, next NextLoad) (LoadResult, error) {
			if _, err := next(ctx, url, lc); err != nil {
				return LoadResult{}, err
			}
			return next(ctx, "virtual:cfg", lc)
		}})
		_ = p.Register(Hooks{Load: func(ctx context.Context, url string, lc LoadContext, next NextLoad) (LoadResult, error) {
			if url == "virtual:cfg" {
				return LoadResult{URL: url, Source: []byte("{}"), Format: "json", ShortCircuit: true}, nil
			}
			return next(ctx, url, lc)
		}})

		res, tr, err := p.RunLoad(context.Background(), "/a.js")
		if err != nil {
			t.Fatal(err)
		}
		if res.URL != "virtual:cfg" || string(res.Source) != "{}" {
			t.Errorf("RunLoad() = %+v", res)
		}
		if tr.ReachedDefault {
			t.Error("ReachedDefault should follow the last next call")
		}
	})

	t.Run("transform after next", func(t *testing.T) {
		p := New()
		_ = p.Register(Hooks{Load: func(ctx context.Context, url string, lc LoadContext, next NextLoad) (LoadResult, error) {
			r, err := next(ctx, url, lc)
			if err != nil {
				return r, err
			}
			r.Source = []byte("// wrapped")
			return r, nil
		}})
		res, tr, err := p.RunLoad(context.Background(), "/a.js")
		if err != nil {
			t.Fatal(err)
		}
		if string(res.Source) != "// wrapped" || !tr.ReachedDefault {
			t.Errorf("RunLoad() = %+v, %+v", res, tr)
		}
	})
}
