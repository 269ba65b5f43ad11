package loader

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/wippyai/js-runtime/engine"
	"github.com/wippyai/js-runtime/errors"
)

func TestChain(t *testing.T) {
	ctx := context.Background()
	rec := engine.NewRecorder()
	decline := LoaderFunc(func(context.Context, string) (engine.Module, bool, error) {
		return nil, false, nil
	})
	accept := LoaderFunc(func(ctx context.Context, name string) (engine.Module, bool, error) {
		m, err := rec.DeclareModule(ctx, name, nil)
		return m, true, err
	})
	boom := stderrors.New("boom")
	fail := LoaderFunc(func(context.Context, string) (engine.Module, bool, error) {
		return nil, false, boom
	})

	tests := []struct {
		name    string
		chain   Chain
		wantErr error
	}{
		{"first accepts", Chain{accept, fail}, nil},
		{"decline then accept", Chain{decline, accept}, nil},
		{"error aborts", Chain{decline, fail, accept}, boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.chain.Load(ctx, "m")
			if err != tt.wantErr {
				t.Fatalf("Load() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && m.Name() != "m" {
				t.Errorf("Name() = %q", m.Name())
			}
		})
	}

	if _, err := (Chain{decline}).Load(ctx, "m"); !errors.IsNotFound(err) {
		t.Errorf("exhausted chain error = %v, want not found", err)
	}
}

func TestBuiltins(t *testing.T) {
	ctx := context.Background()
	rec := engine.NewRecorder()
	boom := stderrors.New("boom")
	b := NewBuiltins(rec, map[string]BuiltinModule{
		"events": StubModule,
		"broken": func(context.Context, engine.Engine, string) (engine.Module, error) {
			return nil, boom
		},
	})

	m, ok, err := b.Load(ctx, "node:events")
	if err != nil || !ok {
		t.Fatalf("Load() = %v, %v", ok, err)
	}
	if m.Name() != "events" || string(rec.Get("events").Data()) != "export default {};" {
		t.Errorf("declared %q", m.Name())
	}

	if _, ok, _ := b.Load(ctx, "/app/events.js"); ok {
		t.Error("non-builtin accepted")
	}
	if _, ok, err := b.Load(ctx, "broken"); !ok || !stderrors.Is(err, boom) {
		t.Errorf("Load(broken) = %v, %v", ok, err)
	}
	if names := b.Names(); len(names) != 2 || names[0] != "broken" {
		t.Errorf("Names() = %v", names)
	}
}
