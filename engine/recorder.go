package engine

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/js-runtime/errors"
)

// Kind records how a module was declared.
type Kind int

const (
	KindSource Kind = iota
	KindBytecode
)

func (k Kind) String() string {
	if k == KindBytecode {
		return "bytecode"
	}
	return "source"
}

// RecordedModule is a Module stored by a Recorder.
type RecordedModule struct {
	name string
	kind Kind
	data []byte

	mu   sync.Mutex
	meta map[string]any
}

// Name returns the module name.
func (m *RecordedModule) Name() string { return m.name }

// Kind returns how the module was declared.
func (m *RecordedModule) Kind() Kind { return m.kind }

// Data returns the declared source or bytecode payload.
func (m *RecordedModule) Data() []byte { return m.data }

// SetMeta stores an import.meta entry.
func (m *RecordedModule) SetMeta(key string, value any) error {
	if key == "" {
		return errors.InvalidInput(errors.PhaseLoad, "empty import.meta key")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.meta == nil {
		m.meta = make(map[string]any)
	}
	m.meta[key] = value
	return nil
}

// Meta returns an import.meta entry, or nil.
func (m *RecordedModule) Meta(key string) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta[key]
}

// URL returns the import.meta.url string, or "".
func (m *RecordedModule) URL() string {
	s, _ := m.Meta(MetaURL).(string)
	return s
}

// Recorder is an in-memory Engine. Declaring a name twice replaces the
// earlier module.
type Recorder struct {
	log *zap.Logger

	mu      sync.Mutex
	modules map[string]*RecordedModule
	order   []string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		log:     Logger(),
		modules: make(map[string]*RecordedModule),
	}
}

// DeclareModule records a source module.
func (r *Recorder) DeclareModule(ctx context.Context, name string, source []byte) (Module, error) {
	return r.record(ctx, name, KindSource, source)
}

// LoadBytecode records a bytecode module.
func (r *Recorder) LoadBytecode(ctx context.Context, name string, payload []byte) (Module, error) {
	return r.record(ctx, name, KindBytecode, payload)
}

func (r *Recorder) record(ctx context.Context, name string, kind Kind, data []byte) (Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.InvalidInput(errors.PhaseLoad, "empty module name")
	}

	m := &RecordedModule{name: name, kind: kind, data: slices.Clone(data)}

	r.mu.Lock()
	if _, ok := r.modules[name]; !ok {
		r.order = append(r.order, name)
	}
	r.modules[name] = m
	r.mu.Unlock()

	r.log.Debug("module declared",
		zap.String("name", name),
		zap.Stringer("kind", kind),
		zap.Int("size", len(data)))
	return m, nil
}

// Get returns the module declared under name, or nil.
func (r *Recorder) Get(name string) *RecordedModule {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modules[name]
}

// Names returns declared module names in first-declaration order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Len returns the number of declared modules.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.modules)
}
