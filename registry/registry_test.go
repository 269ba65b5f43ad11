package registry

import (
	"bytes"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/wippyai/js-runtime/bytecode"
)

func container(payload string) []byte {
	return append([]byte("lrt01u"), payload...)
}

func TestModuleName(t *testing.T) {
	tests := []struct {
		rel  string
		want string
	}{
		{"@llrt/std.lrt", "@llrt/std"},
		{"@llrt/std.js", "@llrt/std"},
		{"./node_modules/uuid/index.lrt", "node_modules/uuid/index"},
		{`@aws-sdk\client-s3.lrt`, "@aws-sdk/client-s3"},
		{"lrt-chunk-abc123.lrt", "lrt-chunk-abc123.js"},
		{"lrt-chunk-abc123.js", "lrt-chunk-abc123.js"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			if got := ModuleName(tt.rel); got != tt.want {
				t.Errorf("ModuleName(%q) = %q, want %q", tt.rel, got, tt.want)
			}
		})
	}
}

func TestRegistry_Lookup(t *testing.T) {
	reg := New(map[string][]byte{
		"@llrt/std":           container("std"),
		"@aws-sdk/client-s3":  container("s3"),
		"lrt-chunk-abc.js":    container("chunk"),
		"node_modules/x/main": container("x"),
	})

	if reg.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", reg.Len())
	}

	got, ok := reg.Lookup("@llrt/std")
	if !ok || !bytes.Equal(got, container("std")) {
		t.Errorf("Lookup(@llrt/std) = %q, %v", got, ok)
	}
	if _, ok := reg.Lookup("@llrt/missing"); ok {
		t.Error("Lookup(@llrt/missing) ok = true")
	}
	if !reg.Contains("lrt-chunk-abc.js") {
		t.Error("Contains(lrt-chunk-abc.js) = false")
	}

	names := reg.Names()
	want := []string{"@aws-sdk/client-s3", "@llrt/std", "lrt-chunk-abc.js", "node_modules/x/main"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestRegistry_NilAndEmpty(t *testing.T) {
	var nilReg *Registry
	if nilReg.Len() != 0 || nilReg.Contains("x") || nilReg.Names() != nil {
		t.Error("nil registry should behave as empty")
	}
	if _, ok := Empty().Lookup("x"); ok {
		t.Error("Empty().Lookup ok = true")
	}
}

func TestRegistry_NewCopiesInput(t *testing.T) {
	src := map[string][]byte{"a": container("a")}
	reg := New(src)
	src["a"][6] = 'z'
	got, _ := reg.Lookup("a")
	if string(got) != "lrt01ua" {
		t.Errorf("Lookup(a) = %q, registry should copy input", got)
	}
}

func TestFromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"bundle/@llrt/std.lrt":           {Data: container("std")},
		"bundle/lrt-chunk-42.lrt":        {Data: container("chunk")},
		"bundle/node_modules/x/main.lrt": {Data: container("x")},
		"bundle/README.md":               {Data: []byte("ignored")},
	}

	reg, err := FromFS(fsys, "bundle")
	if err != nil {
		t.Fatalf("FromFS() error = %v", err)
	}
	for _, name := range []string{"@llrt/std", "lrt-chunk-42.js", "node_modules/x/main"} {
		if !reg.Contains(name) {
			t.Errorf("registry missing %q, have %v", name, reg.Names())
		}
	}
	if reg.Len() != 3 {
		t.Errorf("Len() = %d, want 3", reg.Len())
	}
}

func TestFromFS_RejectsInvalidContainer(t *testing.T) {
	fsys := fstest.MapFS{
		"bad.lrt": {Data: []byte("export default 1")},
	}
	_, err := FromFS(fsys, ".")
	if err == nil {
		t.Fatal("FromFS() error = nil, want invalid container")
	}
	if !errors.Is(err, bytecode.ErrInvalidVersion) {
		t.Errorf("FromFS() error = %v, want cause %v", err, bytecode.ErrInvalidVersion)
	}
}

func TestArchive_RoundTrip(t *testing.T) {
	reg := New(map[string][]byte{
		"@llrt/std": container("std"),
		"b":         container("b"),
	})

	var buf bytes.Buffer
	if err := reg.Archive(&buf); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	var again bytes.Buffer
	if err := reg.Archive(&again); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if !bytes.Equal(buf.Bytes(), again.Bytes()) {
		t.Error("Archive() output is not deterministic")
	}

	got, err := Open(&buf)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", got.Len())
	}
	c, ok := got.Lookup("@llrt/std")
	if !ok || !bytes.Equal(c, container("std")) {
		t.Errorf("Lookup(@llrt/std) = %q, %v", c, ok)
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode([]byte{0xff, 0x00}); err == nil {
		t.Error("Decode(garbage) error = nil")
	}

	data, err := archiveEncMode.Marshal(&archive{Version: 99, Format: bytecode.Version})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(data); err == nil {
		t.Error("Decode(version 99) error = nil")
	}

	data, err = archiveEncMode.Marshal(&archive{Version: ArchiveVersion, Format: "lrt00"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(data); err == nil {
		t.Error("Decode(format lrt00) error = nil")
	}
}
