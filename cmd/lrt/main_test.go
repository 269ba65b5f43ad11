package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pelletier/go-toml/v2"

	"github.com/wippyai/js-runtime/bytecode"
	"github.com/wippyai/js-runtime/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(newApp())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.js"), "import './lib/util.js';")
	writeFile(t, filepath.Join(dir, "lib", "util.js"), "export {};")

	out, err := execute(t, "resolve", "--cwd", dir, "./main.js")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out); got != filepath.Join(dir, "main.js") {
		t.Errorf("resolve = %q", got)
	}

	out, err = execute(t, "resolve", "--cwd", dir, "./lib/util", "node:path")
	if err != nil {
		t.Fatal(err)
	}
	want := "./lib/util\t" + filepath.Join(dir, "lib", "util.js") + "\nnode:path\tpath\n"
	if out != want {
		t.Errorf("resolve =\n%s\nwant\n%s", out, want)
	}

	if _, err := execute(t, "resolve", "--cwd", dir, "./missing.js"); err == nil {
		t.Error("missing module should fail")
	}
	if _, err := execute(t, "resolve", "--cwd", dir, "--platform", "deno", "./main.js"); err == nil {
		t.Error("unknown platform should fail")
	}
}

func TestLoadCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.js"), "#!/usr/bin/env lrt\nexport default 1;")

	out, err := execute(t, "load", "--cwd", dir, "main.js")
	if err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, "main.js")
	if !strings.Contains(out, "source") || !strings.Contains(out, "file://"+p) {
		t.Errorf("load output = %q", out)
	}

	if _, err := execute(t, "load", "--cwd", dir); err == nil {
		t.Error("load without an entry should fail")
	}
}

func TestPackAndInspect(t *testing.T) {
	dir := t.TempDir()
	payload := "export default 42;"
	in := filepath.Join(dir, "src", "a.js")
	writeFile(t, in, payload)
	outDir := filepath.Join(dir, "build")

	out, err := execute(t, "pack", "--cwd", dir, in, "-o", outDir)
	if err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(outDir, "a.lrt")
	if strings.TrimSpace(out) != dst {
		t.Errorf("pack output = %q", out)
	}
	blob, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := bytecode.NewCodec(nil).Decode(blob)
	if err != nil {
		t.Fatal(err)
	}
	if string(decoded) != payload {
		t.Errorf("decoded = %q", decoded)
	}

	out, err = execute(t, "inspect", "--cwd", dir, dst)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"compressed: true", fmt.Sprintf("declared:   %d", len(payload)), fmt.Sprintf("decoded:    %d", len(payload))} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output missing %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, "pack", "--cwd", dir, "--raw", in); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "src", "a.lrt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != bytecode.Version+"u"+payload {
		t.Errorf("raw container = %q", raw)
	}

	writeFile(t, filepath.Join(dir, "junk.lrt"), "lrt02u")
	if _, err := execute(t, "inspect", "--cwd", dir, filepath.Join(dir, "junk.lrt")); err == nil {
		t.Error("inspect of a bad version should fail")
	}
}

func TestPackExecutable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.js"), "export default 'app';")
	writeFile(t, filepath.Join(dir, "image"), "RUNTIME-IMAGE")
	app := filepath.Join(dir, "app")

	if _, err := execute(t, "pack", "--cwd", dir, filepath.Join(dir, "main.js"), "--exe", filepath.Join(dir, "image"), "-o", app); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "inspect", "--cwd", dir, app)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "executable: 13 byte image") {
		t.Errorf("inspect output = %q", out)
	}

	out, err = execute(t, "load", "--cwd", dir, "--exe", app)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "bytecode") || !strings.Contains(out, "__main") {
		t.Errorf("load output = %q", out)
	}

	if _, err := execute(t, "pack", "--cwd", dir, "a.js", "b.js", "--exe", "image", "-o", app); err == nil {
		t.Error("--exe with two payloads should fail")
	}
}

func TestRegistryCommands(t *testing.T) {
	dir := t.TempDir()
	bundle := filepath.Join(dir, "bundle")
	writeFile(t, filepath.Join(bundle, "lib", "a.js"), "export const a = 1;")
	blob, err := bytecode.NewCodec(nil).Encode([]byte("export const b = 2;"), false)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(bundle, "b.lrt"), string(blob))
	archive := filepath.Join(dir, "modules.cbor")

	out, err := execute(t, "registry", "build", "--cwd", dir, bundle, "--sources", "-o", archive)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "2 modules") {
		t.Errorf("build output = %q", out)
	}

	out, err = execute(t, "registry", "list", archive)
	if err != nil {
		t.Fatal(err)
	}
	want := fmt.Sprintf("%-4s %8d  %s\n", "raw", len(blob), "b")
	if !strings.HasPrefix(out, want) || !strings.Contains(out, "zstd") || !strings.Contains(out, "lib/a") {
		t.Errorf("list output = %q", out)
	}

	out, err = execute(t, "registry", "list", bundle)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != strings.TrimSpace(want) {
		t.Errorf("list of a directory = %q", out)
	}

	writeFile(t, filepath.Join(dir, config.FileName), fmt.Sprintf("[registry]\narchive = %q\n", archive))
	out, err = execute(t, "resolve", "--cwd", dir, "lib/a")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "lib/a" {
		t.Errorf("resolve = %q", out)
	}
	out, err = execute(t, "load", "--cwd", dir, "lib/a")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "bytecode") || !strings.Contains(out, "lib/a") {
		t.Errorf("load output = %q", out)
	}
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "config", "path", "--cwd", dir)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "(none)" {
		t.Errorf("config path = %q", out)
	}

	file := filepath.Join(dir, config.FileName)
	writeFile(t, file, "search_paths = [\"/srv\"]\n")
	out, err = execute(t, "config", "show", "--cwd", dir, "--platform", "node")
	if err != nil {
		t.Fatal(err)
	}
	var cfg config.Config
	if err := toml.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("config show is not TOML: %v\n%s", err, out)
	}
	if cfg.Platform != "node" || cfg.Cwd != dir || len(cfg.SearchPaths) != 1 || cfg.SearchPaths[0] != "/srv" {
		t.Errorf("config = %+v", cfg)
	}

	out, err = execute(t, "config", "path", "--cwd", dir)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != file {
		t.Errorf("config path = %q", out)
	}

	if _, err := execute(t, "config", "show", "--config", filepath.Join(dir, "absent.toml")); err == nil {
		t.Error("missing --config file should fail")
	}
}

func TestExploreModel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.js"), "export default 1;")

	m := newExploreModel(context.Background(), &app{fs: newApp().fs, cwd: dir})
	m.Update(m.startSession())
	if m.err != nil {
		t.Fatal(m.err)
	}
	if len(m.names) == 0 || m.names[0] != "assert" {
		t.Fatalf("names = %v", m.names)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter should load the selected module")
	}
	m.Update(cmd())
	if m.state != stateShowResult || m.err != nil {
		t.Fatalf("state = %v, err = %v", m.state, m.err)
	}
	if m.result.name != "assert" || m.result.kind != "source" {
		t.Errorf("result = %+v", m.result)
	}
	if !strings.Contains(m.View(), "assert") {
		t.Error("view should show the loaded module")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
	if m.state != stateInputSpecifier {
		t.Fatalf("state = %v", m.state)
	}
	m.inputs[0].SetValue("./main.js")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m.Update(cmd())
	if m.err != nil {
		t.Fatal(m.err)
	}
	if want := filepath.Join(dir, "main.js"); m.result.name != want || m.result.url != "file://"+want {
		t.Errorf("result = %+v", m.result)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
	m.inputs[0].SetValue("./nope.js")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m.Update(cmd())
	if m.err == nil || m.state != stateShowResult {
		t.Error("unresolvable specifier should show an error")
	}
}
