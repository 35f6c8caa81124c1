package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/3cpo-dev/shellbake/internal/compile"
)

func writeManifest(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shellbake.yaml")
	if err := os.WriteFile(path, []byte(text), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndBuild(t *testing.T) {
	path := writeManifest(t, `
locale: en_DK.UTF-8
root: deploy
tasks:
  - name: packages
    kind: apt
    with: {package: nginx}
  - name: greeting
    run: echo hello
    deps: [packages]
  - name: deploy
    dir: /srv/app
    deps: [greeting]
    tasks:
      - name: touch-marker
        argv: [[touch, deployed]]
`)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if f.Locale != "en_DK.UTF-8" {
		t.Errorf("locale = %q", f.Locale)
	}
	root, err := f.Build(DefaultRegistry())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	script, err := compile.Script(root, compile.Options{Locale: f.Locale})
	if err != nil {
		t.Fatalf("Script failed: %v", err)
	}

	for _, want := range []string{
		"function deploy//",
		"function greeting//",
		"function packages//",
		"apt-get install -y nginx",
		"cd -- /srv/app",
		"touch deployed",
		"export LC_ALL=en_DK.UTF-8",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q:\n%s", want, script)
		}
	}

	// Declared deps run before the task's own payload.
	gi := strings.Index(script, "function greeting//")
	di := strings.Index(script, "function deploy//")
	if gi > di {
		t.Error("dependency definition should precede the dependent's")
	}
}

func TestBuildDeterministic(t *testing.T) {
	text := `
root: all
tasks:
  - name: a
    run: echo a
  - name: b
    run: echo b
    deps: [a]
  - name: all
    run: ": # Do nothing."
    deps: [a, b]
`
	path := writeManifest(t, text)
	compileOnce := func() string {
		f, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		root, err := f.Build(nil)
		if err != nil {
			t.Fatal(err)
		}
		s, err := compile.Script(root, compile.Options{})
		if err != nil {
			t.Fatal(err)
		}
		return s
	}
	first := compileOnce()
	for i := 0; i < 3; i++ {
		if compileOnce() != first {
			t.Fatal("manifest compilation must be byte-identical across runs")
		}
	}
}

func TestUnknownDependency(t *testing.T) {
	f := &File{Tasks: []Spec{{Name: "a", Run: "echo a", Deps: []string{"ghost"}}}}
	if _, err := f.Build(nil); err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Errorf("expected unknown dependency error, got %v", err)
	}
}

func TestDuplicateName(t *testing.T) {
	f := &File{Tasks: []Spec{
		{Name: "a", Run: "echo a"},
		{Name: "a", Run: "echo again"},
	}}
	if _, err := f.Build(nil); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected duplicate name error, got %v", err)
	}
}

func TestRootRequired(t *testing.T) {
	f := &File{Tasks: []Spec{
		{Name: "a", Run: "echo a"},
		{Name: "b", Run: "echo b"},
	}}
	if _, err := f.Build(nil); err == nil {
		t.Error("expected error when root is ambiguous")
	}

	single := &File{Tasks: []Spec{{Name: "only", Run: "echo hi"}}}
	root, err := single.Build(nil)
	if err != nil {
		t.Fatalf("single-task manifest should not need an explicit root: %v", err)
	}
	if root.Name() != "only" {
		t.Errorf("root = %q", root.Name())
	}
}

func TestBodyShapeValidation(t *testing.T) {
	f := &File{Tasks: []Spec{{Name: "empty"}}}
	if _, err := f.Build(nil); err == nil {
		t.Error("expected error for a task with no body")
	}

	both := &File{Tasks: []Spec{{Name: "both", Run: "echo", Argv: [][]string{{"echo"}}}}}
	if _, err := both.Build(nil); err == nil {
		t.Error("expected error when run and argv are both set")
	}
}

func TestUnknownKind(t *testing.T) {
	f := &File{Tasks: []Spec{{Name: "x", Kind: "mystery"}}}
	if _, err := f.Build(DefaultRegistry()); err == nil || !strings.Contains(err.Error(), "mystery") {
		t.Errorf("expected unknown kind error, got %v", err)
	}
}

func TestWriteFileKind(t *testing.T) {
	f := &File{Tasks: []Spec{{
		Name: "motd",
		Kind: "write_file",
		With: map[string]string{"path": "/etc/motd", "content": "hi", "mode": "0644"},
	}}}
	root, err := f.Build(DefaultRegistry())
	if err != nil {
		t.Fatal(err)
	}
	script, err := compile.Script(root, compile.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(script, "cat > /etc/motd") || !strings.Contains(script, "chmod 0644 /etc/motd") {
		t.Errorf("write_file kind not wired:\n%s", script)
	}
}

func TestManifestCycle(t *testing.T) {
	f := &File{
		Root: "a",
		Tasks: []Spec{
			{Name: "a", Run: "echo a", Deps: []string{"b"}},
			{Name: "b", Run: "echo b", Deps: []string{"a"}},
		},
	}
	root, err := f.Build(nil)
	if err != nil {
		t.Fatalf("Build should defer cycle detection to the compiler: %v", err)
	}
	if _, err := compile.Script(root, compile.Options{}); err == nil {
		t.Error("expected the compiler to reject the manifest cycle")
	}
}
