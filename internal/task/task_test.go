package task

import (
	"strings"
	"testing"
)

func TestBodyWellFormed(t *testing.T) {
	if (Body{}).WellFormed() {
		t.Error("zero body should not be well-formed")
	}
	if !Raw("echo hi").WellFormed() {
		t.Error("raw body should be well-formed")
	}
	if !Raw("").WellFormed() {
		t.Error("empty raw body is still a fragment")
	}
	if !Argv([]string{"echo", "hi"}).WellFormed() {
		t.Error("argv body should be well-formed")
	}
	if Argv().WellFormed() {
		t.Error("argv body with no vectors should not be well-formed")
	}
	if Argv([]string{}).WellFormed() {
		t.Error("argv body with an empty vector should not be well-formed")
	}
}

func TestAptCode(t *testing.T) {
	body := Apt("nginx").Code()
	vecs := body.Vectors()
	if len(vecs) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(vecs))
	}
	want := "apt-get install -y nginx"
	if got := QuoteAll(vecs[0]); got != want {
		t.Errorf("apt line = %q, want %q", got, want)
	}
}

func TestWriteFileHeredoc(t *testing.T) {
	wf := WriteFile("/etc/motd", "hello\nworld")
	wf.Mode = "0644"
	body := wf.Code()
	if !body.IsRaw() {
		t.Fatal("write_file body should be a raw fragment")
	}
	text := body.RawText()
	if !strings.Contains(text, "mkdir -p /etc") {
		t.Errorf("missing mkdir: %q", text)
	}
	if !strings.Contains(text, "cat > /etc/motd") {
		t.Errorf("missing cat redirect: %q", text)
	}
	if !strings.Contains(text, "chmod 0644 /etc/motd") {
		t.Errorf("missing chmod: %q", text)
	}
	// The delimiter is content-derived: same content, same bytes.
	again := WriteFile("/etc/motd", "hello\nworld")
	again.Mode = "0644"
	if again.Code().RawText() != text {
		t.Error("write_file rendering is not deterministic")
	}
	// Heredoc lines after the first are tab-prefixed for <<-.
	lines := strings.Split(text, "\n")
	var sawEOF bool
	for _, line := range lines[1:] {
		if strings.HasPrefix(line, "\tEOF//") {
			sawEOF = true
		}
	}
	if !sawEOF {
		t.Errorf("missing tab-prefixed heredoc delimiter: %q", text)
	}
}

func TestWriteFileRejectsTabs(t *testing.T) {
	wf := WriteFile("/tmp/x", "a\tb")
	if !wf.Code().IsZero() {
		t.Error("tab content should yield an invalid body")
	}
}

func TestWriteFileEmptyContent(t *testing.T) {
	wf := WriteFile("/tmp/x", "")
	if !strings.Contains(wf.Code().RawText(), "touch /tmp/x") {
		t.Errorf("empty content should touch: %q", wf.Code().RawText())
	}
}

func TestWrapperShapes(t *testing.T) {
	inner := Cmd("touch", "x")
	w := InDir("a dir", inner)
	hooks := w.Hooks()
	if len(hooks.Pre) != 2 {
		t.Fatalf("expected 2 pre lines, got %d", len(hooks.Pre))
	}
	if hooks.Pre[0] != "mkdir -p -- 'a dir'" {
		t.Errorf("pre[0] = %q", hooks.Pre[0])
	}
	if hooks.Pre[1] != "cd -- 'a dir'" {
		t.Errorf("pre[1] = %q", hooks.Pre[1])
	}
	if len(w.Children()) != 1 || w.Children()[0] != Task(inner) {
		t.Error("children not preserved")
	}

	u := AsUser("deploy")
	if !strings.Contains(u.Hooks().ExecFormat, "sudo -u deploy") {
		t.Errorf("exec format = %q", u.Hooks().ExecFormat)
	}
	if !strings.Contains(u.Hooks().ExecFormat, "%s") {
		t.Errorf("exec format must keep the inner verb: %q", u.Hooks().ExecFormat)
	}

	g := Group(inner, inner)
	if len(g.Children()) != 2 {
		t.Error("group children not preserved")
	}
	if g.Hooks().ExecFormat != "" || len(g.Hooks().Pre) != 0 {
		t.Error("group should not alter context")
	}
}
