package task

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// ShTask runs a literal script fragment.
type ShTask struct {
	Fragment string
	After    []Task
}

// Sh declares a task from a raw fragment. The fragment is subject to normal
// shell expansion; use Cmd when tokens must survive verbatim.
func Sh(fragment string, deps ...Task) *ShTask {
	return &ShTask{Fragment: fragment, After: deps}
}

func (t *ShTask) Name() string         { return Namespace + ".Sh" }
func (t *ShTask) Args() map[string]any { return map[string]any{"fragment": t.Fragment} }
func (t *ShTask) Code() Body           { return Raw(t.Fragment) }
func (t *ShTask) Deps() []Task         { return t.After }

// CmdTask runs a single command with each argument escaped.
type CmdTask struct {
	Argv  []string
	After []Task
}

// Cmd declares a task from one argument vector.
func Cmd(argv ...string) *CmdTask {
	return &CmdTask{Argv: argv}
}

func (t *CmdTask) Name() string         { return Namespace + ".Cmd" }
func (t *CmdTask) Args() map[string]any { return map[string]any{"argv": t.Argv} }
func (t *CmdTask) Code() Body           { return Argv(t.Argv) }
func (t *CmdTask) Deps() []Task         { return t.After }

// WriteFileTask writes Content to Path through a heredoc, then applies Mode
// and Owner when set. Content with NUL or TAB bytes is rejected at compile
// time: TAB collides with the <<- heredoc indentation and NUL cannot cross
// a text pipe.
type WriteFileTask struct {
	Path    string
	Content string
	Mode    string
	Owner   string
	NoMkdir bool
	After   []Task
}

// WriteFile declares a file with the given content.
func WriteFile(path, content string) *WriteFileTask {
	return &WriteFileTask{Path: path, Content: content}
}

func (t *WriteFileTask) Name() string { return Namespace + ".WriteFile" }

func (t *WriteFileTask) Args() map[string]any {
	return map[string]any{
		"path":     t.Path,
		"content":  t.Content,
		"mode":     t.Mode,
		"owner":    t.Owner,
		"no_mkdir": t.NoMkdir,
	}
}

func (t *WriteFileTask) Deps() []Task { return t.After }

func (t *WriteFileTask) Code() Body {
	if strings.ContainsAny(t.Content, "\x00\t") {
		return Body{}
	}
	var vecs [][]string
	if !t.NoMkdir {
		if dir := filepath.Dir(t.Path); dir != "." && dir != ".." && dir != "/" {
			vecs = append(vecs, []string{"mkdir", "-p", dir})
		}
	}
	body := make([]string, 0, 4)
	for _, v := range vecs {
		body = append(body, QuoteAll(v))
	}
	body = append(body, t.create())
	if t.Mode != "" {
		body = append(body, QuoteAll([]string{"chmod", t.Mode, t.Path}))
	}
	if t.Owner != "" {
		body = append(body, QuoteAll([]string{"chown", t.Owner, t.Path}))
	}
	return Raw(strings.Join(body, "\n"))
}

// create renders the heredoc. The delimiter carries a digest of the content
// so no file content can terminate the heredoc early, and the same content
// always renders the same bytes.
func (t *WriteFileTask) create() string {
	if t.Content == "" {
		return QuoteAll([]string{"touch", t.Path})
	}
	sum := sha256.Sum256([]byte(t.Content))
	eof := "EOF//" + hex.EncodeToString(sum[:8])
	text := fmt.Sprintf("cat > %s \\\n<<-'%s'\n%s\n%s", Quote(t.Path), eof, t.Content, eof)
	// Tab-indent the heredoc so <<- strips it back out and the emitter's
	// two-space body indent leaves it untouched.
	return strings.Join(strings.Split(text, "\n"), "\n\t")
}

// AptTask installs a package with apt-get.
type AptTask struct {
	Package string
	After   []Task
}

// Apt declares a Debian/Ubuntu package install.
func Apt(pkg string, deps ...Task) *AptTask {
	return &AptTask{Package: pkg, After: deps}
}

func (t *AptTask) Name() string         { return Namespace + ".Apt" }
func (t *AptTask) Args() map[string]any { return map[string]any{"package": t.Package} }
func (t *AptTask) Code() Body           { return Argv([]string{"apt-get", "install", "-y", t.Package}) }
func (t *AptTask) Deps() []Task         { return t.After }

// TimezoneTask points /etc/localtime at a zoneinfo entry.
type TimezoneTask struct {
	Zone  string
	After []Task
}

// Timezone declares the system timezone. Zone defaults to UTC.
func Timezone(zone string) *TimezoneTask {
	if zone == "" {
		zone = "UTC"
	}
	return &TimezoneTask{Zone: zone}
}

func (t *TimezoneTask) Name() string         { return Namespace + ".Timezone" }
func (t *TimezoneTask) Args() map[string]any { return map[string]any{"zone": t.Zone} }
func (t *TimezoneTask) Deps() []Task         { return t.After }

func (t *TimezoneTask) Code() Body {
	return Argv([]string{"ln", "-nsf", "/usr/share/zoneinfo/" + t.Zone, "/etc/localtime"})
}
