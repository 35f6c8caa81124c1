// Package manifest compiles declarative YAML task trees into the task
// model. A manifest names tasks; names are how dependencies reference each
// other, while the compiled script still keys everything by content
// identity.
package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/3cpo-dev/shellbake/internal/task"
)

// File is a parsed manifest.
type File struct {
	Locale string `yaml:"locale"`
	Root   string `yaml:"root"`
	Tasks  []Spec `yaml:"tasks"`
}

// Spec declares one task. Exactly one of Run, Argv, Kind or Tasks gives it
// a body: a raw fragment, argument vectors, a library kind, or child tasks
// (making it a wrapper, optionally scoped with Dir or User).
type Spec struct {
	Name  string            `yaml:"name"`
	Run   string            `yaml:"run"`
	Argv  [][]string        `yaml:"argv"`
	Kind  string            `yaml:"kind"`
	With  map[string]string `yaml:"with"`
	Deps  []string          `yaml:"deps"`
	Dir   string            `yaml:"dir"`
	User  string            `yaml:"user"`
	Tasks []Spec            `yaml:"tasks"`
}

// Load parses a manifest file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &f, nil
}

// node is a named manifest task: its own body plus references to the tasks
// it depends on. Wrapper and library-kind specs keep their payload as the
// final dependency, so the payload runs after the declared dependencies and
// the node itself stays a plain reference point for other names.
type node struct {
	name string
	body task.Body
	deps []task.Task
}

func (n *node) Name() string         { return n.name }
func (n *node) Args() map[string]any { return n.body.CanonicalArgs() }
func (n *node) Code() task.Body      { return n.body }
func (n *node) Deps() []task.Task    { return n.deps }

// Build compiles the manifest into a task tree and returns its root.
func (f *File) Build(reg *Registry) (task.Task, error) {
	if reg == nil {
		reg = DefaultRegistry()
	}
	b := &builder{reg: reg, nodes: map[string]*node{}, payload: map[string]task.Task{}}
	if err := b.declare(f.Tasks); err != nil {
		return nil, err
	}
	if err := b.link(f.Tasks); err != nil {
		return nil, err
	}

	rootName := f.Root
	if rootName == "" {
		if len(f.Tasks) != 1 {
			return nil, fmt.Errorf("manifest: root is required when more than one top-level task exists")
		}
		rootName = f.Tasks[0].Name
	}
	root, ok := b.nodes[rootName]
	if !ok {
		return nil, fmt.Errorf("manifest: root task %q not declared", rootName)
	}
	return root, nil
}

type builder struct {
	reg     *Registry
	nodes   map[string]*node
	payload map[string]task.Task
}

// declare creates a node per spec, depth first, leaving dependency slices
// empty. Two passes let later tasks reference earlier ones and vice versa;
// reference cycles surface as compile-time cycle errors, not stack
// overflows here.
func (b *builder) declare(specs []Spec) error {
	for _, s := range specs {
		if s.Name == "" {
			return fmt.Errorf("manifest: every task needs a name")
		}
		if _, dup := b.nodes[s.Name]; dup {
			return fmt.Errorf("manifest: duplicate task name %q", s.Name)
		}
		if err := b.declare(s.Tasks); err != nil {
			return err
		}
		n := &node{name: s.Name}
		payload, err := b.buildPayload(s)
		if err != nil {
			return err
		}
		if payload != nil {
			n.body = task.Raw(": # Do nothing.")
			b.payload[s.Name] = payload
		} else if s.Run != "" {
			n.body = task.Raw(s.Run)
		} else {
			n.body = task.Argv(s.Argv...)
		}
		b.nodes[s.Name] = n
	}
	return nil
}

// buildPayload returns the wrapper or library task behind a spec, nil when
// the spec carries its own body.
func (b *builder) buildPayload(s Spec) (task.Task, error) {
	if len(s.Tasks) > 0 {
		children := make([]task.Task, 0, len(s.Tasks))
		for _, cs := range s.Tasks {
			children = append(children, b.nodes[cs.Name])
		}
		switch {
		case s.Dir != "":
			return task.InDir(s.Dir, children...), nil
		case s.User != "":
			return task.AsUser(s.User, children...), nil
		default:
			return task.Group(children...), nil
		}
	}
	if s.Kind != "" {
		fn, err := b.reg.Get(s.Kind)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", s.Name, err)
		}
		return fn(s)
	}
	if s.Run != "" && len(s.Argv) > 0 {
		return nil, fmt.Errorf("task %q: run and argv are mutually exclusive", s.Name)
	}
	if s.Run == "" && len(s.Argv) == 0 {
		return nil, fmt.Errorf("task %q: needs one of run, argv, kind or tasks", s.Name)
	}
	return nil, nil
}

// link fills dependency slices once every name exists. Declared deps come
// first, the payload last, so dependencies run before the task's own work.
func (b *builder) link(specs []Spec) error {
	for _, s := range specs {
		if err := b.link(s.Tasks); err != nil {
			return err
		}
		n := b.nodes[s.Name]
		for _, ref := range s.Deps {
			dep, ok := b.nodes[ref]
			if !ok {
				return fmt.Errorf("task %q: unknown dependency %q", s.Name, ref)
			}
			n.deps = append(n.deps, dep)
		}
		if p, ok := b.payload[s.Name]; ok {
			n.deps = append(n.deps, p)
		}
	}
	return nil
}
