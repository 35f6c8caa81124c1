package manifest

import (
	"fmt"

	"github.com/3cpo-dev/shellbake/internal/task"
)

// BuildFunc constructs a library task from a manifest spec.
type BuildFunc func(s Spec) (task.Task, error)

// Registry maps manifest kinds to task builders.
type Registry struct {
	kinds map[string]BuildFunc
}

func NewRegistry() *Registry {
	return &Registry{kinds: map[string]BuildFunc{}}
}

func (r *Registry) Register(kind string, fn BuildFunc) {
	r.kinds[kind] = fn
}

func (r *Registry) Get(kind string) (BuildFunc, error) {
	fn, ok := r.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("kind not registered: %s", kind)
	}
	return fn, nil
}

// DefaultRegistry returns a registry with the built-in task library kinds.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("apt", func(s Spec) (task.Task, error) {
		pkg := s.With["package"]
		if pkg == "" {
			return nil, fmt.Errorf("task %q: kind apt needs with.package", s.Name)
		}
		return task.Apt(pkg), nil
	})
	r.Register("timezone", func(s Spec) (task.Task, error) {
		return task.Timezone(s.With["zone"]), nil
	})
	r.Register("write_file", func(s Spec) (task.Task, error) {
		path := s.With["path"]
		if path == "" {
			return nil, fmt.Errorf("task %q: kind write_file needs with.path", s.Name)
		}
		t := task.WriteFile(path, s.With["content"])
		t.Mode = s.With["mode"]
		t.Owner = s.With["owner"]
		return t, nil
	})
	return r
}
