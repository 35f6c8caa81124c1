package task

import "fmt"

// wrap is the common shape of library wrappers: stage hooks around an
// ordered child list. Identity folds in the hook data and child identities.
type wrap struct {
	name     string
	args     map[string]any
	hooks    StageHooks
	children []Task
}

func (w *wrap) Name() string         { return w.name }
func (w *wrap) Args() map[string]any { return w.args }
func (w *wrap) Code() Body           { return Body{} }
func (w *wrap) Deps() []Task         { return nil }
func (w *wrap) Children() []Task     { return w.children }
func (w *wrap) Hooks() StageHooks    { return w.hooks }

// Group runs its children in order inside a shared subshell. It alters no
// context itself; it exists to scope whatever the children change.
func Group(children ...Task) Wrapper {
	return &wrap{
		name:     Namespace + ".Group",
		args:     map[string]any{},
		children: children,
	}
}

// InDir creates dir if needed and runs its children inside it. The directory
// change lives in the wrapper subshell, so it reverts when the scope exits.
func InDir(dir string, children ...Task) Wrapper {
	return &wrap{
		name: Namespace + ".InDir",
		args: map[string]any{"dir": dir},
		hooks: StageHooks{
			Pre: []string{
				"mkdir -p -- " + Quote(dir),
				"cd -- " + Quote(dir),
			},
		},
		children: children,
	}
}

// AsUser runs its children as another user. The inner stage is re-invoked
// through sudo with the script's function table replayed via declare -pf, so
// child functions exist in the elevated shell. Guards set there do not
// propagate back; the same shell rule applies to any subshell scope.
func AsUser(user string, children ...Task) Wrapper {
	return &wrap{
		name: Namespace + ".AsUser",
		args: map[string]any{"user": user},
		hooks: StageHooks{
			ExecFormat: fmt.Sprintf(
				`sudo -u %s bash -o errexit -o nounset -o pipefail -c "$(declare -pf); %%s"`,
				Quote(user)),
		},
		children: children,
	}
}
