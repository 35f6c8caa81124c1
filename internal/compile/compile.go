package compile

import (
	"github.com/3cpo-dev/shellbake/internal/task"
)

// Script compiles the closure of root into a complete shell script. It is a
// pure function of the tree: the same input yields byte-identical text, and
// concurrent calls share nothing. On error no partial script is returned.
func Script(root task.Task, opts Options) (string, error) {
	plan, err := Resolve(root)
	if err != nil {
		return "", err
	}
	return Emit(plan, opts), nil
}
