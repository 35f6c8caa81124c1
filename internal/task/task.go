// Package task defines the declarative task model: units of shell work with
// dependencies, wrapper composition and a small library of common tasks.
package task

// Namespace prefixes the qualified names of library-provided tasks in
// generated function names.
const Namespace = "shellbake"

// Task is a unit of declared shell work. Implementations must use pointer
// receivers: the compiler tracks tasks by reference while resolving shared
// subtrees.
type Task interface {
	// Name returns the qualified name used in generated function names.
	Name() string
	// Args returns the constructor-level arguments that, together with the
	// identities of dependencies and children, determine the task identity.
	Args() map[string]any
	// Code returns the task body.
	Code() Body
	// Deps returns direct dependencies, invoked before the body runs.
	Deps() []Task
}

// Wrapper is a task whose body is synthesized from stage hooks wrapping an
// ordered list of child tasks. Each wrapper level runs in its own subshell so
// context changes revert when the scope exits.
type Wrapper interface {
	Task
	Children() []Task
	Hooks() StageHooks
}

// StageHooks carries the staged fragments of a wrapper body. Pre runs before
// the children inside the wrapper scope, Post after. ExecFormat, when set,
// is a fmt verb string with a single %s that receives the quoted name of the
// inner function; it replaces the plain inner call so wrappers can route the
// children through another command (sudo, for example). Hooks are plain data
// so they canonicalize into the wrapper identity.
type StageHooks struct {
	Pre        []string
	Post       []string
	ExecFormat string
}

type bodyKind int

const (
	bodyInvalid bodyKind = iota
	bodyRaw
	bodyArgv
)

// Body is the tagged union of task body shapes: a raw script fragment, or an
// ordered sequence of argument vectors whose tokens are escaped individually
// on emission.
type Body struct {
	kind bodyKind
	raw  string
	argv [][]string
}

// Raw returns a body holding a literal script fragment. The fragment is
// dedented and reindented on emission; tab-prefixed lines are left alone to
// keep heredocs intact.
func Raw(text string) Body {
	return Body{kind: bodyRaw, raw: text}
}

// Argv returns a body holding ordered argument vectors. Every token is
// quoted on emission so it reaches the command unmodified.
func Argv(vectors ...[]string) Body {
	return Body{kind: bodyArgv, argv: vectors}
}

// IsZero reports whether the body was never assigned a shape.
func (b Body) IsZero() bool { return b.kind == bodyInvalid }

// IsRaw reports whether the body is a literal fragment.
func (b Body) IsRaw() bool { return b.kind == bodyRaw }

// RawText returns the literal fragment of a raw body.
func (b Body) RawText() string { return b.raw }

// Vectors returns the argument vectors of an argv body.
func (b Body) Vectors() [][]string { return b.argv }

// WellFormed reports whether the body is a raw fragment or a non-empty
// sequence of non-empty argument vectors.
func (b Body) WellFormed() bool {
	switch b.kind {
	case bodyRaw:
		return true
	case bodyArgv:
		if len(b.argv) == 0 {
			return false
		}
		for _, vec := range b.argv {
			if len(vec) == 0 {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// canonical returns the body in a shape the identity engine can serialize.
func (b Body) canonical() any {
	switch b.kind {
	case bodyRaw:
		return map[string]any{"raw": b.raw}
	case bodyArgv:
		return map[string]any{"argv": b.argv}
	default:
		return nil
	}
}

// CanonicalArgs returns the body as identity-engine arguments. Tasks whose
// only constructor argument is their body can return this from Args.
func (b Body) CanonicalArgs() map[string]any {
	return map[string]any{"body": b.canonical()}
}
