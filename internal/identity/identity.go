// Package identity computes stable, content-derived identifiers for tasks.
//
// The identity of a task is a pure function of its qualified name, its
// canonicalized constructor arguments, and the identities of its
// dependencies and children. Nothing about allocation order or memory
// addresses leaks into it, so structurally equal tasks built independently
// hash identically and collapse to one emitted definition.
//
// Canonical encoding: every value is framed as a one-byte type tag followed
// by an 8-byte big-endian length and the payload. Map keys are sorted;
// sequences keep declared order; nested tasks contribute their identity
// string, never their structure, so shared subtrees fold in by name.
package identity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/3cpo-dev/shellbake/internal/task"
)

// HexLen is the truncated hexadecimal length of every identity.
const HexLen = 16

var (
	// ErrCycle marks a dependency/child relation that loops back on itself.
	ErrCycle = errors.New("task cycle detected")
	// ErrNonCanonicalizable marks a constructor argument with no
	// deterministic serial form.
	ErrNonCanonicalizable = errors.New("argument cannot be canonicalized")
)

// CycleError reports the participant chain of a cycle, in traversal order
// from the first repeated task back to itself.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCycle, strings.Join(e.Chain, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// ArgError names the task and argument that defeated canonicalization.
type ArgError struct {
	Task string
	Arg  string
	Why  string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("%v: task %s, argument %q: %s", ErrNonCanonicalizable, e.Task, e.Arg, e.Why)
}

func (e *ArgError) Unwrap() error { return ErrNonCanonicalizable }

// Engine computes and memoizes task identities. Each compilation uses its
// own Engine; there is no ambient state. Engines are not safe for
// concurrent use, but independent Engines are.
type Engine struct {
	memo   map[task.Task]string
	onPath map[task.Task]bool
	path   []task.Task
}

func NewEngine() *Engine {
	return &Engine{
		memo:   map[task.Task]string{},
		onPath: map[task.Task]bool{},
	}
}

// Identity returns the identity of t, computing the identities of its
// dependency/child closure along the way. A task revisited while still on
// the active traversal path is a cycle.
func (e *Engine) Identity(t task.Task) (string, error) {
	if err := referenceable(t); err != nil {
		return "", err
	}
	if id, ok := e.memo[t]; ok {
		return id, nil
	}
	if e.onPath[t] {
		return "", &CycleError{Chain: e.chainFrom(t)}
	}
	e.onPath[t] = true
	e.path = append(e.path, t)
	defer func() {
		delete(e.onPath, t)
		e.path = e.path[:len(e.path)-1]
	}()

	depIDs, err := e.identities(t.Deps())
	if err != nil {
		return "", err
	}
	var childIDs []string
	if w, ok := t.(task.Wrapper); ok {
		if childIDs, err = e.identities(w.Children()); err != nil {
			return "", err
		}
	}

	h := sha256.New()
	writeString(h, t.Name())
	if err := writeArgs(h, t, e); err != nil {
		return "", err
	}
	writeStrings(h, depIDs)
	writeStrings(h, childIDs)
	if w, ok := t.(task.Wrapper); ok {
		hooks := w.Hooks()
		writeStrings(h, hooks.Pre)
		writeStrings(h, hooks.Post)
		writeString(h, hooks.ExecFormat)
	}

	id := hex.EncodeToString(h.Sum(nil))[:HexLen]
	e.memo[t] = id
	return id, nil
}

func (e *Engine) identities(tasks []task.Task) ([]string, error) {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		id, err := e.Identity(t)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// chainFrom renders the active path from the first occurrence of t, closing
// the loop with t itself.
func (e *Engine) chainFrom(t task.Task) []string {
	start := 0
	for i, p := range e.path {
		if p == t {
			start = i
			break
		}
	}
	chain := make([]string, 0, len(e.path)-start+1)
	for _, p := range e.path[start:] {
		chain = append(chain, p.Name())
	}
	return append(chain, t.Name())
}

// referenceable rejects task values that cannot serve as map keys. The
// engine tracks tasks by reference; implementations must use pointer
// receivers.
func referenceable(t task.Task) error {
	if t == nil {
		return &ArgError{Task: "<nil>", Arg: "task", Why: "nil task reference"}
	}
	if rt := reflect.TypeOf(t); !rt.Comparable() {
		return &ArgError{
			Task: t.Name(),
			Arg:  "task",
			Why:  fmt.Sprintf("%s is not a reference type; implement tasks with pointer receivers", rt),
		}
	}
	return nil
}

// Tags distinguishing value kinds in the canonical encoding. A tagged,
// length-prefixed frame never lets two distinct structures share bytes.
const (
	tagNil    = 'z'
	tagBool   = 'b'
	tagInt    = 'i'
	tagFloat  = 'f'
	tagString = 's'
	tagSeq    = 'l'
	tagMap    = 'm'
	tagTask   = 't'
)

func writeFrame(h hash.Hash, tag byte, payload []byte) {
	var hdr [9]byte
	hdr[0] = tag
	binary.BigEndian.PutUint64(hdr[1:], uint64(len(payload)))
	h.Write(hdr[:])
	h.Write(payload)
}

func writeString(h hash.Hash, s string) { writeFrame(h, tagString, []byte(s)) }

func writeStrings(h hash.Hash, ss []string) {
	writeFrame(h, tagSeq, []byte(strconv.Itoa(len(ss))))
	for _, s := range ss {
		writeString(h, s)
	}
}

// writeArgs folds the task's constructor arguments into the digest, keys
// sorted, values canonicalized recursively.
func writeArgs(h hash.Hash, t task.Task, e *Engine) error {
	args := t.Args()
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeFrame(h, tagMap, []byte(strconv.Itoa(len(keys))))
	for _, k := range keys {
		writeString(h, k)
		if err := writeValue(h, args[k], t.Name(), k, e); err != nil {
			return err
		}
	}
	return nil
}

func writeValue(h hash.Hash, v any, taskName, arg string, e *Engine) error {
	switch val := v.(type) {
	case nil:
		writeFrame(h, tagNil, nil)
		return nil
	case task.Task:
		id, err := e.Identity(val)
		if err != nil {
			return err
		}
		writeFrame(h, tagTask, []byte(id))
		return nil
	case bool:
		if val {
			writeFrame(h, tagBool, []byte{1})
		} else {
			writeFrame(h, tagBool, []byte{0})
		}
		return nil
	case string:
		writeString(h, val)
		return nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		writeFrame(h, tagInt, []byte(strconv.FormatInt(rv.Int(), 10)))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		writeFrame(h, tagInt, []byte(strconv.FormatUint(rv.Uint(), 10)))
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) {
			return &ArgError{Task: taskName, Arg: arg, Why: "NaN has no canonical form"}
		}
		writeFrame(h, tagFloat, []byte(strconv.FormatFloat(f, 'g', -1, 64)))
	case reflect.Slice, reflect.Array:
		writeFrame(h, tagSeq, []byte(strconv.Itoa(rv.Len())))
		for i := 0; i < rv.Len(); i++ {
			if err := writeValue(h, rv.Index(i).Interface(), taskName, arg, e); err != nil {
				return err
			}
		}
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return &ArgError{Task: taskName, Arg: arg, Why: "map keys must be strings to sort canonically"}
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		writeFrame(h, tagMap, []byte(strconv.Itoa(len(keys))))
		for _, k := range keys {
			writeString(h, k)
			mv := rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface()
			if err := writeValue(h, mv, taskName, arg, e); err != nil {
				return err
			}
		}
	default:
		return &ArgError{
			Task: taskName,
			Arg:  arg,
			Why:  fmt.Sprintf("values of type %T have no canonical form", v),
		}
	}
	return nil
}
