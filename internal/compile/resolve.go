// Package compile turns a task tree into a deterministic, idempotent bash
// script: it resolves the dependency/child closure into a deduplicated,
// cycle-free definition order and emits guarded function definitions plus a
// single root invocation.
package compile

import (
	"github.com/3cpo-dev/shellbake/internal/identity"
	"github.com/3cpo-dev/shellbake/internal/task"
)

// Node is one unique task in the resolved graph.
type Node struct {
	Task     task.Task
	ID       string
	QName    string
	Body     task.Body
	DepIDs   []string // declared order, deduplicated by identity
	ChildIDs []string
	Hooks    task.StageHooks
	Wrapper  bool
}

// FuncName returns the generated function name for the node.
func (n *Node) FuncName() string { return n.QName + "//" + n.ID }

// Plan is the resolved compilation unit: unique nodes in definition order
// plus the root. Definition order puts every node after the nodes it calls,
// so the root is always last.
type Plan struct {
	Nodes []*Node
	Root  *Node

	byID map[string]*Node
}

// Lookup returns the node with the given identity.
func (p *Plan) Lookup(id string) (*Node, bool) {
	n, ok := p.byID[id]
	return n, ok
}

type resolver struct {
	ids  *identity.Engine
	byID map[string]*Node
	defs []*Node
}

// Resolve traverses the closure of root, deduplicating structurally equal
// subtrees by identity and rejecting cycles. The table and traversal state
// are locals of this call: Resolve is reentrant and repeatable.
func Resolve(root task.Task) (*Plan, error) {
	r := &resolver{
		ids:  identity.NewEngine(),
		byID: map[string]*Node{},
	}
	rootNode, err := r.visit(root)
	if err != nil {
		return nil, err
	}
	return &Plan{Nodes: r.defs, Root: rootNode, byID: r.byID}, nil
}

// visit resolves one task: dependencies first, then children, then the task
// itself, so definitions always precede use in the emitted text. The first
// visited instance of an identity is retained; later structurally equal
// tasks resolve to it.
func (r *resolver) visit(t task.Task) (*Node, error) {
	id, err := r.ids.Identity(t)
	if err != nil {
		return nil, err
	}
	if n, ok := r.byID[id]; ok {
		return n, nil
	}

	n := &Node{Task: t, ID: id, QName: t.Name()}

	seen := map[string]bool{}
	for _, dep := range t.Deps() {
		dn, err := r.visit(dep)
		if err != nil {
			return nil, err
		}
		if seen[dn.ID] {
			continue
		}
		seen[dn.ID] = true
		n.DepIDs = append(n.DepIDs, dn.ID)
	}

	if w, ok := t.(task.Wrapper); ok {
		n.Wrapper = true
		n.Hooks = w.Hooks()
		for _, child := range w.Children() {
			cn, err := r.visit(child)
			if err != nil {
				return nil, err
			}
			n.ChildIDs = append(n.ChildIDs, cn.ID)
		}
	} else {
		n.Body = t.Code()
		if !n.Body.WellFormed() {
			return nil, &BodyError{Task: t.Name()}
		}
	}

	r.byID[id] = n
	r.defs = append(r.defs, n)
	return n, nil
}
