// Copyright © 2024 The ELPS authors

package varobj

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/luthersystems/varobj/expr"
	"github.com/luthersystems/varobj/target"
)

// All selects every root in Update.
const All = "*"

// Change reports an object whose cached state changed since it was last
// reported.
type Change struct {
	Name        string
	Value       string
	Simple      bool
	InScope     bool
	TypeChanged bool
}

// evaluate runs one evaluation of n's binding. A nil value with a nil
// error means n is out of scope and was not evaluated.
func (e *Engine) evaluate(req *request, n *node) (*expr.Value, error) {
	b := n.binding
	if b.tree == nil {
		tree, err := e.eval.Parse(b.text)
		if err != nil {
			return nil, evalError(err)
		}
		b.tree = tree
	} else if !inScope(e.target, b.tree.Symbols()) {
		if !n.outOfScope {
			n.outOfScope = true
			b.updated = true
		}
		return nil, nil
	}
	if n.outOfScope {
		n.outOfScope = false
		b.scopeChanged = true
	}
	select {
	case res := <-e.eval.Evaluate(req.ctx, b.tree, b.frameAddr):
		if res.Err != nil {
			if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
				return nil, res.Err
			}
			return nil, evalError(res.Err)
		}
		return &res.Value, nil
	case <-req.ctx.Done():
		return nil, req.ctx.Err()
	}
}

// refresh caches v on n without touching its children.
func (e *Engine) refresh(req *request, n *node, v expr.Value) {
	value := ""
	if target.IsSimple(v.Type) {
		value = target.Render(v.Type, v.Bytes, n.format)
	}
	n.binding.updateCache(value, target.TypeName(v.Type), target.IsSimple(v.Type), req.epoch)
}

// Update re-evaluates the named object, or every root for All, together
// with their materialized descendants, and returns the objects that
// changed. An evaluation failure drops the failing object's subtree from
// the sweep; cancellation of ctx aborts the command.
func (e *Engine) Update(ctx context.Context, name string) (changes []Change, err error) {
	req, done := e.begin(ctx, "var-update", name)
	defer func() { done(len(changes)) }()

	var starts []*node
	if name == All {
		for _, h := range e.arena.roots {
			if n := e.arena.get(h); n != nil {
				starts = append(starts, n)
			}
		}
	} else {
		n := e.arena.lookup(name)
		if n == nil {
			return nil, NewError(NotFound, "Variable does not exist")
		}
		starts = append(starts, n)
	}
	for _, n := range starts {
		req.queue.Enqueue(n.handle)
	}
	if err := e.sweep(req); err != nil {
		return nil, err
	}
	changes = e.report(req, starts)
	e.log.WithFields(logrus.Fields{
		"cmd":     req.cmd,
		"var":     name,
		"changes": len(changes),
	}).Debug("update complete")
	return changes, nil
}

// sweep evaluates the queued nodes breadth first. Children of out of scope
// or unmaterialized nodes are not visited.
func (e *Engine) sweep(req *request) error {
	for req.queue.Len() > 0 {
		n := e.arena.get(req.queue.Dequeue().(Handle))
		if n == nil {
			continue
		}
		if n.binding != nil {
			v, err := e.evaluate(req, n)
			if err != nil {
				if req.ctx.Err() != nil {
					return err
				}
				e.log.WithFields(logrus.Fields{
					"cmd":  req.cmd,
					"var":  n.name,
					"expr": n.binding.text,
				}).WithError(err).Warn("evaluation failed during update")
				req.failed[n.handle] = true
				continue
			}
			if v != nil {
				e.refresh(req, n, *v)
			}
		}
		if n.outOfScope || !n.materialized {
			continue
		}
		for _, h := range n.children {
			req.queue.Enqueue(h)
		}
	}
	return nil
}

// report collects changed objects in pre-order and outdates them.
func (e *Engine) report(req *request, starts []*node) []Change {
	var changes []Change
	var visit func(n *node)
	visit = func(n *node) {
		if req.failed[n.handle] {
			return
		}
		if b := n.binding; b != nil && b.updated {
			c := Change{
				Name:    n.name,
				Simple:  b.simple,
				InScope: !n.outOfScope,
			}
			if c.InScope {
				c.Value = b.value
			}
			changes = append(changes, c)
			b.outdate()
		}
		if n.outOfScope || !n.materialized {
			return
		}
		for _, h := range n.children {
			if c := e.arena.get(h); c != nil {
				visit(c)
			}
		}
	}
	for _, n := range starts {
		visit(n)
	}
	return changes
}

// ListChildren evaluates the named object, materializes its children if
// needed and returns the object and its children. Listed children are no
// longer reported as changed.
func (e *Engine) ListChildren(ctx context.Context, name string) (Info, []Info, error) {
	req, done := e.begin(ctx, "var-list-children", name)
	defer done(0)
	n := e.arena.lookup(name)
	if n == nil {
		return Info{}, nil, NewError(NotFound, "Missing variable.")
	}
	return e.listChildren(req, n)
}

// ListChildrenOf is ListChildren addressed by handle.
func (e *Engine) ListChildrenOf(ctx context.Context, h Handle) (Info, []Info, error) {
	req, done := e.begin(ctx, "var-list-children", "")
	defer done(0)
	n := e.arena.get(h)
	if n == nil {
		return Info{}, nil, NewError(NotFound, "Missing variable.")
	}
	return e.listChildren(req, n)
}

func (e *Engine) listChildren(req *request, n *node) (Info, []Info, error) {
	if n.binding != nil {
		v, err := e.evaluate(req, n)
		if err != nil {
			return Info{}, nil, err
		}
		if v != nil {
			if err := e.expand(req, n, *v); err != nil {
				return Info{}, nil, err
			}
		}
	}
	children := make([]Info, 0, len(n.children))
	for _, h := range n.children {
		c := e.arena.get(h)
		if c == nil {
			continue
		}
		if c.binding != nil {
			c.binding.outdate()
		}
		children = append(children, e.info(c))
	}
	return e.info(n), children, nil
}

// Evaluate returns the display value of the named object, evaluating it
// again only when the target resumed since its last evaluation. Objects
// without a simple value show CompositeValue.
func (e *Engine) Evaluate(ctx context.Context, name string) (string, error) {
	req, done := e.begin(ctx, "var-evaluate-expression", name)
	defer done(0)
	n := e.arena.lookup(name)
	if n == nil {
		return "", NewError(NotFound, "Variable does not exist")
	}
	b := n.binding
	if b == nil {
		return CompositeValue, nil
	}
	if !b.valid(req.epoch) {
		v, err := e.evaluate(req, n)
		if err != nil {
			return "", err
		}
		if v != nil {
			e.refresh(req, n, *v)
		}
	}
	if !b.simple {
		return CompositeValue, nil
	}
	return b.value, nil
}
