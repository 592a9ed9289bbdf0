// Copyright © 2024 The ELPS authors

package varobj

import (
	"fmt"

	"github.com/luthersystems/varobj/expr"
	"github.com/luthersystems/varobj/target"
)

// expand caches the evaluated value v on n and materializes n's children
// from v's type. Only v carries a concrete address; nested composites
// defer their own children until they are evaluated themselves.
// Expansion is idempotent: existing children are reused by local name.
func (e *Engine) expand(req *request, n *node, v expr.Value) error {
	addr := addressOf(v)
	switch t := target.Resolve(v.Type).(type) {
	case *target.Array:
		return e.expandArray(req, n, v.Type, t, addr)
	case *target.Struct:
		return e.expandStruct(req, n, v.Type, t, addr)
	case *target.Pointer:
		return e.expandPointer(req, n, v, t, addr)
	}
	n.binding.updateCache(target.Render(v.Type, v.Bytes, n.format), target.TypeName(v.Type), target.IsSimple(v.Type), req.epoch)
	n.materialized = true
	return nil
}

func addressOf(v expr.Value) *uint32 {
	if a, ok := v.Address(); ok {
		return &a
	}
	return nil
}

func (e *Engine) expandArray(req *request, n *node, typ target.Type, t *target.Array, addr *uint32) error {
	n.binding.updateCache("", target.TypeName(typ), false, req.epoch)
	n.expandable = t.Len > 0
	if addr == nil {
		return nil
	}
	n.materialized = true
	stride := uint32(t.Elem.Size())
	for i := 0; i < t.Len; i++ {
		local := fmt.Sprintf("[%d]", i)
		c, err := e.child(n, local, n.binding.frameAddr, fmt.Sprintf("(%s)[%d]", n.binding.text, i))
		if err != nil {
			return err
		}
		e.expandLeaf(req, c, t.Elem, *addr+uint32(i)*stride)
	}
	return nil
}

func (e *Engine) expandStruct(req *request, n *node, typ target.Type, t *target.Struct, addr *uint32) error {
	n.binding.updateCache("", target.TypeName(typ), false, req.epoch)
	n.expandable = len(t.Bases) > 0 || len(t.Members) > 0
	if addr == nil {
		return nil
	}
	n.materialized = true
	for _, base := range t.Bases {
		bt, ok := target.Resolve(base.Type).(*target.Struct)
		if !ok {
			continue
		}
		baseName := target.TypeName(base.Type)
		c, err := e.child(n, baseName, n.binding.frameAddr, fmt.Sprintf("((%s)(%s))", baseName, n.binding.text))
		if err != nil {
			return err
		}
		at := *addr + uint32(base.Offset)
		if err := e.expandStruct(req, c, base.Type, bt, &at); err != nil {
			return err
		}
	}
	for _, m := range t.Members {
		if target.IsVTablePointer(m.Type) {
			continue
		}
		bucket, err := e.bucket(n, m.Visibility)
		if err != nil {
			return err
		}
		c, err := e.child(bucket, m.Name, n.binding.frameAddr, fmt.Sprintf("(%s).%s", n.binding.text, m.Name))
		if err != nil {
			return err
		}
		e.expandLeaf(req, c, m.Type, *addr+uint32(m.OffsetBits/8))
	}
	return nil
}

func (e *Engine) expandPointer(req *request, n *node, v expr.Value, t *target.Pointer, addr *uint32) error {
	n.binding.updateCache(target.Render(v.Type, v.Bytes, n.format), target.TypeName(v.Type), true, req.epoch)
	if target.IsVoid(t.Target) {
		n.materialized = true
		return nil
	}
	n.expandable = true
	if addr == nil || len(v.Bytes) < target.PointerSize {
		return nil
	}
	n.materialized = true
	local := "*(" + n.local + ")"
	c, err := e.child(n, local, n.binding.frameAddr, "*("+n.binding.text+")")
	if err != nil {
		return err
	}
	e.expandLeaf(req, c, t.Target, uint32(target.DecodeUint(v.Bytes[:target.PointerSize])))
	return nil
}

// expandLeaf caches a child whose value lives at at. Composite children
// are typed but left unmaterialized.
func (e *Engine) expandLeaf(req *request, c *node, typ target.Type, at uint32) {
	switch t := target.Resolve(typ).(type) {
	case *target.Array:
		_ = e.expandArray(req, c, typ, t, nil)
		return
	case *target.Struct:
		_ = e.expandStruct(req, c, typ, t, nil)
		return
	case *target.Pointer:
		c.expandable = !target.IsVoid(t.Target)
		if !c.expandable {
			c.materialized = true
		}
	default:
		c.materialized = true
	}
	c.binding.updateCache(e.read(typ, at, c.format), target.TypeName(typ), target.IsSimple(typ), req.epoch)
}

func (e *Engine) read(typ target.Type, at uint32, f Format) string {
	b, err := e.target.ReadMemory(at, typ.Size())
	if err != nil {
		return target.Unreadable
	}
	return target.Render(typ, b, f)
}

// child returns the child of parent with the given local name, creating
// and registering it if needed.
func (e *Engine) child(parent *node, local string, frameAddr int, text string) (*node, error) {
	if h, ok := parent.byLocal[local]; ok {
		if c := e.arena.get(h); c != nil {
			return c, nil
		}
	}
	name := parent.name + "." + local
	if e.arena.taken(name) {
		return nil, NewError(NameCollision, "Variable name already taken")
	}
	c := e.arena.alloc(name, local, newBinding(frameAddr, text))
	e.arena.attach(parent, c)
	e.arena.register(c)
	return c, nil
}

// bucket returns the visibility grouping child of n for vis.
func (e *Engine) bucket(n *node, vis target.Visibility) (*node, error) {
	local := vis.String()
	if h, ok := n.byLocal[local]; ok {
		if c := e.arena.get(h); c != nil {
			return c, nil
		}
	}
	name := n.name + "." + local
	if e.arena.taken(name) {
		return nil, NewError(NameCollision, "Variable name already taken")
	}
	c := e.arena.alloc(name, local, nil)
	e.arena.attach(n, c)
	e.arena.register(c)
	return c, nil
}
