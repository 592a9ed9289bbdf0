// Copyright © 2024 The ELPS authors

package varobj

// Handle identifies a node in the engine's arena. Handles are never
// reused, so a stale handle simply fails to resolve.
type Handle uint64

// node is a variable object. Grouping nodes, such as visibility buckets,
// have no binding.
type node struct {
	handle  Handle
	parent  Handle // zero for roots
	name    string // full dotted path, unique in the registry
	local   string
	binding *binding

	children []Handle
	byLocal  map[string]Handle

	format       Format
	materialized bool
	outOfScope   bool
	// expandable is set once the node's type is known to have children,
	// including children whose materialization is still deferred.
	expandable bool
}

func (n *node) grouping() bool { return n.binding == nil }

// arena owns every node and the path registry.
type arena struct {
	next  Handle
	nodes map[Handle]*node
	paths map[string]Handle
	roots []Handle
}

func newArena() *arena {
	return &arena{
		nodes: make(map[Handle]*node),
		paths: make(map[string]Handle),
	}
}

func (a *arena) alloc(name, local string, b *binding) *node {
	a.next++
	n := &node{
		handle:  a.next,
		name:    name,
		local:   local,
		binding: b,
		byLocal: make(map[string]Handle),
	}
	if b == nil {
		n.materialized = true
		n.expandable = true
	}
	a.nodes[n.handle] = n
	return n
}

func (a *arena) get(h Handle) *node {
	return a.nodes[h]
}

// lookup resolves a registered path.
func (a *arena) lookup(name string) *node {
	h, ok := a.paths[name]
	if !ok {
		return nil
	}
	return a.nodes[h]
}

func (a *arena) taken(name string) bool {
	_, ok := a.paths[name]
	return ok
}

func (a *arena) register(n *node) {
	a.paths[n.name] = n.handle
}

func (a *arena) addRoot(n *node) {
	a.register(n)
	a.roots = append(a.roots, n.handle)
}

// attach appends child to parent's ordered child set.
func (a *arena) attach(parent, child *node) {
	child.parent = parent.handle
	parent.children = append(parent.children, child.handle)
	parent.byLocal[child.local] = child.handle
}

// release frees n and its subtree, unregistering every path the subtree
// owns and detaching n from its parent or the root list.
func (a *arena) release(n *node) {
	if p := a.get(n.parent); p != nil {
		delete(p.byLocal, n.local)
		p.children = removeHandle(p.children, n.handle)
	} else {
		a.roots = removeHandle(a.roots, n.handle)
	}
	a.free(n)
}

// releaseChildren frees every descendant of n.
func (a *arena) releaseChildren(n *node) {
	for _, h := range n.children {
		if c := a.get(h); c != nil {
			a.free(c)
		}
	}
	n.children = nil
	n.byLocal = make(map[string]Handle)
}

func (a *arena) free(n *node) {
	for _, h := range n.children {
		if c := a.get(h); c != nil {
			a.free(c)
		}
	}
	if h, ok := a.paths[n.name]; ok && h == n.handle {
		delete(a.paths, n.name)
	}
	delete(a.nodes, n.handle)
}

// walk visits n and its descendants in pre-order.
func (a *arena) walk(n *node, fn func(*node)) {
	fn(n)
	for _, h := range n.children {
		if c := a.get(h); c != nil {
			a.walk(c, fn)
		}
	}
}

func removeHandle(hs []Handle, h Handle) []Handle {
	for i := range hs {
		if hs[i] == h {
			return append(hs[:i:i], hs[i+1:]...)
		}
	}
	return hs
}
