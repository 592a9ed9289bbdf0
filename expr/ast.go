// Copyright © 2024 The ELPS authors

package expr

import (
	"fmt"
	"sync"

	"github.com/luthersystems/varobj/target"
)

// Node is an expression tree node.
type Node interface {
	fmt.Stringer
	node()
}

// Ident names a variable.
type Ident struct {
	Name string
}

// Number is an integer or floating point literal.
type Number struct {
	Text  string
	Float bool
}

// Cast converts X to Type.
type Cast struct {
	Type target.TypeSpec
	X    Node
}

// Paren is a parenthesized expression.
type Paren struct {
	X Node
}

// Deref is a pointer dereference, *X.
type Deref struct {
	X Node
}

// Index is an array subscript, X[Index].
type Index struct {
	X     Node
	Index int64
}

// Member selects a struct member, X.Name, or X->Name when Arrow is set.
type Member struct {
	X     Node
	Name  string
	Arrow bool
}

func (*Ident) node()  {}
func (*Number) node() {}
func (*Cast) node()   {}
func (*Paren) node()  {}
func (*Deref) node()  {}
func (*Index) node()  {}
func (*Member) node() {}

func (n *Ident) String() string  { return n.Name }
func (n *Number) String() string { return n.Text }
func (n *Paren) String() string  { return "(" + n.X.String() + ")" }
func (n *Deref) String() string  { return "*" + n.X.String() }

func (n *Index) String() string { return fmt.Sprintf("%s[%d]", n.X, n.Index) }

func (n *Cast) String() string { return "(" + n.Type.String() + ")" + n.X.String() }

func (n *Member) String() string {
	if n.Arrow {
		return n.X.String() + "->" + n.Name
	}
	return n.X.String() + "." + n.Name
}

// Tree is a parsed expression. The symbols an evaluation resolved are
// recorded on the tree so their scopes can be tested later without
// evaluating again.
type Tree struct {
	Text string
	Root Node

	mu      sync.Mutex
	symbols []target.Symbol
}

// Symbols returns the symbols bound by the most recent evaluation.
func (t *Tree) Symbols() []target.Symbol {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]target.Symbol(nil), t.symbols...)
}

func (t *Tree) setSymbols(syms []target.Symbol) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.symbols = syms
}
