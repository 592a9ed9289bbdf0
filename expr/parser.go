// Copyright © 2024 The ELPS authors

/*
Package expr parses and evaluates the C expression subset used by
variable objects.

	unary    := '*' <unary> | <postfix>
	postfix  := <primary> <suffix>*
	suffix   := '[' <number> ']' | '.' <ident> | '->' <ident>
	primary  := '(' <typename> ')' <unary> | '(' <unary> ')' | <number> | <ident>
	typename := <ident>+ '*'* ('[' <bound> ']')*
*/
package expr

import (
	"fmt"
	"strconv"

	parsec "github.com/prataprc/goparsec"

	"github.com/luthersystems/varobj/target"
)

// Parse parses text into a Tree.
func Parse(text string) (*Tree, error) {
	b := []byte(text)
	s := parsec.NewScanner(b)
	root, s := newParsecParser()(s)
	_, s = s.SkipWS()
	if root == nil || !s.Endof() {
		return nil, fmt.Errorf("A syntax error in expression, near `%s'.", text[s.GetCursor():])
	}
	n, ok := root.(Node)
	if !ok {
		return nil, fmt.Errorf("A syntax error in expression, near `%s'.", text)
	}
	return &Tree{Text: text, Root: n}, nil
}

type indexSuffix struct{ index int64 }

type memberSuffix struct {
	name  string
	arrow bool
}

func newParsecParser() parsec.Parser {
	lparen := parsec.Atom("(", "LPAREN")
	rparen := parsec.Atom(")", "RPAREN")
	lbrack := parsec.Atom("[", "LBRACK")
	rbrack := parsec.Atom("]", "RBRACK")
	star := parsec.Atom("*", "STAR")
	arrow := parsec.Atom("->", "ARROW")
	dot := parsec.Atom(".", "DOT")
	number := parsec.Token(`(?:0[xX][0-9a-fA-F]+|[0-9]+\.[0-9]+|[0-9]+)`, "NUMBER")
	integer := parsec.Token(`(?:0[xX][0-9a-fA-F]+|[0-9]+)`, "INTEGER")
	ident := parsec.Token(`[A-Za-z_$][A-Za-z0-9_$]*`, "IDENT")

	var unary parsec.Parser // forward declaration allows for recursive parsing
	typeName := target.NewTypeSpecParser()
	cast := parsec.And(castNode, lparen, typeName, rparen, &unary)
	paren := parsec.And(parenNode, lparen, &unary, rparen)
	primary := parsec.OrdChoice(first,
		cast, // a cast must be tried before a parenthesized expression
		paren,
		parsec.OrdChoice(numberNode, number),
		parsec.OrdChoice(identNode, ident),
	)
	suffix := parsec.OrdChoice(first,
		parsec.And(indexNode, lbrack, integer, rbrack),
		parsec.And(memberNode, dot, ident),
		parsec.And(memberNode, arrow, ident),
	)
	postfix := parsec.And(postfixNode, primary, parsec.Kleene(nil, suffix))
	deref := parsec.And(derefNode, star, &unary)
	unary = parsec.OrdChoice(first, deref, postfix)
	return unary
}

func first(nodes []parsec.ParsecNode) parsec.ParsecNode {
	return nodes[0]
}

func terminal(n parsec.ParsecNode) *parsec.Terminal {
	switch n := n.(type) {
	case *parsec.Terminal:
		return n
	case []parsec.ParsecNode:
		if len(n) == 1 {
			return terminal(n[0])
		}
	}
	return nil
}

func identNode(nodes []parsec.ParsecNode) parsec.ParsecNode {
	return &Ident{Name: terminal(nodes[0]).Value}
}

func numberNode(nodes []parsec.ParsecNode) parsec.ParsecNode {
	text := terminal(nodes[0]).Value
	_, err := strconv.ParseInt(text, 0, 64)
	return &Number{Text: text, Float: err != nil}
}

func castNode(nodes []parsec.ParsecNode) parsec.ParsecNode {
	return &Cast{Type: nodes[1].(target.TypeSpec), X: nodes[3].(Node)}
}

func parenNode(nodes []parsec.ParsecNode) parsec.ParsecNode {
	return &Paren{X: nodes[1].(Node)}
}

func derefNode(nodes []parsec.ParsecNode) parsec.ParsecNode {
	return &Deref{X: nodes[1].(Node)}
}

func indexNode(nodes []parsec.ParsecNode) parsec.ParsecNode {
	i, err := strconv.ParseInt(terminal(nodes[1]).Value, 0, 64)
	if err != nil {
		i = -1 // out of range, rejected during evaluation
	}
	return indexSuffix{index: i}
}

func memberNode(nodes []parsec.ParsecNode) parsec.ParsecNode {
	op := terminal(nodes[0])
	return memberSuffix{name: terminal(nodes[1]).Value, arrow: op.Name == "ARROW"}
}

func postfixNode(nodes []parsec.ParsecNode) parsec.ParsecNode {
	x := nodes[0].(Node)
	suffixes, _ := nodes[1].([]parsec.ParsecNode)
	for _, s := range suffixes {
		switch s := s.(type) {
		case indexSuffix:
			x = &Index{X: x, Index: s.index}
		case memberSuffix:
			x = &Member{X: x, Name: s.name, Arrow: s.arrow}
		}
	}
	return x
}
