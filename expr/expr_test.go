// Copyright © 2024 The ELPS authors

package expr_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthersystems/varobj/expr"
	"github.com/luthersystems/varobj/target"
	"github.com/luthersystems/varobj/varobjtest"
)

func TestParse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text string
		want string
	}{
		{"x", "x"},
		{" 5 ", "5"},
		{"0x10", "0x10"},
		{"(myArray)[0]", "(myArray)[0]"},
		{"((myArray)[1])", "((myArray)[1])"},
		{"*(head)", "*(head)"},
		{"(*(head)).next", "(*(head)).next"},
		{"head->next->v", "head->next->v"},
		{"((Base)(obj))", "((Base)(obj))"},
		{"(unsigned int)counter", "(unsigned int)counter"},
		{"(Node *)0x190", "(Node *)0x190"},
		{"(int [2])myArray", "(int [2])myArray"},
		{"(char  *[2])x", "(char *[2])x"},
		{"*p[1]", "*p[1]"},
		{"grid[1][0]", "grid[1][0]"},
	}
	for _, test := range tests {
		tree, err := expr.Parse(test.text)
		if assert.NoError(t, err, test.text) {
			assert.Equal(t, test.want, tree.Root.String(), test.text)
			assert.Equal(t, test.text, tree.Text)
		}
	}
}

func TestParsePrecedence(t *testing.T) {
	t.Parallel()
	tree, err := expr.Parse("*p[1]")
	require.NoError(t, err)
	deref, ok := tree.Root.(*expr.Deref)
	require.True(t, ok, "postfix binds tighter than unary *")
	_, ok = deref.X.(*expr.Index)
	assert.True(t, ok)

	tree, err = expr.Parse("(Base)(obj).id")
	require.NoError(t, err)
	cast, ok := tree.Root.(*expr.Cast)
	require.True(t, ok)
	assert.Equal(t, "Base", cast.Type.Base)
	_, ok = cast.X.(*expr.Member)
	assert.True(t, ok)

	tree, err = expr.Parse("(unsigned int *[2][3])grid")
	require.NoError(t, err)
	cast, ok = tree.Root.(*expr.Cast)
	require.True(t, ok)
	assert.Equal(t, target.TypeSpec{Base: "unsigned int", Stars: 1, Dims: []int{2, 3}}, cast.Type)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	for _, text := range []string{"", "(", "x[", "x.", "a b", "x[1.5]", "->y", "x)"} {
		_, err := expr.Parse(text)
		assert.Error(t, err, "%q", text)
	}
	_, err := expr.Parse("x $$")
	assert.EqualError(t, err, "A syntax error in expression, near `$$'.")
}

func evaluate(t *testing.T, ev *expr.Evaluator, text string, frame int) (expr.Value, error) {
	tree, err := ev.Parse(text)
	require.NoError(t, err, text)
	select {
	case res := <-ev.Evaluate(context.Background(), tree, frame):
		return res.Value, res.Err
	case <-time.After(5 * time.Second):
		t.Fatalf("evaluation of %q timed out", text)
	}
	return expr.Value{}, nil
}

func TestEvaluate(t *testing.T) {
	t.Parallel()
	ev := expr.NewEvaluator(varobjtest.NewTarget(t))
	tests := []struct {
		text  string
		typ   string
		value string
	}{
		{"5", "int", "5"},
		{"0xffffffff", "unsigned int", "4294967295"},
		{"2.5", "double", "2.5"},
		{"myArray", "int [3]", ""},
		{"(myArray)[2]", "int", "3"},
		{"myVoidPtr", "void *", "0x100"},
		{"*(myIntPtr)", "int", "2"},
		{"myIntPtr[1]", "int", "3"},
		{"(pt).y", "int", "4"},
		{"obj.id", "int", "7"},
		{"((Base)(obj))", "Base", ""},
		{"((Base)(obj)).id", "int", "7"},
		{"(obj).origin.x", "int", "5"},
		{"(obj).data[1]", "int", "20"},
		{"head->v", "int", "1"},
		{"head->next->v", "int", "2"},
		{"(*(head)).next", "Node *", "0x198"},
		{"counter", "counter_t", "100"},
		{"(int)ratio", "int", "2"},
		{"(char)obj.tag", "char", "65 'A'"},
		{"((int [2])myArray)[1]", "int", "2"},
		{"(int [2])myArray", "int [2]", ""},
		{"grid[1][0]", "int", "3"},
		{"i", "int", "11"},
		{"hits", "int", "9"},
	}
	for _, test := range tests {
		v, err := evaluate(t, ev, test.text, expr.CurrentFrame)
		if assert.NoError(t, err, test.text) {
			assert.Equal(t, test.typ, target.TypeName(v.Type), test.text)
			assert.Equal(t, test.value, target.Render(v.Type, v.Bytes, target.Natural), test.text)
		}
	}
}

func TestEvaluateFrame(t *testing.T) {
	t.Parallel()
	tgt := varobjtest.NewTarget(t)
	require.NoError(t, tgt.WriteMemory(0x904, target.EncodeUint(77, 4)))
	ev := expr.NewEvaluator(tgt)
	v, err := evaluate(t, ev, "i", 0x900)
	require.NoError(t, err)
	assert.Equal(t, "77", target.Render(v.Type, v.Bytes, target.Natural))
}

func TestEvaluateErrors(t *testing.T) {
	t.Parallel()
	ev := expr.NewEvaluator(varobjtest.NewTarget(t))
	tests := []struct {
		text string
		msg  string
	}{
		{"nope", `No symbol "nope" in current context.`},
		{"*(myVoidPtr)", "Attempt to take contents of a non-pointer value."},
		{"*(counter)", "Attempt to take contents of a non-pointer value."},
		{"myArray[3]", "no such vector element"},
		{"counter[0]", "cannot subscript something of type `counter_t'"},
		{"pt.z", "There is no member named z."},
		{"counter.x", "Attempt to extract a component of a value that is not a structure."},
		{"pt->x", "The -> operator must be applied to a pointer."},
		{"(Point)counter", "Invalid cast."},
		{"(Bogus)counter", `No symbol "Bogus" in current context.`},
		{"(int [2])5", "Invalid cast."},
	}
	for _, test := range tests {
		_, err := evaluate(t, ev, test.text, expr.CurrentFrame)
		assert.EqualError(t, err, test.msg, test.text)
	}
}

func TestEvaluateRecordsSymbols(t *testing.T) {
	t.Parallel()
	ev := expr.NewEvaluator(varobjtest.NewTarget(t))
	tree, err := ev.Parse("(myArray)[i]")
	require.Error(t, err, "subscripts are integer literals")
	assert.Nil(t, tree)

	tree, err = ev.Parse("((Base)(obj)).id")
	require.NoError(t, err)
	assert.Empty(t, tree.Symbols())
	res := <-ev.Evaluate(context.Background(), tree, expr.CurrentFrame)
	require.NoError(t, res.Err)
	syms := tree.Symbols()
	require.Len(t, syms, 1)
	assert.Equal(t, "obj", syms[0].Name)
	assert.Equal(t, target.Global, syms[0].Scope.Kind)
}

func TestEvaluateCanceled(t *testing.T) {
	t.Parallel()
	ev := expr.NewEvaluator(varobjtest.NewTarget(t), expr.WithLatency(time.Hour))
	tree, err := ev.Parse("i")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	ch := ev.Evaluate(ctx, tree, expr.CurrentFrame)
	cancel()
	res := <-ch
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Empty(t, tree.Symbols())
}
