// Copyright © 2024 The ELPS authors

package expr

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/luthersystems/varobj/target"
)

// CurrentFrame selects the frame the target is stopped in.
const CurrentFrame = -1

// Target is the view of the debuggee an Evaluator needs.
type Target interface {
	Registers() target.Registers
	LookupSymbol(name string, pc uint32) (target.Symbol, bool)
	ResolveType(spec target.TypeSpec) (target.Type, error)
	ReadMemory(addr uint32, n int) ([]byte, error)
}

var _ Target = (*target.Target)(nil)

// Value is the result of an evaluation. Scalar values carry their bytes.
// Values that designate an object in memory carry its address.
type Value struct {
	Type   target.Type
	Bytes  []byte
	Addr   uint32
	LValue bool
}

// Address returns the address of the object v designates, if any.
func (v Value) Address() (uint32, bool) {
	return v.Addr, v.LValue
}

// Result is delivered on the channel returned by Evaluate.
type Result struct {
	Value Value
	Err   error
}

// Evaluator evaluates parsed expressions against a target. Evaluations
// run asynchronously the way a request to a remote stub would.
type Evaluator struct {
	target  Target
	latency time.Duration
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLatency delays every evaluation result by d.
func WithLatency(d time.Duration) Option {
	return func(ev *Evaluator) {
		ev.latency = d
	}
}

// NewEvaluator returns an evaluator bound to t.
func NewEvaluator(t Target, opts ...Option) *Evaluator {
	ev := &Evaluator{target: t}
	for _, opt := range opts {
		opt(ev)
	}
	return ev
}

// Parse parses text.
func (ev *Evaluator) Parse(text string) (*Tree, error) {
	return Parse(text)
}

// Evaluate starts evaluating tree in the frame at frameAddr, or in the
// current frame when frameAddr is CurrentFrame. Exactly one Result is sent
// on the returned channel, which is never closed. On success the symbols
// the expression resolved are recorded on tree.
func (ev *Evaluator) Evaluate(ctx context.Context, tree *Tree, frameAddr int) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		if ev.latency > 0 {
			timer := time.NewTimer(ev.latency)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				ch <- Result{Err: ctx.Err()}
				return
			}
		}
		regs := ev.target.Registers()
		st := &evalState{pc: regs.PC, frame: regs.FP}
		if frameAddr != CurrentFrame {
			st.frame = uint32(frameAddr)
		}
		v, err := ev.eval(st, tree.Root)
		if err == nil {
			tree.setSymbols(st.symbols)
		}
		ch <- Result{Value: v, Err: err}
	}()
	return ch
}

type evalState struct {
	pc      uint32
	frame   uint32
	symbols []target.Symbol
}

func (ev *Evaluator) eval(st *evalState, n Node) (Value, error) {
	switch n := n.(type) {
	case *Ident:
		sym, ok := ev.target.LookupSymbol(n.Name, st.pc)
		if !ok {
			return Value{}, fmt.Errorf("No symbol \"%s\" in current context.", n.Name)
		}
		st.symbols = append(st.symbols, sym)
		return ev.load(sym.Type, sym.Location(st.frame))
	case *Number:
		return number(n)
	case *Paren:
		return ev.eval(st, n.X)
	case *Deref:
		x, err := ev.eval(st, n.X)
		if err != nil {
			return Value{}, err
		}
		p, ok := target.Resolve(x.Type).(*target.Pointer)
		if !ok || target.IsVoid(p.Target) {
			return Value{}, fmt.Errorf("Attempt to take contents of a non-pointer value.")
		}
		return ev.load(p.Target, uint32(target.DecodeUint(x.Bytes)))
	case *Index:
		return ev.index(st, n)
	case *Member:
		return ev.member(st, n)
	case *Cast:
		return ev.cast(st, n)
	}
	return Value{}, fmt.Errorf("unsupported expression %s", n)
}

func (ev *Evaluator) index(st *evalState, n *Index) (Value, error) {
	x, err := ev.eval(st, n.X)
	if err != nil {
		return Value{}, err
	}
	switch t := target.Resolve(x.Type).(type) {
	case *target.Array:
		if n.Index < 0 || n.Index >= int64(t.Len) {
			return Value{}, fmt.Errorf("no such vector element")
		}
		if !x.LValue {
			return Value{}, fmt.Errorf("Attempt to take address of value not located in memory.")
		}
		return ev.load(t.Elem, x.Addr+uint32(n.Index)*uint32(t.Elem.Size()))
	case *target.Pointer:
		if target.IsVoid(t.Target) || n.Index < 0 {
			return Value{}, fmt.Errorf("cannot subscript something of type `%s'", target.TypeName(x.Type))
		}
		base := uint32(target.DecodeUint(x.Bytes))
		return ev.load(t.Target, base+uint32(n.Index)*uint32(t.Target.Size()))
	}
	return Value{}, fmt.Errorf("cannot subscript something of type `%s'", target.TypeName(x.Type))
}

func (ev *Evaluator) member(st *evalState, n *Member) (Value, error) {
	x, err := ev.eval(st, n.X)
	if err != nil {
		return Value{}, err
	}
	typ, base := x.Type, x.Addr
	if n.Arrow {
		p, ok := target.Resolve(x.Type).(*target.Pointer)
		if !ok {
			return Value{}, fmt.Errorf("The -> operator must be applied to a pointer.")
		}
		typ, base = p.Target, uint32(target.DecodeUint(x.Bytes))
	} else if !x.LValue {
		return Value{}, fmt.Errorf("Attempt to take address of value not located in memory.")
	}
	s, ok := target.Resolve(typ).(*target.Struct)
	if !ok {
		return Value{}, fmt.Errorf("Attempt to extract a component of a value that is not a structure.")
	}
	m, off, ok := target.FindMember(s, n.Name)
	if !ok {
		return Value{}, fmt.Errorf("There is no member named %s.", n.Name)
	}
	return ev.load(m.Type, base+uint32(off))
}

func (ev *Evaluator) cast(st *evalState, n *Cast) (Value, error) {
	to, err := ev.target.ResolveType(n.Type)
	if err != nil {
		return Value{}, err
	}
	x, err := ev.eval(st, n.X)
	if err != nil {
		return Value{}, err
	}
	switch dst := target.Resolve(to).(type) {
	case *target.Struct:
		src, ok := target.Resolve(x.Type).(*target.Struct)
		if !ok || !x.LValue {
			return Value{}, fmt.Errorf("Invalid cast.")
		}
		if off, ok := target.FindBase(src, dst); ok {
			return ev.load(to, x.Addr+uint32(off))
		}
		return ev.load(to, x.Addr)
	case *target.Array:
		if !x.LValue {
			return Value{}, fmt.Errorf("Invalid cast.")
		}
		return ev.load(to, x.Addr)
	}
	if !target.IsSimple(x.Type) {
		return Value{}, fmt.Errorf("Invalid cast.")
	}
	b, err := target.Convert(x.Type, to, x.Bytes)
	if err != nil {
		return Value{}, err
	}
	return Value{Type: to, Bytes: b}, nil
}

func (ev *Evaluator) load(t target.Type, addr uint32) (Value, error) {
	v := Value{Type: t, Addr: addr, LValue: true}
	if target.IsSimple(t) {
		b, err := ev.target.ReadMemory(addr, t.Size())
		if err != nil {
			return Value{}, err
		}
		v.Bytes = b
	}
	return v, nil
}

func number(n *Number) (Value, error) {
	if n.Float {
		f, err := strconv.ParseFloat(n.Text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("Invalid number \"%s\".", n.Text)
		}
		t := target.BuiltinType(target.Double)
		return Value{Type: t, Bytes: target.EncodeFloat(f, t.Size())}, nil
	}
	i, err := strconv.ParseInt(n.Text, 0, 64)
	if err != nil {
		return Value{}, fmt.Errorf("Numeric constant too large.")
	}
	var t *target.Builtin
	switch {
	case i >= math.MinInt32 && i <= math.MaxInt32:
		t = target.BuiltinType(target.Int)
	case i >= 0 && i <= math.MaxUint32:
		t = target.BuiltinType(target.UInt)
	default:
		t = target.BuiltinType(target.LongLong)
	}
	return Value{Type: t, Bytes: target.EncodeUint(uint64(i), t.Size())}, nil
}
