// Copyright © 2024 The ELPS authors

// Package varobj maintains variable objects: named, incrementally updated
// views of debuggee expressions that expand into children mirroring the
// structure of their types.
//
// An Engine serves one command at a time. Its methods may be called from
// multiple goroutines; calls are serialized.
package varobj

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/golang-collections/collections/queue"
	"github.com/sirupsen/logrus"

	"github.com/luthersystems/varobj/expr"
)

// AutoName asks Create to generate a unique name.
const AutoName = "-"

// Target is the view of the debuggee the engine needs beyond expression
// evaluation.
type Target interface {
	PC() uint32
	FileScope(pc uint32) int
	ReadMemory(addr uint32, n int) ([]byte, error)
	// OnResume registers a function to call whenever the target resumes.
	// Resuming must not happen while an engine method is running.
	OnResume(fn func())
}

// Evaluator parses expressions and evaluates them asynchronously.
type Evaluator interface {
	Parse(text string) (*expr.Tree, error)
	Evaluate(ctx context.Context, tree *expr.Tree, frameAddr int) <-chan expr.Result
}

var _ Evaluator = (*expr.Evaluator)(nil)

// Engine owns the variable object forest.
type Engine struct {
	mu       sync.Mutex
	target   Target
	eval     Evaluator
	log      *logrus.Logger
	tracer   Tracer
	arena    *arena
	autoName int
	epoch    atomic.Uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger directs engine logs to log.
func WithLogger(log *logrus.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithTracer records a span for every command.
func WithTracer(t Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// New returns an engine and registers its resume listener with tgt.
func New(tgt Target, ev Evaluator, opts ...Option) *Engine {
	e := &Engine{
		target: tgt,
		eval:   ev,
		tracer: NopTracer(),
		arena:  newArena(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logrus.New()
		e.log.SetOutput(io.Discard)
	}
	tgt.OnResume(e.invalidate)
	return e
}

// invalidate marks every cached value stale. It only touches an atomic so
// it is safe to call at any time.
func (e *Engine) invalidate() {
	e.epoch.Add(1)
}

// request is the state of the command in flight.
type request struct {
	ctx    context.Context
	cmd    string
	epoch  uint64
	queue  *queue.Queue // of Handle
	failed map[Handle]bool
}

func (e *Engine) begin(ctx context.Context, cmd, name string) (*request, func(changes int)) {
	e.mu.Lock()
	ctx, end := e.tracer.StartSpan(ctx, cmd, name)
	req := &request{
		ctx:    ctx,
		cmd:    cmd,
		epoch:  e.epoch.Load(),
		queue:  queue.New(),
		failed: make(map[Handle]bool),
	}
	e.log.WithFields(logrus.Fields{"cmd": cmd, "var": name}).Debug("begin command")
	return req, func(changes int) {
		end(changes)
		e.mu.Unlock()
	}
}

// Info is a snapshot of a variable object.
type Info struct {
	Handle Handle
	// Name is the full dotted path.
	Name string
	// Exp is the name relative to the parent, e.g. "[0]" or "public".
	Exp string
	// Path is the full expression text; empty for grouping nodes.
	Path       string
	Type       string
	Value      string
	Simple     bool
	NumChild   int
	Expandable bool
	InScope    bool
	Format     Format
	Grouping   bool
}

func (e *Engine) info(n *node) Info {
	i := Info{
		Handle:     n.handle,
		Name:       n.name,
		Exp:        n.local,
		NumChild:   len(n.children),
		Expandable: n.expandable || len(n.children) > 0,
		InScope:    !n.outOfScope,
		Format:     n.format,
		Grouping:   n.grouping(),
	}
	if b := n.binding; b != nil {
		i.Path = b.text
		i.Type = b.typ
		i.Value = b.value
		i.Simple = b.simple
	}
	return i
}

// Create binds a new root variable object to text evaluated in the frame
// at frameAddr, or the current frame for expr.CurrentFrame. Passing
// AutoName generates a name. Nothing is registered when evaluation fails.
func (e *Engine) Create(ctx context.Context, name string, frameAddr int, text string) (_ Info, err error) {
	req, done := e.begin(ctx, "var-create", name)
	defer func() { done(0) }()

	if name == AutoName {
		name = fmt.Sprintf("var%d", e.autoName)
		e.autoName++
	}
	if name == All {
		return Info{}, NewError(BadArgumentFormat, "Variable name `*' is reserved")
	}
	if e.arena.taken(name) {
		return Info{}, NewError(NameCollision, "Variable name already taken")
	}
	n := e.arena.alloc(name, text, newBinding(frameAddr, text))
	defer func() {
		if err != nil {
			e.arena.free(n)
		}
	}()
	v, err := e.evaluate(req, n)
	if err != nil {
		return Info{}, err
	}
	if v == nil {
		return Info{}, NewError(EvaluationFailed, "Could not evaluate expression")
	}
	if err := e.expand(req, n, *v); err != nil {
		return Info{}, err
	}
	if !n.binding.ok() {
		return Info{}, NewError(EvaluationFailed, "Could not evaluate expression")
	}
	e.arena.walk(n, func(c *node) {
		if c.binding != nil {
			c.binding.outdate()
		}
	})
	e.arena.addRoot(n)
	e.log.WithFields(logrus.Fields{
		"cmd":  req.cmd,
		"var":  n.name,
		"expr": text,
	}).Debug("created variable object")
	return e.info(n), nil
}

// Delete removes the named object and its subtree. With childrenOnly the
// object itself is kept and its children are released; it will expand
// again on its next listing.
func (e *Engine) Delete(ctx context.Context, name string, childrenOnly bool) error {
	_, done := e.begin(ctx, "var-delete", name)
	defer done(0)
	n := e.arena.lookup(name)
	if n == nil {
		return NewError(NotFound, "Variable does not exist")
	}
	if !childrenOnly {
		e.arena.release(n)
		return nil
	}
	e.arena.releaseChildren(n)
	n.materialized = n.grouping()
	return nil
}

// Lookup returns the named object.
func (e *Engine) Lookup(name string) (Info, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.arena.lookup(name)
	if n == nil {
		return Info{}, false
	}
	return e.info(n), true
}

// Get returns the object with handle h.
func (e *Engine) Get(h Handle) (Info, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.arena.get(h)
	if n == nil {
		return Info{}, false
	}
	return e.info(n), true
}

// Roots returns the root objects in creation order.
func (e *Engine) Roots() []Info {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Info, 0, len(e.arena.roots))
	for _, h := range e.arena.roots {
		if n := e.arena.get(h); n != nil {
			out = append(out, e.info(n))
		}
	}
	return out
}

func (e *Engine) find(name string, missing string) (*node, error) {
	n := e.arena.lookup(name)
	if n == nil {
		return nil, NewError(NotFound, missing)
	}
	return n, nil
}

// Attributes reports the editability of the named object. Variable
// objects are never editable.
func (e *Engine) Attributes(ctx context.Context, name string) (string, error) {
	_, done := e.begin(ctx, "var-show-attributes", name)
	defer done(0)
	if _, err := e.find(name, "Missing variable"); err != nil {
		return "", err
	}
	return "noneditable", nil
}

// FormatOf returns the display format of the named object.
func (e *Engine) FormatOf(ctx context.Context, name string) (Format, error) {
	_, done := e.begin(ctx, "var-show-format", name)
	defer done(0)
	n, err := e.find(name, "Missing variable")
	if err != nil {
		return 0, err
	}
	return n.format, nil
}

// SetFormat changes the display format of the named object. The new
// format applies from the object's next evaluation.
func (e *Engine) SetFormat(ctx context.Context, name string, f Format) error {
	_, done := e.begin(ctx, "var-set-format", name)
	defer done(0)
	n, err := e.find(name, "Missing variable")
	if err != nil {
		return err
	}
	n.format = f
	if n.binding != nil {
		n.binding.evaluated = false
	}
	return nil
}

// InfoExpression returns the name of the object relative to its parent.
func (e *Engine) InfoExpression(ctx context.Context, name string) (string, error) {
	_, done := e.begin(ctx, "var-info-expression", name)
	defer done(0)
	n, err := e.find(name, "Missing variable")
	if err != nil {
		return "", err
	}
	return n.local, nil
}

// InfoPathExpression returns the full expression text of the object.
// Grouping objects have none.
func (e *Engine) InfoPathExpression(ctx context.Context, name string) (string, error) {
	_, done := e.begin(ctx, "var-info-path-expression", name)
	defer done(0)
	n, err := e.find(name, "Missing variable")
	if err != nil {
		return "", err
	}
	if n.binding == nil {
		return "", nil
	}
	return n.binding.text, nil
}

// NumChildren returns the number of materialized children of the object.
func (e *Engine) NumChildren(ctx context.Context, name string) (int, error) {
	_, done := e.begin(ctx, "var-info-num-children", name)
	defer done(0)
	n, err := e.find(name, "Missing variable")
	if err != nil {
		return 0, err
	}
	return len(n.children), nil
}

// Type returns the cached type of the object.
func (e *Engine) Type(ctx context.Context, name string) (string, error) {
	_, done := e.begin(ctx, "var-info-type", name)
	defer done(0)
	n, err := e.find(name, "Missing variable")
	if err != nil {
		return "", err
	}
	if n.binding == nil {
		return "", nil
	}
	return n.binding.typ, nil
}
