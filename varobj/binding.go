// Copyright © 2024 The ELPS authors

package varobj

import (
	"github.com/luthersystems/varobj/expr"
	"github.com/luthersystems/varobj/target"
)

// binding ties one expression at one frame to the last observed
// evaluation of it.
type binding struct {
	frameAddr int
	text      string
	tree      *expr.Tree // parsed on first evaluation

	typ    string
	value  string
	simple bool
	// updated is set when the last cache update differed from the cache
	// before it, or when the owning node crossed a scope boundary.
	updated bool
	// epoch is the resume epoch of the last cache update. The cache is
	// valid only while no resume happened since.
	epoch     uint64
	evaluated bool
	// cached is set by the first cache update, which is never a change.
	cached bool
	// scopeChanged defers a scope regain until the next cache update.
	scopeChanged bool
}

func newBinding(frameAddr int, text string) *binding {
	return &binding{frameAddr: frameAddr, text: text}
}

func (b *binding) updateCache(value, typ string, simple bool, epoch uint64) {
	differs := b.cached && (value != b.value || typ != b.typ || simple != b.simple)
	b.value, b.typ, b.simple = value, typ, simple
	b.cached = true
	b.updated = differs || b.scopeChanged
	b.scopeChanged = false
	b.epoch = epoch
	b.evaluated = true
}

func (b *binding) valid(epoch uint64) bool {
	return b.evaluated && b.epoch == epoch
}

// ok reports whether a type was ever recorded.
func (b *binding) ok() bool { return b.typ != "" }

func (b *binding) outdate() { b.updated = false }

// inScope tests every symbol the last evaluation resolved against the
// current pc.
func inScope(tgt Target, syms []target.Symbol) bool {
	if len(syms) == 0 {
		return true
	}
	pc := tgt.PC()
	for _, sym := range syms {
		switch sym.Scope.Kind {
		case target.Static:
			file := tgt.FileScope(pc)
			if file == target.NoFile || file != sym.Scope.File {
				return false
			}
		case target.Local:
			if !sym.Scope.Contains(pc) {
				return false
			}
		}
	}
	return true
}
