// Copyright © 2024 The ELPS authors

package dapserver

import (
	"fmt"

	"github.com/google/go-dap"

	"github.com/luthersystems/varobj/target"
	"github.com/luthersystems/varobj/varobj"
)

// threadID is the only thread of the simulated target.
const threadID = 1

// Variable references. The watch scope lists the root variable objects;
// every other reference is a variable object handle offset by nodeRefBase.
const (
	watchRef    = 1
	nodeRefBase = 1000
)

func nodeRef(h varobj.Handle) int {
	return int(h) + nodeRefBase
}

func refHandle(ref int) (varobj.Handle, bool) {
	if ref < nodeRefBase {
		return 0, false
	}
	return varobj.Handle(ref - nodeRefBase), true
}

func translateFrame(regs target.Registers) dap.StackFrame {
	pc := fmt.Sprintf("0x%08x", regs.PC)
	return dap.StackFrame{
		Id:                          1,
		Name:                        pc,
		InstructionPointerReference: pc,
	}
}

// translateVariables converts variable objects to DAP variables. Roots are
// named by their full name, children by their name relative to the
// parent.
func translateVariables(infos []varobj.Info, roots bool) []dap.Variable {
	vars := make([]dap.Variable, 0, len(infos))
	for _, info := range infos {
		vars = append(vars, translateVariable(info, roots))
	}
	return vars
}

func translateVariable(info varobj.Info, root bool) dap.Variable {
	v := dap.Variable{
		Name:         info.Exp,
		Type:         info.Type,
		EvaluateName: info.Path,
	}
	if root {
		v.Name = info.Name
	}
	switch {
	case !info.InScope:
		v.Value = "<out of scope>"
	case info.Grouping:
		v.Value = ""
	case info.Simple:
		v.Value = info.Value
	default:
		v.Value = varobj.CompositeValue
	}
	if info.Expandable && info.InScope {
		v.VariablesReference = nodeRef(info.Handle)
	}
	return v
}
