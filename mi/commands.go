// Copyright © 2024 The ELPS authors

package mi

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/luthersystems/varobj/expr"
	"github.com/luthersystems/varobj/target"
	"github.com/luthersystems/varobj/varobj"
)

// lang is reported by the info-expression commands.
const lang = "C++"

type reply struct {
	// class of the result record; "done" when empty.
	class  string
	fields []Field
	// async records follow the result record.
	async []string
}

type handler func(ctx context.Context, s *Server, args []string) (reply, error)

func commandTable() map[string]handler {
	return map[string]handler{
		"var-create":               varCreate,
		"var-delete":               varDelete,
		"var-update":               varUpdate,
		"var-evaluate-expression":  varEvaluateExpression,
		"var-show-attributes":      varShowAttributes,
		"var-show-format":          varShowFormat,
		"var-set-format":           varSetFormat,
		"var-list-children":        varListChildren,
		"var-info-expression":      varInfoExpression,
		"var-info-path-expression": varInfoPathExpression,
		"var-info-num-children":    varInfoNumChildren,
		"var-info-type":            varInfoType,
		"exec-continue":            execContinue,
		"exec-jump":                execJump,
		"data-write-memory-bytes":  dataWriteMemoryBytes,
		"info-gdb-mi-command":      infoMICommand,
		"gdb-exit":                 gdbExit,
	}
}

// Commands returns the names of all supported commands in sorted order.
func (s *Server) Commands() []string {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func usage(cmd, args string) error {
	return varobj.Errorf(varobj.BadArgumentCount, "-%s: Usage: %s.", cmd, args)
}

// parsePrintValues splits an optional leading print-values argument from
// args. Without one, def applies.
func parsePrintValues(args []string, def varobj.PrintValues) (varobj.PrintValues, []string, error) {
	if len(args) < 2 {
		return def, args, nil
	}
	pv, ok := varobj.ParsePrintValues(args[0])
	if !ok {
		return 0, nil, varobj.NewError(varobj.BadArgumentFormat,
			`Unknown value for PRINT_VALUES: must be: 0 or "--no-values", 1 or "--all-values", 2 or "--simple-values"`)
	}
	return pv, args[1:], nil
}

func parseFrame(s string) (int, error) {
	if s == "*" {
		return expr.CurrentFrame, nil
	}
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, varobj.NewError(varobj.BadArgumentFormat, "Bad frame address format")
	}
	return int(v), nil
}

func parseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, varobj.Errorf(varobj.BadArgumentFormat, "Invalid address %s", s)
	}
	return uint32(v), nil
}

func varCreate(ctx context.Context, s *Server, args []string) (reply, error) {
	if len(args) != 3 {
		return reply{}, usage("var-create", "NAME FRAME EXPRESSION")
	}
	frame, err := parseFrame(args[1])
	if err != nil {
		return reply{}, err
	}
	info, err := s.engine.Create(ctx, args[0], frame, args[2])
	if err != nil {
		return reply{}, err
	}
	fields := []Field{
		Str("name", info.Name),
		Int("numchild", info.NumChild),
		Str("type", info.Type),
	}
	if info.Simple && info.Value != "" {
		fields = append(fields, Str("value", info.Value))
	}
	return reply{fields: fields}, nil
}

func varDelete(ctx context.Context, s *Server, args []string) (reply, error) {
	childrenOnly := false
	switch {
	case len(args) == 2 && args[0] == "-c":
		childrenOnly = true
		args = args[1:]
	case len(args) != 1:
		return reply{}, usage("var-delete", "[-c] NAME")
	}
	return reply{}, s.engine.Delete(ctx, args[0], childrenOnly)
}

func varUpdate(ctx context.Context, s *Server, args []string) (reply, error) {
	pv, args, err := parsePrintValues(args, varobj.NoValues)
	if err != nil {
		return reply{}, err
	}
	if len(args) != 1 {
		return reply{}, usage("var-update", "[PRINT_VALUES] NAME")
	}
	changes, err := s.engine.Update(ctx, args[0])
	if err != nil {
		return reply{}, err
	}
	list := make(List, 0, len(changes))
	for _, c := range changes {
		t := Tuple{Str("name", c.Name)}
		if c.InScope {
			if v, ok := varobj.Display(pv, c.Value, c.Simple); ok {
				t = append(t, Str("value", v))
			}
		}
		t = append(t, Bool("in_scope", c.InScope), Bool("type_changed", c.TypeChanged))
		list = append(list, t)
	}
	return reply{fields: []Field{{Name: "changelist", Value: list}}}, nil
}

func varEvaluateExpression(ctx context.Context, s *Server, args []string) (reply, error) {
	if len(args) != 1 {
		return reply{}, usage("var-evaluate-expression", "NAME")
	}
	v, err := s.engine.Evaluate(ctx, args[0])
	if err != nil {
		return reply{}, err
	}
	return reply{fields: []Field{Str("value", v)}}, nil
}

func varShowAttributes(ctx context.Context, s *Server, args []string) (reply, error) {
	if len(args) != 1 {
		return reply{}, usage("var-show-attributes", "NAME")
	}
	attr, err := s.engine.Attributes(ctx, args[0])
	if err != nil {
		return reply{}, err
	}
	return reply{fields: []Field{Str("status", attr)}}, nil
}

func varShowFormat(ctx context.Context, s *Server, args []string) (reply, error) {
	if len(args) != 1 {
		return reply{}, usage("var-show-format", "NAME")
	}
	f, err := s.engine.FormatOf(ctx, args[0])
	if err != nil {
		return reply{}, err
	}
	return reply{fields: []Field{Str("format", f.String())}}, nil
}

func varSetFormat(ctx context.Context, s *Server, args []string) (reply, error) {
	if len(args) != 2 {
		return reply{}, usage("var-set-format", "NAME FORMAT")
	}
	f, err := varobj.ParseFormat(args[1])
	if err != nil {
		return reply{}, err
	}
	return reply{}, s.engine.SetFormat(ctx, args[0], f)
}

func varListChildren(ctx context.Context, s *Server, args []string) (reply, error) {
	pv, args, err := parsePrintValues(args, s.printValues)
	if err != nil {
		return reply{}, err
	}
	if len(args) != 1 {
		return reply{}, usage("var-list-children", "[PRINT_VALUES] NAME")
	}
	_, children, err := s.engine.ListChildren(ctx, args[0])
	if err != nil {
		return reply{}, err
	}
	list := make(Results, 0, len(children))
	for _, c := range children {
		t := Tuple{
			Str("name", c.Name),
			Int("numchild", c.NumChild),
		}
		if !c.Grouping {
			if v, ok := varobj.Display(pv, c.Value, c.Simple); ok {
				t = append(t, Str("value", v))
			}
		}
		t = append(t, Str("type", c.Type), Str("exp", c.Exp))
		list = append(list, Field{Name: "child", Value: t})
	}
	return reply{fields: []Field{
		Int("numchild", len(children)),
		{Name: "children", Value: list},
	}}, nil
}

func varInfoExpression(ctx context.Context, s *Server, args []string) (reply, error) {
	if len(args) != 1 {
		return reply{}, usage("var-info-expression", "NAME")
	}
	exp, err := s.engine.InfoExpression(ctx, args[0])
	if err != nil {
		return reply{}, err
	}
	return reply{fields: []Field{Str("lang", lang), Str("exp", exp)}}, nil
}

func varInfoPathExpression(ctx context.Context, s *Server, args []string) (reply, error) {
	if len(args) != 1 {
		return reply{}, usage("var-info-path-expression", "NAME")
	}
	exp, err := s.engine.InfoPathExpression(ctx, args[0])
	if err != nil {
		return reply{}, err
	}
	return reply{fields: []Field{Str("lang", lang), Str("exp", exp)}}, nil
}

func varInfoNumChildren(ctx context.Context, s *Server, args []string) (reply, error) {
	if len(args) != 1 {
		return reply{}, usage("var-info-num-children", "NAME")
	}
	n, err := s.engine.NumChildren(ctx, args[0])
	if err != nil {
		return reply{}, err
	}
	return reply{fields: []Field{Int("numchild", n)}}, nil
}

func varInfoType(ctx context.Context, s *Server, args []string) (reply, error) {
	if len(args) != 1 {
		return reply{}, usage("var-info-type", "NAME")
	}
	typ, err := s.engine.Type(ctx, args[0])
	if err != nil {
		return reply{}, err
	}
	return reply{fields: []Field{Str("type", typ)}}, nil
}

func stopped(regs target.Registers) string {
	return Record("", ExecRecord, "stopped",
		Str("reason", "end-stepping-range"),
		Field{Name: "frame", Value: Tuple{
			Str("addr", fmt.Sprintf("0x%08x", regs.PC)),
			Str("fp", fmt.Sprintf("0x%08x", regs.FP)),
		}},
	)
}

func execContinue(ctx context.Context, s *Server, args []string) (reply, error) {
	if len(args) != 0 {
		return reply{}, varobj.NewError(varobj.BadArgumentCount, "-exec-continue: takes no arguments.")
	}
	if s.control.Exited() {
		return reply{}, target.ErrExited
	}
	regs, err := s.control.Continue()
	if errors.Is(err, target.ErrExited) {
		return reply{
			class: "running",
			async: []string{Record("", ExecRecord, "stopped", Str("reason", "exited-normally"))},
		}, nil
	}
	if err != nil {
		return reply{}, err
	}
	return reply{class: "running", async: []string{stopped(regs)}}, nil
}

func execJump(ctx context.Context, s *Server, args []string) (reply, error) {
	if len(args) != 1 {
		return reply{}, usage("exec-jump", "ADDRESS")
	}
	pc, err := parseAddr(args[0])
	if err != nil {
		return reply{}, err
	}
	if err := s.control.Jump(pc); err != nil {
		return reply{}, err
	}
	return reply{class: "running", async: []string{stopped(s.control.Registers())}}, nil
}

func dataWriteMemoryBytes(ctx context.Context, s *Server, args []string) (reply, error) {
	if len(args) != 2 {
		return reply{}, usage("data-write-memory-bytes", "ADDRESS CONTENTS")
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		return reply{}, err
	}
	b, err := hex.DecodeString(args[1])
	if err != nil {
		return reply{}, varobj.NewError(varobj.BadArgumentFormat, "Hex-encoded contents expected")
	}
	if err := s.control.WriteMemory(addr, b); err != nil {
		return reply{}, err
	}
	return reply{}, nil
}

func infoMICommand(ctx context.Context, s *Server, args []string) (reply, error) {
	if len(args) != 1 {
		return reply{}, usage("info-gdb-mi-command", "COMMAND")
	}
	name := args[0]
	if len(name) > 0 && name[0] == '-' {
		name = name[1:]
	}
	_, ok := s.commands[name]
	return reply{fields: []Field{{Name: "command", Value: Tuple{Bool("exists", ok)}}}}, nil
}

func gdbExit(ctx context.Context, s *Server, args []string) (reply, error) {
	return reply{class: "exit"}, nil
}
