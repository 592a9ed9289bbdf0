// Copyright © 2024 The ELPS authors

package mi

import (
	"strconv"
	"strings"
)

// Value is an MI output value: a Const, a Tuple, a List or a Results list.
type Value interface {
	write(b *strings.Builder)
}

// Const is a C string constant.
type Const string

// Tuple is a brace enclosed set of results, {a="1",b="2"}.
type Tuple []Field

// List is a bracketed list of values, ["1","2"].
type List []Value

// Results is a bracketed list of results, [child={...},child={...}].
type Results []Field

// Field is a single name=value result.
type Field struct {
	Name  string
	Value Value
}

// Str returns a result with a constant value.
func Str(name, value string) Field {
	return Field{Name: name, Value: Const(value)}
}

// Int returns a result with a decimal constant value.
func Int(name string, v int) Field {
	return Str(name, strconv.Itoa(v))
}

// Bool returns a result with the constant "true" or "false".
func Bool(name string, v bool) Field {
	return Str(name, strconv.FormatBool(v))
}

func (c Const) write(b *strings.Builder) {
	b.WriteString(Quote(string(c)))
}

func (t Tuple) write(b *strings.Builder) {
	b.WriteByte('{')
	writeFields(b, t)
	b.WriteByte('}')
}

func (l List) write(b *strings.Builder) {
	b.WriteByte('[')
	for i, v := range l {
		if i > 0 {
			b.WriteByte(',')
		}
		v.write(b)
	}
	b.WriteByte(']')
}

func (r Results) write(b *strings.Builder) {
	b.WriteByte('[')
	writeFields(b, r)
	b.WriteByte(']')
}

func writeFields(b *strings.Builder, fields []Field) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.Name)
		b.WriteByte('=')
		f.Value.write(b)
	}
}

// Record prefixes.
const (
	ResultRecord = '^'
	ExecRecord   = '*'
	NotifyRecord = '='
)

// Record formats an output record such as 12^done,name="x".
func Record(token string, prefix byte, class string, fields ...Field) string {
	var b strings.Builder
	b.WriteString(token)
	b.WriteByte(prefix)
	b.WriteString(class)
	for _, f := range fields {
		b.WriteByte(',')
		b.WriteString(f.Name)
		b.WriteByte('=')
		f.Value.write(&b)
	}
	return b.String()
}

// Quote returns s as a double quoted C string.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if c < 0x20 || c == 0x7f {
				b.WriteByte('\\')
				b.WriteString(strconv.FormatInt(int64(c)|0o1000, 8)[1:])
				continue
			}
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
