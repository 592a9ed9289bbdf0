// Copyright © 2024 The ELPS authors

package mi

import (
	"fmt"
	"strings"
)

// Command is one parsed request line.
type Command struct {
	// Token is the optional numeric prefix echoed on the result record.
	Token string
	Name  string
	Args  []string
}

// ParseCommand splits a request line of the form
//
//	[token][-]name arg...
//
// Arguments are separated by blanks. Double quoted arguments may contain
// blanks and C escapes.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	var cmd Command
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	cmd.Token = line[:i]
	line = strings.TrimPrefix(line[i:], "-")
	args, err := splitArgs(line)
	if err != nil {
		return cmd, err
	}
	if len(args) == 0 {
		return cmd, fmt.Errorf("empty command")
	}
	cmd.Name = args[0]
	cmd.Args = args[1:]
	return cmd, nil
}

func splitArgs(s string) ([]string, error) {
	var args []string
	for {
		s = strings.TrimLeft(s, " \t")
		if s == "" {
			return args, nil
		}
		if s[0] != '"' {
			end := strings.IndexAny(s, " \t")
			if end < 0 {
				end = len(s)
			}
			args = append(args, s[:end])
			s = s[end:]
			continue
		}
		arg, rest, err := unquote(s)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		s = rest
	}
}

// unquote reads the C string at the start of s and returns its contents
// and the remainder of s.
func unquote(s string) (string, string, error) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			return b.String(), s[i+1:], nil
		case '\\':
			i++
			if i >= len(s) {
				return "", "", fmt.Errorf("unterminated string in command")
			}
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(s[i])
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", "", fmt.Errorf("unterminated string in command")
}
