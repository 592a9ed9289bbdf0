// Copyright © 2024 The ELPS authors

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ergochat/readline"

	"github.com/luthersystems/varobj/mi"
	"github.com/luthersystems/varobj/varobj"
)

// helpWidth is the column the console wraps help text at.
const helpWidth = 80

// runConsole reads requests with line editing until the session ends.
func runConsole(ctx context.Context, srv *mi.Server, engine *varobj.Engine, stdin io.ReadCloser, stdout io.Writer) error {
	rl, err := readline.NewEx(&readline.Config{
		Stdin:             stdin,
		Stdout:            stdout,
		Stderr:            stdout,
		Prompt:            mi.Prompt,
		HistoryFile:       historyPath(),
		HistorySearchFold: true,
		AutoComplete:      &consoleCompleter{commands: srv.Commands(), engine: engine},
	})
	if err != nil {
		return err
	}
	defer rl.Close() //nolint:errcheck // best-effort cleanup

	for {
		line, err := rl.ReadLine()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "help", "h":
			if err := mi.Help(stdout, helpWidth); err != nil {
				return err
			}
			continue
		case "quit", "q":
			return nil
		}
		resp := srv.Execute(ctx, line)
		fmt.Fprintln(stdout, resp.String()) //nolint:errcheck
		if resp.Exit {
			return nil
		}
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".varobj_history")
}

// consoleCompleter implements readline.AutoCompleter for the console. The
// first word completes to a command, later words to root variable object
// names.
type consoleCompleter struct {
	commands []string
	engine   *varobj.Engine
}

func (c *consoleCompleter) Do(line []rune, pos int) ([][]rune, int) {
	// Extract prefix (word being typed).
	start := pos
	for start > 0 {
		ch := line[start-1]
		if ch == ' ' || ch == '\t' {
			break
		}
		start--
	}
	prefix := string(line[start:pos])
	firstWord := strings.TrimSpace(string(line[:start])) == ""

	var candidates []string
	if firstWord {
		dash := strings.HasPrefix(prefix, "-")
		for _, cmd := range append([]string{"help", "quit"}, c.commands...) {
			if dash {
				cmd = "-" + cmd
			}
			if strings.HasPrefix(cmd, prefix) {
				candidates = append(candidates, cmd)
			}
		}
	} else {
		for _, root := range c.engine.Roots() {
			if strings.HasPrefix(root.Name, prefix) {
				candidates = append(candidates, root.Name)
			}
		}
	}
	sort.Strings(candidates)

	result := make([][]rune, 0, len(candidates))
	for _, cand := range candidates {
		result = append(result, []rune(cand[len(prefix):]))
	}
	return result, len(prefix)
}
