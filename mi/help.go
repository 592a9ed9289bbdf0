// Copyright © 2024 The ELPS authors

package mi

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
)

type commandDoc struct {
	usage string
	doc   string
}

var commandDocs = map[string]commandDoc{
	"var-create": {"NAME FRAME EXPRESSION",
		`Create a variable object NAME bound to EXPRESSION. NAME "-" generates
a name. FRAME is "*" for the current frame or a frame address.`},
	"var-delete": {"[-c] NAME",
		`Delete the variable object NAME and its children. With -c only the
children are deleted.`},
	"var-update": {"[PRINT_VALUES] NAME",
		`Re-evaluate NAME, or every root variable object when NAME is "*", and
list the objects that changed. Values are listed only when PRINT_VALUES
asks for them.`},
	"var-evaluate-expression": {"NAME",
		`Print the value of NAME. Composite objects print as {...}.`},
	"var-show-attributes": {"NAME",
		`Show whether NAME is editable.`},
	"var-show-format": {"NAME",
		`Show the display format of NAME.`},
	"var-set-format": {"NAME FORMAT",
		`Set the display format of NAME to one of natural, hexadecimal, binary,
decimal or octal.`},
	"var-list-children": {"[PRINT_VALUES] NAME",
		`List the children of NAME, creating them on first use.`},
	"var-info-expression": {"NAME",
		`Show the expression of NAME relative to its parent.`},
	"var-info-path-expression": {"NAME",
		`Show the full expression of NAME.`},
	"var-info-num-children": {"NAME",
		`Show the number of children NAME currently has.`},
	"var-info-type": {"NAME",
		`Show the type of NAME.`},
	"exec-continue": {"",
		`Resume the program until it stops again.`},
	"exec-jump": {"ADDRESS",
		`Resume the program at ADDRESS.`},
	"data-write-memory-bytes": {"ADDRESS CONTENTS",
		`Write the hex encoded CONTENTS to memory at ADDRESS.`},
	"info-gdb-mi-command": {"COMMAND",
		`Report whether COMMAND is supported.`},
	"gdb-exit": {"",
		`End the session.`},
}

// Help writes a summary of every command to w, wrapped at width columns.
func Help(w io.Writer, width int) error {
	names := make([]string, 0, len(commandDocs))
	for name := range commandDocs {
		names = append(names, name)
	}
	sort.Strings(names)
	wrap := width - 4
	if wrap < 20 {
		wrap = 20
	}
	for _, name := range names {
		d := commandDocs[name]
		if _, err := fmt.Fprintln(w, strings.TrimSpace("-"+name+" "+d.usage)); err != nil {
			return err
		}
		doc := indent.String(wordwrap.String(strings.ReplaceAll(d.doc, "\n", " "), wrap), 4)
		if _, err := fmt.Fprintln(w, doc); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "\nPRINT_VALUES is 0 or --no-values, 1 or --all-values, 2 or --simple-values.")
	return err
}
