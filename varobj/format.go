// Copyright © 2024 The ELPS authors

package varobj

import (
	"fmt"

	"github.com/luthersystems/varobj/target"
)

// Format is the display format of a variable object.
type Format = target.Format

// ParseFormat accepts "natural", "hexadecimal", "binary", "decimal" and
// "octal".
func ParseFormat(s string) (Format, error) {
	f, ok := target.ParseFormat(s)
	if !ok {
		return target.Natural, NewError(InvalidFormat, "Invalid format")
	}
	return f, nil
}

// PrintValues selects which values accompany a listing.
type PrintValues int

const (
	NoValues     PrintValues = 0
	AllValues    PrintValues = 1
	SimpleValues PrintValues = 2
)

func (pv PrintValues) String() string {
	switch pv {
	case NoValues:
		return "--no-values"
	case AllValues:
		return "--all-values"
	case SimpleValues:
		return "--simple-values"
	}
	return fmt.Sprintf("print-values(%d)", int(pv))
}

// ParsePrintValues accepts the long option names and their numeric
// aliases 0, 1 and 2.
func ParsePrintValues(s string) (PrintValues, bool) {
	switch s {
	case "0", "--no-values":
		return NoValues, true
	case "1", "--all-values":
		return AllValues, true
	case "2", "--simple-values":
		return SimpleValues, true
	}
	return NoValues, false
}

// CompositeValue is shown in place of the value of a non-simple object.
const CompositeValue = "{...}"

// Display returns the value to show for an object under pv and whether any
// value should be shown at all. Composite objects show CompositeValue.
func Display(pv PrintValues, value string, simple bool) (string, bool) {
	switch pv {
	case AllValues, SimpleValues:
		if simple {
			return value, true
		}
		return CompositeValue, true
	}
	return "", false
}
