// Package output renders CLI results as styled text, markdown or JSON.
//
// The mode comes from the output config key. Auto picks text on a
// terminal and markdown otherwise, so piped output stays free of escape
// codes.
package output

import (
	"fmt"
	"strings"
)

// Mode is an output format.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// ParseMode returns the mode named s. Empty means auto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeText, ModeMarkdown, ModeJSON:
		return m, nil
	case "md":
		return ModeMarkdown, nil
	default:
		return "", fmt.Errorf("unknown output mode %q", s)
	}
}
