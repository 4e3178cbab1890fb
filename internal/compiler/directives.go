package compiler

import (
	"regexp"
	"strings"
)

// Directives are per-script compiler flags read from the comment attached
// to a script's top block. The first comment line starting with "tw" is
// read as space separated flags:
//
//	tw nocompile   compilation fails with E_DISABLED
//	tw stuck       warp loops check the stuck budget
type Directives struct {
	NoCompile bool
	Stuck     bool
}

var directiveLine = regexp.MustCompile(`^tw\b`)

// ParseDirectives reads the directives in a comment. Unknown flags are
// ignored.
func ParseDirectives(comment string) Directives {
	var d Directives
	for _, line := range strings.Split(comment, "\n") {
		if !directiveLine.MatchString(line) {
			continue
		}
		for _, flag := range strings.Split(line, " ")[1:] {
			switch flag {
			case "nocompile":
				d.NoCompile = true
			case "stuck":
				d.Stuck = true
			}
		}
		break
	}
	return d
}
