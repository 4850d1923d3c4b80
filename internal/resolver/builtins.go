package resolver

import (
	_ "embed"
	"strings"
)

//go:embed stdlib/python.txt
var pythonBuiltinsData string

var pythonBuiltins = map[string]bool{}

func init() {
	for _, line := range strings.Split(pythonBuiltinsData, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			pythonBuiltins[line] = true
		}
	}
}
