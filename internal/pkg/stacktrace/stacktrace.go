// Package stacktrace trims goroutine dumps down to this module's frames.
package stacktrace

import (
	"bufio"
	"bytes"
	"strings"
)

// InternalPaths returns "internal/<pkg>/<file>.go:<line>" for every frame
// under an internal/ directory, in stack order.
func InternalPaths(stack []byte) []string {
	var paths []string

	sc := bufio.NewScanner(bytes.NewReader(stack))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		at := strings.Index(line, "/internal/")
		if at < 0 || !strings.Contains(line, ".go:") {
			continue
		}

		frame, _, _ := strings.Cut(line[at+1:], " ")
		paths = append(paths, frame)
	}

	return paths
}
