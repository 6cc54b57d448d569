// Package pathcodec converts wiki paths into the ancestor chains used by the
// path index, access resolution and notifications.
package pathcodec

import (
	"fmt"
	"strings"

	"github.com/emrgen/wikinote/internal/apperr"
)

// Root is the path of the top level page.
const Root = "/"

// Normalize lowercases the path, collapses repeated slashes and trims trailing
// ones, keeping the root as "/". An empty path is treated as the root. Paths
// with "." or ".." segments are rejected.
func Normalize(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Root, nil
	}
	if path[0] != '/' {
		return "", fmt.Errorf("%w: path should start from slash: %s", apperr.ErrInvalidPath, path)
	}

	path = strings.ToLower(path)
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	for _, step := range strings.Split(path[1:], "/") {
		if step == "." || step == ".." {
			return "", fmt.Errorf("%w: relative segment %q in %s", apperr.ErrInvalidPath, step, path)
		}
	}

	return path, nil
}

// Prefixes returns the ancestor chain of path from the root down to the path itself.
// Empty segments are skipped, so "/a//b" yields ["/", "/a", "/a/b"].
func Prefixes(path string) ([]string, error) {
	if path == "" || path[0] != '/' {
		return nil, fmt.Errorf("%w: path should start from slash: %s", apperr.ErrInvalidPath, path)
	}

	result := []string{Root}
	current := ""
	for _, step := range strings.Split(path[1:], "/") {
		if step == "" {
			continue
		}
		current += "/" + step
		result = append(result, current)
	}

	return result, nil
}

// Parent returns the immediate parent of path. The root has no parent.
func Parent(path string) (string, bool) {
	prefixes, err := Prefixes(path)
	if err != nil || len(prefixes) < 2 {
		return "", false
	}

	return prefixes[len(prefixes)-2], true
}

// Depth is the number of prefixes of path, the root has depth 1.
func Depth(path string) int {
	prefixes, err := Prefixes(path)
	if err != nil {
		return 0
	}

	return len(prefixes)
}

// LastSegment returns the final path segment, empty for the root.
func LastSegment(path string) string {
	return path[strings.LastIndex(path, "/")+1:]
}

// Rebase moves path from under the from cluster to under the to cluster.
// It reports false when path is not inside the from cluster.
func Rebase(path, from, to string) (string, bool) {
	if path == from {
		return to, true
	}

	prefix := from
	if from != Root {
		prefix += "/"
	}
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}

	relative := path[len(from):]
	if from == Root {
		relative = path
	}
	if to == Root {
		return relative, true
	}

	return to + relative, true
}

// Crumb is one step of a breadcrumb trail.
type Crumb struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Breadcrumbs splits path into named steps, the root is not included.
func Breadcrumbs(path string) []Crumb {
	var result []Crumb
	full := ""
	for _, step := range strings.Split(path, "/") {
		if step == "" {
			continue
		}
		full += "/" + step
		result = append(result, Crumb{Name: step, Path: full})
	}

	return result
}
