package sandbox

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CanonicalRoot returns the absolute, symlink-free form of root.
func CanonicalRoot(root string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", fmt.Errorf("sandbox root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root %q: %w", root, err)
	}
	return canonicalize(abs), nil
}

// Resolve joins target onto root and returns its canonical absolute path.
// Absolute targets are taken as-is. The result is either root itself or a
// descendant of it; anything else yields ErrOutsideRoot.
func Resolve(root, target string) (string, error) {
	canonRoot, err := CanonicalRoot(root)
	if err != nil {
		return "", err
	}

	candidate := target
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(canonRoot, candidate)
	}
	resolved := canonicalize(candidate)

	if !Within(canonRoot, resolved) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, target)
	}
	return resolved, nil
}

// Within reports whether target equals root or lies beneath it. Both paths
// must already be canonical.
func Within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// canonicalize resolves symlinks on the deepest existing ancestor of p and
// re-attaches the remaining components, so paths that do not exist yet are
// still judged by where their parents really live.
func canonicalize(p string) string {
	p = filepath.Clean(p)

	var suffix []string
	cur := p
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			parts := make([]string, 0, len(suffix)+1)
			parts = append(parts, resolved)
			for i := len(suffix) - 1; i >= 0; i-- {
				parts = append(parts, suffix[i])
			}
			return filepath.Join(parts...)
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return p
		}
		suffix = append(suffix, filepath.Base(cur))
		cur = parent
	}
}
