package merkle

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultIgnorePatterns are always excluded from the tree: VCS metadata,
// dependency and build output directories, and compiled artifacts.
var DefaultIgnorePatterns = []string{
	".git", ".svn", ".hg", ".DS_Store",
	"__pycache__", "node_modules", ".venv", "venv",
	"*.egg-info", "dist", "build", ".pytest_cache",
	".mypy_cache", ".tox", "coverage", ".coverage",
	"*.pyc", "*.pyo", "*.pyd", "*.so", "*.dll", "*.dylib",
	"*.class", "*.o", "*.obj", "*.exe", "*.bin",
}

// Matcher decides whether a slash-separated relative path is ignored.
//
// A pattern without a slash is matched against every path segment, so
// "node_modules" excludes that directory at any depth and "*.log" excludes
// log files anywhere. A pattern with a slash is matched against the whole
// relative path and everything beneath it ("docs/**/*.md", "tmp/cache").
type Matcher struct {
	segment []string
	full    []string
}

// NewMatcher compiles patterns on top of DefaultIgnorePatterns
func NewMatcher(patterns ...string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range append(append([]string{}, DefaultIgnorePatterns...), patterns...) {
		p = strings.TrimSpace(p)
		p = strings.TrimSuffix(p, "/")
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}
		if strings.Contains(p, "/") {
			m.full = append(m.full, strings.TrimPrefix(p, "/"))
		} else {
			m.segment = append(m.segment, p)
		}
	}
	return m, nil
}

// Match reports whether rel (slash separated, relative to the root) is ignored
func (m *Matcher) Match(rel string) bool {
	if m == nil || rel == "" || rel == "." {
		return false
	}
	for _, seg := range strings.Split(rel, "/") {
		for _, p := range m.segment {
			if ok, _ := doublestar.Match(p, seg); ok {
				return true
			}
		}
	}
	for _, p := range m.full {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(path.Join(p, "**"), rel); ok {
			return true
		}
	}
	return false
}
