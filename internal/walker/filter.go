package walker

import (
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExcludes are directory names never descended into.
var DefaultExcludes = []string{
	".git",
	"node_modules",
	"vendor",
	"__pycache__",
	".ctxpack",
	".venv",
	".idea",
	".vscode",
}

// IsExcludedDir reports whether a directory name is one of DefaultExcludes.
func IsExcludedDir(name string) bool {
	return slices.ContainsFunc(DefaultExcludes, func(excl string) bool {
		return strings.EqualFold(name, excl)
	})
}

// MatchesInclude reports whether relPath matches one of patterns. An empty
// pattern list includes everything.
func MatchesInclude(relPath string, patterns []string) bool {
	return len(patterns) == 0 || matchGlobs(relPath, patterns)
}

// MatchesExclude reports whether relPath matches one of patterns.
func MatchesExclude(relPath string, patterns []string) bool {
	return len(patterns) > 0 && matchGlobs(relPath, patterns)
}

// matchGlobs tries each pattern against the full path and then against the
// base name, so "*.md" selects markdown files at any depth.
func matchGlobs(relPath string, patterns []string) bool {
	base := path.Base(relPath)
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, relPath); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, base); ok {
			return true
		}
	}
	return false
}

// filter holds the rules applied during one walk.
type filter struct {
	include []string
	exclude []string
	formats []Format
	ignore  ignoreRules
}

func newFilter(root string, cfg WalkerConfig) *filter {
	f := &filter{
		include: normalizeGlobs(cfg.Include),
		exclude: normalizeGlobs(cfg.Exclude),
		formats: cfg.Formats,
		ignore:  loadIgnoreRules(filepath.Join(root, ".gitignore")),
	}
	if len(f.formats) == 0 {
		f.formats = DocumentFormats
	}
	return f
}

func (f *filter) skipDir(rel, name string) bool {
	return IsExcludedDir(name) || f.ignore.match(rel, true)
}

func (f *filter) accept(rel string, format Format) bool {
	if !slices.Contains(f.formats, format) {
		return false
	}
	if f.ignore.match(rel, false) {
		return false
	}
	return MatchesInclude(rel, f.include) && !MatchesExclude(rel, f.exclude)
}

func normalizeGlobs(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(toSlash(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
