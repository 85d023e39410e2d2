package walker

import (
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ignoreRule is one line of a .gitignore file.
type ignoreRule struct {
	pattern  string
	negate   bool // "!pattern" re-includes a path.
	dirOnly  bool // "pattern/" only matches directories.
	anchored bool // patterns with a slash match the full relative path.
}

// ignoreRules is the subset of .gitignore semantics needed for a corpus
// root: comments, negation, directory-only and anchored patterns. Only the
// root file is read.
type ignoreRules []ignoreRule

func loadIgnoreRules(file string) ignoreRules {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil
	}
	var rules ignoreRules
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var r ignoreRule
		if rest, ok := strings.CutPrefix(line, "!"); ok {
			r.negate = true
			line = rest
		}
		if rest, ok := strings.CutSuffix(line, "/"); ok {
			r.dirOnly = true
			line = rest
		}
		if strings.Contains(line, "/") {
			r.anchored = true
			line = strings.TrimPrefix(line, "/")
		}
		if line == "" {
			continue
		}
		r.pattern = line
		rules = append(rules, r)
	}
	return rules
}

// match reports whether rel is ignored. The last matching rule wins.
func (rules ignoreRules) match(rel string, isDir bool) bool {
	ignored := false
	base := path.Base(rel)
	for _, r := range rules {
		if r.dirOnly && !isDir {
			continue
		}
		target := base
		if r.anchored {
			target = rel
		}
		if ok, _ := doublestar.Match(r.pattern, target); ok {
			ignored = !r.negate
		}
	}
	return ignored
}
