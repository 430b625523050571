package scanner

import (
	"path/filepath"
	"strings"
)

// Filter applies the extension, exclude and ignore-file rules of Options to
// slash-separated paths relative to Root.
type Filter struct {
	exts     map[string]bool
	patterns []string
	ignore   *ignoreRules
}

// NewFilter builds the rules of opts, reading IgnoreFileName from opts.Root
// unless NoIgnoreFile is set.
func NewFilter(opts Options) (*Filter, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}

	f := &Filter{
		exts:     normalizeExtensions(opts.Extensions),
		patterns: opts.ExcludePatterns,
		ignore:   &ignoreRules{},
	}
	if !opts.NoIgnoreFile {
		rules, err := loadIgnoreFile(filepath.Join(root, IgnoreFileName))
		if err != nil {
			return nil, err
		}
		f.ignore = rules
	}
	return f, nil
}

// SkipDir reports whether the directory rel and everything below it is
// excluded.
func (f *Filter) SkipDir(rel string) bool {
	return shouldExcludeDir(rel, f.patterns) || f.ignore.Match(rel, true)
}

// Accept reports whether the regular file rel is scanned.
func (f *Filter) Accept(rel string) bool {
	if !f.exts[strings.ToLower(filepath.Ext(rel))] {
		return false
	}
	return !shouldExcludeFile(rel, f.patterns) && !f.ignore.Match(rel, false)
}
