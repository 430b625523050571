package scanner

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// ignoreRules holds compiled gitignore-style patterns. Later rules win, so
// a "!" rule can re-include a path excluded above it.
type ignoreRules struct {
	rules []ignoreRule
}

type ignoreRule struct {
	regex    *regexp.Regexp
	negation bool // starts with !
	dirOnly  bool // ends with /
	anchored bool // leading / or an inner /
}

// loadIgnoreFile reads path. A missing file yields empty rules.
func loadIgnoreFile(path string) (*ignoreRules, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return &ignoreRules{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open ignore file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return parseIgnore(f)
}

func parseIgnore(r io.Reader) (*ignoreRules, error) {
	ig := &ignoreRules{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		ig.add(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ignore file: %w", err)
	}
	return ig, nil
}

// add compiles one line. Blank lines and comments are skipped.
func (ig *ignoreRules) add(line string) {
	// "\ " at the end keeps a trailing space
	escapedSpace := strings.HasSuffix(line, `\ `)
	p := strings.TrimSpace(line)
	if p == "" || strings.HasPrefix(p, "#") {
		return
	}

	var r ignoreRule
	switch {
	case strings.HasPrefix(p, `\#`), strings.HasPrefix(p, `\!`):
		p = p[1:]
	case strings.HasPrefix(p, "!"):
		r.negation = true
		p = p[1:]
	}
	if escapedSpace && strings.HasSuffix(p, `\`) {
		p = strings.TrimSuffix(p, `\`) + " "
	}
	if strings.HasSuffix(p, "/") {
		r.dirOnly = true
		p = strings.TrimSuffix(p, "/")
	}
	if strings.HasPrefix(p, "/") {
		r.anchored = true
		p = p[1:]
	}
	// "doc/frotz" means "/doc/frotz"
	if strings.Contains(p, "/") && !strings.HasPrefix(p, "**/") {
		r.anchored = true
	}
	if p == "" {
		return
	}

	re, err := regexp.Compile("^" + globToRegex(p) + "$")
	if err != nil {
		return // malformed character class; git ignores such lines too
	}
	r.regex = re
	ig.rules = append(ig.rules, r)
}

// Match reports whether the slash-separated path rel is ignored.
func (ig *ignoreRules) Match(rel string, isDir bool) bool {
	ignored := false
	for _, r := range ig.rules {
		if r.match(rel, isDir) {
			ignored = !r.negation
		}
	}
	return ignored
}

func (r ignoreRule) match(rel string, isDir bool) bool {
	parts := strings.Split(rel, "/")

	if r.anchored {
		if r.regex.MatchString(rel) {
			return !r.dirOnly || isDir
		}
		// A directory rule also covers everything below the directory.
		for i := 1; i < len(parts); i++ {
			if r.regex.MatchString(strings.Join(parts[:i], "/")) {
				return true
			}
		}
		return false
	}

	for i, part := range parts {
		if !r.regex.MatchString(part) {
			continue
		}
		last := i == len(parts)-1
		if r.dirOnly && last {
			return isDir
		}
		return true
	}
	return r.regex.MatchString(rel)
}

// globToRegex translates gitignore glob syntax to an RE2 expression.
func globToRegex(p string) string {
	var sb strings.Builder
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch c {
		case '*':
			if i+1 < len(p) && p[i+1] == '*' {
				if i+2 < len(p) && p[i+2] == '/' {
					sb.WriteString("(?:.*/)?")
					i += 2
					continue
				}
				if i == 0 || p[i-1] == '/' {
					sb.WriteString(".*")
					i++
					continue
				}
			}
			sb.WriteString("[^/]*")
		case '?':
			sb.WriteString("[^/]")
		case '[':
			if j := strings.IndexByte(p[i+1:], ']'); j >= 0 {
				class := p[i : i+j+2]
				if strings.HasPrefix(class, "[!") {
					class = "[^" + class[2:]
				}
				sb.WriteString(class)
				i += j + 1
				continue
			}
			sb.WriteString(`\[`)
		case '\\':
			if i+1 < len(p) {
				i++
				sb.WriteString(regexp.QuoteMeta(string(p[i])))
				continue
			}
			sb.WriteString(`\\`)
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return sb.String()
}
