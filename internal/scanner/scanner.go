package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Scan walks opts.Root recursively and returns every regular file whose
// extension is accepted and that no exclude pattern or IgnoreFileName rule
// drops. Symlinks are never followed. Unreadable entries
// are skipped; an unreadable or missing root is an error.
func Scan(ctx context.Context, opts Options) ([]FileInfo, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input path is not a directory: %s", root)
	}

	filter, err := NewFilter(Options{
		Root:            root,
		Extensions:      opts.Extensions,
		ExcludePatterns: opts.ExcludePatterns,
		NoIgnoreFile:    opts.NoIgnoreFile,
	})
	if err != nil {
		return nil, err
	}

	var files []FileInfo
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			return nil // Skip entries we can't access
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if filter.SkipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks and other non-regular entries
		if !d.Type().IsRegular() {
			return nil
		}

		if !filter.Accept(rel) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}

		files = append(files, FileInfo{
			Path:    path,
			RelPath: rel,
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

func normalizeExtensions(exts []string) map[string]bool {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return set
}

func shouldExcludeDir(rel string, patterns []string) bool {
	for _, pattern := range defaultExcludeDirs {
		if matchDirPattern(rel, pattern) {
			return true
		}
	}
	for _, pattern := range patterns {
		if matchDirPattern(rel, pattern) {
			return true
		}
	}
	return false
}

func shouldExcludeFile(rel string, patterns []string) bool {
	base := baseName(rel)
	for _, pattern := range patterns {
		if matchFilePattern(base, rel, pattern) {
			return true
		}
	}
	return false
}

// matchDirPattern checks if a slash-separated directory path matches a pattern.
//
//	**/name/**  any path segment equals name
//	dir/**      dir itself or anything below it
//	dir         dir itself or anything below it
func matchDirPattern(rel, pattern string) bool {
	if strings.HasPrefix(pattern, "**/") {
		name := strings.TrimSuffix(strings.TrimPrefix(pattern, "**/"), "/**")
		for _, part := range strings.Split(rel, "/") {
			if part == name {
				return true
			}
		}
		return false
	}

	prefix := strings.TrimSuffix(pattern, "/**")
	if strings.ContainsAny(prefix, "*?[") {
		ok, err := filepath.Match(prefix, rel)
		return err == nil && ok
	}
	return rel == prefix || strings.HasPrefix(rel, prefix+"/")
}

// matchFilePattern checks if a file matches a pattern. Patterns without a
// slash match the base name; patterns with one match the relative path.
func matchFilePattern(base, rel, pattern string) bool {
	if strings.HasSuffix(pattern, "/**") && !strings.HasPrefix(pattern, "**/") {
		return strings.HasPrefix(rel, strings.TrimSuffix(pattern, "/**")+"/")
	}

	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		if !strings.Contains(suffix, "/") {
			ok, err := filepath.Match(suffix, base)
			return err == nil && ok
		}
		pattern = suffix
	}

	if strings.Contains(pattern, "/") {
		ok, err := filepath.Match(pattern, rel)
		return err == nil && ok
	}

	ok, err := filepath.Match(pattern, base)
	return err == nil && ok
}

// baseName returns the file name from a slash-separated path.
func baseName(rel string) string {
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		return rel[i+1:]
	}
	return rel
}
