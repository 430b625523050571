// Package scanner discovers record dump files under an input directory.
// Files are returned in lexical path order so ingestion is reproducible.
package scanner

import "time"

// FileInfo contains metadata about a discovered file.
type FileInfo struct {
	Path    string    // Input root joined with RelPath; recorded as the chunk source file
	RelPath string    // Slash-separated path relative to the input root
	Size    int64     // File size in bytes
	ModTime time.Time // Last modification time
}

// Options configures the scanner behavior.
type Options struct {
	// Root is the input directory to scan.
	Root string

	// Extensions lists accepted file extensions, matched case-insensitively.
	// Empty means DefaultExtensions.
	Extensions []string

	// ExcludePatterns specifies additional directory or file patterns to skip.
	ExcludePatterns []string

	// NoIgnoreFile disables reading IgnoreFileName from Root.
	NoIgnoreFile bool
}

// IgnoreFileName is read from the input root when present. It uses
// gitignore syntax, with patterns relative to the root.
const IgnoreFileName = ".recordexignore"

// DefaultExtensions are the extensions scanned when none are configured.
var DefaultExtensions = []string{".txt"}

// defaultExcludeDirs are always skipped.
var defaultExcludeDirs = []string{
	".git",
	"**/.git/**",
}
