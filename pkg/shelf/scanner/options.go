// Package scanner walks a directory and describes the files it finds for
// the rule matcher. It classifies files by extension, falling back to
// magic-byte sniffing, and reads platform timestamps. It does not extract
// EXIF, audio tags or document text.
package scanner

import "github.com/jamesainslie/shelf/pkg/shelf/types"

// Options configures a scan.
type Options struct {
	// Root is the directory to scan.
	Root string

	// Exclude contains glob patterns or path prefixes to skip. Patterns
	// are matched against the base name and the full path.
	Exclude []string

	// Recursive descends into subdirectories.
	Recursive bool

	// IncludeHidden keeps dotfiles and dot-directories.
	IncludeHidden bool

	// Workers is the number of walking goroutines; 0 lets fastwalk pick.
	Workers int

	// Sniff reads the first bytes of files whose extension is unknown.
	Sniff bool

	// OnFile is called for every described file. It must be safe to call
	// from multiple goroutines.
	OnFile func(types.FileDescriptor)
}

// DefaultExclusions are skipped unless the caller overrides Exclude.
var DefaultExclusions = []string{
	".git",
	"node_modules",
	".DS_Store",
	"*.part",
	"*.crdownload",
	"*.tmp",
}
