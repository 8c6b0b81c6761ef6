package scanner

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/shelf/pkg/shelf/logging"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

// ScanError records a path that could not be read.
type ScanError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Result is the outcome of a scan.
type Result struct {
	// Files are sorted by path.
	Files []types.FileDescriptor

	DirsScanned int64
	TotalSize   int64
	Elapsed     time.Duration
	Errors      []ScanError
}

// Scanner performs parallel directory scanning using fastwalk.
type Scanner struct {
	opts   Options
	root   string
	logger *logging.Logger

	dirsScanned  atomic.Int64
	bytesScanned atomic.Int64

	mu      sync.Mutex
	results []types.FileDescriptor
	errors  []ScanError
}

// New creates a scanner for opts.
func New(opts Options) *Scanner {
	return &Scanner{opts: opts, logger: logging.Get("scanner")}
}

// Scan walks opts.Root and describes every regular file.
func Scan(ctx context.Context, opts Options) (*Result, error) {
	return New(opts).Scan(ctx)
}

// Scan performs the scan. It blocks until complete or ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	start := time.Now()

	root, err := validateRoot(s.opts.Root)
	if err != nil {
		return nil, err
	}
	s.root = root

	conf := fastwalk.Config{Follow: false, NumWorkers: s.opts.Workers}
	err = fastwalk.Walk(&conf, root, s.walkCallback(ctx))
	if err != nil && !errors.Is(err, fastwalk.ErrSkipFiles) {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(s.results, func(a, b types.FileDescriptor) int { return cmp.Compare(a.Path, b.Path) })
	s.logger.Debug("scan complete", "root", root, "files", len(s.results), "errors", len(s.errors))

	return &Result{
		Files:       s.results,
		DirsScanned: s.dirsScanned.Load(),
		TotalSize:   s.bytesScanned.Load(),
		Elapsed:     time.Since(start),
		Errors:      s.errors,
	}, nil
}

func validateRoot(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: scan root is empty", types.ErrValidation)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", types.NewOpError("scan", abs, nil, err)
	}
	if !info.IsDir() {
		return "", types.NewOpError("scan", abs, types.ErrValidation, errors.New("not a directory"))
	}
	return abs, nil
}

func (s *Scanner) walkCallback(ctx context.Context) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fastwalk.ErrSkipFiles
		}
		if err != nil {
			s.addError(path, err)
			return nil
		}
		if path == s.root {
			return nil
		}

		if s.skip(path) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			s.dirsScanned.Add(1)
			if !s.opts.Recursive {
				return fastwalk.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			s.processFile(path, d)
		}
		return nil
	}
}

func (s *Scanner) skip(path string) bool {
	return Skipped(path, s.opts.Exclude, s.opts.IncludeHidden)
}

// Skipped reports whether a scan would leave path out: hidden entries
// unless includeHidden, and anything matching an exclusion pattern.
func Skipped(path string, exclude []string, includeHidden bool) bool {
	if !includeHidden && strings.HasPrefix(filepath.Base(path), ".") {
		return true
	}
	for _, pattern := range exclude {
		if matchesExclusionPattern(path, pattern) {
			return true
		}
	}
	return false
}

func (s *Scanner) processFile(path string, d fs.DirEntry) {
	info, err := d.Info()
	if err != nil {
		s.addError(path, err)
		return
	}

	f := s.describe(path, info)

	s.bytesScanned.Add(f.Size)
	s.mu.Lock()
	s.results = append(s.results, f)
	s.mu.Unlock()

	if s.opts.OnFile != nil {
		s.opts.OnFile(f)
	}
}

func (s *Scanner) describe(path string, info os.FileInfo) types.FileDescriptor {
	f := types.NewFileDescriptor(path)
	f.Size = info.Size()
	f.Modified = info.ModTime()
	f.Created = createTime(path, info)
	f.Accessed = accessTime(info)
	f.Category = s.classify(path, f.Extension)
	return f
}

// Describe builds the descriptor of a single regular file outside a scan.
func Describe(path string, sniff bool) (types.FileDescriptor, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return types.FileDescriptor{}, types.NewOpError("describe", path, types.ErrValidation, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return types.FileDescriptor{}, types.NewOpError("describe", abs, nil, err)
	}
	if !info.Mode().IsRegular() {
		return types.FileDescriptor{}, types.NewOpError("describe", abs, types.ErrValidation,
			errors.New("not a regular file"))
	}
	s := New(Options{Sniff: sniff})
	return s.describe(abs, info), nil
}

func (s *Scanner) classify(path, ext string) types.Category {
	if c, ok := CategoryForExtension(ext); ok {
		return c
	}
	if !s.opts.Sniff {
		return types.CategoryOther
	}
	c, err := sniffFile(path)
	if err != nil {
		s.logger.Debug("sniffing failed", "path", path, "error", err)
	}
	return c
}

func (s *Scanner) addError(path string, err error) {
	s.mu.Lock()
	s.errors = append(s.errors, ScanError{Path: path, Error: err.Error()})
	s.mu.Unlock()
}

// matchesExclusionPattern checks a path against a prefix or glob pattern.
func matchesExclusionPattern(path, pattern string) bool {
	if pattern == "" {
		return false
	}
	if path == pattern || strings.HasPrefix(path, pattern+string(filepath.Separator)) {
		return true
	}
	if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
		return true
	}
	matched, err := filepath.Match(pattern, path)
	return err == nil && matched
}
