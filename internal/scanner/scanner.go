package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Scanner discovers documents in a directory tree.
type Scanner struct{}

// New creates a new Scanner instance.
func New() *Scanner {
	return &Scanner{}
}

// Scan walks the root directory and streams every non-excluded regular file
// in lexical order. Rules in the root's IgnoreFileName apply as well. The
// channel is closed when scanning is complete.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) (<-chan ScanResult, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}

	absRoot, err := resolveRoot(opts.RootDir)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", absRoot)
	}

	rules, err := LoadIgnoreFile(absRoot)
	if err != nil {
		slog.Warn("ignore file not applied",
			slog.String("root", absRoot),
			slog.String("error", err.Error()))
	}

	results := make(chan ScanResult, 64)
	go func() {
		defer close(results)
		s.scan(ctx, absRoot, opts, rules, results)
	}()

	return results, nil
}

// Discover scans the root and partitions files with opts.IsSupported.
// A missing root yields an empty Discovery rather than an error.
func (s *Scanner) Discover(ctx context.Context, opts *ScanOptions) (*Discovery, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}

	results, err := s.Scan(ctx, opts)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("source directory does not exist",
			slog.String("path", opts.RootDir))
		return &Discovery{}, nil
	}
	if err != nil {
		return nil, err
	}

	d := &Discovery{}
	var scanErr error
	for r := range results {
		if r.Error != nil {
			scanErr = r.Error
			continue
		}
		if opts.IsSupported == nil || opts.IsSupported(r.File.AbsPath) {
			d.Supported = append(d.Supported, r.File)
		} else {
			d.Unsupported = append(d.Unsupported, r.File)
		}
	}
	if scanErr != nil {
		return nil, fmt.Errorf("scan %s: %w", opts.RootDir, scanErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Debug("discovery complete",
		slog.String("root", opts.RootDir),
		slog.Int("supported", len(d.Supported)),
		slog.Int("unsupported", len(d.Unsupported)))

	return d, nil
}

func resolveRoot(rootDir string) (string, error) {
	if rootDir == "" {
		rootDir = "."
	}
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return absRoot, nil
}

// scan performs the actual directory traversal.
func (s *Scanner) scan(ctx context.Context, absRoot string, opts *ScanOptions, rules *IgnoreRules, results chan<- ScanResult) {
	err := filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			slog.Debug("skipping unreadable path",
				slog.String("path", p),
				slog.String("error", err.Error()))
			return nil
		}

		relPath, err := filepath.Rel(absRoot, p)
		if err != nil || relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if shouldExcludeDir(relPath, opts) || rules.Match(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if shouldExcludeFile(relPath, opts) || rules.Match(relPath, false) {
			return nil
		}

		var info fs.FileInfo
		if d.Type()&fs.ModeSymlink != 0 {
			if !opts.FollowSymlinks {
				return nil
			}
			info, err = os.Stat(p)
		} else {
			info, err = d.Info()
		}
		if err != nil || !info.Mode().IsRegular() {
			return nil
		}

		file := &FileInfo{
			Path:    relPath,
			AbsPath: p,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}

		select {
		case results <- ScanResult{File: file}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		select {
		case results <- ScanResult{Error: err}:
		case <-ctx.Done():
		}
	}
}

// Excluded reports whether a slash-separated path relative to the scan root
// would be skipped by a scan with the given patterns.
func Excluded(relPath string, isDir bool, patterns []string) bool {
	opts := &ScanOptions{ExcludePatterns: patterns}
	relPath = filepath.ToSlash(relPath)
	if isDir {
		return shouldExcludeDir(relPath, opts)
	}
	return shouldExcludeFile(relPath, opts)
}

// Filter combines exclude patterns with the root's ignore file. It answers
// for paths whose parents were never walked, such as watcher events.
type Filter struct {
	root     string
	patterns []string
	rules    *IgnoreRules
}

// NewFilter loads the ignore file under root.
func NewFilter(root string, patterns []string) (*Filter, error) {
	f := &Filter{root: root, patterns: patterns}
	return f, f.Reload()
}

// Reload re-reads the ignore file. On error the previous rules stay.
func (f *Filter) Reload() error {
	rules, err := LoadIgnoreFile(f.root)
	if err != nil {
		if f.rules == nil {
			f.rules = &IgnoreRules{}
		}
		return err
	}
	f.rules = rules
	return nil
}

// Excluded reports whether relPath, or any directory above it, is skipped.
func (f *Filter) Excluded(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	parts := strings.Split(relPath, "/")
	for i := 1; i < len(parts); i++ {
		dir := strings.Join(parts[:i], "/")
		if Excluded(dir, true, f.patterns) || f.rules.Match(dir, true) {
			return true
		}
	}
	return Excluded(relPath, isDir, f.patterns) || f.rules.Match(relPath, isDir)
}

// shouldExcludeDir checks if a directory should be excluded.
func shouldExcludeDir(relPath string, opts *ScanOptions) bool {
	base := path.Base(relPath)
	for _, name := range defaultExcludeDirs {
		if base == name {
			return true
		}
	}
	return matchesAnyPattern(relPath, opts.ExcludePatterns)
}

// shouldExcludeFile checks if a file should be excluded.
func shouldExcludeFile(relPath string, opts *ScanOptions) bool {
	base := path.Base(relPath)
	for _, name := range defaultExcludeFiles {
		if base == name {
			return true
		}
	}
	return matchesAnyPattern(relPath, opts.ExcludePatterns)
}

// matchesAnyPattern checks if a path matches any of the given patterns.
func matchesAnyPattern(relPath string, patterns []string) bool {
	for _, pattern := range patterns {
		if matchPattern(relPath, pattern) {
			return true
		}
	}
	return false
}

// matchPattern matches a slash-separated relative path against one pattern.
func matchPattern(relPath, pattern string) bool {
	pattern = strings.TrimSpace(filepath.ToSlash(pattern))
	if pattern == "" {
		return false
	}

	// "dir/**" matches the directory itself and anything below it
	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
		prefix = strings.TrimPrefix(prefix, "**/")
		if strings.Contains(pattern, "**/") {
			for _, part := range strings.Split(relPath, "/") {
				if ok, _ := path.Match(prefix, part); ok {
					return true
				}
			}
			return false
		}
		return relPath == prefix || strings.HasPrefix(relPath, prefix+"/")
	}

	// "**/name" matches name at any depth
	if suffix, ok := strings.CutPrefix(pattern, "**/"); ok {
		ok, _ := path.Match(suffix, path.Base(relPath))
		return ok
	}

	if strings.Contains(pattern, "/") {
		ok, _ := path.Match(pattern, relPath)
		return ok
	}

	ok, _ := path.Match(pattern, path.Base(relPath))
	return ok
}
