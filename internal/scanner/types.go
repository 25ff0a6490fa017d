// Package scanner discovers source documents under a directory and
// partitions them into files the indexer accepts and files it skips.
package scanner

import (
	"time"
)

// FileInfo contains metadata about a discovered file.
type FileInfo struct {
	Path    string    // Relative to the scan root, slash separated
	AbsPath string    // Absolute path, the file's identity
	Size    int64     // File size in bytes
	ModTime time.Time // Last modification time
}

// ScanOptions configures the scanner behavior.
type ScanOptions struct {
	// RootDir is the directory to scan.
	RootDir string

	// ExcludePatterns are glob patterns matched against the base name, or
	// against the relative path when they contain a slash. "dir/**"
	// excludes a whole subtree.
	ExcludePatterns []string

	// FollowSymlinks includes symlinked files (default: false).
	FollowSymlinks bool

	// IsSupported decides which files are indexable. Nil accepts everything.
	IsSupported func(path string) bool
}

// ScanResult is returned from the scanner channel.
type ScanResult struct {
	File  *FileInfo
	Error error
}

// Discovery is the partitioned outcome of a full scan, in walk order.
type Discovery struct {
	Supported   []*FileInfo
	Unsupported []*FileInfo
}

// defaultExcludeDirs are never descended into.
var defaultExcludeDirs = []string{
	".git",
	".svn",
	"__MACOSX",
}

// defaultExcludeFiles are OS and editor artifacts.
var defaultExcludeFiles = []string{
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	IgnoreFileName,
}
