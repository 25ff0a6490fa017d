package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Skip reasons reported for files that produce no text.
const (
	ReasonExtensionNotSupported = "extension-not-supported"
	ReasonUnreadable            = "unreadable"
	ReasonNoText                = "no-extractable-text"
	ReasonTooLarge              = "file-too-large"
	reasonMissingCapability     = "missing-capability:"
)

// DefaultMaxFileSize bounds the size of a single source document (50MB).
const DefaultMaxFileSize = 50 * 1024 * 1024

// MissingCapability returns the reason for a format whose reader is unavailable.
func MissingCapability(format string) string {
	return reasonMissingCapability + format
}

// Result is the outcome of extracting one file. Exactly one of Text and
// Reason is non-empty.
type Result struct {
	Text   string
	Reason string
}

// OK reports whether text was extracted.
func (r Result) OK() bool {
	return r.Reason == ""
}

// Extractor converts a file into text.
type Extractor interface {
	Extract(ctx context.Context, path string) Result
}

// errMissingCapability marks a format whose reader cannot run here.
type errMissingCapability struct {
	format string
}

func (e *errMissingCapability) Error() string {
	return fmt.Sprintf("no reader available for %s files", e.format)
}

type readerFunc func(ctx context.Context, path string) (string, error)

var supportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".pdf":      true,
	".docx":     true,
	".doc":      true,
}

// IsSupported reports whether path has an extension the indexer accepts.
// Acceptance by extension does not guarantee text can be extracted.
func IsSupported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// SupportedExtensions returns the accepted extensions in a stable order.
func SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown", ".pdf", ".docx", ".doc"}
}

// FileExtractor dispatches on file extension.
type FileExtractor struct {
	maxFileSize int64
	readers     map[string]readerFunc
}

var _ Extractor = (*FileExtractor)(nil)

// Option configures a FileExtractor.
type Option func(*FileExtractor)

// WithMaxFileSize overrides DefaultMaxFileSize. Zero or negative disables the limit.
func WithMaxFileSize(n int64) Option {
	return func(e *FileExtractor) {
		e.maxFileSize = n
	}
}

// WithCommandRunner sets the runner used for external converters such as pdftotext.
func WithCommandRunner(r CommandRunner) Option {
	return func(e *FileExtractor) {
		e.readers[".pdf"] = newPDFReader(r).read
	}
}

// New creates a FileExtractor.
func New(opts ...Option) *FileExtractor {
	e := &FileExtractor{
		maxFileSize: DefaultMaxFileSize,
		readers: map[string]readerFunc{
			".txt":      readPlain,
			".md":       readPlain,
			".markdown": readPlain,
			".docx":     readDOCX,
			".pdf":      newPDFReader(nil).read,
			".doc": func(context.Context, string) (string, error) {
				return "", &errMissingCapability{format: "doc"}
			},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads path and returns its text or the reason it has none.
func (e *FileExtractor) Extract(ctx context.Context, path string) Result {
	read, ok := e.readers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return Result{Reason: ReasonExtensionNotSupported}
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return Result{Reason: ReasonUnreadable}
	}
	if e.maxFileSize > 0 && info.Size() > e.maxFileSize {
		return Result{Reason: ReasonTooLarge}
	}

	text, err := read(ctx, path)
	if err != nil {
		var missing *errMissingCapability
		if errors.As(err, &missing) {
			return Result{Reason: MissingCapability(missing.format)}
		}
		return Result{Reason: ReasonUnreadable}
	}

	text = strings.ToValidUTF8(text, "")
	if strings.TrimSpace(text) == "" {
		return Result{Reason: ReasonNoText}
	}
	return Result{Text: text}
}

func readPlain(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
