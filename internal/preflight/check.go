package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/tutor/internal/output"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status by name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Backend is a model service the configuration depends on.
type Backend struct {
	Name      string // "embedder" or "generator"
	Model     string
	Required  bool
	Hint      string // Printed when the backend is unreachable
	Available func(ctx context.Context) bool
}

// Target describes what to check.
type Target struct {
	SourceDir string
	DataDir   string
	Backends  []Backend
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose  bool
	out      *output.Writer
	lookPath func(string) (string, error)
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) { c.verbose = verbose }
}

// WithOutput sets where PrintResults writes.
func WithOutput(w *output.Writer) Option {
	return func(c *Checker) { c.out = w }
}

// WithLookPath replaces exec.LookPath for the converter check.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(c *Checker) { c.lookPath = fn }
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		out:      output.New(os.Stdout, true),
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check against t.
func (c *Checker) RunAll(ctx context.Context, t Target) []CheckResult {
	results := []CheckResult{
		c.CheckSourceDir(t.SourceDir),
		c.CheckDiskSpace(t.DataDir),
		c.CheckWritePermissions(t.DataDir),
		c.CheckFileDescriptors(),
		c.CheckPDFConverter(),
	}
	for _, b := range t.Backends {
		results = append(results, c.CheckBackend(ctx, b))
	}
	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns "ready", "ready_with_warnings" or "failed".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	warned := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status != StatusPass {
			warned = true
		}
	}
	if warned {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	c.out.Header("Tutor System Check")
	c.out.Newline()

	for _, r := range results {
		line := fmt.Sprintf("%s: %s", r.Name, r.Message)
		switch {
		case r.Status == StatusPass:
			c.out.Success(line)
		case r.IsCritical():
			c.out.Error(line)
		default:
			c.out.Warning(line)
		}
		if r.Details != "" && (c.verbose || r.Status != StatusPass) {
			c.out.Status("", r.Details)
		}
	}

	c.out.Newline()
	c.out.KeyValue("Status", strings.ToUpper(c.SummaryStatus(results)))
}

// CheckSourceDir checks that the textbook directory exists.
func (c *Checker) CheckSourceDir(dir string) CheckResult {
	result := CheckResult{Name: "source_dir", Required: true}

	fi, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s does not exist", dir)
		result.Details = "Create it and add .txt, .md or .pdf files, or set paths.source_dir"
	case err != nil:
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot access %s: %v", dir, err)
	case !fi.IsDir():
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s is not a directory", dir)
	default:
		result.Status = StatusPass
		result.Message = dir
	}
	return result
}

// CheckWritePermissions checks that the data directory, or its nearest
// existing parent, accepts new files.
func (c *Checker) CheckWritePermissions(dataDir string) CheckResult {
	result := CheckResult{Name: "write_permissions", Required: true}

	dir := existingAncestor(dataDir)
	tmp, err := os.CreateTemp(dir, ".tutor-preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = tmp.Close()
	_ = os.Remove(tmp.Name())

	result.Status = StatusPass
	result.Message = "OK"
	result.Details = dir
	return result
}

// CheckPDFConverter looks for pdftotext. Without it PDFs are recorded as
// unsupported, so a miss is only a warning.
func (c *Checker) CheckPDFConverter() CheckResult {
	result := CheckResult{Name: "pdf_converter"}

	path, err := c.lookPath("pdftotext")
	if err != nil {
		result.Status = StatusWarn
		result.Message = "pdftotext not found, PDF files will be skipped"
		result.Details = "Install poppler-utils to index PDFs"
		return result
	}
	result.Status = StatusPass
	result.Message = path
	return result
}

// CheckBackend checks that a model backend is reachable.
func (c *Checker) CheckBackend(ctx context.Context, b Backend) CheckResult {
	result := CheckResult{Name: b.Name, Required: b.Required}

	if b.Available == nil || b.Available(ctx) {
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%s ready", b.Model)
		return result
	}
	result.Status = StatusWarn
	if b.Required {
		result.Status = StatusFail
	}
	result.Message = fmt.Sprintf("%s unavailable", b.Model)
	result.Details = b.Hint
	return result
}

// existingAncestor returns dir or the closest parent that exists.
func existingAncestor(dir string) string {
	dir = filepath.Clean(dir)
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
