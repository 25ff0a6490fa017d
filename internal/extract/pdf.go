package extract

import (
	"context"
	"fmt"
	"os/exec"
)

// pdfTool is the external converter used for PDF text.
const pdfTool = "pdftotext"

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	LookPath(name string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func (execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

type pdfReader struct {
	runner CommandRunner
}

func newPDFReader(r CommandRunner) *pdfReader {
	if r == nil {
		r = execRunner{}
	}
	return &pdfReader{runner: r}
}

func (p *pdfReader) read(ctx context.Context, path string) (string, error) {
	tool, err := p.runner.LookPath(pdfTool)
	if err != nil {
		return "", &errMissingCapability{format: "pdf"}
	}
	// "-" writes to stdout; -layout keeps reading order for columned pages.
	out, err := p.runner.Run(ctx, tool, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", fmt.Errorf("%s failed: %w", pdfTool, err)
	}
	return string(out), nil
}
