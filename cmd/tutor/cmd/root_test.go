package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tutorerrors "github.com/Aman-CERP/tutor/internal/errors"
)

const testProjectConfig = `paths:
  source_dir: books
  data_dir: data
chunking:
  chunk_size_words: 8
  overlap_words: 2
retrieval:
  top_k: 3
  max_context_chars: 400
logging:
  file: logs/tutor.log
`

// isolate points HOME and the user config at temp dirs.
func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("NO_COLOR", "1")
}

// newProject creates a project with a small config and an empty books dir.
func newProject(t *testing.T) string {
	t.Helper()
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tutor.yaml"), []byte(testProjectConfig), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "books"), 0o755))
	return dir
}

func addBook(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "books", name), []byte(content), 0o644))
}

// runCLI executes a fresh root command against project dir.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	a := &app{}
	root := newRootCmd(a)
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append([]string{"-C", dir}, args...))
	err := root.Execute()
	a.finish(root, err)
	return buf.String(), err
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"index", "search", "ask", "status", "doctor", "config", "version"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"dir", "debug", "no-color", "profile-cpu", "profile-mem", "profile-trace"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}
}

func TestRootCmd_InvalidProjectConfigFails(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tutor.yaml"),
		[]byte("chunking:\n  chunk_size_words: 10\n  overlap_words: 10\n"), 0o644))

	_, err := runCLI(t, dir, "status")

	require.Error(t, err)
}

func TestRootCmd_WritesLogFile(t *testing.T) {
	dir := newProject(t)

	_, err := runCLI(t, dir, "--debug", "status")

	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "logs", "tutor.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"command start"`)
}

func TestRootCmd_LogsFailedCommand(t *testing.T) {
	// Given: a project that was never indexed
	dir := newProject(t)

	// When: searching fails
	_, err := runCLI(t, dir, "search", "cells")
	require.Error(t, err)

	// Then: the failure and its code reach the log file
	data, err := os.ReadFile(filepath.Join(dir, "logs", "tutor.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"command failed"`)
	assert.Contains(t, string(data), tutorerrors.ErrCodeNoIndex)
}

func TestRootCmd_ProfileFlags(t *testing.T) {
	dir := newProject(t)
	cpu := filepath.Join(t.TempDir(), "cpu.prof")
	heap := filepath.Join(t.TempDir(), "heap.prof")

	_, err := runCLI(t, dir, "--profile-cpu", cpu, "--profile-mem", heap, "status")

	require.NoError(t, err)
	assert.FileExists(t, cpu)
	assert.FileExists(t, heap)
}

func writeBrokenConfig(dir string) error {
	return os.WriteFile(filepath.Join(dir, ".tutor.yaml"), []byte("retrieval: [oops"), 0o644)
}
