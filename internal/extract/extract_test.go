package extract

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output  []byte
	err     error
	missing bool
	calls   []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, name)
	return m.output, m.err
}

func (m *mockRunner) LookPath(name string) (string, error) {
	if m.missing {
		return "", errors.New("not found")
	}
	return "/usr/bin/" + name, nil
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func writeDOCX(t *testing.T, dir, name, documentXML string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtract_PlainText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "A.txt", []byte("alpha beta gamma"))

	res := New().Extract(context.Background(), path)

	assert.True(t, res.OK())
	assert.Equal(t, "alpha beta gamma", res.Text)
}

func TestExtract_MarkdownIsReadVerbatim(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.MD", []byte("# Cells\n\nThe nucleus."))

	res := New().Extract(context.Background(), path)

	require.True(t, res.OK())
	assert.Equal(t, "# Cells\n\nThe nucleus.", res.Text)
}

func TestExtract_InvalidUTF8IsDropped(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.txt", []byte("ok\xff\xfe text"))

	res := New().Extract(context.Background(), path)

	require.True(t, res.OK())
	assert.Equal(t, "ok text", res.Text)
}

func TestExtract_Reasons(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, dir, "empty.txt", nil)
	blank := writeFile(t, dir, "blank.txt", []byte(" \n\t "))
	big := writeFile(t, dir, "big.txt", []byte("0123456789"))
	bin := writeFile(t, dir, "blob.bin", []byte{0, 1, 2})
	doc := writeFile(t, dir, "old.doc", []byte("legacy"))
	corrupt := writeFile(t, dir, "broken.docx", []byte("not a zip"))

	limited := New(WithMaxFileSize(5))
	def := New()

	tests := []struct {
		name   string
		ex     *FileExtractor
		path   string
		reason string
	}{
		{"empty file", def, empty, ReasonNoText},
		{"whitespace only", def, blank, ReasonNoText},
		{"over size limit", limited, big, ReasonTooLarge},
		{"unknown extension", def, bin, ReasonExtensionNotSupported},
		{"legacy doc", def, doc, "missing-capability:doc"},
		{"corrupt docx", def, corrupt, ReasonUnreadable},
		{"missing file", def, filepath.Join(dir, "gone.txt"), ReasonUnreadable},
		{"directory", def, mkdir(t, dir, "folder.txt"), ReasonUnreadable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.ex.Extract(context.Background(), tt.path)
			assert.False(t, res.OK())
			assert.Empty(t, res.Text)
			assert.Equal(t, tt.reason, res.Reason)
		})
	}
}

func mkdir(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.Mkdir(path, 0o755))
	return path
}

func TestExtract_DOCX(t *testing.T) {
	// Given: a document with two paragraphs, a split run and a tab
	dir := t.TempDir()
	xmlBody := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Photo</w:t></w:r><w:r><w:t>synthesis</w:t></w:r></w:p>
<w:p><w:r><w:t>Light</w:t><w:tab/><w:t>energy</w:t></w:r></w:p>
</w:body>
</w:document>`
	path := writeDOCX(t, dir, "bio.docx", xmlBody)

	// When: extracting
	res := New().Extract(context.Background(), path)

	// Then: runs join and paragraphs become lines
	require.True(t, res.OK(), res.Reason)
	assert.Equal(t, "Photosynthesis\nLight\tenergy\n", res.Text)
}

func TestExtract_DOCXWithoutBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nobody.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	_, err = zw.Create("docProps/core.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	res := New().Extract(context.Background(), path)
	assert.Equal(t, ReasonUnreadable, res.Reason)
}

func TestExtract_PDF(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "book.pdf", []byte("%PDF-1.4"))

	t.Run("tool missing", func(t *testing.T) {
		runner := &mockRunner{missing: true}
		res := New(WithCommandRunner(runner)).Extract(context.Background(), path)
		assert.Equal(t, "missing-capability:pdf", res.Reason)
		assert.Empty(t, runner.calls)
	})

	t.Run("tool output", func(t *testing.T) {
		runner := &mockRunner{output: []byte("Chapter 1\nMatter")}
		res := New(WithCommandRunner(runner)).Extract(context.Background(), path)
		require.True(t, res.OK())
		assert.Equal(t, "Chapter 1\nMatter", res.Text)
		assert.Equal(t, []string{"/usr/bin/pdftotext"}, runner.calls)
	})

	t.Run("tool fails", func(t *testing.T) {
		runner := &mockRunner{err: errors.New("pdftotext crashed")}
		res := New(WithCommandRunner(runner)).Extract(context.Background(), path)
		assert.Equal(t, ReasonUnreadable, res.Reason)
	})

	t.Run("scanned pdf without text", func(t *testing.T) {
		runner := &mockRunner{output: []byte("\f\n")}
		res := New(WithCommandRunner(runner)).Extract(context.Background(), path)
		assert.Equal(t, ReasonNoText, res.Reason)
	})
}

func TestIsSupported(t *testing.T) {
	for _, ext := range SupportedExtensions() {
		assert.True(t, IsSupported("book"+ext), ext)
	}
	assert.True(t, IsSupported("/x/BOOK.TXT"))
	assert.False(t, IsSupported("notes.bin"))
	assert.False(t, IsSupported("README"))
}
