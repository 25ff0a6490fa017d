// Package output formats command results for the terminal: status lines,
// retrieved passages and answers. Colors come from the ui style palette and
// are dropped when the caller asks for plain output.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/tutor/internal/answer"
	"github.com/Aman-CERP/tutor/internal/retrieve"
	"github.com/Aman-CERP/tutor/internal/ui"
)

// snippetRunes caps how much of each passage Matches prints.
const snippetRunes = 240

// Writer provides formatted output for CLI.
type Writer struct {
	out    io.Writer
	styles ui.Styles
}

// New creates a Writer. noColor selects the unstyled palette.
func New(out io.Writer, noColor bool) *Writer {
	return &Writer{out: out, styles: ui.GetStyles(noColor)}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render("✓"), msg)
}

func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render("!"), msg)
}

func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

func (w *Writer) Error(msg string) {
	w.Status(w.styles.Error.Render("✗"), msg)
}

func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Header prints a section title.
func (w *Writer) Header(title string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(title))
}

// KeyValue prints an indented, dim-labelled line.
func (w *Writer) KeyValue(key, value string) {
	_, _ = fmt.Fprintf(w.out, "  %s %s\n", w.styles.Label.Render(key+":"), value)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Matches prints the passages selected for a query, best first.
func (w *Writer) Matches(res *retrieve.Result) {
	if res == nil || len(res.Chunks) == 0 {
		w.Warning("No relevant passages found.")
		return
	}
	for _, m := range res.Chunks {
		title := fmt.Sprintf("#%d  %s  (chunk %d, score %.3f)",
			m.Rank, filepath.Base(m.Chunk.SourcePath), m.Chunk.Index, m.Score)
		_, _ = fmt.Fprintln(w.out, w.styles.Active.Render(title))
		_, _ = fmt.Fprintf(w.out, "    %s\n\n", Snippet(m.Chunk.Text, snippetRunes))
	}
}

// Answer prints a tutor answer followed by its sources. Without a generator
// the retrieved context is printed in place of the answer text.
func (w *Writer) Answer(ans *answer.Answer) {
	if !ans.Found {
		_, _ = fmt.Fprintln(w.out, ans.Text)
		return
	}
	if ans.Generated {
		_, _ = fmt.Fprintln(w.out, ans.Text)
	} else {
		w.Header("Relevant passages")
		_, _ = fmt.Fprintln(w.out, ans.Context)
	}
	w.Newline()
	w.Header("Sources")
	seen := make(map[string]bool)
	for _, m := range ans.Sources {
		if seen[m.Chunk.SourcePath] {
			continue
		}
		seen[m.Chunk.SourcePath] = true
		_, _ = fmt.Fprintf(w.out, "  %s %s\n", w.styles.Dim.Render("-"), m.Chunk.SourcePath)
	}
}

// Snippet collapses whitespace and truncates text to at most n runes,
// marking the cut with an ellipsis.
func Snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if n <= 0 || len(r) <= n {
		return text
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
