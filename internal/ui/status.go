package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo contains index health information.
type StatusInfo struct {
	SourceDir      string    `json:"source_dir"`
	DataDir        string    `json:"data_dir"`
	IndexBuilt     bool      `json:"index_built"`
	BuildID        string    `json:"build_id,omitempty"`
	BuiltAt        time.Time `json:"built_at,omitempty"`
	TotalChunks    int       `json:"total_chunks"`
	FilesIndexed   int       `json:"files_indexed"`
	FilesSkipped   int       `json:"files_skipped"`
	TrackedFiles   int       `json:"tracked_files"`
	IndexModel     string    `json:"index_model,omitempty"`
	IndexDims      int       `json:"index_dimensions,omitempty"`
	Generations    int       `json:"generations"`
	FingerprintsSz int64     `json:"fingerprints_size"`
	CacheSize      int64     `json:"cache_size"`
	IndexSize      int64     `json:"index_size"`
	TotalSize      int64     `json:"total_size"`

	EmbedderType    string `json:"embedder_type"`
	EmbedderModel   string `json:"embedder_model,omitempty"`
	EmbedderStatus  string `json:"embedder_status"` // "ready", "offline", "error"
	GeneratorType   string `json:"generator_type"`
	GeneratorModel  string `json:"generator_model,omitempty"`
	GeneratorStatus string `json:"generator_status"` // "ready", "offline", "n/a"
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status: "+info.SourceDir))

	if !info.IndexBuilt {
		_, _ = fmt.Fprintf(r.out, "  Index:        %s\n", r.styles.Warning.Render("not built"))
	} else {
		_, _ = fmt.Fprintf(r.out, "  Build:        %s\n", info.BuildID)
		_, _ = fmt.Fprintf(r.out, "  Files:        %d indexed, %d skipped\n", info.FilesIndexed, info.FilesSkipped)
		_, _ = fmt.Fprintf(r.out, "  Chunks:       %d\n", info.TotalChunks)
		_, _ = fmt.Fprintf(r.out, "  Model:        %s (%d dims)\n", info.IndexModel, info.IndexDims)
		if !info.BuiltAt.IsZero() {
			_, _ = fmt.Fprintf(r.out, "  Last indexed: %s\n", formatTime(info.BuiltAt))
		}
	}
	_, _ = fmt.Fprintf(r.out, "  Tracked:      %d files\n", info.TrackedFiles)
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintf(r.out, "  Storage (%s):\n", info.DataDir)
	_, _ = fmt.Fprintf(r.out, "    Fingerprints: %s\n", FormatBytes(info.FingerprintsSz))
	_, _ = fmt.Fprintf(r.out, "    File cache:   %s\n", FormatBytes(info.CacheSize))
	_, _ = fmt.Fprintf(r.out, "    Index:        %s (%d generations)\n", FormatBytes(info.IndexSize), info.Generations)
	_, _ = fmt.Fprintf(r.out, "    Total:        %s\n", FormatBytes(info.TotalSize))
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Embedder:")
	_, _ = fmt.Fprintf(r.out, "    Type:   %s\n", info.EmbedderType)
	_, _ = fmt.Fprintf(r.out, "    Status: %s\n", r.renderStatus(info.EmbedderStatus))
	if info.EmbedderModel != "" {
		_, _ = fmt.Fprintf(r.out, "    Model:  %s\n", info.EmbedderModel)
	}
	if info.IndexBuilt && info.EmbedderModel != "" && info.IndexModel != info.EmbedderModel {
		_, _ = fmt.Fprintf(r.out, "    %s\n", r.styles.Warning.Render("index was built with a different model, run 'tutor index'"))
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Generator:")
	_, _ = fmt.Fprintf(r.out, "    Type:   %s\n", info.GeneratorType)
	_, _ = fmt.Fprintf(r.out, "    Status: %s\n", r.renderStatus(info.GeneratorStatus))
	if info.GeneratorModel != "" {
		_, _ = fmt.Fprintf(r.out, "    Model:  %s\n", info.GeneratorModel)
	}

	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "ready":
		return r.styles.Success.Render(status)
	case "offline":
		return r.styles.Warning.Render(status)
	case "error":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
