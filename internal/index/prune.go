package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	tutorerrors "github.com/Aman-CERP/tutor/internal/errors"
	"github.com/Aman-CERP/tutor/internal/scanner"
)

// pruneDeleted drops fingerprints and cache entries of files under root that
// the scan no longer found. Records outside root belong to other corpora
// sharing the data directory and are left alone.
func (b *Builder) pruneDeleted(ctx context.Context, root string, discovery *scanner.Discovery) (int, error) {
	seen := make(map[string]bool, len(discovery.Supported))
	for _, f := range discovery.Supported {
		seen[f.AbsPath] = true
	}

	records, err := b.deps.Tracker.All(ctx)
	if err != nil {
		return 0, tutorerrors.PersistError("list fingerprints", err)
	}

	var gone []string
	for _, rec := range records {
		if seen[rec.Path] || !underRoot(rec.Path, root) {
			continue
		}
		if err := b.deps.Cache.Delete(rec.FileID); err != nil {
			slog.Warn("failed to delete cache entry",
				slog.String("path", rec.Path),
				slog.String("error", err.Error()))
		}
		gone = append(gone, rec.Path)
	}
	if len(gone) == 0 {
		return 0, nil
	}

	if err := b.deps.Tracker.Delete(ctx, gone); err != nil {
		return 0, tutorerrors.PersistError("delete fingerprints", err)
	}
	slog.Info("pruned deleted files", slog.Int("count", len(gone)))
	return len(gone), nil
}

func underRoot(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
