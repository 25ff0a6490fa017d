package engine

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/tutor/internal/embed"
	"github.com/Aman-CERP/tutor/internal/store"
	"github.com/Aman-CERP/tutor/internal/ui"
)

// statusCheckTimeout bounds the backend reachability checks.
const statusCheckTimeout = 3 * time.Second

// Status collects index and backend health for `tutor status`.
func (e *Engine) Status(ctx context.Context) (ui.StatusInfo, error) {
	info := ui.StatusInfo{
		SourceDir: e.cfg.Paths.SourceDir,
		DataDir:   e.layout.DataDir,
	}

	meta, err := store.LoadMetadata(e.layout.MetadataPath())
	switch {
	case err == nil:
		info.IndexBuilt = meta.IndexBuilt
		info.BuildID = meta.BuildID
		info.BuiltAt = meta.BuiltAt
		info.TotalChunks = meta.TotalChunks
		info.FilesIndexed = len(meta.FilesIndexed)
		info.FilesSkipped = len(meta.UnsupportedFiles)
		info.IndexModel = meta.EmbeddingModel
		info.IndexDims = meta.Dimensions
	case !errors.Is(err, os.ErrNotExist):
		return info, err
	}

	if n, err := e.tracker.Count(ctx); err == nil {
		info.TrackedFiles = n
	}
	if gens, err := e.layout.Generations(); err == nil {
		info.Generations = len(gens)
	}

	info.FingerprintsSz = fileSize(e.tracker.Path()) + fileSize(e.tracker.Path()+"-wal")
	info.CacheSize = dirSize(e.layout.FileCacheDir())
	info.IndexSize = dirSize(e.layout.IndexDir()) + fileSize(e.layout.MetadataPath())
	info.TotalSize = info.FingerprintsSz + info.CacheSize + info.IndexSize

	checkCtx, cancel := context.WithTimeout(ctx, statusCheckTimeout)
	defer cancel()

	info.EmbedderType = e.cfg.Embeddings.Provider
	info.EmbedderModel = e.embedder.ModelName()
	info.EmbedderStatus = availability(e.embedder.Available(checkCtx))
	if _, ok := e.embedder.(*embed.StaticEmbedder); ok {
		info.EmbedderType = string(embed.ProviderStatic)
	}

	info.GeneratorType = e.cfg.Generation.Provider
	info.GeneratorStatus = "n/a"
	if e.generator != nil {
		info.GeneratorModel = e.generator.ModelName()
		if a, ok := e.generator.(interface{ Available(context.Context) bool }); ok {
			info.GeneratorStatus = availability(a.Available(checkCtx))
		}
	}

	return info, nil
}

func availability(ok bool) string {
	if ok {
		return "ready"
	}
	return "offline"
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func dirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += fi.Size()
		}
		return nil
	})
	return total
}
