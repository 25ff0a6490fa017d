package watcher

import (
	"context"
	"log/slog"
)

// RebuildFunc is called once per debounced batch of changes.
type RebuildFunc func(ctx context.Context, batch []FileEvent) error

// Run watches root and calls rebuild for every batch until ctx is cancelled.
// Rebuild errors are logged and watching continues. Run returns nil on
// cancellation.
func Run(ctx context.Context, root string, opts Options, rebuild RebuildFunc) error {
	w, err := New(opts)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	if err := w.Start(ctx, root); err != nil {
		return err
	}
	slog.Info("watching for changes", slog.String("root", root))

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			slog.Info("changes detected",
				slog.Int("events", len(batch)),
				slog.String("first", batch[0].Path))
			if err := rebuild(ctx, batch); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Error("rebuild failed", slog.String("error", err.Error()))
			}
		case err := <-w.Errors():
			slog.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}
