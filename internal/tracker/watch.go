package tracker

import (
	"context"
	"log/slog"

	"github.com/kazz187/appperms/internal/metrics"
	"github.com/kazz187/appperms/pkg/dirwatch"
)

// Watch refreshes a package whenever its manifest in dir changes, until ctx
// is cancelled.
func (t *Tracker) Watch(ctx context.Context, dir string) error {
	return t.watch(ctx, dirwatch.New(dir, dirwatch.WithExtension(".yaml")))
}

func (t *Tracker) watch(ctx context.Context, w *dirwatch.Watcher) error {
	return w.Run(ctx, func(name string) {
		metrics.WatchEventsTotal.Inc()
		n, err := t.RefreshPackage(ctx, name)
		if err != nil {
			slog.ErrorContext(ctx, "failed to refresh changed package", "package", name, "error", err)
			return
		}
		if n > 0 {
			slog.InfoContext(ctx, "refreshed changed package", "package", name, "views", n)
		}
	})
}
