package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	server "github.com/kazz187/appperms/internal"
	"github.com/kazz187/appperms/internal/config"
	"github.com/kazz187/appperms/internal/eventbus"
	"github.com/kazz187/appperms/internal/label"
	"github.com/kazz187/appperms/internal/permgroup"
	catalogrepo "github.com/kazz187/appperms/internal/permgroup/repositoryimpl"
	pkgrepo "github.com/kazz187/appperms/internal/pkginfo/repositoryimpl"
	"github.com/kazz187/appperms/internal/tracker"
	"github.com/kazz187/appperms/pkg/clog"
	"github.com/kazz187/appperms/pkg/dirwatch"
	"github.com/kazz187/appperms/pkg/storage"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.IsLocal() {
		handler = clog.NewHTTPTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Setup storage
	var (
		store    storage.Storage
		localDir func(prefix string) string
	)
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(ctx, env.S3Bucket, env.S3Prefix, env.S3Region)
		if err != nil {
			slog.Error("failed to create S3 storage", "error", err)
			os.Exit(1)
		}
	default:
		local, err := storage.NewLocalStorage(env.BaseDir)
		if err != nil {
			slog.Error("failed to create local storage", "error", err)
			os.Exit(1)
		}
		store, localDir = local, local.Dir
	}

	// Setup repositories
	packageRepo := pkgrepo.NewYAMLRepository(store)
	catalogRepo := catalogrepo.NewYAMLRepository(store)

	catalog, err := catalogRepo.Load(ctx)
	if err != nil {
		slog.Error("failed to load permission catalog", "error", err)
		os.Exit(1)
	}

	labels := label.NewProvider(env.Locales...)
	resolver := permgroup.NewResolver(catalog, labels)
	bus := eventbus.New()
	tr := tracker.New(packageRepo, resolver, labels, bus,
		tracker.WithConcurrency(env.RefreshConcurrency),
		tracker.WithMaxEntries(env.MaxTrackedViews),
	)

	go logEvents(ctx, bus)

	if env.Watch && localDir != nil {
		go func() {
			if err := tr.Watch(ctx, localDir(pkgrepo.PackagesPrefix)); err != nil {
				slog.Error("package watcher stopped", "error", err)
			}
		}()
		go func() {
			if err := watchCatalog(ctx, localDir(catalogrepo.CatalogPrefix), catalogRepo, resolver, tr); err != nil {
				slog.Error("catalog watcher stopped", "error", err)
			}
		}()
	} else if env.Watch {
		slog.Warn("watch is only supported with local storage", "storage_type", env.StorageEnv.Type)
	}
	if env.RefreshInterval > 0 {
		go tr.RefreshEvery(ctx, env.RefreshInterval)
	}

	srv := server.NewServer(env, tracker.NewServer(tr))
	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// watchCatalog reloads the catalog when it changes on disk and refreshes
// every tracked package against it.
func watchCatalog(ctx context.Context, dir string, repo *catalogrepo.YAMLRepository, resolver *permgroup.Resolver, tr *tracker.Tracker) error {
	w := dirwatch.New(dir, dirwatch.WithExtension(".yaml"))
	return w.Run(ctx, func(name string) {
		catalog, err := repo.Load(ctx)
		if err != nil {
			slog.Error("failed to reload permission catalog, keeping the previous one", "file", name, "error", err)
			return
		}
		resolver.Replace(catalog)
		slog.Info("permission catalog reloaded", "groups", len(catalog.Groups), "permissions", len(catalog.Permissions))
		if err := tr.RefreshAll(ctx); err != nil {
			slog.Error("failed to refresh after catalog change", "error", err)
		}
	})
}

func logEvents(ctx context.Context, bus *eventbus.Bus) {
	id, events := bus.Subscribe(64)
	defer bus.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			slog.Info("permission event", "type", e.Type, "package", e.PackageName, "groups", e.Groups)
		}
	}
}
