package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/kazz187/appperms/internal/config"
	"github.com/kazz187/appperms/internal/eventbus"
	"github.com/kazz187/appperms/internal/label"
	"github.com/kazz187/appperms/internal/permgroup"
	catalogrepo "github.com/kazz187/appperms/internal/permgroup/repositoryimpl"
	pkgrepo "github.com/kazz187/appperms/internal/pkginfo/repositoryimpl"
	"github.com/kazz187/appperms/internal/tracker"
	"github.com/kazz187/appperms/pkg/clog"
	"github.com/kazz187/appperms/pkg/storage"
)

var (
	app = kingpin.New("appperms", "Inspect the permission groups requested by installed applications")

	storageDir = app.Flag("storage-dir", "Directory holding packages/ and catalog/").
			Envar("APPPERMS_STORAGE_BASE_DIR").Default(".appperms/data").String()
	locales  = app.Flag("locale", "Preferred locale for labels, repeatable").Default("en").Strings()
	logLevel = app.Flag("log-level", "Log level").Envar("APPPERMS_LOG_LEVEL").Default("warn").String()
	noColor  = app.Flag("no-color", "Disable colored output").Bool()

	initCmd   = app.Command("init", "Write the default permission catalog to the storage directory")
	initForce = initCmd.Flag("force", "Overwrite an existing catalog").Bool()

	packagesCmd = app.Command("packages", "List installed packages")

	groupsCmd     = app.Command("groups", "Show the permission groups of a package")
	groupsPackage = groupsCmd.Arg("package", "Package name").Required().String()
	groupsFilter  = groupsCmd.Flag("filter", "Only show groups containing this permission, repeatable").Strings()
	groupsSort    = groupsCmd.Flag("sort", "Sort groups instead of keeping declaration order").Bool()

	groupCmd     = app.Command("group", "Show a single permission group of a package")
	groupPackage = groupCmd.Arg("package", "Package name").Required().String()
	groupName    = groupCmd.Arg("name", "Group name").Required().String()

	watchCmd     = app.Command("watch", "Print the groups of a package again whenever its manifest changes")
	watchPackage = watchCmd.Arg("package", "Package name").Required().String()
	watchFilter  = watchCmd.Flag("filter", "Only show groups containing this permission, repeatable").Strings()
	watchSort    = watchCmd.Flag("sort", "Sort groups instead of keeping declaration order").Bool()
)

// deps is everything a command needs, built from the global flags.
type deps struct {
	store   *storage.LocalStorage
	tracker *tracker.Tracker
	bus     *eventbus.Bus
}

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *noColor {
		color.NoColor = true
	}
	handler := clog.NewHTTPTextHandler(os.Stderr,
		clog.WithLevel(config.ParseLogLevel(*logLevel)),
		clog.WithColor(!color.NoColor),
	)
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewLocalStorage(*storageDir)
	if err != nil {
		fatal(err)
	}
	if command == initCmd.FullCommand() {
		// init must work even when the stored catalog is broken.
		if err := runInit(ctx, store, *initForce); err != nil {
			fatal(err)
		}
		return
	}

	d, err := newDeps(ctx, store)
	if err != nil {
		fatal(err)
	}

	switch command {
	case packagesCmd.FullCommand():
		err = runPackages(ctx, d)
	case groupsCmd.FullCommand():
		err = runGroups(ctx, d, tracker.Query{PackageName: *groupsPackage, Filter: *groupsFilter, Sorted: *groupsSort})
	case groupCmd.FullCommand():
		err = runGroup(ctx, d, *groupPackage, *groupName)
	case watchCmd.FullCommand():
		err = runWatch(ctx, d, tracker.Query{PackageName: *watchPackage, Filter: *watchFilter, Sorted: *watchSort})
	}
	if err != nil {
		fatal(err)
	}
}

func newDeps(ctx context.Context, store *storage.LocalStorage) (*deps, error) {
	catalog, err := catalogrepo.NewYAMLRepository(store).Load(ctx)
	if err != nil {
		return nil, err
	}
	labels := label.NewProvider(*locales...)
	bus := eventbus.New()
	return &deps{
		store:   store,
		tracker: tracker.New(pkgrepo.NewYAMLRepository(store), permgroup.NewResolver(catalog, labels), labels, bus),
		bus:     bus,
	}, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
