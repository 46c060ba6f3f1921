package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/kazz187/appperms/internal/eventbus"
	"github.com/kazz187/appperms/internal/permgroup"
	catalogrepo "github.com/kazz187/appperms/internal/permgroup/repositoryimpl"
	pkgrepo "github.com/kazz187/appperms/internal/pkginfo/repositoryimpl"
	"github.com/kazz187/appperms/internal/tracker"
	"github.com/kazz187/appperms/pkg/storage"
)

func runInit(ctx context.Context, store *storage.LocalStorage, force bool) error {
	exists, err := store.Exists(ctx, catalogrepo.CatalogPath)
	if err != nil {
		return err
	}
	if exists && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", catalogrepo.CatalogPath)
	}
	if err := store.Write(ctx, catalogrepo.CatalogPath, permgroup.DefaultCatalogYAML()); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", store.Dir(catalogrepo.CatalogPath))
	return nil
}

func runPackages(ctx context.Context, d *deps) error {
	pkgs, err := d.tracker.Packages(ctx)
	if err != nil {
		return err
	}
	if len(pkgs) == 0 {
		fmt.Printf("no packages in %s\n", d.store.Dir(pkgrepo.PackagesPrefix))
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PACKAGE\tLABEL\tVERSION\tPERMISSIONS")
	for _, p := range pkgs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", p.PackageName, p.Label, p.VersionCode, p.RequestedPermissions)
	}
	return w.Flush()
}

func runGroups(ctx context.Context, d *deps, q tracker.Query) error {
	snap, err := d.tracker.Get(ctx, q)
	if err != nil {
		return err
	}
	fmt.Print(renderSnapshot(snap))
	return nil
}

func runGroup(ctx context.Context, d *deps, packageName, name string) error {
	g, err := d.tracker.Group(ctx, tracker.Query{PackageName: packageName}, name)
	if err != nil {
		return err
	}
	var b strings.Builder
	renderGroup(&b, *g)
	fmt.Print(b.String())
	return nil
}

func runWatch(ctx context.Context, d *deps, q tracker.Query) error {
	snap, err := d.tracker.Get(ctx, q)
	if err != nil {
		return err
	}
	current := renderSnapshot(snap)
	fmt.Print(current)

	id, events := d.bus.Subscribe(16)
	defer d.bus.Unsubscribe(id)

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- d.tracker.Watch(ctx, d.store.Dir(pkgrepo.PackagesPrefix))
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watchErr:
			return err
		case e := <-events:
			if e.PackageName != q.PackageName {
				continue
			}
			if e.Type == eventbus.EventPackageRemoved {
				color.Yellow("%s was removed, showing the last known groups", q.PackageName)
			}
			snap, err := d.tracker.Get(ctx, q)
			if err != nil {
				return err
			}
			next := renderSnapshot(snap)
			diff, err := unifiedDiff(current, next)
			if err != nil {
				return err
			}
			if diff != "" {
				printDiff(os.Stdout, diff)
			}
			current = next
		}
	}
}
