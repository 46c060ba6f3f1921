// Package tracker owns the live AppPermissions of every queried package,
// serializes access to them and refreshes them when manifests change.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sourcegraph/conc/pool"

	"github.com/kazz187/appperms/internal/apppermission"
	"github.com/kazz187/appperms/internal/eventbus"
	"github.com/kazz187/appperms/internal/metrics"
	"github.com/kazz187/appperms/internal/pkginfo"
	"github.com/kazz187/appperms/pkg/cerr"
	"github.com/kazz187/appperms/pkg/panicerr"
)

const (
	defaultConcurrency = 8
	defaultMaxEntries  = 1024
)

// entry is one AppPermissions and the state around it. mu serializes every
// access to perms, which is not safe for concurrent use.
type entry struct {
	mu          sync.Mutex
	query       Query
	perms       *apppermission.AppPermissions
	stale       bool
	// removed and reloadErr are set by the callbacks of perms during a
	// refresh.
	removed     bool
	reloadErr   error
	refreshedAt time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithConcurrency bounds the number of parallel refreshes in RefreshAll.
func WithConcurrency(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.concurrency = n
		}
	}
}

// WithMaxEntries bounds the number of tracked views. The least recently used
// view is dropped when a new one would exceed the bound.
func WithMaxEntries(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.maxEntries = n
		}
	}
}

// WithClock replaces the clock used for RefreshedAt.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

type Tracker struct {
	repo     pkginfo.Repository
	resolver apppermission.GroupResolver
	labels   apppermission.LabelProvider
	bus      *eventbus.Bus

	concurrency int
	maxEntries  int
	now         func() time.Time

	entries *lru.Cache[string, *entry]
}

func New(repo pkginfo.Repository, resolver apppermission.GroupResolver, labels apppermission.LabelProvider, bus *eventbus.Bus, opts ...Option) *Tracker {
	t := &Tracker{
		repo:        repo,
		resolver:    resolver,
		labels:      labels,
		bus:         bus,
		concurrency: defaultConcurrency,
		maxEntries:  defaultMaxEntries,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	entries, err := lru.NewWithEvict(t.maxEntries, func(key string, e *entry) {
		metrics.DroppedEntriesTotal.Inc()
		slog.Debug("untracked package view", "package", e.query.PackageName, "view", key)
	})
	if err != nil {
		// maxEntries is always positive.
		panic(err)
	}
	t.entries = entries
	return t
}

// Packages lists the installed packages.
func (t *Tracker) Packages(ctx context.Context) ([]PackageSummary, error) {
	pkgs, err := t.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]PackageSummary, 0, len(pkgs))
	for _, pkg := range pkgs {
		summaries = append(summaries, PackageSummary{
			PackageName:          pkg.PackageName,
			Label:                t.labels.Label(pkg),
			VersionCode:          pkg.VersionCode,
			RequestedPermissions: len(pkg.RequestedPermissions),
		})
	}
	return summaries, nil
}

// Get returns the groups selected by q, loading the package on first use.
func (t *Tracker) Get(ctx context.Context, q Query) (*Snapshot, error) {
	e, err := t.entry(ctx, q)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return t.snapshot(e), nil
}

// Group returns a single group of the package selected by q.
func (t *Tracker) Group(ctx context.Context, q Query, name string) (*GroupView, error) {
	e, err := t.entry(ctx, q)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.perms.Group(name)
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "group not found", nil)
	}
	v := newGroupView(g)
	return &v, nil
}

// Refresh reloads the package selected by q and returns the new groups.
// A package that is no longer installed keeps its previous groups and is
// reported as stale. Other reload failures are returned.
func (t *Tracker) Refresh(ctx context.Context, q Query) (*Snapshot, error) {
	e, created, err := t.loadOrCreate(ctx, q)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !created {
		if err := t.refresh(ctx, e); err != nil {
			return nil, err
		}
	}
	return t.snapshot(e), nil
}

// RefreshPackage refreshes every tracked view of a package and returns how
// many were refreshed.
func (t *Tracker) RefreshPackage(ctx context.Context, packageName string) (int, error) {
	entries := t.tracked(func(e *entry) bool { return e.query.PackageName == packageName })
	return len(entries), t.refreshEntries(ctx, entries)
}

// RefreshAll refreshes every tracked view in parallel.
func (t *Tracker) RefreshAll(ctx context.Context) error {
	return t.refreshEntries(ctx, t.tracked(nil))
}

// RefreshEvery calls RefreshAll every interval until ctx is cancelled.
func (t *Tracker) RefreshEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.RefreshAll(ctx); err != nil {
				slog.ErrorContext(ctx, "periodic refresh failed", "error", err)
			}
		}
	}
}

// Forget drops every view of a package and returns how many were dropped.
func (t *Tracker) Forget(packageName string) int {
	n := 0
	for _, key := range t.entries.Keys() {
		if e, ok := t.entries.Peek(key); ok && e.query.PackageName == packageName {
			t.entries.Remove(key)
			n++
		}
	}
	metrics.TrackedEntries.Set(float64(t.entries.Len()))
	return n
}

// Len returns the number of tracked views.
func (t *Tracker) Len() int {
	return t.entries.Len()
}

func (t *Tracker) entry(ctx context.Context, q Query) (*entry, error) {
	e, _, err := t.loadOrCreate(ctx, q)
	return e, err
}

// loadOrCreate returns the entry for q, building it from the repository if
// it is not tracked yet.
func (t *Tracker) loadOrCreate(ctx context.Context, q Query) (*entry, bool, error) {
	q = q.normalize()
	key := q.key()

	if e, ok := t.entries.Get(key); ok {
		return e, false, nil
	}

	pkg, err := t.repo.Get(ctx, q.PackageName)
	if err != nil {
		return nil, false, err
	}

	e := &entry{query: q, refreshedAt: t.now()}
	opts := []apppermission.Option{
		apppermission.WithFilter(q.Filter...),
		apppermission.WithLabelProvider(t.labels),
		apppermission.WithErrorCallback(func() { e.removed = true }),
		apppermission.WithReloadErrorCallback(func(err error) { e.reloadErr = err }),
	}
	if q.Sorted {
		opts = append(opts, apppermission.WithSortedGroups())
	}
	perms, err := apppermission.New(pkg, t.repo, t.resolver, opts...)
	if err != nil {
		return nil, false, err
	}
	e.perms = perms

	if existing, ok, _ := t.entries.PeekOrAdd(key, e); ok {
		// Lost a race with another request for the same view.
		return existing, false, nil
	}
	metrics.TrackedEntries.Set(float64(t.entries.Len()))
	slog.DebugContext(ctx, "tracking package", "package", q.PackageName, "filter", q.Filter, "sorted", q.Sorted)
	return e, true, nil
}

func (t *Tracker) tracked(match func(*entry) bool) []*entry {
	var entries []*entry
	for _, e := range t.entries.Values() {
		if match == nil || match(e) {
			entries = append(entries, e)
		}
	}
	return entries
}

func (t *Tracker) refreshEntries(ctx context.Context, entries []*entry) error {
	p := pool.New().WithContext(ctx).WithMaxGoroutines(t.concurrency)
	for _, e := range entries {
		p.Go(panicerr.SafeContext(func(ctx context.Context) error {
			e.mu.Lock()
			defer e.mu.Unlock()
			return t.refresh(ctx, e)
		}))
	}
	return p.Wait()
}

// refresh must be called with e.mu held. A view whose package is no longer
// known keeps its groups and becomes stale; any other failure leaves the
// view as it was.
func (t *Tracker) refresh(ctx context.Context, e *entry) error {
	start := time.Now()
	e.removed, e.reloadErr = false, nil
	if err := panicerr.Run(func() { e.perms.Refresh(ctx) }); err != nil {
		metrics.RefreshesTotal.WithLabelValues("panic").Inc()
		return err
	}
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	if e.reloadErr != nil {
		metrics.RefreshesTotal.WithLabelValues("failed").Inc()
		return e.reloadErr
	}
	e.refreshedAt = t.now()
	if e.removed {
		e.stale = true
		metrics.RefreshesTotal.WithLabelValues("removed").Inc()
		metrics.PackagesRemovedTotal.Inc()
		t.bus.PublishNew(eventbus.EventPackageRemoved, e.query.PackageName, nil)
		return nil
	}
	e.stale = false
	metrics.RefreshesTotal.WithLabelValues("ok").Inc()
	t.bus.PublishNew(eventbus.EventGroupsRefreshed, e.query.PackageName, groupNames(e.perms.Groups()))
	return nil
}

func (t *Tracker) snapshot(e *entry) *Snapshot {
	pkg := e.perms.PackageInfo()
	groups := e.perms.Groups()
	views := make([]GroupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, newGroupView(g))
	}
	metrics.GroupsPerSnapshot.Observe(float64(len(views)))
	return &Snapshot{
		PackageName: pkg.PackageName,
		AppLabel:    e.perms.AppLabel(),
		VersionCode: pkg.VersionCode,
		Stale:       e.stale,
		RefreshedAt: e.refreshedAt,
		Groups:      views,
	}
}

func groupNames(groups []apppermission.Group) []string {
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		names = append(names, g.Name())
	}
	return names
}
