package tracker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/appperms/internal/apppermission"
	"github.com/kazz187/appperms/internal/eventbus"
	"github.com/kazz187/appperms/internal/label"
	"github.com/kazz187/appperms/internal/permgroup"
	"github.com/kazz187/appperms/internal/pkginfo"
	pkgrepo "github.com/kazz187/appperms/internal/pkginfo/repositoryimpl"
	"github.com/kazz187/appperms/pkg/cerr"
	"github.com/kazz187/appperms/pkg/storage"
)

const (
	appName       = "com.example.app"
	readContacts  = "android.permission.READ_CONTACTS"
	writeContacts = "android.permission.WRITE_CONTACTS"
	camera        = "android.permission.CAMERA"
	recordAudio   = "android.permission.RECORD_AUDIO"

	contactsGroup   = "android.permission-group.CONTACTS"
	cameraGroup     = "android.permission-group.CAMERA"
	microphoneGroup = "android.permission-group.MICROPHONE"
)

type fixture struct {
	storage storage.Storage
	repo    *pkgrepo.YAMLRepository
	bus     *eventbus.Bus
	tracker *Tracker
}

func newFixture(t *testing.T, s storage.Storage, opts ...Option) *fixture {
	t.Helper()
	labels := label.NewProvider("en")
	repo := pkgrepo.NewYAMLRepository(s)
	bus := eventbus.New()
	return &fixture{
		storage: s,
		repo:    repo,
		bus:     bus,
		tracker: New(repo, permgroup.NewResolver(permgroup.DefaultCatalog(), labels), labels, bus, opts...),
	}
}

func (f *fixture) install(t *testing.T, version int64, perms ...string) {
	t.Helper()
	require.NoError(t, f.repo.Upsert(context.Background(), &pkginfo.PackageInfo{
		PackageName:          appName,
		Label:                "Example",
		VersionCode:          version,
		RequestedPermissions: perms,
		GrantedPermissions:   []string{camera},
	}))
}

func viewNames(s *Snapshot) []string {
	var names []string
	for _, g := range s.Groups {
		names = append(names, g.Name)
	}
	return names
}

func findGroup(s *Snapshot, name string) (GroupView, bool) {
	for _, g := range s.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return GroupView{}, false
}

func noEvent(t *testing.T, ch <-chan *eventbus.Event) {
	t.Helper()
	select {
	case e := <-ch:
		t.Fatalf("unexpected %s event for %s", e.Type, e.PackageName)
	case <-time.After(50 * time.Millisecond):
	}
}

func nextEvent(t *testing.T, ch <-chan *eventbus.Event) *eventbus.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestTracker_Get(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStorage())
	f.install(t, 1, readContacts, camera, writeContacts)
	ctx := context.Background()

	snap, err := f.tracker.Get(ctx, Query{PackageName: appName})
	require.NoError(t, err)
	assert.Equal(t, appName, snap.PackageName)
	assert.Equal(t, "Example", snap.AppLabel)
	assert.Equal(t, int64(1), snap.VersionCode)
	assert.False(t, snap.Stale)
	assert.Equal(t, []string{contactsGroup, cameraGroup}, viewNames(snap))

	contacts, ok := findGroup(snap, contactsGroup)
	require.True(t, ok)
	assert.Equal(t, "Contacts", contacts.Label)
	assert.Equal(t, []permgroup.Member{{Name: readContacts}, {Name: writeContacts}}, contacts.Permissions)
	assert.False(t, contacts.Granted)

	cam, ok := findGroup(snap, cameraGroup)
	require.True(t, ok)
	assert.True(t, cam.Granted)

	_, ok = findGroup(snap, microphoneGroup)
	assert.False(t, ok)
}

func TestTracker_GetFilteredAndSorted(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStorage())
	f.install(t, 1, readContacts, camera, recordAudio)
	ctx := context.Background()

	snap, err := f.tracker.Get(ctx, Query{PackageName: appName, Filter: []string{recordAudio, readContacts}, Sorted: true})
	require.NoError(t, err)
	assert.Equal(t, []string{microphoneGroup, contactsGroup}, viewNames(snap))

	// Equivalent filters share one view.
	_, err = f.tracker.Get(ctx, Query{PackageName: appName, Filter: []string{readContacts, recordAudio, readContacts, ""}, Sorted: true})
	require.NoError(t, err)
	assert.Equal(t, 1, f.tracker.Len())
}

func TestTracker_GetNotFound(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStorage())
	_, err := f.tracker.Get(context.Background(), Query{PackageName: "com.example.missing"})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
	assert.Zero(t, f.tracker.Len())
}

func TestTracker_Group(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStorage())
	f.install(t, 1, camera)
	ctx := context.Background()

	g, err := f.tracker.Group(ctx, Query{PackageName: appName}, cameraGroup)
	require.NoError(t, err)
	assert.Equal(t, "Camera", g.Label)

	_, err = f.tracker.Group(ctx, Query{PackageName: appName}, contactsGroup)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestTracker_Refresh(t *testing.T) {
	created := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	now := created
	f := newFixture(t, storage.NewMemoryStorage(), WithClock(func() time.Time { return now }))
	f.install(t, 1, camera)
	ctx := context.Background()
	id, events := f.bus.Subscribe(4)
	defer f.bus.Unsubscribe(id)

	q := Query{PackageName: appName}
	snap, err := f.tracker.Get(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, created, snap.RefreshedAt)

	now = created.Add(time.Minute)
	f.install(t, 2, camera, readContacts)
	snap, err = f.tracker.Refresh(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, now, snap.RefreshedAt)
	assert.Equal(t, int64(2), snap.VersionCode)
	assert.Equal(t, []string{cameraGroup, contactsGroup}, viewNames(snap))

	e := nextEvent(t, events)
	assert.Equal(t, eventbus.EventGroupsRefreshed, e.Type)
	assert.Equal(t, []string{cameraGroup, contactsGroup}, e.Groups)
}

func TestTracker_RefreshRemovedPackage(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStorage())
	f.install(t, 1, camera, readContacts)
	ctx := context.Background()
	id, events := f.bus.Subscribe(4)
	defer f.bus.Unsubscribe(id)

	q := Query{PackageName: appName}
	_, err := f.tracker.Get(ctx, q)
	require.NoError(t, err)

	require.NoError(t, f.repo.Delete(ctx, appName))
	snap, err := f.tracker.Refresh(ctx, q)
	require.NoError(t, err)
	assert.True(t, snap.Stale)
	assert.Equal(t, int64(1), snap.VersionCode)
	assert.Equal(t, []string{cameraGroup, contactsGroup}, viewNames(snap))

	e := nextEvent(t, events)
	assert.Equal(t, eventbus.EventPackageRemoved, e.Type)
	assert.Equal(t, appName, e.PackageName)

	// Reinstalling clears the stale flag on the next refresh.
	f.install(t, 3, camera)
	snap, err = f.tracker.Refresh(ctx, q)
	require.NoError(t, err)
	assert.False(t, snap.Stale)
	assert.Equal(t, []string{cameraGroup}, viewNames(snap))
}

func TestTracker_RefreshBrokenManifest(t *testing.T) {
	created := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	now := created
	f := newFixture(t, storage.NewMemoryStorage(), WithClock(func() time.Time { return now }))
	f.install(t, 1, camera, readContacts)
	ctx := context.Background()
	id, events := f.bus.Subscribe(4)
	defer f.bus.Unsubscribe(id)

	q := Query{PackageName: appName}
	_, err := f.tracker.Get(ctx, q)
	require.NoError(t, err)

	now = created.Add(time.Minute)
	require.NoError(t, f.storage.Write(ctx, pkgrepo.PackagesPrefix+"/"+appName+".yaml", []byte("package_name: [broken\n")))
	_, err = f.tracker.Refresh(ctx, q)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.DataLoss), "got %v", err)
	noEvent(t, events)

	snap, err := f.tracker.Get(ctx, q)
	require.NoError(t, err)
	assert.False(t, snap.Stale)
	assert.Equal(t, created, snap.RefreshedAt)
	assert.Equal(t, int64(1), snap.VersionCode)
	assert.Equal(t, []string{cameraGroup, contactsGroup}, viewNames(snap))
}

func TestTracker_BoundsTrackedViews(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStorage(), WithMaxEntries(4))
	f.install(t, 1, camera, readContacts)
	ctx := context.Background()

	for i := range 20 {
		_, err := f.tracker.Get(ctx, Query{PackageName: appName, Filter: []string{fmt.Sprintf("com.example.permission.P%d", i)}})
		require.NoError(t, err)
	}
	assert.Equal(t, 4, f.tracker.Len())

	n, err := f.tracker.RefreshPackage(ctx, appName)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// An evicted view is rebuilt from the current manifest on demand.
	snap, err := f.tracker.Get(ctx, Query{PackageName: appName, Filter: []string{"com.example.permission.P0"}})
	require.NoError(t, err)
	assert.Empty(t, snap.Groups)
	assert.Equal(t, 4, f.tracker.Len())
}

func TestTracker_RefreshPackageAndForget(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStorage())
	f.install(t, 1, camera, readContacts)
	ctx := context.Background()

	_, err := f.tracker.Get(ctx, Query{PackageName: appName})
	require.NoError(t, err)
	_, err = f.tracker.Get(ctx, Query{PackageName: appName, Filter: []string{camera}})
	require.NoError(t, err)

	f.install(t, 2, readContacts)
	n, err := f.tracker.RefreshPackage(ctx, appName)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	snap, err := f.tracker.Get(ctx, Query{PackageName: appName, Filter: []string{camera}})
	require.NoError(t, err)
	assert.Empty(t, snap.Groups)

	n, err = f.tracker.RefreshPackage(ctx, "com.example.other")
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, 2, f.tracker.Forget(appName))
	assert.Zero(t, f.tracker.Len())
}

func TestTracker_RefreshAll(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStorage())
	ctx := context.Background()
	names := []string{"com.example.a", "com.example.b", "com.example.c"}
	for _, name := range names {
		require.NoError(t, f.repo.Upsert(ctx, &pkginfo.PackageInfo{PackageName: name, RequestedPermissions: []string{camera}}))
		_, err := f.tracker.Get(ctx, Query{PackageName: name})
		require.NoError(t, err)
	}
	for _, name := range names {
		require.NoError(t, f.repo.Upsert(ctx, &pkginfo.PackageInfo{PackageName: name, RequestedPermissions: []string{recordAudio}}))
	}

	require.NoError(t, f.tracker.RefreshAll(ctx))

	for _, name := range names {
		snap, err := f.tracker.Get(ctx, Query{PackageName: name})
		require.NoError(t, err)
		assert.Equal(t, []string{microphoneGroup}, viewNames(snap), name)
	}
}

type panickingResolver struct{}

func (panickingResolver) Resolve(*pkginfo.PackageInfo, string) (apppermission.Group, bool) {
	panic("resolver bug")
}

func TestTracker_RefreshAllConvertsPanics(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStorage()
	repo := pkgrepo.NewYAMLRepository(s)
	require.NoError(t, repo.Upsert(ctx, &pkginfo.PackageInfo{PackageName: appName}))

	// An empty manifest never reaches the resolver, so construction works.
	tr := New(repo, panickingResolver{}, label.NewProvider(), eventbus.New())
	_, err := tr.Get(ctx, Query{PackageName: appName})
	require.NoError(t, err)

	require.NoError(t, repo.Upsert(ctx, &pkginfo.PackageInfo{PackageName: appName, RequestedPermissions: []string{camera}}))
	err = tr.RefreshAll(ctx)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Internal))
}

func TestTracker_PanicKeepsStaleFlag(t *testing.T) {
	ctx := context.Background()
	repo := pkgrepo.NewYAMLRepository(storage.NewMemoryStorage())
	require.NoError(t, repo.Upsert(ctx, &pkginfo.PackageInfo{PackageName: appName}))

	tr := New(repo, panickingResolver{}, label.NewProvider(), eventbus.New())
	q := Query{PackageName: appName}
	_, err := tr.Get(ctx, q)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, appName))
	snap, err := tr.Refresh(ctx, q)
	require.NoError(t, err)
	require.True(t, snap.Stale)

	require.NoError(t, repo.Upsert(ctx, &pkginfo.PackageInfo{PackageName: appName, RequestedPermissions: []string{camera}}))
	_, err = tr.Refresh(ctx, q)
	assert.True(t, cerr.IsCode(err, cerr.Internal), "got %v", err)

	snap, err = tr.Get(ctx, q)
	require.NoError(t, err)
	assert.True(t, snap.Stale)
}

func TestTracker_Packages(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStorage())
	f.install(t, 4, camera, readContacts)

	pkgs, err := f.tracker.Packages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []PackageSummary{{
		PackageName:          appName,
		Label:                "Example",
		VersionCode:          4,
		RequestedPermissions: 2,
	}}, pkgs)
}

func TestTracker_Watch(t *testing.T) {
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	f := newFixture(t, s)
	f.install(t, 1, camera)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := Query{PackageName: appName}
	_, err = f.tracker.Get(ctx, q)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- f.tracker.Watch(ctx, s.Dir(pkgrepo.PackagesPrefix)) }()

	// Writes made before the watch is established are missed, so keep
	// changing the manifest until one is picked up.
	version := int64(1)
	require.Eventually(t, func() bool {
		version++
		f.install(t, version, camera, readContacts)
		snap, err := f.tracker.Get(ctx, q)
		return err == nil && snap.VersionCode > 1 && len(snap.Groups) == 2
	}, 5*time.Second, 200*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
