package permgroup

import (
	"sync"
	"sync/atomic"

	"golang.org/x/text/collate"

	"github.com/kazz187/appperms/internal/apppermission"
	"github.com/kazz187/appperms/internal/label"
	"github.com/kazz187/appperms/internal/pkginfo"
)

// Resolver resolves declared permissions to groups using a Catalog.
// It is safe for concurrent use.
type Resolver struct {
	catalog atomic.Pointer[Catalog]
	labels  *label.Provider

	mu       sync.Mutex // guards collator, which keeps internal buffers
	collator *collate.Collator
}

var _ apppermission.GroupResolver = (*Resolver)(nil)

func NewResolver(c *Catalog, labels *label.Provider) *Resolver {
	r := &Resolver{
		labels:   labels,
		collator: collate.New(labels.Tag(), collate.IgnoreCase),
	}
	r.catalog.Store(c)
	return r
}

// Replace swaps the catalog. Groups resolved earlier keep the old one.
func (r *Resolver) Replace(c *Catalog) {
	r.catalog.Store(c)
}

func (r *Resolver) Catalog() *Catalog {
	return r.catalog.Load()
}

// Resolve returns the group of permission with every requested permission
// of pkg that belongs to the same group as members. Unknown permissions,
// permissions that are not granted at runtime, and restricted or removed
// permissions have no group.
func (r *Resolver) Resolve(pkg *pkginfo.PackageInfo, permission string) (apppermission.Group, bool) {
	c := r.catalog.Load()
	info, ok := c.Permission(permission)
	if !ok || !info.IsRuntime() {
		return nil, false
	}
	groupInfo := c.groupInfoFor(info)

	g := &Group{
		info:     groupInfo,
		label:    r.labels.Localize(groupLabel(groupInfo), groupInfo.Labels),
		resolver: r,
	}
	for _, requested := range pkg.RequestedPermissions {
		if g.HasPermission(requested) {
			continue
		}
		p, ok := c.Permission(requested)
		if !ok || !p.IsRuntime() || p.GroupName() != groupInfo.Name {
			continue
		}
		g.members = append(g.members, Member{Name: requested, Granted: pkg.IsGranted(requested)})
	}
	if !g.HasPermission(permission) {
		g.members = append(g.members, Member{Name: permission, Granted: pkg.IsGranted(permission)})
	}
	return g, true
}

func (r *Resolver) compareLabels(a, b string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collator.CompareString(a, b)
}

func groupLabel(g *GroupInfo) string {
	if g.Label != "" {
		return g.Label
	}
	return g.Name
}
