package apppermission

import (
	"context"

	"github.com/kazz187/appperms/internal/pkginfo"
)

// Group is a resolved permission group.
type Group interface {
	// Name is stable and unique within one AppPermissions.
	Name() string
	// HasPermission reports whether permission is a member of the group.
	HasPermission(permission string) bool
	// Compare orders groups for sorted output. It returns a negative
	// number when the receiver sorts before other.
	Compare(other Group) int
}

// GroupResolver maps a declared permission to its group.
type GroupResolver interface {
	// Resolve returns false when the permission belongs to no group, e.g. it
	// is unknown, restricted or not granted at runtime.
	Resolve(pkg *pkginfo.PackageInfo, permission string) (Group, bool)
}

// PackageSource loads the current manifest of a package. A cerr.NotFound
// error means the package is no longer installed.
type PackageSource interface {
	Get(ctx context.Context, packageName string) (*pkginfo.PackageInfo, error)
}

// LabelProvider returns the display label of a package.
type LabelProvider interface {
	Label(pkg *pkginfo.PackageInfo) string
}

type defaultLabelProvider struct{}

func (defaultLabelProvider) Label(pkg *pkginfo.PackageInfo) string {
	if pkg.Label != "" {
		return pkg.Label
	}
	return pkg.PackageName
}
