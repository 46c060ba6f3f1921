package pkginfo

import "context"

// Repository provides persistence for package manifests.
type Repository interface {
	// Get returns the manifest of a package.
	// Returns a cerr.NotFound error if the package is not installed.
	Get(ctx context.Context, packageName string) (*PackageInfo, error)

	// List returns every manifest sorted by package name.
	List(ctx context.Context) ([]*PackageInfo, error)

	// Upsert creates or replaces the manifest of a package.
	Upsert(ctx context.Context, pkg *PackageInfo) error

	Delete(ctx context.Context, packageName string) error
}
