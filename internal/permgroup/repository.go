package permgroup

import "context"

// Repository provides persistence for the permission catalog.
type Repository interface {
	// Load returns the stored catalog, or the default catalog if none is
	// stored.
	Load(ctx context.Context) (*Catalog, error)

	Save(ctx context.Context, c *Catalog) error
}
