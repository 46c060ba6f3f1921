package repositoryimpl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/appperms/internal/permgroup"
	"github.com/kazz187/appperms/pkg/cerr"
	"github.com/kazz187/appperms/pkg/storage"
)

const (
	CatalogPrefix = "catalog"
	CatalogPath   = CatalogPrefix + "/permissions.yaml"
)

// YAMLRepository stores the permission catalog as a single YAML file.
type YAMLRepository struct {
	storage storage.Storage
}

// NewYAMLRepository creates a new YAML-backed catalog repository.
func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

// Load returns the stored catalog, or the default catalog if none is stored.
func (r *YAMLRepository) Load(ctx context.Context) (*permgroup.Catalog, error) {
	data, err := r.storage.Read(ctx, CatalogPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			slog.DebugContext(ctx, "no stored catalog, using default", "path", CatalogPath)
			return permgroup.DefaultCatalog(), nil
		}
		return nil, cerr.WrapStorageReadError("catalog", err)
	}
	return permgroup.ParseCatalog(data)
}

func (r *YAMLRepository) Save(ctx context.Context, c *permgroup.Catalog) error {
	// Round trip through NewCatalog so invalid catalogs never reach storage.
	if _, err := permgroup.NewCatalog(c.Groups, c.Permissions); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal catalog: %w", err))
	}
	if err := r.storage.Write(ctx, CatalogPath, data); err != nil {
		return cerr.WrapStorageWriteError("catalog", err)
	}
	return nil
}
