package repositoryimpl

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/appperms/internal/pkginfo"
	"github.com/kazz187/appperms/pkg/cerr"
	"github.com/kazz187/appperms/pkg/storage"
	"github.com/kazz187/appperms/pkg/validator"
)

// PackagesPrefix is the storage prefix holding one <package>.yaml per package.
const PackagesPrefix = "packages"

const manifestExt = ".yaml"

// YAMLRepository stores package manifests as YAML files keyed by package name.
type YAMLRepository struct {
	storage   storage.Storage
	validator *validator.Validator
}

// NewYAMLRepository creates a new YAML-backed package repository.
func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{
		storage:   s,
		validator: validator.New(),
	}
}

func manifestPath(packageName string) string {
	return path.Join(PackagesPrefix, packageName+manifestExt)
}

func (r *YAMLRepository) Get(ctx context.Context, packageName string) (*pkginfo.PackageInfo, error) {
	if !r.validator.Var(packageName, "required,package_name") {
		return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid package name %q", packageName), nil)
	}
	data, err := r.storage.Read(ctx, manifestPath(packageName))
	if err != nil {
		return nil, cerr.WrapStorageReadError(fmt.Sprintf("package %s", packageName), err)
	}
	pkg, err := r.decode(packageName, data)
	if err != nil {
		return nil, err
	}
	if pkg.PackageName != packageName {
		return nil, cerr.NewError(cerr.DataLoss, "server error",
			fmt.Errorf("manifest %s declares package %q", manifestPath(packageName), pkg.PackageName))
	}
	return pkg, nil
}

func (r *YAMLRepository) List(ctx context.Context) ([]*pkginfo.PackageInfo, error) {
	all, err := storage.ReadAll(ctx, r.storage, PackagesPrefix, manifestExt)
	if err != nil {
		return nil, cerr.WrapStorageListError("packages", err)
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	slices.Sort(names)

	pkgs := make([]*pkginfo.PackageInfo, 0, len(names))
	for _, name := range names {
		pkg, err := r.decode(name, all[name])
		if err != nil {
			// One broken manifest must not hide the others.
			slog.WarnContext(ctx, "skipping invalid package manifest", "package", name, "error", err)
			continue
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, nil
}

func (r *YAMLRepository) Upsert(ctx context.Context, pkg *pkginfo.PackageInfo) error {
	if err := r.validator.Validate("package", pkg); err != nil {
		return err
	}
	data, err := yaml.Marshal(pkg)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal package: %w", err))
	}
	if err := r.storage.Write(ctx, manifestPath(pkg.PackageName), data); err != nil {
		return cerr.WrapStorageWriteError("package", err)
	}
	return nil
}

func (r *YAMLRepository) Delete(ctx context.Context, packageName string) error {
	if err := r.storage.Delete(ctx, manifestPath(packageName)); err != nil {
		return cerr.WrapStorageDeleteError(fmt.Sprintf("package %s", packageName), err)
	}
	return nil
}

func (r *YAMLRepository) decode(name string, data []byte) (*pkginfo.PackageInfo, error) {
	var pkg pkginfo.PackageInfo
	if err := yaml.Unmarshal(data, &pkg); err != nil {
		return nil, cerr.NewError(cerr.DataLoss, "server error", fmt.Errorf("failed to unmarshal package %s: %w", name, err))
	}
	if strings.TrimSpace(pkg.PackageName) == "" {
		pkg.PackageName = name
	}
	if err := r.validator.Validate("package", &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}
