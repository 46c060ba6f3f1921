// Package apppermission derives the permission groups requested by one
// application from its flat list of declared permissions.
package apppermission

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/kazz187/appperms/internal/pkginfo"
	"github.com/kazz187/appperms/pkg/cerr"
)

// Option configures an AppPermissions.
type Option func(*AppPermissions)

// WithFilter keeps only groups that contain at least one of permissions.
// No permissions means no filtering.
func WithFilter(permissions ...string) Option {
	return func(a *AppPermissions) {
		a.filter = slices.Clone(permissions)
	}
}

// WithSortedGroups sorts groups with Group.Compare instead of keeping the
// order in which they were first declared.
func WithSortedGroups() Option {
	return func(a *AppPermissions) {
		a.sorted = true
	}
}

// WithErrorCallback registers fn to be called when Refresh finds that the
// package is no longer known.
func WithErrorCallback(fn func()) Option {
	return func(a *AppPermissions) {
		a.onError = fn
	}
}

// WithReloadErrorCallback registers fn to be called with the error when
// Refresh fails to reload the package for any reason other than the package
// being unknown, such as an unreadable manifest or an unavailable store.
func WithReloadErrorCallback(fn func(error)) Option {
	return func(a *AppPermissions) {
		a.onReloadError = fn
	}
}

// WithLabelProvider replaces the provider of the application label.
func WithLabelProvider(p LabelProvider) Option {
	return func(a *AppPermissions) {
		a.labels = p
	}
}

// AppPermissions holds the permission groups of one application.
//
// The groups and the name index are recomputed from scratch on every
// Refresh, so the index always mirrors Groups. AppPermissions is not safe
// for concurrent use; callers serialize Refresh against reads.
type AppPermissions struct {
	source   PackageSource
	resolver GroupResolver
	labels   LabelProvider

	filter        []string
	sorted        bool
	onError       func()
	onReloadError func(error)

	pkg      *pkginfo.PackageInfo
	appLabel string
	groups   []Group
	byName   map[string]Group
}

// New builds the groups of pkg. It fails only on invalid arguments.
func New(pkg *pkginfo.PackageInfo, source PackageSource, resolver GroupResolver, opts ...Option) (*AppPermissions, error) {
	switch {
	case pkg == nil:
		return nil, cerr.NewError(cerr.InvalidArgument, "package info is required", nil)
	case pkg.PackageName == "":
		return nil, cerr.NewError(cerr.InvalidArgument, "package name is required", nil)
	case source == nil:
		return nil, cerr.NewError(cerr.InvalidArgument, "package source is required", nil)
	case resolver == nil:
		return nil, cerr.NewError(cerr.InvalidArgument, "group resolver is required", nil)
	}

	a := &AppPermissions{
		source:   source,
		resolver: resolver,
		labels:   defaultLabelProvider{},
		pkg:      pkg,
		byName:   make(map[string]Group),
	}
	for _, opt := range opts {
		opt(a)
	}
	// The label is not refreshed; it stays the one the application had when
	// it was first shown.
	a.appLabel = a.labels.Label(pkg)
	a.loadPermissionGroups()
	return a, nil
}

// Group returns the group called name.
func (a *AppPermissions) Group(name string) (Group, bool) {
	g, ok := a.byName[name]
	return g, ok
}

// Groups returns the groups in declaration order, or sorted if
// WithSortedGroups was given.
func (a *AppPermissions) Groups() []Group {
	return slices.Clone(a.groups)
}

// AppLabel returns the label captured when a was built.
func (a *AppPermissions) AppLabel() string {
	return a.appLabel
}

// PackageInfo returns the manifest the groups were computed from.
func (a *AppPermissions) PackageInfo() *pkginfo.PackageInfo {
	return a.pkg
}

// Refresh reloads the package and recomputes its groups. If the package is
// no longer known the error callback is called; any other reload failure
// goes to the reload error callback. Either way the previous manifest is
// kept and the groups are recomputed from it.
func (a *AppPermissions) Refresh(ctx context.Context) {
	err := a.loadPackageInfo(ctx)
	switch {
	case err == nil:
	case cerr.IsCode(err, cerr.NotFound):
		slog.InfoContext(ctx, "package no longer available", "package", a.pkg.PackageName)
		if a.onError != nil {
			a.onError()
		}
	default:
		slog.WarnContext(ctx, "failed to reload package", "package", a.pkg.PackageName, "error", err)
		if a.onReloadError != nil {
			a.onReloadError(err)
		}
	}
	a.loadPermissionGroups()
}

func (a *AppPermissions) loadPackageInfo(ctx context.Context) error {
	pkg, err := a.source.Get(ctx, a.pkg.PackageName)
	if err != nil {
		return err
	}
	if pkg == nil {
		return cerr.NewError(cerr.NotFound, "package not found", errors.New("source returned no package"))
	}
	a.pkg = pkg
	return nil
}

func (a *AppPermissions) loadPermissionGroups() {
	a.groups = a.groups[:0]
	defer a.rebuildIndex()

	if len(a.pkg.RequestedPermissions) == 0 {
		return
	}

	for _, permission := range a.pkg.RequestedPermissions {
		if a.hasPermission(permission) {
			continue
		}
		group, ok := a.resolver.Resolve(a.pkg, permission)
		if !ok || group == nil {
			continue
		}
		a.groups = append(a.groups, group)
	}

	if len(a.filter) > 0 {
		a.groups = slices.DeleteFunc(a.groups, func(g Group) bool {
			return !slices.ContainsFunc(a.filter, g.HasPermission)
		})
	}

	if a.sorted {
		slices.SortStableFunc(a.groups, func(x, y Group) int {
			return x.Compare(y)
		})
	}
}

// hasPermission reports whether a group already collected claims permission.
func (a *AppPermissions) hasPermission(permission string) bool {
	for _, g := range a.groups {
		if g.HasPermission(permission) {
			return true
		}
	}
	return false
}

func (a *AppPermissions) rebuildIndex() {
	clear(a.byName)
	for _, g := range a.groups {
		a.byName[g.Name()] = g
	}
}
