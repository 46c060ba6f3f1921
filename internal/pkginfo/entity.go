package pkginfo

import (
	"slices"
	"time"
)

// PackageInfo is the manifest of one installed application: its identity,
// display labels and the permissions it declares.
type PackageInfo struct {
	PackageName string            `yaml:"package_name" validate:"required,package_name"`
	Label       string            `yaml:"label,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty" validate:"omitempty,dive,keys,bcp47_language_tag,endkeys,required"`
	VersionCode int64             `yaml:"version_code" validate:"gte=0"`

	// RequestedPermissions is kept in declaration order. Group dedup depends
	// on that order.
	RequestedPermissions []string  `yaml:"requested_permissions,omitempty" validate:"dive,required"`
	GrantedPermissions   []string  `yaml:"granted_permissions,omitempty" validate:"dive,required"`
	UpdatedAt            time.Time `yaml:"updated_at"`
}

// IsRequested reports whether permission is declared by the package.
func (p *PackageInfo) IsRequested(permission string) bool {
	return slices.Contains(p.RequestedPermissions, permission)
}

// IsGranted reports whether permission is both requested and granted.
func (p *PackageInfo) IsGranted(permission string) bool {
	return p.IsRequested(permission) && slices.Contains(p.GrantedPermissions, permission)
}
