package permgroup

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/appperms/pkg/cerr"
	"github.com/kazz187/appperms/pkg/validator"
)

type ProtectionLevel string

const (
	ProtectionNormal    ProtectionLevel = "normal"
	ProtectionDangerous ProtectionLevel = "dangerous"
	ProtectionSignature ProtectionLevel = "signature"
)

// GroupInfo describes a permission group in the catalog.
type GroupInfo struct {
	Name        string            `yaml:"name" validate:"required"`
	Label       string            `yaml:"label,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty" validate:"omitempty,dive,keys,bcp47_language_tag,endkeys,required"`
	Description string            `yaml:"description,omitempty"`
	// Priority orders groups of the same kind; higher comes first.
	Priority int `yaml:"priority,omitempty"`
	// Platform groups are defined by the OS rather than by an application.
	Platform bool `yaml:"platform,omitempty"`
}

// PermissionInfo describes a single permission in the catalog.
type PermissionInfo struct {
	Name  string `yaml:"name" validate:"required"`
	Group string `yaml:"group,omitempty"`
	// Label is used for the individual group of a permission without Group.
	Label           string            `yaml:"label,omitempty"`
	Labels          map[string]string `yaml:"labels,omitempty" validate:"omitempty,dive,keys,bcp47_language_tag,endkeys,required"`
	ProtectionLevel ProtectionLevel   `yaml:"protection_level" validate:"required,protection_level"`
	Restricted      bool              `yaml:"restricted,omitempty"`
	Removed         bool              `yaml:"removed,omitempty"`
}

// IsRuntime reports whether the permission is granted at runtime and
// therefore shown in a group.
func (p *PermissionInfo) IsRuntime() bool {
	return p.ProtectionLevel == ProtectionDangerous && !p.Restricted && !p.Removed
}

// GroupName is the declared group, or the permission name itself when the
// permission belongs to no group.
func (p *PermissionInfo) GroupName() string {
	if p.Group == "" {
		return p.Name
	}
	return p.Group
}

// Catalog is the set of known permission groups and permissions.
// A Catalog must be built with ParseCatalog or NewCatalog and is read-only
// afterwards.
type Catalog struct {
	Groups      []GroupInfo      `yaml:"groups" validate:"dive"`
	Permissions []PermissionInfo `yaml:"permissions" validate:"dive"`

	groupIndex      map[string]*GroupInfo
	permissionIndex map[string]*PermissionInfo
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, cerr.NewError(cerr.InvalidArgument, "invalid catalog", fmt.Errorf("failed to unmarshal catalog: %w", err))
	}
	return NewCatalog(c.Groups, c.Permissions)
}

// NewCatalog validates groups and permissions and indexes them by name.
func NewCatalog(groups []GroupInfo, permissions []PermissionInfo) (*Catalog, error) {
	c := &Catalog{
		Groups:          groups,
		Permissions:     permissions,
		groupIndex:      make(map[string]*GroupInfo, len(groups)),
		permissionIndex: make(map[string]*PermissionInfo, len(permissions)),
	}
	if err := validator.New().Validate("catalog", c); err != nil {
		return nil, err
	}

	cErr := cerr.NewError(cerr.InvalidArgument, "invalid catalog", nil)
	for i := range c.Groups {
		g := &c.Groups[i]
		if _, dup := c.groupIndex[g.Name]; dup {
			cErr.AddDetailMessageWithField(fmt.Sprintf("duplicate group %q", g.Name), fmt.Sprintf("groups[%d].name", i))
			continue
		}
		c.groupIndex[g.Name] = g
	}
	for i := range c.Permissions {
		p := &c.Permissions[i]
		if _, dup := c.permissionIndex[p.Name]; dup {
			cErr.AddDetailMessageWithField(fmt.Sprintf("duplicate permission %q", p.Name), fmt.Sprintf("permissions[%d].name", i))
			continue
		}
		if p.Group != "" {
			if _, ok := c.groupIndex[p.Group]; !ok {
				cErr.AddDetailMessageWithField(fmt.Sprintf("unknown group %q", p.Group), fmt.Sprintf("permissions[%d].group", i))
				continue
			}
		}
		c.permissionIndex[p.Name] = p
	}
	if len(cErr.Details) > 0 {
		return nil, cErr
	}
	return c, nil
}

func (c *Catalog) Permission(name string) (*PermissionInfo, bool) {
	p, ok := c.permissionIndex[name]
	return p, ok
}

func (c *Catalog) Group(name string) (*GroupInfo, bool) {
	g, ok := c.groupIndex[name]
	return g, ok
}

// groupInfoFor returns the group of a permission. Permissions without a
// declared group get an individual, non-platform group of their own.
func (c *Catalog) groupInfoFor(p *PermissionInfo) *GroupInfo {
	if g, ok := c.groupIndex[p.Group]; ok && p.Group != "" {
		return g
	}
	label := p.Label
	if label == "" {
		label = p.Name
	}
	return &GroupInfo{
		Name:   p.Name,
		Label:  label,
		Labels: p.Labels,
	}
}
