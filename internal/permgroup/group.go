package permgroup

import (
	"cmp"
	"slices"

	"github.com/kazz187/appperms/internal/apppermission"
)

// Member is a requested permission of a group.
type Member struct {
	Name    string `json:"name" yaml:"name"`
	Granted bool   `json:"granted" yaml:"granted"`
}

// Group is a permission group resolved for one package. It implements
// apppermission.Group.
type Group struct {
	info     *GroupInfo
	label    string
	members  []Member
	resolver *Resolver
}

var _ apppermission.Group = (*Group)(nil)

func (g *Group) Name() string { return g.info.Name }

// Label is localized to the resolver's preferred locales.
func (g *Group) Label() string { return g.label }

func (g *Group) Description() string { return g.info.Description }

func (g *Group) Priority() int { return g.info.Priority }

func (g *Group) Platform() bool { return g.info.Platform }

// Permissions returns the members in declaration order.
func (g *Group) Permissions() []Member {
	return slices.Clone(g.members)
}

func (g *Group) HasPermission(permission string) bool {
	return slices.ContainsFunc(g.members, func(m Member) bool {
		return m.Name == permission
	})
}

// AreRuntimePermissionsGranted reports whether every member is granted.
func (g *Group) AreRuntimePermissionsGranted() bool {
	if len(g.members) == 0 {
		return false
	}
	for _, m := range g.members {
		if !m.Granted {
			return false
		}
	}
	return true
}

// Compare puts platform groups first, then higher priority, then label in
// the collation order of the preferred locale, then name.
func (g *Group) Compare(other apppermission.Group) int {
	o, ok := other.(*Group)
	if !ok {
		return cmp.Compare(g.Name(), other.Name())
	}
	if g.info.Platform != o.info.Platform {
		if g.info.Platform {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(o.info.Priority, g.info.Priority); c != 0 {
		return c
	}
	if c := g.resolver.compareLabels(g.label, o.label); c != 0 {
		return c
	}
	return cmp.Compare(g.Name(), o.Name())
}
