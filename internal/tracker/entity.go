package tracker

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kazz187/appperms/internal/apppermission"
	"github.com/kazz187/appperms/internal/permgroup"
)

// Query selects one view of a package's permission groups.
type Query struct {
	PackageName string
	// Filter keeps groups containing at least one of these permissions.
	Filter []string
	Sorted bool
}

// normalize sorts and deduplicates the filter so equivalent queries share an
// entry.
func (q Query) normalize() Query {
	filter := slices.Clone(q.Filter)
	filter = slices.DeleteFunc(filter, func(s string) bool { return s == "" })
	slices.Sort(filter)
	q.Filter = slices.Compact(filter)
	return q
}

func (q Query) key() string {
	return q.PackageName + "|" + strconv.FormatBool(q.Sorted) + "|" + strings.Join(q.Filter, ",")
}

// Snapshot is a read-only copy of the groups of a package.
type Snapshot struct {
	PackageName string      `json:"package_name"`
	AppLabel    string      `json:"app_label"`
	VersionCode int64       `json:"version_code"`
	Stale       bool        `json:"stale"`
	RefreshedAt time.Time   `json:"refreshed_at"`
	Groups      []GroupView `json:"groups"`
}

// GroupView is the serializable form of a permission group.
type GroupView struct {
	Name        string             `json:"name"`
	Label       string             `json:"label"`
	Description string             `json:"description,omitempty"`
	Platform    bool               `json:"platform"`
	Permissions []permgroup.Member `json:"permissions"`
	Granted     bool               `json:"granted"`
}

func newGroupView(g apppermission.Group) GroupView {
	pg, ok := g.(*permgroup.Group)
	if !ok {
		return GroupView{Name: g.Name(), Label: g.Name(), Permissions: []permgroup.Member{}}
	}
	return GroupView{
		Name:        pg.Name(),
		Label:       pg.Label(),
		Description: pg.Description(),
		Platform:    pg.Platform(),
		Permissions: pg.Permissions(),
		Granted:     pg.AreRuntimePermissionsGranted(),
	}
}

// PackageSummary describes an installed package without its groups.
type PackageSummary struct {
	PackageName          string `json:"package_name"`
	Label                string `json:"label"`
	VersionCode          int64  `json:"version_code"`
	RequestedPermissions int    `json:"requested_permissions"`
}
