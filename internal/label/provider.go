// Package label picks display labels for packages and permission groups
// according to the preferred locales.
package label

import (
	"log/slog"
	"slices"

	"golang.org/x/text/language"

	"github.com/kazz187/appperms/internal/pkginfo"
)

// Provider resolves localized labels. The zero value is not usable; use
// NewProvider.
type Provider struct {
	preferred []language.Tag
}

// NewProvider builds a Provider from locale strings in preference order.
// Unparseable locales are skipped. With no usable locale the provider
// prefers English.
func NewProvider(locales ...string) *Provider {
	var tags []language.Tag
	for _, l := range locales {
		tag, err := language.Parse(l)
		if err != nil {
			slog.Warn("ignoring invalid locale", "locale", l, "error", err)
			continue
		}
		tags = append(tags, tag)
	}
	if len(tags) == 0 {
		tags = []language.Tag{language.English}
	}
	return &Provider{preferred: tags}
}

// Tag returns the most preferred locale.
func (p *Provider) Tag() language.Tag {
	return p.preferred[0]
}

// Label returns the package label: the best match in pkg.Labels, then
// pkg.Label, then the package name.
func (p *Provider) Label(pkg *pkginfo.PackageInfo) string {
	if pkg == nil {
		return ""
	}
	fallback := pkg.Label
	if fallback == "" {
		fallback = pkg.PackageName
	}
	return p.Localize(fallback, pkg.Labels)
}

// Localize returns the entry of labels that best matches the preferred
// locales, or def when nothing matches.
func (p *Provider) Localize(def string, labels map[string]string) string {
	if len(labels) == 0 {
		return def
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	supported := make([]language.Tag, 0, len(keys))
	supportedKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		tag, err := language.Parse(k)
		if err != nil {
			continue
		}
		supported = append(supported, tag)
		supportedKeys = append(supportedKeys, k)
	}
	if len(supported) == 0 {
		return def
	}

	_, index, confidence := language.NewMatcher(supported).Match(p.preferred...)
	if confidence == language.No {
		return def
	}
	return labels[supportedKeys[index]]
}
