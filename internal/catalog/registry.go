package catalog

import (
	"strings"
	"sync"
)

// Registry is an explicit table of groups filed under package paths. It takes
// the place of annotation scanning: callers register their groups, usually from
// init functions, and select them by package prefix at run time.
type Registry struct {
	mu      sync.Mutex
	entries []entry
}

type entry struct {
	pkg   string
	group *Group
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Default is a convenience registry for groups filed from init functions
// through Register. It is process-global; callers that need isolation own a
// Registry from NewRegistry and pass it explicitly, and a Migrator with its
// Registry set never reads Default.
var Default = NewRegistry()

// Register files groups under pkg in Default.
func Register(pkg string, groups ...*Group) {
	Default.Register(pkg, groups...)
}

// Register files groups under pkg. Registration order is preserved.
func (r *Registry) Register(pkg string, groups ...*Group) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pkg = normalizePackage(pkg)
	for _, g := range groups {
		if g == nil {
			continue
		}
		r.entries = append(r.entries, entry{pkg: pkg, group: g})
	}
}

// Groups returns the groups registered under pkg or beneath it. An empty pkg
// selects every group.
func (r *Registry) Groups(pkg string) []*Group {
	r.mu.Lock()
	defer r.mu.Unlock()
	pkg = normalizePackage(pkg)
	var out []*Group
	for _, e := range r.entries {
		if pkg == "" || e.pkg == pkg || strings.HasPrefix(e.pkg, pkg+"/") {
			out = append(out, e.group)
		}
	}
	return out
}

// Packages lists the distinct package paths in registration order.
func (r *Registry) Packages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]struct{}{}
	var out []string
	for _, e := range r.entries {
		if _, ok := seen[e.pkg]; ok {
			continue
		}
		seen[e.pkg] = struct{}{}
		out = append(out, e.pkg)
	}
	return out
}

// Build validates and orders the groups selected by pkg.
func (r *Registry) Build(pkg string) (Plan, error) {
	return Build(r.Groups(pkg)...)
}

func normalizePackage(pkg string) string {
	return strings.Trim(strings.TrimSpace(pkg), "/")
}
