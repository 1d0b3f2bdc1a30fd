package authz

import (
	"sort"
	"strings"
)

type routeKey struct {
	method string
	path   string
}

// RegistryBuilder accumulates route requirements during startup. Build
// produces the immutable Registry handed to the middleware; the builder
// must not be used once the server accepts traffic.
type RegistryBuilder struct {
	rules map[routeKey]PermissionSet
}

// NewRegistryBuilder constructs an empty builder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{rules: make(map[routeKey]PermissionSet)}
}

// Require registers or overwrites the requirement for an exact
// (method, route template) pair. The path is the route template as the
// router dispatches it, e.g. "/api/users/{uuid}", never a concrete URL.
func (b *RegistryBuilder) Require(method, path string, required PermissionSet) *RegistryBuilder {
	b.rules[routeKey{method: strings.ToUpper(method), path: path}] = required
	return b
}

// Public registers the route with an empty requirement: any authenticated
// caller may proceed. Distinct from leaving the route unregistered, which
// fails closed.
func (b *RegistryBuilder) Public(method, path string) *RegistryBuilder {
	return b.Require(method, path, PermissionSet{})
}

// Build freezes the accumulated rules into a Registry.
func (b *RegistryBuilder) Build() *Registry {
	rules := make(map[routeKey]PermissionSet, len(b.rules))
	for key, required := range b.rules {
		rules[key] = required
	}
	return &Registry{rules: rules}
}

// Registry maps (method, route template) pairs to the permissions required
// to invoke them. Built once before the server starts and read-only for the
// process lifetime, so concurrent reads need no synchronization.
type Registry struct {
	rules map[routeKey]PermissionSet
}

// Lookup returns the requirement for the exact pair. The second return
// distinguishes an unregistered route from one registered with an empty
// requirement.
func (r *Registry) Lookup(method, path string) (PermissionSet, bool) {
	required, ok := r.rules[routeKey{method: strings.ToUpper(method), path: path}]
	return required, ok
}

// Routes lists the registered method+path pairs, sorted. Used by startup
// logging so operators can audit the effective policy.
func (r *Registry) Routes() []string {
	routes := make([]string, 0, len(r.rules))
	for key := range r.rules {
		routes = append(routes, key.method+" "+key.path)
	}
	sort.Strings(routes)
	return routes
}
