package authz

import "errors"

// Authorization failure sentinels. Both manifest to the caller as the same
// rejection; ConfigurationGap gets its own log shape so operators can find
// missing registrations.
var (
	ErrPermissionDenied = errors.New("authz: permission denied")
	ErrConfigurationGap = errors.New("authz: route has no registered requirement")
)

// Allows decides whether a caller holding the given permissions may invoke
// a route demanding the required set.
//
// The root check runs before the subset test: a root requirement is satisfied
// only by a root grant, and a root grant satisfies any requirement without
// enumerating actions. Callers must not re-check Root themselves.
func Allows(required, held PermissionSet) bool {
	if required.Root {
		return held.Root
	}
	if held.Root {
		return true
	}
	for action := range required.Actions {
		if _, ok := held.Actions[action]; !ok {
			return false
		}
	}
	return true
}

// Authorize checks the principal against the registered requirement for
// (method, route template). Unregistered routes fail closed with
// ErrConfigurationGap; insufficient grants fail with ErrPermissionDenied.
func Authorize(registry *Registry, principal *Principal, method, route string) error {
	required, ok := registry.Lookup(method, route)
	if !ok {
		return ErrConfigurationGap
	}
	if principal == nil || !Allows(required, principal.Permissions) {
		return ErrPermissionDenied
	}
	return nil
}
