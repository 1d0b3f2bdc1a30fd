package authz

import (
	"github.com/google/uuid"
)

// Action is a named capability that can be granted to an account,
// e.g. "users.manage".
type Action string

// Actions known to the permission model.
const (
	ActionManageUsers Action = "users.manage"
	ActionLogin       Action = "login"
)

// PermissionSet describes what an actor holds or what a route demands.
// Root unconditionally satisfies every requirement; when it is set the
// named actions are irrelevant.
type PermissionSet struct {
	Root    bool
	Actions map[Action]struct{}
}

// NewPermissionSet builds a non-root set holding the given actions.
func NewPermissionSet(actions ...Action) PermissionSet {
	set := PermissionSet{Actions: make(map[Action]struct{}, len(actions))}
	for _, a := range actions {
		set.Actions[a] = struct{}{}
	}
	return set
}

// RootPermissionSet builds the root grant.
func RootPermissionSet() PermissionSet {
	return PermissionSet{Root: true}
}

// Has reports whether the set names the action. Root is deliberately not
// consulted here; the root bypass lives in Allows so there is a single
// source of truth for it.
func (p PermissionSet) Has(action Action) bool {
	_, ok := p.Actions[action]
	return ok
}

// Empty reports whether the set demands nothing beyond authentication.
func (p PermissionSet) Empty() bool {
	return !p.Root && len(p.Actions) == 0
}

// Principal is the authenticated identity for one request. It is resolved
// fresh per request by the authentication middleware and discarded when the
// request completes.
type Principal struct {
	ID          uuid.UUID
	Username    string
	Permissions PermissionSet
}
