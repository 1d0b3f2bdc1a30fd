package authz

import (
	"reflect"
	"testing"
)

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistryBuilder().
		Require("post", "/api/users", NewPermissionSet(ActionManageUsers)).
		Public("GET", "/api/me").
		Build()

	required, ok := registry.Lookup("POST", "/api/users")
	if !ok {
		t.Fatal("expected registration for POST /api/users")
	}
	if !required.Has(ActionManageUsers) {
		t.Fatal("requirement lost its action")
	}

	required, ok = registry.Lookup("GET", "/api/me")
	if !ok || !required.Empty() {
		t.Fatalf("public route must be registered with an empty requirement, ok=%v required=%+v", ok, required)
	}

	if _, ok := registry.Lookup("DELETE", "/api/users"); ok {
		t.Fatal("unregistered pair must report ok=false")
	}
	if _, ok := registry.Lookup("POST", "/api/users/{uuid}"); ok {
		t.Fatal("lookup must match the exact route template only")
	}
}

func TestRegistryRequireOverwrites(t *testing.T) {
	registry := NewRegistryBuilder().
		Require("GET", "/api/users", RootPermissionSet()).
		Require("GET", "/api/users", NewPermissionSet(ActionManageUsers)).
		Build()

	required, ok := registry.Lookup("GET", "/api/users")
	if !ok {
		t.Fatal("expected registration")
	}
	if required.Root {
		t.Fatal("later registration must replace the earlier one")
	}
}

func TestRegistryBuildIsolatesBuilder(t *testing.T) {
	builder := NewRegistryBuilder().Public("GET", "/api/ping")
	registry := builder.Build()

	builder.Require("GET", "/api/admin", RootPermissionSet())

	if _, ok := registry.Lookup("GET", "/api/admin"); ok {
		t.Fatal("mutating the builder after Build must not affect the registry")
	}
}

func TestRegistryRoutes(t *testing.T) {
	registry := NewRegistryBuilder().
		Public("GET", "/api/me").
		Require("POST", "/api/users", NewPermissionSet(ActionManageUsers)).
		Require("GET", "/api/users", NewPermissionSet(ActionManageUsers)).
		Build()

	got := registry.Routes()
	want := []string{"GET /api/me", "GET /api/users", "POST /api/users"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Routes() = %v, want %v", got, want)
	}
}
