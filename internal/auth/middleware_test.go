package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/palisade-io/palisade/internal/authz"
	"github.com/palisade-io/palisade/internal/users"
)

func authedRequest(t *testing.T, svc *Service, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var captured *authz.Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = authz.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	mw := Middleware{Service: svc}
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	mw.Authenticate(next).ServeHTTP(rec, req)

	if rec.Code == http.StatusOK && captured == nil {
		t.Fatal("handler ran without a principal in context")
	}
	return rec
}

func TestAuthenticate_BearerHeader(t *testing.T) {
	provider := &fakeProvider{users: map[string]*users.User{}}
	svc := newTestService(t, provider)
	provider.users["alice42"] = seedUser(t, svc.hasher, "alice42", "opensesame", authz.NewPermissionSet())

	token, err := svc.Login(context.Background(), "alice42", "opensesame")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	rec := authedRequest(t, svc, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthenticate_Cookie(t *testing.T) {
	provider := &fakeProvider{users: map[string]*users.User{}}
	svc := newTestService(t, provider)
	provider.users["alice42"] = seedUser(t, svc.hasher, "alice42", "opensesame", authz.NewPermissionSet())

	token, err := svc.Login(context.Background(), "alice42", "opensesame")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	rec := authedRequest(t, svc, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: token})
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthenticate_NoCredential(t *testing.T) {
	svc := newTestService(t, &fakeProvider{users: map[string]*users.User{}})

	rec := authedRequest(t, svc, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for an absent credential", rec.Code)
	}
}

func TestAuthenticate_MalformedHeader(t *testing.T) {
	svc := newTestService(t, &fakeProvider{users: map[string]*users.User{}})

	for _, header := range []string{"Bearer", "Basic dXNlcjpwYXNz", "Bearer   "} {
		rec := authedRequest(t, svc, func(r *http.Request) {
			r.Header.Set("Authorization", header)
		})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	svc := newTestService(t, &fakeProvider{users: map[string]*users.User{}})

	rec := authedRequest(t, svc, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer not-a-token")
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticate_VanishedAccount(t *testing.T) {
	provider := &fakeProvider{users: map[string]*users.User{}}
	svc := newTestService(t, provider)

	token, err := svc.tokens.Issue("ghost11")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rec := authedRequest(t, svc, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 for a valid token without an account", rec.Code)
	}
}

func TestExtractToken_CookieBeforeHeader(t *testing.T) {
	mw := Middleware{}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "from-cookie"})
	req.Header.Set("Authorization", "Bearer from-header")

	token, err := mw.extractToken(req)
	if err != nil {
		t.Fatalf("extractToken: %v", err)
	}
	if token != "from-cookie" {
		t.Fatalf("token = %q, want the cookie value", token)
	}
}
