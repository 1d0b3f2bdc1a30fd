package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/palisade-io/palisade/internal/auth"
	"github.com/palisade-io/palisade/internal/authz"
	"github.com/palisade-io/palisade/internal/users"
	_ "github.com/palisade-io/palisade/testing"
)

type memoryRepo struct {
	byUsername map[string]*users.User
	byUUID     map[uuid.UUID]*users.User
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		byUsername: make(map[string]*users.User),
		byUUID:     make(map[uuid.UUID]*users.User),
	}
}

func (m *memoryRepo) add(user *users.User) {
	m.byUsername[user.Username] = user
	m.byUUID[user.UUID] = user
}

func (m *memoryRepo) FindByUsername(_ context.Context, username string) (*users.User, error) {
	user, ok := m.byUsername[username]
	if !ok {
		return nil, users.ErrNotFound
	}
	return user, nil
}

func (m *memoryRepo) FindByUUID(_ context.Context, id uuid.UUID) (*users.User, error) {
	user, ok := m.byUUID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return user, nil
}

func (m *memoryRepo) List(_ context.Context) ([]users.User, error) {
	out := make([]users.User, 0, len(m.byUUID))
	for _, user := range m.byUUID {
		out = append(out, *user)
	}
	return out, nil
}

func (m *memoryRepo) Create(_ context.Context, user users.User) (*users.User, error) {
	if _, taken := m.byUsername[user.Username]; taken {
		return nil, users.ErrUsernameTaken
	}
	m.add(&user)
	return &user, nil
}

type testServer struct {
	repo   *memoryRepo
	hasher *auth.Hasher
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.Default()
	cfg := &Config{
		AppEnv:            "test",
		AppRequestTimeout: 10 * time.Second,
		AuthSecret:        "0123456789abcdef0123456789abcdef",
		AuthCookie:        auth.DefaultCookieName,
		TokenTTL:          time.Hour,
	}

	repo := newMemoryRepo()
	hasher := auth.NewHasher(auth.HasherParams{Memory: 8192, Time: 1, Threads: 1})
	tokens := auth.NewTokenService([]byte(cfg.AuthSecret), cfg.TokenTTL)

	usersService := users.NewService(repo, hasher, nil, logger)
	usersHandler := users.NewHandler(logger, usersService, nil)

	authService := auth.NewService(repo, hasher, tokens, nil, logger)
	authHandler := auth.NewHandler(logger, authService, cfg.AuthCookie, false)

	registry := RoutePolicy()

	router := NewRouter(RouterParams{
		Logger:          logger,
		Config:          cfg,
		Registry:        registry,
		AuthHandler:     authHandler,
		AuthMiddleware:  auth.Middleware{Service: authService, Logger: logger, CookieName: cfg.AuthCookie},
		AuthzMiddleware: authz.Middleware{Registry: registry, Logger: logger},
		UsersHandler:    usersHandler,
	})

	return &testServer{repo: repo, hasher: hasher, router: router}
}

func (s *testServer) seed(t *testing.T, username, password string, perms authz.PermissionSet) *users.User {
	t.Helper()
	hash, err := s.hasher.Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	user := &users.User{
		UUID:         uuid.New(),
		Username:     username,
		PasswordHash: hash,
		Permissions:  perms,
	}
	s.repo.add(user)
	return user
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status = %d: %s", username, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.Token
}

func (s *testServer) request(method, target, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestRouterPublicEndpoints(t *testing.T) {
	server := newTestServer(t)

	if rec := server.request(http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	rec := server.request(http.MethodGet, "/api/ping", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ping status = %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("pong")) {
		t.Fatalf("ping body = %s", rec.Body.String())
	}
}

func TestRouterUnauthenticatedRequest(t *testing.T) {
	server := newTestServer(t)

	rec := server.request(http.MethodGet, "/api/users", "", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 without any credential", rec.Code)
	}
}

func TestRouterInvalidToken(t *testing.T) {
	server := newTestServer(t)

	rec := server.request(http.MethodGet, "/api/users", "not-a-token", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for an invalid token", rec.Code)
	}
}

func TestRouterInsufficientPermissions(t *testing.T) {
	server := newTestServer(t)
	server.seed(t, "viewer1", "opensesame", authz.NewPermissionSet(authz.ActionLogin))
	token := server.login(t, "viewer1", "opensesame")

	rec := server.request(http.MethodGet, "/api/users", token, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without users.manage", rec.Code)
	}
}

func TestRouterManagerCanManageUsers(t *testing.T) {
	server := newTestServer(t)
	server.seed(t, "manager1", "opensesame", authz.NewPermissionSet(authz.ActionManageUsers))
	token := server.login(t, "manager1", "opensesame")

	rec := server.request(http.MethodPost, "/api/users", token,
		`{"username":"newbie99","password":"opensesame","permissions":{"login":true}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}

	var created users.PublicUser
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created user: %v", err)
	}

	if rec := server.request(http.MethodGet, "/api/users", token, ""); rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if rec := server.request(http.MethodGet, "/api/users/"+created.UUID.String(), token, ""); rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	// The freshly created account can log in and see itself.
	newbieToken := server.login(t, "newbie99", "opensesame")
	rec = server.request(http.MethodGet, "/api/me", newbieToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d", rec.Code)
	}
	var me users.PublicUser
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Username != "newbie99" {
		t.Fatalf("me username = %q", me.Username)
	}
}

func TestRouterRootBypassesRequirements(t *testing.T) {
	server := newTestServer(t)
	server.seed(t, "admin1", "opensesame", authz.RootPermissionSet())
	token := server.login(t, "admin1", "opensesame")

	if rec := server.request(http.MethodGet, "/api/users", token, ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for root", rec.Code)
	}
}

func TestRouterMeIsPublicPolicy(t *testing.T) {
	server := newTestServer(t)
	server.seed(t, "viewer1", "opensesame", authz.NewPermissionSet())
	token := server.login(t, "viewer1", "opensesame")

	if rec := server.request(http.MethodGet, "/api/me", token, ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: /api/me needs only authentication", rec.Code)
	}
}

func TestRouterResponsesHideHashes(t *testing.T) {
	server := newTestServer(t)
	server.seed(t, "manager1", "opensesame", authz.RootPermissionSet())
	token := server.login(t, "manager1", "opensesame")

	for _, target := range []string{"/api/users", "/api/me"} {
		rec := server.request(http.MethodGet, target, token, "")
		if bytes.Contains(rec.Body.Bytes(), []byte("argon2id")) {
			t.Fatalf("%s leaked a password hash: %s", target, rec.Body.String())
		}
	}
}

func TestRoutePolicyCoversGuardedRoutes(t *testing.T) {
	registry := RoutePolicy()

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/users"},
		{http.MethodGet, "/api/users"},
		{http.MethodGet, "/api/users/{uuid}"},
		{http.MethodGet, "/api/me"},
	} {
		if _, ok := registry.Lookup(route.method, route.path); !ok {
			t.Errorf("%s %s has no registered requirement", route.method, route.path)
		}
	}
}
