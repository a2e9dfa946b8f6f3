package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"server/internal/billing"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/quota"
	"server/internal/sqlinline"

	pgx "github.com/jackc/pgx/v5"
)

func testConfig() *infra.Config {
	return &infra.Config{
		StorageBaseURL:    "http://localhost:8080/static",
		FreeDownloadLimit: 5,
		DefaultLocale:     "es",
	}
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func (m *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memUsers) UpsertByGoogleSub(_ context.Context, u *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	copied := *u
	return &copied, nil
}

// markPro emulates the entitlement merge-write against the same user map.
func (m *memUsers) markPro(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.Plan = domain.UserPlanPro
	}
}

type memCounters struct {
	mu     sync.Mutex
	values map[string]int
}

func (m *memCounters) Get(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[userID], nil
}

func (m *memCounters) Put(_ context.Context, userID string, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value > m.values[userID] {
		m.values[userID] = value
	}
	return nil
}

type memResourceCounters struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *memResourceCounters) IncrementDownloads(_ context.Context, resourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[resourceID]++
	return nil
}

// gateSQL serves the resource lookup and swallows usage event inserts.
type gateSQL struct {
	fileKeys map[string]string
}

func (g *gateSQL) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (g *gateSQL) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	if query == sqlinline.QSelectResourceFileKey && len(args) == 1 {
		id, _ := args[0].(string)
		key, ok := g.fileKeys[id]
		if !ok {
			return NewSimpleRow(nil)
		}
		return NewSimpleRow(func(dest ...any) error {
			if v, ok := dest[0].(*string); ok {
				*v = key
			}
			return nil
		})
	}
	return NewSimpleRow(nil)
}

func (g *gateSQL) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

type appFixture struct {
	app       *App
	users     *memUsers
	counters  *memCounters
	resources *memResourceCounters
}

func newAppFixture(t *testing.T) *appFixture {
	t.Helper()
	users := &memUsers{users: map[string]*domain.User{
		"u1": {ID: "u1", Plan: domain.UserPlanFree, Email: "u1@example.com"},
	}}
	counters := &memCounters{values: map[string]int{}}
	resources := &memResourceCounters{}
	logger := zerolog.Nop()
	resolver := quota.NewResolver(users)

	app := &App{
		SQL:       &gateSQL{fileKeys: map[string]string{"res-1": "resources/res-1/guide.pdf"}},
		Logger:    logger,
		Config:    testConfig(),
		JWTSecret: "secret",
		Users:     users,
		Sessions:  quota.NewManager(counters, logger),
		Gate:      quota.NewGate(resolver, counters, resources, 5, logger),
		Resolver:  resolver,
		Counters:  counters,
		Activator: billing.NewActivator(entitlementFunc(func(_ context.Context, userID, _ string) error {
			users.markPro(userID)
			return nil
		}), logger),
	}
	return &appFixture{app: app, users: users, counters: counters, resources: resources}
}

type entitlementFunc func(ctx context.Context, userID, sessionID string) error

func (f entitlementFunc) MarkUnrestricted(ctx context.Context, userID, sessionID string) error {
	return f(ctx, userID, sessionID)
}

func authedRequest(method, target, userID string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
}

func serveDownload(app *App, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Post("/v1/resources/{id}/download", app.DownloadResource)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestDownloadAllowedUnderLimit(t *testing.T) {
	fx := newAppFixture(t)

	rr := serveDownload(fx.app, authedRequest(http.MethodPost, "/v1/resources/res-1/download", "u1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rr.Code, rr.Body.String())
	}

	var resp downloadResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.URL == "" {
		t.Fatalf("expected a download url")
	}
	if resp.Downloads != 1 || resp.Remaining != 4 {
		t.Fatalf("unexpected counter state: %+v", resp)
	}

	fx.app.Gate.Wait()
	if fx.counters.values["u1"] != 1 {
		t.Fatalf("durable counter = %d, want 1", fx.counters.values["u1"])
	}
	if fx.resources.counts["res-1"] != 1 {
		t.Fatalf("resource counter = %d, want 1", fx.resources.counts["res-1"])
	}
}

func TestDownloadDeniedAtLimit(t *testing.T) {
	fx := newAppFixture(t)
	fx.counters.values["u1"] = 5

	rr := serveDownload(fx.app, authedRequest(http.MethodPost, "/v1/resources/res-1/download", "u1"))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("unexpected status %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "quota_exceeded" {
		t.Fatalf("unexpected error %v", resp["error"])
	}

	fx.app.Gate.Wait()
	if fx.resources.counts["res-1"] != 0 {
		t.Fatalf("a refused download must not bump the resource counter")
	}
	if fx.counters.values["u1"] != 5 {
		t.Fatalf("a refused download must not move the user counter")
	}
}

func TestDownloadExhaustsThenDenies(t *testing.T) {
	fx := newAppFixture(t)

	for i := 1; i <= 5; i++ {
		rr := serveDownload(fx.app, authedRequest(http.MethodPost, "/v1/resources/res-1/download", "u1"))
		if rr.Code != http.StatusOK {
			t.Fatalf("download %d: unexpected status %d", i, rr.Code)
		}
	}
	rr := serveDownload(fx.app, authedRequest(http.MethodPost, "/v1/resources/res-1/download", "u1"))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("sixth download must be refused, got %d", rr.Code)
	}
}

func TestDownloadUnrestrictedUserSkipsCounter(t *testing.T) {
	fx := newAppFixture(t)
	fx.users.users["u1"].Plan = domain.UserPlanPro
	fx.counters.values["u1"] = 5

	rr := serveDownload(fx.app, authedRequest(http.MethodPost, "/v1/resources/res-1/download", "u1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rr.Code, rr.Body.String())
	}

	var resp downloadResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Unrestricted || resp.Remaining != -1 {
		t.Fatalf("expected unrestricted response, got %+v", resp)
	}

	fx.app.Gate.Wait()
	if fx.counters.values["u1"] != 5 {
		t.Fatalf("unrestricted download must freeze the user counter, got %d", fx.counters.values["u1"])
	}
	if fx.resources.counts["res-1"] != 1 {
		t.Fatalf("aggregate resource counter must still move, got %d", fx.resources.counts["res-1"])
	}
}

func TestDownloadUnknownResourceIs404(t *testing.T) {
	fx := newAppFixture(t)
	rr := serveDownload(fx.app, authedRequest(http.MethodPost, "/v1/resources/ghost/download", "u1"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status %d", rr.Code)
	}
}

func TestDownloadRequiresAuth(t *testing.T) {
	fx := newAppFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/resources/res-1/download", nil)
	rr := serveDownload(fx.app, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", rr.Code)
	}
}
