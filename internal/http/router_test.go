package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	googleadapter "github.com/oakmont/insights-api/internal/adapters/google"
	"github.com/oakmont/insights-api/internal/core"
	"github.com/oakmont/insights-api/internal/domain/dashboard"
	"github.com/oakmont/insights-api/internal/domain/identity"
	"github.com/oakmont/insights-api/internal/domain/tenant"
	"github.com/oakmont/insights-api/internal/mocks"
	"github.com/oakmont/insights-api/internal/ports"
	"github.com/oakmont/insights-api/internal/service"
	"github.com/oakmont/insights-api/internal/session"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// mapCacheRepo is a minimal core.CacheRepository backed by a map.
type mapCacheRepo struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCacheRepo() *mapCacheRepo {
	return &mapCacheRepo{data: map[string][]byte{}}
}

func (r *mapCacheRepo) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = append([]byte(nil), value...)
	return nil
}

func (r *mapCacheRepo) Get(_ context.Context, key string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (r *mapCacheRepo) Delete(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.data[key]
	delete(r.data, key)
	return ok, nil
}

func (r *mapCacheRepo) Keys(_ context.Context, _ string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.data))
	for k := range r.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func (r *mapCacheRepo) Health(_ context.Context) error { return nil }

// fixedDataReader serves one dataset for every schema.
type fixedDataReader struct {
	ds dashboard.Dataset
}

func (f *fixedDataReader) FetchDataset(_ context.Context, schema string) (dashboard.Dataset, error) {
	ds := f.ds
	ds.Schema = schema
	return ds, nil
}

type routerFixture struct {
	handler   http.Handler
	clock     *testClock
	local     *mocks.MemoryLocalUserStore
	federated *mocks.MemoryFederatedStore
	broker    *mocks.MockOAuthBroker
	vault     *mocks.MemoryMailTokenVault
	term      *mocks.MemoryTerminator
	managers  *mocks.MemoryManagerStore
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	clock := &testClock{t: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := session.NewCodec(session.CodecOptions{
		Secret:       "test-secret",
		Lifetime:     30 * time.Minute,
		RefreshAfter: 10 * time.Minute,
		Now:          clock.now,
	})
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	f := &routerFixture{
		clock: clock,
		local: mocks.NewMemoryLocalUserStore(ports.LocalUser{
			ID: 7, Email: "pat@acme.com", PasswordHash: string(hash), Role: identity.RoleAdmin,
		}),
		federated: mocks.NewMemoryFederatedStore(),
		broker:    &mocks.MockOAuthBroker{},
		vault:     mocks.NewMemoryMailTokenVault(),
		term:      mocks.NewMemoryTerminator(),
		managers:  mocks.NewMemoryManagerStore(),
	}

	authSvc := service.NewAuthService(service.AuthServiceOptions{
		Codec:          codec,
		Directory:      &mocks.MockDirectoryAuthenticator{},
		LocalUsers:     f.local,
		DirectoryUsers: mocks.NewMemoryDirectoryUserStore(),
		Federated:      f.federated,
		Terminator:     f.term,
		Managers:       f.managers,
	})
	googleSvc := service.NewGoogleService(service.GoogleServiceOptions{
		Broker:    f.broker,
		Federated: f.federated,
		Codec:     codec,
		Vault:     f.vault,
	})

	cache, err := core.NewDailyCache(core.DailyCacheOptions{
		Repo:     newMapCacheRepo(),
		Boundary: core.Boundary{Hour: 7},
	})
	require.NoError(t, err)
	tenants := service.NewTenantService(mocks.NewMemoryTenantMappingStore(tenant.DomainMapping{
		Domain: "acme.com", TenantSchema: "tenant_acme",
	}))
	dashboardSvc := service.NewDashboardService(service.DashboardServiceOptions{
		Tenants: tenants,
		Cache:   cache,
		Source: &fixedDataReader{ds: dashboard.Dataset{
			Rows: []dashboard.MetricRow{{Metric: "sessions", Value: 412}},
		}},
	})
	deletionSvc := service.NewDeletionService(service.DeletionServiceOptions{
		Terminator:     f.term,
		LocalUsers:     f.local,
		DirectoryUsers: mocks.NewMemoryDirectoryUserStore(),
		Federated:      f.federated,
		Managers:       f.managers,
		Vault:          f.vault,
	})

	f.handler = NewRouter(RouterServices{
		Auth:      authSvc,
		Google:    googleSvc,
		Dashboard: dashboardSvc,
		Deletion:  deletionSvc,
	})
	return f
}

func (f *routerFixture) do(t *testing.T, method, target, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func (f *routerFixture) login(t *testing.T) *http.Cookie {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/auth/login", `{"email":"pat@acme.com","password":"hunter2"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookie(t, rec)
}

func TestLocalLoginRoute(t *testing.T) {
	f := newRouterFixture(t)

	t.Run("success sets the credential cookie", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/auth/login", `{"email":"pat@acme.com","password":"hunter2"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		c := sessionCookie(t, rec)
		assert.True(t, c.HttpOnly)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		assert.Positive(t, c.MaxAge)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		user := body["user"].(map[string]any)
		assert.Equal(t, "7", user["subject"])
	})

	t.Run("bad password is a 401", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/auth/login", `{"email":"pat@acme.com","password":"nope"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed body is a 400", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/auth/login", `{"email":`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDashboardRoute(t *testing.T) {
	f := newRouterFixture(t)

	t.Run("requires a session", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/dashboard", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("serves the tenant dataset", func(t *testing.T) {
		cookie := f.login(t)
		rec := f.do(t, http.MethodGet, "/api/dashboard", "", cookie)
		require.Equal(t, http.StatusOK, rec.Code)

		var ds dashboard.Dataset
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ds))
		assert.Equal(t, "tenant_acme", ds.Schema)
		require.Len(t, ds.Rows, 1)
		assert.Equal(t, "sessions", ds.Rows[0].Metric)
	})

	t.Run("aged credential is reissued on the response", func(t *testing.T) {
		cookie := f.login(t)
		f.clock.advance(11 * time.Minute)

		rec := f.do(t, http.MethodGet, "/api/dashboard", "", cookie)
		require.Equal(t, http.StatusOK, rec.Code)

		refreshed := sessionCookie(t, rec)
		assert.NotEqual(t, cookie.Value, refreshed.Value)
	})
}

func TestGoogleRoutes(t *testing.T) {
	t.Run("login redirects to the provider", func(t *testing.T) {
		f := newRouterFixture(t)
		rec := f.do(t, http.MethodGet, "/auth/google", "", nil)
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Contains(t, rec.Header().Get("Location"), "mock-provider")
	})

	t.Run("callback lands a fresh login on onboarding", func(t *testing.T) {
		f := newRouterFixture(t)
		f.broker.Identity = ports.ProviderIdentity{ProviderID: "108234", Email: "dave@acme.com"}
		f.broker.Tokens = identity.OAuthTokens{AccessToken: "login-access", Scope: "openid email"}

		state, err := googleadapter.EncodeState(googleadapter.State{Nonce: "n"})
		require.NoError(t, err)

		rec := f.do(t, http.MethodGet, "/auth/google/callback?code=c&state="+state, "", nil)
		require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
		assert.Equal(t, "/onboarding", rec.Header().Get("Location"))
		sessionCookie(t, rec)
	})

	t.Run("callback without a code is a 400", func(t *testing.T) {
		f := newRouterFixture(t)
		rec := f.do(t, http.MethodGet, "/auth/google/callback?state=s", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("sync completes and redirects to settings", func(t *testing.T) {
		f := newRouterFixture(t)
		f.broker.Identity = ports.ProviderIdentity{ProviderID: "108234", Email: "dave@acme.com"}
		f.broker.Tokens = identity.OAuthTokens{AccessToken: "login-access", Scope: "openid email"}

		loginState, err := googleadapter.EncodeState(googleadapter.State{Nonce: "n"})
		require.NoError(t, err)
		rec := f.do(t, http.MethodGet, "/auth/google/callback?code=c&state="+loginState, "", nil)
		cookie := sessionCookie(t, rec)

		// Start the sync flow; the redirect carries the subject in state.
		rec = f.do(t, http.MethodGet, "/auth/google/sync", "", cookie)
		require.Equal(t, http.StatusFound, rec.Code)

		f.broker.Tokens = identity.OAuthTokens{
			AccessToken: "mail-access", RefreshToken: "mail-refresh",
			Scope: "openid email https://mail.google.com/",
		}
		rec = f.do(t, http.MethodGet, "/auth/google/callback?code=c2&state="+f.broker.LastState, "", cookie)
		require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
		assert.Equal(t, "/settings/mail-sync", rec.Header().Get("Location"))

		p, err := f.federated.FindByProviderID(context.Background(), "108234")
		require.NoError(t, err)
		assert.True(t, p.MailSynced)
		require.NotNil(t, p.Tokens)
		assert.Equal(t, "mail-access", p.Tokens.AccessToken)
	})

	t.Run("skip marks onboarding complete", func(t *testing.T) {
		f := newRouterFixture(t)
		f.broker.Identity = ports.ProviderIdentity{ProviderID: "108234", Email: "dave@acme.com"}
		f.broker.Tokens = identity.OAuthTokens{AccessToken: "login-access"}

		state, err := googleadapter.EncodeState(googleadapter.State{Nonce: "n"})
		require.NoError(t, err)
		rec := f.do(t, http.MethodGet, "/auth/google/callback?code=c&state="+state, "", nil)
		cookie := sessionCookie(t, rec)

		rec = f.do(t, http.MethodPost, "/auth/google/skip", "", cookie)
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["onboarding_complete"])
		assert.Equal(t, false, body["mail_synced"])
	})
}

func TestLogoutRoute(t *testing.T) {
	f := newRouterFixture(t)
	cookie := f.login(t)

	rec := f.do(t, http.MethodPost, "/auth/logout", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	// The revoked credential no longer opens the API.
	rec = f.do(t, http.MethodGet, "/api/dashboard", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatusRoute(t *testing.T) {
	f := newRouterFixture(t)

	t.Run("anonymous", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/auth/status", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, false, body["authenticated"])
	})

	t.Run("authenticated", func(t *testing.T) {
		cookie := f.login(t)
		rec := f.do(t, http.MethodGet, "/auth/status", "", cookie)
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["authenticated"])
		user := body["user"].(map[string]any)
		assert.Equal(t, "pat@acme.com", user["email"])
		assert.Equal(t, []any{}, body["managers"], "no recorded managers means an empty list")
	})

	t.Run("recorded managers appear in the payload", func(t *testing.T) {
		f.managers.Seed(identity.Subject{Kind: identity.KindLocal, LocalID: 7},
			identity.ManagerReference{
				UserID:      "108234",
				Email:       "boss@acme.com",
				DisplayName: "Boss",
				UserType:    identity.ManagerTypeFederated,
			})

		cookie := f.login(t)
		rec := f.do(t, http.MethodGet, "/auth/status", "", cookie)
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		managers, ok := body["managers"].([]any)
		require.True(t, ok, "managers is a list: %v", body["managers"])
		require.Len(t, managers, 1)
		ref := managers[0].(map[string]any)
		assert.Equal(t, "boss@acme.com", ref["email"])
		assert.Equal(t, identity.ManagerTypeFederated, ref["user_type"])
	})
}

func TestDeleteAccountRoute(t *testing.T) {
	f := newRouterFixture(t)
	cookie := f.login(t)

	rec := f.do(t, http.MethodDelete, "/api/account", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Record gone and credential revoked.
	_, err := f.local.FindByID(context.Background(), 7)
	assert.Error(t, err)
	rec = f.do(t, http.MethodGet, "/api/dashboard", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthz(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
