package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaar-commerce/console/internal/access"
	"github.com/bazaar-commerce/console/internal/shared"
	_ "github.com/bazaar-commerce/console/testing"
)

type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]Account
}

func (m *memAccounts) FindByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &a, nil
}

func (m *memAccounts) CreateAccount(_ context.Context, account Account) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account.IsActive = true
	m.accounts[account.Email] = account
	return &account, nil
}

type stubRecords map[string]*access.Record

func (s stubRecords) Lookup(_ context.Context, email string) (*access.Record, error) {
	if rec, ok := s[email]; ok {
		return rec, nil
	}
	return nil, shared.ErrNotFound
}

type authFixture struct {
	router   http.Handler
	sessions *shared.SessionManager
	service  *Service
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	service := NewService(&memAccounts{accounts: map[string]Account{}})
	records := stubRecords{
		"ops@bazaar.test": {ID: "adm-1", Email: "ops@bazaar.test", Role: access.RoleAdmin, Permissions: access.NewPermissionSet()},
	}
	h := NewHandler(nil, service, records, sessions)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Load(r.Context(), r)
			require.NoError(t, err)
			next.ServeHTTP(w, r.WithContext(shared.ContextWithSession(r.Context(), sess)))
			require.NoError(t, sessions.Commit(r.Context(), w, sess))
		})
	})
	r.Route("/auth", h.MountRoutes)
	return &authFixture{router: r, sessions: sessions, service: service}
}

func (f *authFixture) post(t *testing.T, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestLoginReturnsRoleHome(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.service.Register(context.Background(), "Ops@Bazaar.test", "correct-horse")
	require.NoError(t, err)

	rr := f.post(t, "/auth/login", loginRequest{Email: "ops@bazaar.test", Password: "correct-horse"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ops@bazaar.test", resp.Principal.Email)
	assert.Equal(t, access.HomeAdmin, resp.Home)
}

func TestLoginUnprovisionedAccountStaysOnLogin(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.service.Register(context.Background(), "new@bazaar.test", "correct-horse")
	require.NoError(t, err)

	rr := f.post(t, "/auth/login", loginRequest{Email: "new@bazaar.test", Password: "correct-horse"})
	require.Equal(t, http.StatusOK, rr.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, access.HomeLogin, resp.Home)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.service.Register(context.Background(), "ops@bazaar.test", "correct-horse")
	require.NoError(t, err)

	rr := f.post(t, "/auth/login", loginRequest{Email: "ops@bazaar.test", Password: "wrong-horse"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.post(t, "/auth/login", loginRequest{Email: "not-an-email", Password: "correct-horse"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLoginPageRedirectsSignedInPrincipal(t *testing.T) {
	f := newAuthFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	sess, err := f.sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SignIn("uid-1", "ops@bazaar.test")
	committed := httptest.NewRecorder()
	require.NoError(t, f.sessions.Commit(context.Background(), committed, sess))

	req = httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	req.AddCookie(committed.Result().Cookies()[0])
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, access.HomeAdmin, rr.Header().Get("Location"))
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.service.Register(context.Background(), "ops@bazaar.test", "short")
	assert.Error(t, err)
}
