package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaar-commerce/console/internal/access"
	"github.com/bazaar-commerce/console/internal/console"
	"github.com/bazaar-commerce/console/internal/identity"
	"github.com/bazaar-commerce/console/internal/observability"
	"github.com/bazaar-commerce/console/internal/shared"
	_ "github.com/bazaar-commerce/console/testing"
)

type staticRecords map[string]*access.Record

func (s staticRecords) Lookup(_ context.Context, email string) (*access.Record, error) {
	if rec, ok := s[email]; ok {
		return rec, nil
	}
	return nil, shared.ErrNotFound
}

func newTestRouter(t *testing.T, limit int) (http.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := shared.NewSessionManager(client, "console_session", "secret", time.Hour, false)
	records := staticRecords{
		"a@shop.test": {ID: "sellerA", Email: "a@shop.test", Role: access.RoleSeller, Permissions: access.NewPermissionSet(access.PageSellerOrders)},
	}
	gate := console.NewGate(identity.SessionSource{}, records, logger)
	router := NewRouter(RouterParams{
		Logger:         logger,
		Config:         &Config{AppRequestTimeout: time.Second, RateLimitPerMinute: limit},
		SessionManager: sessions,
		ConsoleHandler: console.NewHandler(gate, nil, logger),
		Metrics:        observability.NewMetrics(),
	})
	return router, sessions
}

func signedInCookie(t *testing.T, sessions *shared.SessionManager, email string) *http.Cookie {
	t.Helper()
	sess, err := sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SignIn("uid-1", email)
	rr := httptest.NewRecorder()
	require.NoError(t, sessions.Commit(context.Background(), rr, sess))
	return rr.Result().Cookies()[0]
}

func TestRouterHealthAndSecureHeaders(t *testing.T) {
	router, _ := newTestRouter(t, 100)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestRouterResolvesPrincipalFromSession(t *testing.T) {
	router, sessions := newTestRouter(t, 100)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/seller/pages", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/seller/pages", nil)
	req.AddCookie(signedInCookie(t, sessions, "a@shop.test"))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"seller-orders"`)

	req = httptest.NewRequest(http.MethodGet, "/admin/pages", nil)
	req.AddCookie(signedInCookie(t, sessions, "a@shop.test"))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, access.HomeSeller, rr.Header().Get("Location"))
}

func TestRouterRateLimitsPerIP(t *testing.T) {
	router, _ := newTestRouter(t, 2)
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/authorize", bytes.NewBufferString(`{}`))
		req.RemoteAddr = "203.0.113.7:4000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRouterExposesMetrics(t *testing.T) {
	router, _ := newTestRouter(t, 100)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "console_http_requests_total")
}
