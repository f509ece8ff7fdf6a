package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/jwt"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/authz"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newManager() *jwt.Manager {
	return jwt.NewManager(&jwt.Config{
		Secret:           "middleware-test",
		AccessExpireTime: time.Hour,
		Issuer:           "test",
	})
}

func bearer(t *testing.T, m *jwt.Manager, userID int64, role string) string {
	t.Helper()
	tok, _, err := m.GenerateAccessToken(userID, role)
	require.NoError(t, err)
	return "Bearer " + tok
}

func serve(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	m := newManager()
	r := gin.New()
	var caller authz.Caller
	r.GET("/me", UserAuth(m), func(c *gin.Context) {
		caller = GetCaller(c)
		c.Status(http.StatusOK)
	})
	r.GET("/staff", StaffAuth(m), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, "/me", map[string]string{"Authorization": bearer(t, m, 7, jwt.RoleUser)})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, authz.Caller{UserID: 7, Role: jwt.RoleUser}, caller)

	w = serve(r, http.MethodGet, "/staff", map[string]string{"Authorization": bearer(t, m, 7, jwt.RoleUser)})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(r, http.MethodGet, "/staff", map[string]string{"Authorization": bearer(t, m, 8, jwt.RoleStaff)})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_ExpiredToken(t *testing.T) {
	m := jwt.NewManager(&jwt.Config{Secret: "middleware-test", AccessExpireTime: -time.Minute, Issuer: "test"})
	r := gin.New()
	r.GET("/me", UserAuth(m), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/me", map[string]string{"Authorization": bearer(t, m, 1, jwt.RoleUser)})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequirePermission(t *testing.T) {
	m := newManager()
	a := authz.NewAuthorizer()
	r := gin.New()
	r.POST("/reconcile", UserAuth(m), RequirePermission(a, string(authz.CapPaymentReconcile)), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.POST("/anon", RequirePermission(a, string(authz.CapPaymentReconcile)), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	cases := []struct {
		role string
		want int
	}{
		{jwt.RoleUser, http.StatusForbidden},
		{jwt.RoleStaff, http.StatusForbidden},
		{jwt.RoleAdmin, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.role, func(t *testing.T) {
			w := serve(r, http.MethodPost, "/reconcile", map[string]string{"Authorization": bearer(t, m, 1, tc.role)})
			assert.Equal(t, tc.want, w.Code)
		})
	}

	w := serve(r, http.MethodPost, "/anon", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAnyPermission(t *testing.T) {
	m := newManager()
	r := gin.New()
	r.GET("/x", UserAuth(m),
		RequireAnyPermission(authz.NewAuthorizer(), string(authz.CapBookingUpdateStatus), string(authz.CapPaymentReconcile)),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)

	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/x", map[string]string{"Authorization": bearer(t, m, 1, jwt.RoleUser)}).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x", map[string]string{"Authorization": bearer(t, m, 1, jwt.RoleStaff)}).Code)
}

func TestIPRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	r := gin.New()
	r.GET("/", IPRateLimit(client, 2, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", nil).Code)
	w := serve(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = serve(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	mr.FastForward(time.Minute)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", nil).Code)
}

func TestRateLimit_WithoutRedis(t *testing.T) {
	r := gin.New()
	r.GET("/", IPRateLimit(nil, 1, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", nil).Code)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = GetRequestID(c)
		c.Status(http.StatusOK)
	})

	w := serve(r, http.MethodGet, "/", nil)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))

	w = serve(r, http.MethodGet, "/", map[string]string{"X-Request-ID": "req-1"})
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	w := serve(r, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code":500`)
}

func TestSecureHeadersAndSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(SecureHeaders(), RequestSizeLimiter(4))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.ContentLength = 10
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		token, ok := bearerToken(tc.header)
		assert.Equal(t, tc.ok, ok, tc.header)
		assert.Equal(t, tc.token, token, tc.header)
	}
}

func TestAuth_IgnoresCookieToken(t *testing.T) {
	m := newManager()
	r := gin.New()
	r.GET("/me", UserAuth(m), func(c *gin.Context) { c.Status(http.StatusOK) })

	tok, _, err := m.GenerateAccessToken(1, jwt.RoleUser)
	require.NoError(t, err)
	w := serve(r, http.MethodGet, "/me", map[string]string{"Cookie": "token=" + tok})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
