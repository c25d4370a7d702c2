package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fazilcanakbas/havacilaregitim/internal/config"
	"github.com/fazilcanakbas/havacilaregitim/internal/sessions"
	"github.com/fazilcanakbas/havacilaregitim/internal/tokens"
	"github.com/fazilcanakbas/havacilaregitim/internal/users"
	"github.com/fazilcanakbas/havacilaregitim/pkg/middleware"
)

type authFixture struct {
	g         *gin.Engine
	users     *users.Service
	blacklist *sessions.Blacklist
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	cfg := &config.Config{}
	cfg.JWT.Secret = "handler-test-secret-32-bytes-xxxxxx"
	cfg.JWT.AccessTokenTTL = 15 * time.Minute
	cfg.JWT.RefreshTokenTTL = time.Hour

	uSvc := users.NewService(users.NewMemoryUserRepository())
	_, err := uSvc.CreateAdmin(context.Background(), "admin@havacilik.com", "Yönetici", "correct-horse")
	require.NoError(t, err)

	ver, err := tokens.NewVerifier(cfg.JWT.Secret)
	require.NoError(t, err)

	m := mr.RunT(t)
	bl := sessions.NewBlacklist(redis.NewClient(&redis.Options{Addr: m.Addr()}))

	h := NewAuthHandler(cfg, uSvc, sessions.NewService(sessions.NewMemoryRepository()), bl)
	g := gin.New()
	h.Register(g, func(c *gin.Context) {})
	h.RegisterMe(g, middleware.AuthMiddleware(ver, bl))
	return &authFixture{g: g, users: uSvc, blacklist: bl}
}

func (f *authFixture) post(path string, body interface{}, bearer string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	f.g.ServeHTTP(w, req)
	return w
}

func (f *authFixture) me(bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	w := httptest.NewRecorder()
	f.g.ServeHTTP(w, req)
	return w
}

type loginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
}

func (f *authFixture) login(t *testing.T) loginResponse {
	t.Helper()
	w := f.post("/auth/login", gin.H{"email": "Admin@Havacilik.com", "password": "correct-horse"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var lr loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lr))
	return lr
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	lr := f.login(t)
	assert.NotEmpty(t, lr.AccessToken)
	assert.NotEmpty(t, lr.RefreshToken)
	assert.Equal(t, 900, lr.ExpiresIn)

	w := f.post("/auth/login", gin.H{"email": "admin@havacilik.com", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = f.post("/auth/login", gin.H{"email": "not-an-email", "password": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMe(t *testing.T) {
	f := newAuthFixture(t)
	lr := f.login(t)

	w := f.me(lr.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		User struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "admin@havacilik.com", body.User.Email)
	assert.Equal(t, "admin", body.User.Role)
	assert.NotContains(t, w.Body.String(), "passwordHash")

	assert.Equal(t, http.StatusUnauthorized, f.me("garbage").Code)
}

func TestRefresh_RotatesToken(t *testing.T) {
	f := newAuthFixture(t)
	lr := f.login(t)

	w := f.post("/auth/refresh", gin.H{"refreshToken": lr.RefreshToken}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var next loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &next))
	assert.NotEmpty(t, next.AccessToken)
	assert.NotEqual(t, lr.RefreshToken, next.RefreshToken)

	// the old refresh token is spent
	w = f.post("/auth/refresh", gin.H{"refreshToken": lr.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.post("/auth/refresh", gin.H{}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogout_BlacklistsAccessAndDeletesRefresh(t *testing.T) {
	f := newAuthFixture(t)
	lr := f.login(t)
	require.Equal(t, http.StatusOK, f.me(lr.AccessToken).Code)

	w := f.post("/auth/logout", gin.H{"refreshToken": lr.RefreshToken}, lr.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)

	revoked, err := f.blacklist.Revoked(context.Background(), lr.AccessToken)
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Equal(t, http.StatusUnauthorized, f.me(lr.AccessToken).Code)

	w = f.post("/auth/refresh", gin.H{"refreshToken": lr.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout_All(t *testing.T) {
	f := newAuthFixture(t)
	laptop := f.login(t)
	phone := f.login(t)

	w := f.post("/auth/logout", gin.H{"refreshToken": laptop.RefreshToken, "all": true}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, rt := range []string{laptop.RefreshToken, phone.RefreshToken} {
		w = f.post("/auth/refresh", gin.H{"refreshToken": rt}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	// access tokens stay valid until they expire unless presented at logout
	assert.Equal(t, http.StatusOK, f.me(phone.AccessToken).Code)
}
