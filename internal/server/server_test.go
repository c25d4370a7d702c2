package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/fazilcanakbas/havacilaregitim/internal/config"
	"github.com/fazilcanakbas/havacilaregitim/internal/content"
	"github.com/fazilcanakbas/havacilaregitim/internal/storage"
)

func TestContentServices_Memory(t *testing.T) {
	svcs, err := ContentServices(context.Background(), config.ContentConfig{MaxImages: 3, DefaultLimit: 20, MaxLimit: 100}, nil, storage.NewMemoryStorage("/uploads"))
	require.NoError(t, err)
	require.Len(t, svcs, 3)
	var kinds []content.Kind
	for _, s := range svcs {
		kinds = append(kinds, s.Descriptor().Kind)
	}
	require.ElementsMatch(t, []content.Kind{content.KindBlog, content.KindAnnouncement, content.KindService}, kinds)
}

func TestConnectRedis(t *testing.T) {
	require.Nil(t, ConnectRedis(context.Background(), config.RedisConfig{}))

	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	client := ConnectRedis(context.Background(), config.RedisConfig{Host: m.Host(), Port: m.Port()})
	require.NotNil(t, client)
	_ = client.Close()

	m.Close()
	require.Nil(t, ConnectRedis(context.Background(), config.RedisConfig{Host: m.Host(), Port: m.Port()}))
}

func TestCORS(t *testing.T) {
	g := gin.New()
	g.Use(CORS(config.CORSConfig{AllowedOrigins: []string{"https://havacilik.example"}}))
	g.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/x", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", "PUT")
		w := httptest.NewRecorder()
		g.ServeHTTP(w, req)
		return w
	}
	w := preflight("https://havacilik.example")
	require.Equal(t, "https://havacilik.example", w.Header().Get("Access-Control-Allow-Origin"))
	w = preflight("https://evil.example")
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRegisterHealth(t *testing.T) {
	g := gin.New()
	fail := false
	RegisterHealth(g, map[string]Check{
		"mongo": func(context.Context) error { return nil },
		"redis": func(context.Context) error {
			if fail {
				return errors.New("down")
			}
			return nil
		},
	})

	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)

	fail = true
	w = httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body struct {
		Status string          `json:"status"`
		Deps   map[string]bool `json:"deps"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "not_ready", body.Status)
	require.False(t, body.Deps["redis"])
	require.True(t, body.Deps["mongo"])
}

func TestLimiter_FallsBackToMemory(t *testing.T) {
	g := gin.New()
	g.GET("/x", Limiter(config.RateLimitConfig{UseRedis: true}, nil, "server-test", 0.01, 1), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := []int{}
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes = append(codes, w.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
