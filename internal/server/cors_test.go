package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/housebill/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCORSRouter(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware, err := newCORSMiddleware(cfg)
	require.NoError(t, err)
	require.NotNil(t, middleware)

	router := gin.New()
	router.Use(middleware)
	router.GET("/houses/info", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func corsRequest(router *gin.Engine, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/houses/info", nil)
	req.Header.Set("Origin", origin)
	if method == http.MethodOptions {
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestCORSDisabledWithoutOrigins(t *testing.T) {
	middleware, err := newCORSMiddleware(config.Config{})
	require.NoError(t, err)
	assert.Nil(t, middleware)
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	router := newCORSRouter(t, config.Config{
		CORSAllowOrigins: []string{"https://app.example.com"},
		CORSAllowMethods: []string{"GET", "POST"},
		CORSAllowHeaders: []string{"Content-Type"},
	})

	preflight := corsRequest(router, http.MethodOptions, "https://app.example.com")
	assert.Equal(t, http.StatusNoContent, preflight.Code)
	assert.Equal(t, "https://app.example.com", preflight.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, preflight.Header().Get("Access-Control-Allow-Methods"), "POST")

	resp := corsRequest(router, http.MethodGet, "https://app.example.com")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "https://app.example.com", resp.Header().Get("Access-Control-Allow-Origin"))

	denied := corsRequest(router, http.MethodGet, "https://evil.example.com")
	assert.Equal(t, http.StatusForbidden, denied.Code)
}

func TestCORSWildcardOrigin(t *testing.T) {
	router := newCORSRouter(t, config.Config{
		CORSAllowOrigins: []string{"*"},
		CORSAllowMethods: []string{"GET"},
	})

	resp := corsRequest(router, http.MethodGet, "https://anywhere.example.com")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRejectsOriginWithoutScheme(t *testing.T) {
	_, err := newCORSMiddleware(config.Config{CORSAllowOrigins: []string{"app.example.com"}})
	assert.Error(t, err)
}
