package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OlsenSM91/Open-Server-Shares/internal/templates"
)

func TestRateLimiterMemoryStore(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter, err := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 2,
		StoreType:         RateLimitStoreMemory,
		Endpoint:          "login",
	})
	require.NoError(t, err)

	r := gin.New()
	r.SetHTMLTemplate(templates.Load())
	r.POST("/login", limiter, func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	post := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.5:43210"
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, post().Code)
	assert.Equal(t, http.StatusOK, post().Code)

	w := post()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Rate Limit Exceeded")
}

func TestRateLimiterDefaultsToMemory(t *testing.T) {
	limiter, err := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 10,
		StoreType:         RateLimitStoreType("bogus"),
	})
	require.NoError(t, err)
	require.NotNil(t, limiter)
}
