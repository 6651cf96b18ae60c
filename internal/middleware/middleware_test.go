package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/geolens/engine/internal/pkg/jwt"
	redisc "github.com/geolens/engine/internal/pkg/redis"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"operator": CurrentOperator(c)})
	})
	r.POST("/trigger", handlers...)
	return r
}

func TestAuthRequiresBearerToken(t *testing.T) {
	jwt.SetSecret("middleware-secret")
	r := newRouter(Auth())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/trigger", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := jwt.Sign("ops", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/trigger", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"operator":"ops"}`, w.Body.String())
}

func TestRateLimitRejectsAfterMax(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	r := newRouter(RateLimit(redisc.Wrap(rdb), "trigger", 2, time.Hour, nil))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/trigger", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitWithoutRedisPassesThrough(t *testing.T) {
	r := newRouter(RateLimit(nil, "trigger", 1, time.Minute, nil))
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/trigger", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "abc", NormalizeToken("  Bearer abc "))
	assert.Equal(t, "abc", NormalizeToken("abc"))
	assert.Equal(t, "", NormalizeToken("   "))
}
