package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestOriginChecker(t *testing.T) {
	check := OriginChecker([]string{"https://quiz.example.edu"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://quiz.example.edu", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws/lockdown", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		require.Equal(t, tt.want, check(req), tt.origin)
	}
}

func TestKeyedRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(KeyedRateLimiter(2, time.Minute, func(c *gin.Context) string { return c.GetHeader("X-Learner") }))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func(learner string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Learner", learner)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusOK, hit("a"))
	require.Equal(t, http.StatusOK, hit("a"))
	require.Equal(t, http.StatusTooManyRequests, hit("a"))
	// 不同 key 互不影响
	require.Equal(t, http.StatusOK, hit("b"))
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://quiz.example.edu"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://quiz.example.edu")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "https://quiz.example.edu", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
