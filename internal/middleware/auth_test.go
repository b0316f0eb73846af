package middleware

import (
	"bytes"
	"coder_edu_lockdown/internal/util"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const secret = "middleware-test-secret"

func whoami(c *gin.Context) {
	user := util.GetUserFromContext(c)
	c.JSON(http.StatusOK, gin.H{"id": user.UserID, "token": util.GetTokenFromContext(c), "key": LearnerKey(c)})
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", WSAuthMiddleware(secret), whoami)
	api := r.Group("", AuthMiddleware(secret))
	api.GET("/me", whoami)
	api.GET("/proctor", RoleMiddleware(util.RoleTeacher, util.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func serve(r *gin.Engine, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newAuthRouter()
	token, err := util.GenerateJWT(42, "student", secret, time.Hour)
	require.NoError(t, err)
	expired, err := util.GenerateJWT(42, "student", secret, -time.Minute)
	require.NoError(t, err)
	forged, err := util.GenerateJWT(42, "student", "another-secret", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"bearer header", "/me", "Bearer " + token, http.StatusOK},
		{"query token rejected on api", "/me?token=" + token, "", http.StatusUnauthorized},
		{"query token for websocket", "/ws?token=" + token, "", http.StatusOK},
		{"bearer header for websocket", "/ws", "Bearer " + token, http.StatusOK},
		{"websocket missing", "/ws", "", http.StatusUnauthorized},
		{"missing", "/me", "", http.StatusUnauthorized},
		{"expired", "/me", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "/me", "Bearer " + forged, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, tt.path, tt.header)
			require.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				require.Contains(t, w.Body.String(), `"id":42`)
				require.Contains(t, w.Body.String(), `"key":"learner:42"`)
				require.Contains(t, w.Body.String(), token)
			}
		})
	}
}

func TestRoleMiddleware(t *testing.T) {
	r := newAuthRouter()
	student, err := util.GenerateJWT(1, util.RoleStudent, secret, time.Hour)
	require.NoError(t, err)
	teacher, err := util.GenerateJWT(2, util.RoleTeacher, secret, time.Hour)
	require.NoError(t, err)

	require.Equal(t, http.StatusForbidden, serve(r, "/proctor", "Bearer "+student).Code)
	require.Equal(t, http.StatusNoContent, serve(r, "/proctor", "Bearer "+teacher).Code)
}

func TestRedactToken(t *testing.T) {
	require.Equal(t, "/ws/lockdown?token=%2A%2A%2A", RedactToken("/ws/lockdown?token=eyJhbGciOi.abc.def"))
	require.Equal(t, "/ws/lockdown?token=%2A%2A%2A&v=2", RedactToken("/ws/lockdown?v=2&token=secret"))
	require.Equal(t, "/api/quiz-sessions/current", RedactToken("/api/quiz-sessions/current"))
	require.Equal(t, "/api/classes?page=1", RedactToken("/api/classes?page=1"))
}

func TestAccessLoggerHidesToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	gin.DefaultWriter = &buf
	t.Cleanup(func() { gin.DefaultWriter = os.Stdout })

	r := gin.New()
	r.Use(AccessLogger())
	r.GET("/ws", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	serve(r, "/ws?token=very-secret-jwt", "")
	require.Contains(t, buf.String(), "/ws?token=")
	require.NotContains(t, buf.String(), "very-secret-jwt")
}
