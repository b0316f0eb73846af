package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

// 手工维护的文档必须与 controller 上的 @Router 注解保持一致
func TestSwaggerDocCoversRoutes(t *testing.T) {
	raw, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	require.NoError(t, err)

	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	routes := []struct {
		path   string
		method string
	}{
		{"/api/health", "get"},
		{"/ws/lockdown", "get"},
		{"/api/proctor/learners/{learnerId}/events", "get"},
		{"/api/proctor/sessions/{sessionId}/events", "get"},
		{"/api/classes/{classId}/quizzes", "get"},
		{"/api/quiz-sessions", "post"},
		{"/api/quiz-sessions/current/start", "post"},
		{"/api/quiz-sessions/current/answers", "put"},
		{"/api/quiz-sessions/current/index", "put"},
		{"/api/quiz-sessions/current/submit", "post"},
		{"/api/quiz-sessions/current", "delete"},
		{"/api/quiz-sessions/current", "get"},
	}
	for _, r := range routes {
		ops, ok := doc.Paths[r.path]
		require.True(t, ok, "missing path %s", r.path)
		require.Contains(t, ops, r.method, "missing %s %s", r.method, r.path)
	}
}
