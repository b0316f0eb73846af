package middleware

import (
	"coder_edu_lockdown/internal/util"
	"coder_edu_lockdown/pkg/logger"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware 校验平台签发的 JWT，只接受 Authorization 头；原始 token 保留下来转发给平台接口
func AuthMiddleware(secret string) gin.HandlerFunc {
	return authenticate(secret, false)
}

// WSAuthMiddleware 仅用于 websocket 握手：浏览器无法设置请求头，允许 ?token= 传参
func WSAuthMiddleware(secret string) gin.HandlerFunc {
	return authenticate(secret, true)
}

func authenticate(secret string, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}
		if tokenString == "" && allowQuery {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, secret)
		if err != nil {
			logger.Log.Debug("JWT parse failed", zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set("user", claims)
		c.Set("token", tokenString)
		c.Next()
	}
}

func RoleMiddleware(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		hasRole := false
		for _, role := range roles {
			if user.Role == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// LearnerKey 限流 key：登录学生按 ID，否则按 IP
func LearnerKey(c *gin.Context) string {
	if user := util.GetUserFromContext(c); user != nil {
		return "learner:" + util.FormatUint(user.UserID)
	}
	return "ip:" + c.ClientIP()
}
