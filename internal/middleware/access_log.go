package middleware

import (
	"fmt"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
)

// AccessLogger 与 gin 默认日志格式一致，但 query 中的 token 会被打码
func AccessLogger() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		if param.Latency > time.Minute {
			param.Latency = param.Latency.Truncate(time.Second)
		}
		return fmt.Sprintf("[GIN] %v | %3d | %13v | %15s | %-7s %#v\n%s",
			param.TimeStamp.Format("2006/01/02 - 15:04:05"),
			param.StatusCode,
			param.Latency,
			param.ClientIP,
			param.Method,
			RedactToken(param.Path),
			param.ErrorMessage,
		)
	})
}

// RedactToken 替换请求路径中的 token 参数
func RedactToken(path string) string {
	u, err := url.Parse(path)
	if err != nil || u.RawQuery == "" {
		return path
	}
	q := u.Query()
	if q.Get("token") == "" {
		return path
	}
	q.Set("token", "***")
	u.RawQuery = q.Encode()
	return u.String()
}
