package controller

import (
	"coder_edu_lockdown/internal/service"
	"coder_edu_lockdown/internal/util"

	"github.com/gin-gonic/gin"
)

// LockdownController 学生端监考通道
type LockdownController struct {
	Hub *service.LockdownHub
}

func NewLockdownController(hub *service.LockdownHub) *LockdownController {
	return &LockdownController{Hub: hub}
}

// HandleWS godoc
// @Summary 监考 WebSocket 连接
// @Description 上报环境信号（切屏、退出全屏、失焦、窗口尺寸、被拦截的复制/右键/快捷键），接收全屏指令与倒计时提示
// @Tags 作答会话
// @Security ApiKeyAuth
// @Param token query string true "JWT Token"
// @Success 101 {string} string "Switching Protocols"
// @Router /ws/lockdown [get]
func (ctrl *LockdownController) HandleWS(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	service.ServeLockdown(ctrl.Hub, c.Writer, c.Request, claims.UserID)
}
