package controller

import (
	"coder_edu_lockdown/internal/repository"
	"coder_edu_lockdown/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ProctorEventController 教师查看监考记录
type ProctorEventController struct {
	Repo *repository.ProctorEventRepository
}

func NewProctorEventController(repo *repository.ProctorEventRepository) *ProctorEventController {
	return &ProctorEventController{Repo: repo}
}

// ListByLearner godoc
// @Summary 学生监考记录
// @Tags 监考
// @Produce json
// @Security ApiKeyAuth
// @Param learnerId path int true "学生ID"
// @Param page query int false "页码 (从1开始)" default(1)
// @Param limit query int false "每页条数" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse{list=[]model.ProctorEvent}}
// @Router /api/proctor/learners/{learnerId}/events [get]
func (ctrl *ProctorEventController) ListByLearner(c *gin.Context) {
	learnerID, err := strconv.ParseUint(c.Param("learnerId"), 10, 32)
	if err != nil {
		util.BadRequest(c, "invalid learner id")
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	events, total, err := ctrl.Repo.ListByLearner(c.Request.Context(), uint(learnerID), limit, (page-1)*limit)
	if err != nil {
		util.LogInternalError(c, err)
		return
	}
	util.Success(c, util.PageResponse{List: events, Total: total, Page: page, Limit: limit})
}

// ListBySession godoc
// @Summary 单次会话监考记录
// @Tags 监考
// @Produce json
// @Security ApiKeyAuth
// @Param sessionId path string true "会话ID"
// @Success 200 {object} util.Response{data=[]model.ProctorEvent}
// @Router /api/proctor/sessions/{sessionId}/events [get]
func (ctrl *ProctorEventController) ListBySession(c *gin.Context) {
	events, err := ctrl.Repo.ListBySession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		util.LogInternalError(c, err)
		return
	}
	util.Success(c, events)
}
