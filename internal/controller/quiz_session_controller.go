package controller

import (
	"coder_edu_lockdown/internal/model"
	"coder_edu_lockdown/internal/service"
	"coder_edu_lockdown/internal/util"
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// QuizSessionController 学生端作答会话接口
type QuizSessionController struct {
	Service *service.LockdownService
}

func NewQuizSessionController(svc *service.LockdownService) *QuizSessionController {
	return &QuizSessionController{Service: svc}
}

// AcknowledgeRequest 确认防作弊提示并选择测验
type AcknowledgeRequest struct {
	ClassID      string `json:"classId" binding:"required" example:"class-1"`
	SharedQuizID string `json:"sharedQuizId" binding:"required" example:"shared-42"`
}

type SelectAnswerRequest struct {
	QuestionID string `json:"questionId" binding:"required" example:"q1"`
	AnswerID   string `json:"answerId" binding:"required" example:"a2"`
}

type NavigateRequest struct {
	Index *int `json:"index" binding:"required" example:"0"`
}

type SubmitRequest struct {
	// Confirmed 存在未作答题目时需要学生二次确认
	Confirmed bool `json:"confirmed" example:"false"`
}

// ListClassQuizzes godoc
// @Summary 班级测验列表
// @Tags 作答会话
// @Produce json
// @Security ApiKeyAuth
// @Param classId path string true "班级ID"
// @Success 200 {object} util.Response{data=[]model.ClassQuiz}
// @Failure 502 {object} util.Response "平台接口错误"
// @Router /api/classes/{classId}/quizzes [get]
func (ctrl *QuizSessionController) ListClassQuizzes(c *gin.Context) {
	quizzes, err := ctrl.Service.ListClassQuizzes(c.Request.Context(), util.GetTokenFromContext(c), c.Param("classId"))
	if err != nil {
		util.Error(c, http.StatusBadGateway, err.Error())
		return
	}
	util.Success(c, quizzes)
}

// Acknowledge godoc
// @Summary 确认防作弊提示
// @Description 学生确认提示后创建作答会话（尚未进入全屏）
// @Tags 作答会话
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body AcknowledgeRequest true "测验"
// @Success 201 {object} util.Response{data=model.AttemptSnapshot}
// @Failure 409 {object} util.Response "已有进行中的会话"
// @Router /api/quiz-sessions [post]
func (ctrl *QuizSessionController) Acknowledge(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	var req AcknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	snap, err := ctrl.Service.Acknowledge(c.Request.Context(), claims.UserID, util.GetTokenFromContext(c), req.ClassID, req.SharedQuizID)
	if err != nil {
		respondSessionError(c, snap, err)
		return
	}
	util.Created(c, snap)
}

// Start godoc
// @Summary 开始作答
// @Description 请求客户端进入全屏，成功后开始计时与监考
// @Tags 作答会话
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=model.AttemptSnapshot}
// @Failure 412 {object} util.Response "无法进入安全模式"
// @Router /api/quiz-sessions/current/start [post]
func (ctrl *QuizSessionController) Start(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	snap, err := ctrl.Service.Start(c.Request.Context(), claims.UserID)
	if err != nil {
		respondSessionError(c, snap, err)
		return
	}
	util.Success(c, snap)
}

// SelectAnswer godoc
// @Summary 选择答案
// @Tags 作答会话
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body SelectAnswerRequest true "答案"
// @Success 200 {object} util.Response{data=model.AttemptSnapshot}
// @Router /api/quiz-sessions/current/answers [put]
func (ctrl *QuizSessionController) SelectAnswer(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	var req SelectAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	snap, err := ctrl.Service.SelectAnswer(claims.UserID, req.QuestionID, req.AnswerID)
	if err != nil {
		respondSessionError(c, snap, err)
		return
	}
	util.Success(c, snap)
}

// Navigate godoc
// @Summary 跳转题目
// @Tags 作答会话
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body NavigateRequest true "题目序号"
// @Success 200 {object} util.Response{data=model.AttemptSnapshot}
// @Router /api/quiz-sessions/current/index [put]
func (ctrl *QuizSessionController) Navigate(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	snap, err := ctrl.Service.Navigate(claims.UserID, *req.Index)
	if err != nil {
		respondSessionError(c, snap, err)
		return
	}
	util.Success(c, snap)
}

// Submit godoc
// @Summary 提交测验
// @Description 有未作答题目且未确认时返回 409 和作答统计；提交失败可再次调用重试
// @Tags 作答会话
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body SubmitRequest false "确认"
// @Success 200 {object} util.Response{data=model.AttemptSnapshot}
// @Failure 409 {object} util.Response "存在未作答题目"
// @Failure 502 {object} util.Response{data=model.AttemptSnapshot} "提交失败"
// @Router /api/quiz-sessions/current/submit [post]
func (ctrl *QuizSessionController) Submit(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	var req SubmitRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			util.BadRequest(c, err.Error())
			return
		}
	}
	snap, err := ctrl.Service.Submit(c.Request.Context(), claims.UserID, req.Confirmed)
	if err != nil {
		respondSessionError(c, snap, err)
		return
	}
	util.Success(c, snap)
}

// Cancel godoc
// @Summary 放弃作答
// @Description 只能在提交前取消，不会提交到平台
// @Tags 作答会话
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=model.AttemptSnapshot}
// @Router /api/quiz-sessions/current [delete]
func (ctrl *QuizSessionController) Cancel(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	snap, err := ctrl.Service.Cancel(claims.UserID)
	if err != nil {
		respondSessionError(c, snap, err)
		return
	}
	util.Success(c, snap)
}

// Current godoc
// @Summary 当前会话
// @Tags 作答会话
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=model.AttemptSnapshot}
// @Failure 404 {object} util.Response "没有进行中的会话"
// @Router /api/quiz-sessions/current [get]
func (ctrl *QuizSessionController) Current(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	snap, err := ctrl.Service.Current(claims.UserID)
	if err != nil {
		respondSessionError(c, snap, err)
		return
	}
	util.Success(c, snap)
}

// respondSessionError 把会话错误映射为 HTTP 状态码
func respondSessionError(c *gin.Context, snap model.AttemptSnapshot, err error) {
	var unanswered *service.UnansweredError
	if errors.As(err, &unanswered) {
		util.ErrorWithData(c, http.StatusConflict, err.Error(), gin.H{
			"answered": unanswered.Answered,
			"total":    unanswered.Total,
			"session":  snap,
		})
		return
	}

	switch {
	case errors.Is(err, util.ErrNoActiveSession), errors.Is(err, util.ErrQuizNotFound):
		util.Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, util.ErrQuizNotActive), errors.Is(err, util.ErrQuizNotYetAvailable), errors.Is(err, util.ErrQuizClosed):
		util.Error(c, http.StatusForbidden, err.Error())
	case errors.Is(err, util.ErrInvalidTransition), errors.Is(err, util.ErrSessionActive),
		errors.Is(err, util.ErrSessionClosed), errors.Is(err, util.ErrSubmissionInFlight):
		util.ErrorWithData(c, http.StatusConflict, err.Error(), snapshotOrNil(snap))
	case errors.Is(err, util.ErrUnknownQuestion), errors.Is(err, util.ErrUnknownAnswer),
		errors.Is(err, util.ErrIndexOutOfRange):
		util.BadRequest(c, err.Error())
	case errors.Is(err, util.ErrQuizHasNoQuestions):
		util.ErrorWithData(c, http.StatusUnprocessableEntity, err.Error(), snapshotOrNil(snap))
	case errors.Is(err, util.ErrSecureModeUnavailable), errors.Is(err, util.ErrEnvironmentOffline):
		util.ErrorWithData(c, http.StatusPreconditionFailed, err.Error(), snapshotOrNil(snap))
	case errors.Is(err, util.ErrPlatformUnavailable):
		util.Error(c, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		util.ErrorWithData(c, http.StatusGatewayTimeout, err.Error(), snapshotOrNil(snap))
	case snap.SessionID != "" && snap.Phase >= model.PhaseSubmitting:
		// 提交失败：快照里带着是否可重试的状态
		util.ErrorWithData(c, http.StatusBadGateway, err.Error(), snap)
	default:
		util.LogInternalError(c, err)
	}
}

func snapshotOrNil(snap model.AttemptSnapshot) interface{} {
	if snap.SessionID == "" {
		return nil
	}
	return snap
}
