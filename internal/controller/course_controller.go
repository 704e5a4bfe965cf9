package controller

import (
	"errors"

	"mytutor_backend/internal/model"
	"mytutor_backend/internal/service"
	"mytutor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	Processor *service.CourseProcessorService
}

func NewCourseController(processor *service.CourseProcessorService) *CourseController {
	return &CourseController{Processor: processor}
}

type ProcessCourseRequest struct {
	CourseURL string `json:"course_url" binding:"required,url"`
}

// @Summary 开始处理课程
// @Description 打开课程首页并创建采集会话，等待用户在浏览器中完成登录
// @Tags 课程采集
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body ProcessCourseRequest true "课程地址"
// @Success 201 {object} util.Response
// @Router /api/courses/process [post]
func (c *CourseController) StartProcessing(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req ProcessCourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Processor.Start(ctx.Request.Context(), user.UserID, req.CourseURL)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Created(ctx, result)
}

// @Summary 登录完成后继续处理
// @Tags 课程采集
// @Produce json
// @Security ApiKeyAuth
// @Param sessionId path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/courses/process/{sessionId}/continue [post]
func (c *CourseController) ContinueAfterLogin(ctx *gin.Context) {
	sessionID := ctx.Param("sessionId")

	err := c.Processor.ContinueAfterLogin(ctx.Request.Context(), sessionID)
	switch {
	case err == nil:
		util.Success(ctx, gin.H{"session_id": sessionID, "status": "processing"})
	case errors.Is(err, util.ErrSessionNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrNotAwaitingLogin):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrOperationInFlight):
		util.Conflict(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

// @Summary 查询采集进度
// @Tags 课程采集
// @Produce json
// @Security ApiKeyAuth
// @Param sessionId path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/courses/process/{sessionId}/status [get]
func (c *CourseController) GetStatus(ctx *gin.Context) {
	sessionID := ctx.Param("sessionId")

	session, err := c.Processor.GetStatus(ctx.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, util.ErrSessionNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	resp := gin.H{
		"session_id":       session.ID,
		"status":           session.Status,
		"current_module":   session.CurrentModule,
		"total_modules":    session.TotalModules,
		"progress_percent": session.Progress,
	}
	if session.Summary != nil {
		resp["summary"] = session.Summary
	}
	if session.Status == model.StatusError {
		resp["error"] = session.ErrorDetail
	}
	util.Success(ctx, resp)
}

// @Summary 停止采集会话
// @Description 幂等操作，已结束的会话返回成功
// @Tags 课程采集
// @Produce json
// @Security ApiKeyAuth
// @Param sessionId path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/courses/process/{sessionId} [delete]
func (c *CourseController) StopProcessing(ctx *gin.Context) {
	sessionID := ctx.Param("sessionId")

	err := c.Processor.Stop(ctx.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, util.ErrSessionNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"session_id": sessionID, "status": "stopping"})
}
