package controller

import (
	"errors"
	"strconv"

	"mytutor_backend/internal/model"
	"mytutor_backend/internal/service"
	"mytutor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type TrainingController struct {
	Service *service.TrainingService
}

func NewTrainingController(svc *service.TrainingService) *TrainingController {
	return &TrainingController{Service: svc}
}

// @Summary 开启训练会话
// @Description 基于知识库生成第一道题，难度从初级开始自适应
// @Tags 自适应训练
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.StartOptions true "训练参数"
// @Success 201 {object} util.Response
// @Router /api/training/start [post]
func (c *TrainingController) Start(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var opts service.StartOptions
	if err := ctx.ShouldBindJSON(&opts); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Service.Start(ctx.Request.Context(), user.UserID, opts)
	switch {
	case err == nil:
		util.Created(ctx, result)
	case errors.Is(err, util.ErrCorpusNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrEmptyCorpus):
		util.BadRequest(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

type SubmitAnswerRequest struct {
	SessionID string       `json:"session_id" binding:"required"`
	Answer    model.Answer `json:"answer"`
}

// @Summary 提交答案
// @Description 判当前题并返回下一道题。答案是字符串或连线题的配对对象
// @Tags 自适应训练
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body SubmitAnswerRequest true "答案"
// @Success 200 {object} util.Response
// @Router /api/training/answer [post]
func (c *TrainingController) SubmitAnswer(ctx *gin.Context) {
	var req SubmitAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Service.SubmitAnswer(ctx.Request.Context(), req.SessionID, req.Answer)
	switch {
	case err == nil:
		util.Success(ctx, result)
	case errors.Is(err, util.ErrSessionNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrInvalidAnswerShape):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrSessionCompleted):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrOperationInFlight):
		util.Conflict(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

// @Summary 查询训练会话
// @Tags 自适应训练
// @Produce json
// @Security ApiKeyAuth
// @Param sessionId path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/training/{sessionId} [get]
func (c *TrainingController) Get(ctx *gin.Context) {
	sessionID := ctx.Param("sessionId")

	session, err := c.Service.Get(ctx.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, util.ErrSessionNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"session_id":         session.ID,
		"knowledge_base_id":  session.KnowledgeBaseID,
		"status":             session.Status,
		"score":              session.Score,
		"questions_answered": session.QuestionsAnswered,
		"correct_answers":    session.CorrectAnswers,
		"difficulty":         session.Difficulty,
		"current_question":   session.Current.View(),
	})
}

// @Summary 结束训练会话
// @Description 幂等操作，重复结束返回同样的汇总
// @Tags 自适应训练
// @Produce json
// @Security ApiKeyAuth
// @Param sessionId path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/training/{sessionId}/end [post]
func (c *TrainingController) End(ctx *gin.Context) {
	sessionID := ctx.Param("sessionId")

	result, err := c.Service.End(ctx.Request.Context(), sessionID)
	switch {
	case err == nil:
		util.Success(ctx, result)
	case errors.Is(err, util.ErrSessionNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrOperationInFlight):
		util.Conflict(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

// @Summary 当前用户的训练历史
// @Tags 自适应训练
// @Produce json
// @Security ApiKeyAuth
// @Param limit query int false "条数上限"
// @Success 200 {object} util.Response
// @Router /api/training/history/user [get]
func (c *TrainingController) HistoryByUser(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	limit := 0
	if v := ctx.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	records, err := c.Service.HistoryByUser(user.UserID, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, records)
}

// @Summary 某知识库的训练历史
// @Tags 自适应训练
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "知识库ID"
// @Param limit query int false "条数上限"
// @Success 200 {object} util.Response
// @Router /api/knowledge-bases/{id}/training/history [get]
func (c *TrainingController) HistoryByKnowledgeBase(ctx *gin.Context) {
	kbID := ctx.Param("id")

	limit := 0
	if v := ctx.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	records, err := c.Service.HistoryByKnowledgeBase(kbID, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, records)
}
