package controller

import (
	"errors"

	"mytutor_backend/internal/service"
	"mytutor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type KnowledgeBaseController struct {
	Service *service.KnowledgeBaseService
}

func NewKnowledgeBaseController(svc *service.KnowledgeBaseService) *KnowledgeBaseController {
	return &KnowledgeBaseController{Service: svc}
}

// @Summary 知识库列表
// @Description 当前用户已完成采集的课程知识库
// @Tags 知识库
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /api/knowledge-bases [get]
func (c *KnowledgeBaseController) List(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	records, err := c.Service.List(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, records)
}

// @Summary 学习内容概览
// @Description 训练前的主题、学习目标和模块概要
// @Tags 知识库
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "知识库ID"
// @Success 200 {object} util.Response
// @Router /api/knowledge-bases/{id}/learning-content [get]
func (c *KnowledgeBaseController) GetLearningContent(ctx *gin.Context) {
	id := ctx.Param("id")

	content, err := c.Service.GetLearningContent(id)
	if err != nil {
		if errors.Is(err, util.ErrCorpusNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, content)
}

// @Summary 删除知识库
// @Tags 知识库
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "知识库ID"
// @Success 200 {object} util.Response
// @Router /api/knowledge-bases/{id} [delete]
func (c *KnowledgeBaseController) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := c.Service.Delete(id); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": id})
}
