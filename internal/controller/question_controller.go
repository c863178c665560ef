package controller

import (
	"elevate_backend/internal/service"
	"elevate_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuestionController struct {
	QuestionService *service.QuestionService
}

func NewQuestionController(questionService *service.QuestionService) *QuestionController {
	return &QuestionController{QuestionService: questionService}
}

// @Summary 批量导入题目
// @Tags 后台
// @Accept json
// @Produce json
// @Security AdminKey
// @Param id path string true "比赛ID"
// @Param body body object true "questions 数组"
// @Success 201 {object} util.Response
// @Router /api/admin/contests/{id}/questions [post]
func (c *QuestionController) ImportQuestions(ctx *gin.Context) {
	var body struct {
		Questions []service.QuestionPayload `json:"questions" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	questions, err := c.QuestionService.ImportPayload(ctx.Param("id"), body.Questions)
	if err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	util.Created(ctx, gin.H{"imported": len(questions), "questions": questions})
}

// @Summary 列出比赛题目（含答案，仅后台）
// @Tags 后台
// @Produce json
// @Security AdminKey
// @Param id path string true "比赛ID"
// @Success 200 {object} util.Response
// @Router /api/admin/contests/{id}/questions [get]
func (c *QuestionController) ListQuestions(ctx *gin.Context) {
	questions, err := c.QuestionService.ListByContest(ctx.Param("id"))
	if err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	util.Success(ctx, questions)
}
