package controller

import (
	"strconv"
	"time"

	"elevate_backend/internal/model"
	"elevate_backend/internal/service"
	"elevate_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
)

type AdminController struct {
	ContestService *service.ContestService
	SessionService *service.SessionService
	GradingService *service.GradingService
	AttemptLister  AttemptLister
}

// AttemptLister is the slice of the attempt store the admin views need.
type AttemptLister interface {
	ListByContest(contestID string, page, limit int) ([]model.Attempt, int64, error)
}

func NewAdminController(contestService *service.ContestService, sessionService *service.SessionService, gradingService *service.GradingService, attempts AttemptLister) *AdminController {
	return &AdminController{
		ContestService: contestService,
		SessionService: sessionService,
		GradingService: gradingService,
		AttemptLister:  attempts,
	}
}

// AttemptSummary 后台列表视图，不含监考日志和 UA 等大字段
type AttemptSummary struct {
	ID                   string              `json:"id"`
	ContestID            string              `json:"contestId"`
	ParticipantID        string              `json:"participantId"`
	Status               model.AttemptStatus `json:"status"`
	StartedAt            *time.Time          `json:"startedAt,omitempty"`
	ExpiresAt            *time.Time          `json:"expiresAt,omitempty"`
	FinishedAt           *time.Time          `json:"finishedAt,omitempty"`
	TimeExtensionMinutes int                 `json:"timeExtensionMinutes"`
	TabBlurCount         int                 `json:"tabBlurCount"`
	TotalScore           float64             `json:"totalScore"`
}

// @Summary 创建比赛
// @Tags 后台
// @Accept json
// @Produce json
// @Security AdminKey
// @Param body body service.CreateContestInput true "比赛"
// @Success 201 {object} util.Response
// @Router /api/admin/contests [post]
func (c *AdminController) CreateContest(ctx *gin.Context) {
	var in service.CreateContestInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	contest, err := c.ContestService.Create(in)
	if err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	util.Created(ctx, contest)
}

// @Summary 发布比赛
// @Tags 后台
// @Produce json
// @Security AdminKey
// @Param id path string true "比赛ID"
// @Success 200 {object} util.Response
// @Router /api/admin/contests/{id}/publish [post]
func (c *AdminController) PublishContest(ctx *gin.Context) {
	contest, err := c.ContestService.Publish(ctx.Param("id"))
	if err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	util.Success(ctx, contest)
}

// @Summary 列出比赛的所有答题
// @Tags 后台
// @Produce json
// @Security AdminKey
// @Param id path string true "比赛ID"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.PageResponse
// @Router /api/admin/contests/{id}/attempts [get]
func (c *AdminController) ListAttempts(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	attempts, total, err := c.AttemptLister.ListByContest(ctx.Param("id"), page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	summaries := make([]AttemptSummary, len(attempts))
	for i := range attempts {
		if err := copier.Copy(&summaries[i], &attempts[i]); err != nil {
			util.LogInternalError(ctx, err)
			return
		}
	}
	util.Page(ctx, summaries, total, page, limit)
}

// @Summary 答题详情（含监考日志与答案）
// @Tags 后台
// @Produce json
// @Security AdminKey
// @Param id path string true "答题ID"
// @Success 200 {object} util.Response
// @Router /api/admin/attempts/{id} [get]
func (c *AdminController) GetAttempt(ctx *gin.Context) {
	attempt, err := c.SessionService.Attempt(ctx.Param("id"))
	if err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	responses, err := c.SessionService.Responses(ctx.Param("id"))
	if err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"attempt":          attempt,
		"responses":        responses,
		"proctoringEvents": attempt.ProctoringEvents(),
	})
}

// @Summary 延长答题时间
// @Tags 后台
// @Accept json
// @Produce json
// @Security AdminKey
// @Param id path string true "答题ID"
// @Param body body object true "minutes, grantedBy, reason"
// @Success 200 {object} util.Response
// @Router /api/admin/attempts/{id}/extend [post]
func (c *AdminController) ExtendTime(ctx *gin.Context) {
	var body struct {
		Minutes   int    `json:"minutes" binding:"required"`
		GrantedBy string `json:"grantedBy" binding:"required"`
		Reason    string `json:"reason"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempt, err := c.SessionService.ExtendTime(ctx.Param("id"), body.Minutes, body.GrantedBy, body.Reason)
	if err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary 作废答题
// @Tags 后台
// @Accept json
// @Produce json
// @Security AdminKey
// @Param id path string true "答题ID"
// @Param body body object true "reason"
// @Success 200 {object} util.Response
// @Router /api/admin/attempts/{id}/invalidate [post]
func (c *AdminController) Invalidate(ctx *gin.Context) {
	var body struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempt, err := c.SessionService.Invalidate(ctx.Param("id"), body.Reason)
	if err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary 人工评分（主观题）
// @Tags 后台
// @Accept json
// @Produce json
// @Security AdminKey
// @Param id path string true "答案ID"
// @Param body body object true "score, feedback, gradedBy"
// @Success 200 {object} util.Response
// @Router /api/admin/responses/{id}/grade [post]
func (c *AdminController) ManualGrade(ctx *gin.Context) {
	var body struct {
		Score    *float64 `json:"score" binding:"required"`
		Feedback string   `json:"feedback"`
		GradedBy string   `json:"gradedBy" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	resp, err := c.GradingService.ManualGrade(ctx.Param("id"), *body.Score, body.Feedback, body.GradedBy)
	if err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	util.Success(ctx, resp)
}

// @Summary 重新评分
// @Tags 后台
// @Produce json
// @Security AdminKey
// @Param id path string true "答题ID"
// @Success 202 {object} util.Response
// @Router /api/admin/attempts/{id}/regrade [post]
func (c *AdminController) Regrade(ctx *gin.Context) {
	if err := c.GradingService.Regrade(ctx.Param("id")); err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	util.Accepted(ctx, gin.H{"attemptId": ctx.Param("id")})
}

// @Summary 待人工评分的主观题答案
// @Tags 后台
// @Produce json
// @Security AdminKey
// @Param id path string true "比赛ID"
// @Success 200 {object} util.Response
// @Router /api/admin/contests/{id}/pending-subjective [get]
func (c *AdminController) PendingSubjective(ctx *gin.Context) {
	responses, err := c.GradingService.PendingSubjective(ctx.Param("id"))
	if err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	util.Success(ctx, responses)
}

// @Summary 评分失败的任务
// @Tags 后台
// @Produce json
// @Security AdminKey
// @Success 200 {object} util.Response
// @Router /api/admin/grading/failed-jobs [get]
func (c *AdminController) FailedJobs(ctx *gin.Context) {
	util.Success(ctx, c.GradingService.FailedJobs())
}
