package controller

import (
	"strconv"

	"elevate_backend/internal/service"
	"elevate_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ContestController struct {
	ContestService     *service.ContestService
	SessionService     *service.SessionService
	LeaderboardService *service.LeaderboardService
}

func NewContestController(contestService *service.ContestService, sessionService *service.SessionService, leaderboardService *service.LeaderboardService) *ContestController {
	return &ContestController{
		ContestService:     contestService,
		SessionService:     sessionService,
		LeaderboardService: leaderboardService,
	}
}

// @Summary 列出已发布的比赛
// @Tags 比赛
// @Produce json
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.PageResponse
// @Router /api/contests [get]
func (c *ContestController) ListContests(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	contests, total, err := c.ContestService.ListPublished(page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Page(ctx, contests, total, page, limit)
}

// @Summary 比赛详情
// @Tags 比赛
// @Produce json
// @Param id path string true "比赛ID"
// @Success 200 {object} util.Response
// @Router /api/contests/{id} [get]
func (c *ContestController) GetContest(ctx *gin.Context) {
	contest, err := c.ContestService.Get(ctx.Param("id"))
	if err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	util.Success(ctx, contest)
}

// @Summary 进入比赛，开始或恢复答题会话
// @Tags 会话
// @Accept json
// @Produce json
// @Param id path string true "比赛ID"
// @Param body body object true "email, name, phone"
// @Success 201 {object} util.Response
// @Router /api/contests/{id}/start [post]
func (c *ContestController) StartSession(ctx *gin.Context) {
	var body struct {
		Email string `json:"email" binding:"required,email"`
		Name  string `json:"name" binding:"required"`
		Phone string `json:"phone"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.SessionService.StartSession(service.StartSessionInput{
		ContestID: ctx.Param("id"),
		Email:     body.Email,
		Name:      body.Name,
		Phone:     body.Phone,
		IPAddress: ctx.ClientIP(),
		UserAgent: ctx.Request.UserAgent(),
	})
	if err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	if result.Resumed {
		util.Success(ctx, result)
		return
	}
	util.Created(ctx, result)
}

// @Summary 比赛排行榜（缓存）
// @Tags 比赛
// @Produce json
// @Param id path string true "比赛ID"
// @Success 200 {object} util.Response
// @Router /api/contests/{id}/leaderboard [get]
func (c *ContestController) Leaderboard(ctx *gin.Context) {
	if _, err := c.ContestService.Get(ctx.Param("id")); err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	entries, err := c.LeaderboardService.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	util.Success(ctx, entries)
}

// @Summary 比赛统计
// @Tags 比赛
// @Produce json
// @Param id path string true "比赛ID"
// @Success 200 {object} util.Response
// @Router /api/contests/{id}/statistics [get]
func (c *ContestController) Statistics(ctx *gin.Context) {
	stats, err := c.ContestService.Statistics(ctx.Param("id"))
	if err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}
