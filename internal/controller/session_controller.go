package controller

import (
	"io"

	"elevate_backend/internal/model"
	"elevate_backend/internal/service"
	"elevate_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SessionController struct {
	SessionService *service.SessionService
}

func NewSessionController(sessionService *service.SessionService) *SessionController {
	return &SessionController{SessionService: sessionService}
}

// @Summary 保存答案（自动保存）
// @Tags 会话
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "答题ID"
// @Param body body object true "questionId, answer"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/answers [post]
func (c *SessionController) SaveAnswer(ctx *gin.Context) {
	var body struct {
		QuestionID string       `json:"questionId" binding:"required"`
		Answer     model.Answer `json:"answer" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	resp, err := c.SessionService.Autosave(ctx.Param("id"), body.QuestionID, &body.Answer)
	if err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"responseId":      resp.ID,
		"submissionCount": resp.SubmissionCount,
	})
}

// @Summary 提交答卷
// @Tags 会话
// @Produce json
// @Security BearerAuth
// @Param id path string true "答题ID"
// @Success 202 {object} util.Response
// @Router /api/attempts/{id}/submit [post]
func (c *SessionController) Submit(ctx *gin.Context) {
	attempt, err := c.SessionService.SubmitSession(ctx.Param("id"))
	if err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	util.Accepted(ctx, gin.H{
		"attemptId":  attempt.ID,
		"status":     attempt.Status,
		"finishedAt": attempt.FinishedAt,
	})
}

// @Summary 会话心跳，可携带切屏信号
// @Tags 会话
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "答题ID"
// @Param body body object false "blurred"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/heartbeat [post]
func (c *SessionController) Heartbeat(ctx *gin.Context) {
	var body struct {
		Blurred bool `json:"blurred"`
	}
	_ = ctx.ShouldBindJSON(&body)

	result, err := c.SessionService.Heartbeat(ctx.Param("id"), body.Blurred)
	if err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 对可见测试用例试运行代码
// @Tags 会话
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "答题ID"
// @Param body body object true "questionId, code, language"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/run [post]
func (c *SessionController) RunSample(ctx *gin.Context) {
	var body struct {
		QuestionID string `json:"questionId" binding:"required"`
		Code       string `json:"code" binding:"required"`
		Language   string `json:"language" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	report, err := c.SessionService.RunSample(ctx.Request.Context(), ctx.Param("id"), body.QuestionID, body.Code, body.Language)
	if err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

// @Summary 上传监考快照
// @Tags 会话
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "答题ID"
// @Param kind formData string true "screen 或 webcam"
// @Param file formData file true "快照图片"
// @Success 201 {object} util.Response
// @Router /api/attempts/{id}/snapshots [post]
func (c *SessionController) UploadSnapshot(ctx *gin.Context) {
	kind := ctx.PostForm("kind")
	if kind != util.SnapshotKindScreen && kind != util.SnapshotKindWebcam {
		util.BadRequest(ctx, "kind must be screen or webcam")
		return
	}

	header, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	if header.Size > util.MaxSnapshotBytes {
		util.BadRequest(ctx, "snapshot too large")
		return
	}

	file, err := header.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, util.MaxSnapshotBytes+1))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	url, err := c.SessionService.AttachSnapshot(ctx.Request.Context(), ctx.Param("id"), kind, header.Header.Get("Content-Type"), data)
	if err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	util.Created(ctx, gin.H{"url": url})
}

// @Summary 查看会话状态
// @Tags 会话
// @Produce json
// @Security BearerAuth
// @Param id path string true "答题ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id} [get]
func (c *SessionController) GetSession(ctx *gin.Context) {
	attempt, err := c.SessionService.Attempt(ctx.Param("id"))
	if err != nil {
		util.FromDomainError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}
