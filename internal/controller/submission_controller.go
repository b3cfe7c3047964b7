package controller

import (
	"errors"
	"strconv"

	"grading_backend/internal/middleware"
	"grading_backend/internal/model"
	"grading_backend/internal/service"
	"grading_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SubmissionController struct {
	SubmissionService *service.SubmissionService
}

func NewSubmissionController(submissionService *service.SubmissionService) *SubmissionController {
	return &SubmissionController{SubmissionService: submissionService}
}

// @Summary 提交代码判题
// @Description 受理提交并异步判题，立即返回 PENDING 记录，结果通过查询接口轮询
// @Tags 提交
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.SubmissionRequest true "questId, source, language, testCases(可选)"
// @Success 202 {object} util.Response
// @Router /api/submissions [post]
func (c *SubmissionController) CreateSubmission(ctx *gin.Context) {
	learnerID := middleware.GetUserID(ctx)
	if learnerID == "" {
		util.Unauthorized(ctx)
		return
	}

	var req service.SubmissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	submission, err := c.SubmissionService.CreateSubmission(ctx.Request.Context(), learnerID, &req)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Accepted(ctx, submission)
}

// @Summary 查询我的提交列表
// @Tags 提交
// @Produce json
// @Security ApiKeyAuth
// @Param questId query string false "按关卡过滤"
// @Param status query string false "按状态过滤 PENDING/GRADING/COMPLETED/ERROR"
// @Param page query int false "页码，默认1"
// @Param limit query int false "每页条数，默认20"
// @Success 200 {object} util.Response
// @Router /api/submissions [get]
func (c *SubmissionController) ListSubmissions(ctx *gin.Context) {
	learnerID := middleware.GetUserID(ctx)

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	status, ok := parseStatus(ctx.Query("status"))
	if !ok {
		util.BadRequest(ctx, util.ErrInvalidStatus.Error())
		return
	}

	submissions, total, err := c.SubmissionService.ListSubmissions(learnerID, ctx.Query("questId"), status, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{
		List:  submissions,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// @Summary 查询最近提交
// @Tags 提交
// @Produce json
// @Security ApiKeyAuth
// @Param limit query int false "条数，默认5"
// @Success 200 {object} util.Response
// @Router /api/submissions/recent [get]
func (c *SubmissionController) RecentSubmissions(ctx *gin.Context) {
	learnerID := middleware.GetUserID(ctx)

	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "5"))
	if limit < 1 || limit > 50 {
		limit = 5
	}

	submissions, err := c.SubmissionService.RecentSubmissions(learnerID, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, submissions)
}

// @Summary 查询单条提交
// @Tags 提交
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "提交ID"
// @Success 200 {object} util.Response
// @Router /api/submissions/{id} [get]
func (c *SubmissionController) GetSubmission(ctx *gin.Context) {
	learnerID := middleware.GetUserID(ctx)

	submission, err := c.SubmissionService.GetSubmission(learnerID, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrSubmissionNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, submission)
}

func parseStatus(raw string) (model.SubmissionStatus, bool) {
	switch model.SubmissionStatus(raw) {
	case "", model.StatusPending, model.StatusGrading, model.StatusCompleted, model.StatusError:
		return model.SubmissionStatus(raw), true
	default:
		return "", false
	}
}
