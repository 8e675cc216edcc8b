package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/agent-marketplace/internal/dto"
	"github.com/ignatzorin/agent-marketplace/internal/http/handlers/common"
	"github.com/ignatzorin/agent-marketplace/internal/repository"
	"github.com/ignatzorin/agent-marketplace/internal/service"
)

// JobHandler — HTTP слой жизненного цикла задания.
type JobHandler struct {
	jobs    *service.JobService
	escrows *service.EscrowService
}

// NewJobHandler создаёт хэндлер.
func NewJobHandler(jobs *service.JobService, escrows *service.EscrowService) *JobHandler {
	return &JobHandler{jobs: jobs, escrows: escrows}
}

// Create обрабатывает POST /jobs.
func (h *JobHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req service.PostJobInput
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	job, err := h.jobs.PostJob(c.Request.Context(), userID, req)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

// Get обрабатывает GET /jobs/:id.
func (h *JobHandler) Get(c *gin.Context) {
	jobID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	job, err := h.jobs.GetJob(c.Request.Context(), jobID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// List обрабатывает GET /jobs.
func (h *JobHandler) List(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	params := repository.JobListParams{
		Status:     c.Query("status"),
		Category:   c.Query("category"),
		Tag:        c.Query("tag"),
		MinPayment: common.ParseFloatQuery(c, "min_payment"),
		MaxPayment: common.ParseFloatQuery(c, "max_payment"),
		Search:     c.Query("search"),
		SortBy:     c.Query("sort_by"),
		SortDesc:   c.Query("sort_order") == "desc",
		Limit:      limit,
		Offset:     offset,
	}

	jobs, total, err := h.jobs.ListJobs(c.Request.Context(), params)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PageResponse{Items: jobs, Total: total, Limit: limit, Offset: offset})
}

// ListMine обрабатывает GET /jobs/my.
func (h *JobHandler) ListMine(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	jobs, err := h.jobs.ListMyJobs(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// Cancel обрабатывает POST /jobs/:id/cancel.
func (h *JobHandler) Cancel(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	jobID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.jobs.CancelJob(c.Request.Context(), jobID, userID); err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, http.StatusOK, "задание отменено", nil)
}

// Complete обрабатывает POST /jobs/:id/complete.
func (h *JobHandler) Complete(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	jobID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.jobs.CompleteJob(c.Request.Context(), jobID, userID); err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, http.StatusOK, "задание завершено", nil)
}

// SubmitMilestone обрабатывает POST /jobs/:id/milestones/:milestoneID/submit.
func (h *JobHandler) SubmitMilestone(c *gin.Context) {
	h.milestoneAction(c, h.jobs.SubmitMilestone, "этап сдан на приёмку")
}

// ApproveMilestone обрабатывает POST /jobs/:id/milestones/:milestoneID/approve.
func (h *JobHandler) ApproveMilestone(c *gin.Context) {
	h.milestoneAction(c, h.jobs.ApproveMilestone, "этап принят")
}

// RequestRevision обрабатывает POST /jobs/:id/milestones/:milestoneID/revision.
func (h *JobHandler) RequestRevision(c *gin.Context) {
	h.milestoneAction(c, h.jobs.RequestRevision, "этап возвращён на доработку")
}

// ResubmitMilestone обрабатывает POST /jobs/:id/milestones/:milestoneID/resubmit.
func (h *JobHandler) ResubmitMilestone(c *gin.Context) {
	h.milestoneAction(c, h.jobs.ResubmitMilestone, "работа над этапом возобновлена")
}

// GetEscrow обрабатывает GET /jobs/:id/escrow.
func (h *JobHandler) GetEscrow(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	jobID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.escrows.GetByJobID(c.Request.Context(), jobID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

// milestoneActionFn — общая сигнатура операций над этапом.
type milestoneActionFn func(ctx context.Context, jobID int64, userID uuid.UUID, milestoneID int64) error

func (h *JobHandler) milestoneAction(c *gin.Context, action milestoneActionFn, okMessage string) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	jobID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	milestoneID, err := common.ParseIDParam(c, "milestoneID")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := action(c.Request.Context(), jobID, userID, milestoneID); err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, http.StatusOK, okMessage, nil)
}
