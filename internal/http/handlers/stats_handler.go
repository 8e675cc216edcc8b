package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/agent-marketplace/internal/http/handlers/common"
	"github.com/ignatzorin/agent-marketplace/internal/service"
)

// StatsHandler отдаёт агрегированную статистику маркетплейса.
type StatsHandler struct {
	jobs *service.JobService
}

// NewStatsHandler создаёт хэндлер.
func NewStatsHandler(jobs *service.JobService) *StatsHandler {
	return &StatsHandler{jobs: jobs}
}

// Get обрабатывает GET /stats.
func (h *StatsHandler) Get(c *gin.Context) {
	stats, err := h.jobs.GetStats(c.Request.Context())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
