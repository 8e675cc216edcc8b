package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"

	"github.com/ignatzorin/agent-marketplace/internal/http/handlers/common"
	"github.com/ignatzorin/agent-marketplace/internal/repository"
	"github.com/ignatzorin/agent-marketplace/internal/service"
	"github.com/ignatzorin/agent-marketplace/internal/validation"
)

// Для верификации принимаются изображения документов и PDF.
var allowedDocumentMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

// AgentHandler — HTTP слой профилей исполнителей.
type AgentHandler struct {
	agents *service.AgentService
}

// NewAgentHandler создаёт хэндлер.
func NewAgentHandler(agents *service.AgentService) *AgentHandler {
	return &AgentHandler{agents: agents}
}

// Register обрабатывает POST /agents.
func (h *AgentHandler) Register(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req service.RegisterAgentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateSkills(req.Skills); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	profile, err := h.agents.Register(c.Request.Context(), userID, req)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

// Update обрабатывает PUT /agents/me.
func (h *AgentHandler) Update(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req service.RegisterAgentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateSkills(req.Skills); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	profile, err := h.agents.UpdateProfile(c.Request.Context(), userID, req)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Get обрабатывает GET /agents/:id.
func (h *AgentHandler) Get(c *gin.Context) {
	agentID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	profile, err := h.agents.GetProfile(c.Request.Context(), agentID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Search обрабатывает GET /agents.
func (h *AgentHandler) Search(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	params := repository.AgentSearchParams{
		Skill:             c.Query("skill"),
		VerificationLevel: c.Query("verification_level"),
		MinRating:         common.ParseFloatQuery(c, "min_rating"),
		SortBy:            c.Query("sort_by"),
		SortDesc:          c.Query("sort_order") == "desc",
		Limit:             limit,
		Offset:            offset,
	}
	if v := c.Query("min_jobs_completed"); v != "" {
		minJobs := common.ParseIntQuery(c, "min_jobs_completed", 0)
		params.MinJobsCompleted = &minJobs
	}

	profiles, err := h.agents.Search(c.Request.Context(), params)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, profiles)
}

// Rate обрабатывает POST /jobs/:id/rating.
func (h *AgentHandler) Rate(c *gin.Context) {
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

	var req struct {
		Rating int    `json:"rating" binding:"required"`
		Review string `json:"review"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateLength("отзыв", req.Review, 0, validation.MaxReviewLength); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	rating, err := h.agents.RateAgent(c.Request.Context(), jobID, userID, req.Rating, req.Review)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rating)
}

// ListRatings обрабатывает GET /agents/:id/ratings.
func (h *AgentHandler) ListRatings(c *gin.Context) {
	agentID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	ratings, err := h.agents.ListRatings(c.Request.Context(), agentID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ratings)
}

// UploadVerificationDocument обрабатывает POST /agents/me/verification.
func (h *AgentHandler) UploadVerificationDocument(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		common.RespondBadRequest(c, "поле file обязательно")
		return
	}
	if file.Size == 0 {
		common.RespondBadRequest(c, "файл не может быть пустым")
		return
	}

	src, err := file.Open()
	if err != nil {
		common.RespondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	defer src.Close()

	// Проверяем магические байты: расширению в имени файла не доверяем.
	buffer := make([]byte, 512)
	n, err := src.Read(buffer)
	if err != nil && err != io.EOF {
		common.RespondBadRequest(c, "не удалось прочитать файл")
		return
	}

	kind, err := filetype.Match(buffer[:n])
	if err != nil || kind == filetype.Unknown {
		common.RespondBadRequest(c, "не удалось определить тип файла")
		return
	}
	if !allowedDocumentMimeTypes[kind.MIME.Value] {
		common.RespondBadRequest(c, "допустимы только JPEG, PNG и PDF")
		return
	}

	if seeker, ok := src.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			common.RespondError(c, http.StatusInternalServerError, "не удалось сбросить позицию файла")
			return
		}
	}

	doc, err := h.agents.UploadVerificationDocument(c.Request.Context(), userID, file.Filename, kind.MIME.Value, src)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}
