package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/agent-marketplace/internal/http/handlers/common"
	"github.com/ignatzorin/agent-marketplace/internal/service"
)

// BidHandler — HTTP слой ставок.
type BidHandler struct {
	bids *service.BidService
	jobs *service.JobService
}

// NewBidHandler создаёт хэндлер.
func NewBidHandler(bids *service.BidService, jobs *service.JobService) *BidHandler {
	return &BidHandler{bids: bids, jobs: jobs}
}

// Place обрабатывает POST /jobs/:id/bids.
func (h *BidHandler) Place(c *gin.Context) {
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

	var req service.PlaceBidInput
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	bid, err := h.bids.PlaceBid(c.Request.Context(), jobID, userID, req)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bid)
}

// Withdraw обрабатывает DELETE /jobs/:id/bids.
func (h *BidHandler) Withdraw(c *gin.Context) {
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

	if err := h.bids.WithdrawBid(c.Request.Context(), jobID, userID); err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, http.StatusOK, "ставка отозвана", nil)
}

// List обрабатывает GET /jobs/:id/bids.
func (h *BidHandler) List(c *gin.Context) {
	jobID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	bids, err := h.bids.ListBids(c.Request.Context(), jobID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, bids)
}

// Accept обрабатывает POST /jobs/:id/bids/:bidID/accept.
func (h *BidHandler) Accept(c *gin.Context) {
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
	bidID, err := common.ParseIDParam(c, "bidID")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.jobs.AcceptBid(c.Request.Context(), jobID, userID, bidID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"escrow": escrow})
}
