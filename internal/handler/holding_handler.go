package handler

import (
	"inkwell-go/internal/service"

	"github.com/gin-gonic/gin"
)

// HoldingHandler 负责用户持仓。
type HoldingHandler struct {
	holdingService service.HoldingService
}

func NewHoldingHandler(holdingService service.HoldingService) *HoldingHandler {
	return &HoldingHandler{holdingService: holdingService}
}

// HoldingRequest 同时用于创建和修改；创建时 symbol、quantity、averageCost 必填。
type HoldingRequest struct {
	Symbol      *string  `json:"symbol"`
	Quantity    *float64 `json:"quantity"`
	AverageCost *float64 `json:"averageCost"`
	Currency    *string  `json:"currency"`
	Note        *string  `json:"note"`
}

func (r HoldingRequest) input() service.HoldingInput {
	return service.HoldingInput{
		Symbol:      r.Symbol,
		Quantity:    r.Quantity,
		AverageCost: r.AverageCost,
		Currency:    r.Currency,
		Note:        r.Note,
	}
}

func (h *HoldingHandler) Create(c *gin.Context) {
	var req HoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "CreateHolding", err)
		return
	}
	holding, err := h.holdingService.Create(c.Request.Context(), currentUser(c).ID, req.input())
	if err != nil {
		fail(c, "CreateHolding", err)
		return
	}
	created(c, holding)
}

func (h *HoldingHandler) List(c *gin.Context) {
	holdings, err := h.holdingService.List(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		fail(c, "ListHoldings", err)
		return
	}
	ok(c, holdings)
}

func (h *HoldingHandler) Update(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	var req HoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "UpdateHolding", err)
		return
	}
	holding, err := h.holdingService.Update(c.Request.Context(), currentUser(c).ID, id, req.input())
	if err != nil {
		fail(c, "UpdateHolding", err)
		return
	}
	ok(c, holding)
}

func (h *HoldingHandler) Delete(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	if err := h.holdingService.Delete(c.Request.Context(), currentUser(c).ID, id); err != nil {
		fail(c, "DeleteHolding", err)
		return
	}
	ok(c, nil)
}

func (h *HoldingHandler) Summary(c *gin.Context) {
	summary, err := h.holdingService.Summary(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		fail(c, "HoldingSummary", err)
		return
	}
	ok(c, summary)
}
