package handlers

import (
	"net/http"

	"github.com/andresuchdata/stockrecon/internal/domain"
	"github.com/andresuchdata/stockrecon/internal/lifecycle"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type OrderHandler struct {
	lifecycle *lifecycle.Service
}

func NewOrderHandler(svc *lifecycle.Service) *OrderHandler {
	return &OrderHandler{lifecycle: svc}
}

type receiveRequest struct {
	Received map[string]int `json:"received"`
}

type discrepancyRequest struct {
	Missing map[string]int `json:"missing"`
	Damaged map[string]int `json:"damaged"`
}

type replacementRequest struct {
	SKU      string `json:"sku" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

// orderView is the order as the API renders it.
type orderView struct {
	*domain.PurchaseOrder
	StatusLabel string          `json:"status_label"`
	Total       decimal.Decimal `json:"total"`
}

func viewOf(order *domain.PurchaseOrder) *orderView {
	if order == nil {
		return nil
	}
	return &orderView{PurchaseOrder: order, StatusLabel: order.Status.Label(), Total: order.Total()}
}

// Create places a new purchase order
func (h *OrderHandler) Create(c *gin.Context) {
	var in lifecycle.CreateOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := h.lifecycle.Create(c.Request.Context(), in)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": viewOf(order)})
}

func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.lifecycle.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": viewOf(order)})
}

func (h *OrderHandler) Confirm(c *gin.Context) {
	order, err := h.lifecycle.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": viewOf(order)})
}

func (h *OrderHandler) Ship(c *gin.Context) {
	order, err := h.lifecycle.Ship(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": viewOf(order)})
}

// Receive books a delivery. An empty body means everything arrived.
func (h *OrderHandler) Receive(c *gin.Context) {
	var req receiveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	order, report, err := h.lifecycle.Receive(c.Request.Context(), c.Param("id"), req.Received)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": viewOf(order), "stock": report})
}

func (h *OrderHandler) RecordDiscrepancy(c *gin.Context) {
	var req discrepancyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := h.lifecycle.RecordDiscrepancy(c.Request.Context(), c.Param("id"), req.Missing, req.Damaged)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": viewOf(order)})
}

func (h *OrderHandler) ReceiveReplacement(c *gin.Context) {
	var req replacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sku and a positive quantity are required"})
		return
	}

	order, err := h.lifecycle.ReceiveReplacement(c.Request.Context(), c.Param("id"), req.SKU, req.Quantity)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": viewOf(order)})
}

// CompleteReconciliation closes the order. A failed platform push still
// returns the completed order next to the error.
func (h *OrderHandler) CompleteReconciliation(c *gin.Context) {
	order, report, err := h.lifecycle.CompleteReconciliation(c.Request.Context(), c.Param("id"))
	if err != nil && order == nil {
		errorResponse(c, err)
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(statusFor(err), gin.H{"data": viewOf(order), "sync": report, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": viewOf(order), "sync": report})
}
