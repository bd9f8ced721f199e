package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/andresuchdata/stockrecon/internal/domain"
	"github.com/andresuchdata/stockrecon/internal/service"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type PlanningHandler struct {
	planning *service.PlanningService
}

func NewPlanningHandler(svc *service.PlanningService) *PlanningHandler {
	return &PlanningHandler{planning: svc}
}

// ListSuggestions returns reorder suggestions; ?due=true keeps only
// products that need an order.
func (h *PlanningHandler) ListSuggestions(c *gin.Context) {
	dueOnly, _ := strconv.ParseBool(c.DefaultQuery("due", "false"))

	suggestions, err := h.planning.Suggestions(c.Request.Context(), dueOnly)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": suggestions, "count": len(suggestions)})
}

func (h *PlanningHandler) ExportSuggestions(c *gin.Context) {
	dueOnly, _ := strconv.ParseBool(c.DefaultQuery("due", "false"))

	var buf bytes.Buffer
	if err := h.planning.ExportSuggestions(c.Request.Context(), &buf, dueOnly); err != nil {
		errorResponse(c, err)
		return
	}

	filename := fmt.Sprintf("reorder-plan-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *PlanningHandler) GetSuggestion(c *gin.Context) {
	suggestion, err := h.planning.Suggestion(c.Request.Context(), c.Param("sku"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": suggestion})
}

func (h *PlanningHandler) UpdatePlanningParams(c *gin.Context) {
	var params domain.PlanningParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	product, err := h.planning.UpdatePlanningParams(c.Request.Context(), c.Param("sku"), params)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": product})
}
