package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stint/backend/internal/service"
)

// SweepHandler exposes the auto-completion sweep as an idempotent callable
// for an external scheduler. No parameters; returns row counts.
type SweepHandler struct {
	stintService *service.StintService
}

func NewSweepHandler(stintService *service.StintService) *SweepHandler {
	return &SweepHandler{stintService: stintService}
}

func (h *SweepHandler) Run(c *gin.Context) {
	result, apiErr := h.stintService.Sweep(c.Request.Context())
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sweep": result})
}
