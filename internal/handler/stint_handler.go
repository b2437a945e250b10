package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stint/backend/internal/events"
	"stint/backend/internal/middleware"
	"stint/backend/internal/service"
)

type StintHandler struct {
	stintService *service.StintService
	bus          *events.Bus
}

type startRequest struct {
	ProjectID       string `json:"projectId"`
	DurationMinutes *int   `json:"durationMinutes"`
	BaseVersion     int    `json:"baseVersion"`
}

type notesRequest struct {
	Notes *string `json:"notes"`
}

type syncRequest struct {
	RemainingSeconds int `json:"remainingSeconds"`
}

func NewStintHandler(stintService *service.StintService, bus *events.Bus) *StintHandler {
	return &StintHandler{stintService: stintService, bus: bus}
}

func (h *StintHandler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	if req.ProjectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_project_id", "message": "projectId is required"},
		})
		return
	}

	userID := middleware.UserID(c)
	stint, apiErr := h.stintService.Start(c.Request.Context(), userID, service.StartInput{
		ProjectID:       req.ProjectID,
		DurationMinutes: req.DurationMinutes,
		BaseVersion:     req.BaseVersion,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"stint": stint})
}

func (h *StintHandler) Pause(c *gin.Context) {
	userID := middleware.UserID(c)
	stint, apiErr := h.stintService.Pause(c.Request.Context(), userID, c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stint": stint})
}

func (h *StintHandler) Resume(c *gin.Context) {
	userID := middleware.UserID(c)
	stint, apiErr := h.stintService.Resume(c.Request.Context(), userID, c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stint": stint})
}

func (h *StintHandler) Complete(c *gin.Context) {
	req, ok := bindNotes(c)
	if !ok {
		return
	}

	userID := middleware.UserID(c)
	stint, apiErr := h.stintService.Complete(c.Request.Context(), userID, c.Param("id"), req.Notes)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stint": stint})
}

func (h *StintHandler) Interrupt(c *gin.Context) {
	req, ok := bindNotes(c)
	if !ok {
		return
	}

	userID := middleware.UserID(c)
	stint, apiErr := h.stintService.Interrupt(c.Request.Context(), userID, c.Param("id"), req.Notes)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stint": stint})
}

func (h *StintHandler) Sync(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}

	userID := middleware.UserID(c)
	result, apiErr := h.stintService.Sync(c.Request.Context(), userID, c.Param("id"), req.RemainingSeconds)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sync": result})
}

func (h *StintHandler) Current(c *gin.Context) {
	userID := middleware.UserID(c)
	stint, version, apiErr := h.stintService.Current(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	if stint == nil {
		c.JSON(http.StatusOK, gin.H{"stint": nil, "version": version})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stint": stint, "version": version})
}

func (h *StintHandler) History(c *gin.Context) {
	userID := middleware.UserID(c)

	limit := 50
	rawLimit := c.Query("limit")
	if rawLimit != "" {
		if parsed, err := strconv.Atoi(rawLimit); err == nil {
			limit = parsed
		}
	}

	stints, apiErr := h.stintService.History(c.Request.Context(), userID, limit)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stints": stints})
}

// Events streams the user's stint transitions as server-sent events so other
// open sessions can reconcile their caches without polling.
func (h *StintHandler) Events(c *gin.Context) {
	userID := middleware.UserID(c)
	ch, cancel := h.bus.Subscribe(userID)
	defer cancel()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("transition", event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// bindNotes tolerates an empty body; notes are optional at completion.
func bindNotes(c *gin.Context) (notesRequest, bool) {
	var req notesRequest
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return req, false
	}
	return req, true
}
