package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stint/backend/internal/middleware"
	"stint/backend/internal/service"
)

type ProjectHandler struct {
	projectService *service.ProjectService
}

type createProjectRequest struct {
	Name            string `json:"name"`
	DurationMinutes *int   `json:"durationMinutes"`
}

func NewProjectHandler(projectService *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

func (h *ProjectHandler) Create(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}

	userID := middleware.UserID(c)
	project, apiErr := h.projectService.Create(c.Request.Context(), userID, service.CreateProjectInput{
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": project})
}

func (h *ProjectHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)
	projects, apiErr := h.projectService.List(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (h *ProjectHandler) Archive(c *gin.Context) {
	userID := middleware.UserID(c)
	if apiErr := h.projectService.Archive(c.Request.Context(), userID, c.Param("id")); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": true})
}
