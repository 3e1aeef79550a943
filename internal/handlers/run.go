package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"collection-runner/internal/models"
	"collection-runner/internal/runner"
)

type RunHandler struct {
	runs *runner.Service
}

func NewRunHandler(runs *runner.Service) *RunHandler {
	return &RunHandler{runs: runs}
}

type StartRunRequest struct {
	EnvironmentID string `json:"environment_id"`
	DelayMs       int    `json:"delay_ms"`
}

type ExecuteItemRequest struct {
	EnvironmentID string `json:"environment_id"`
}

// StartRun handles POST /collections/:id/run
func (h *RunHandler) StartRun(c *gin.Context) {
	var req StartRunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid_json",
				Message: "Invalid JSON format",
			})
			return
		}
	}

	run, err := h.runs.StartRun(c.Request.Context(), c.Param("id"), req.EnvironmentID, runner.Options{
		Delay: time.Duration(req.DelayMs) * time.Millisecond,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, run)
}

// GetRun handles GET /runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	run, err := h.runs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// CancelRun handles POST /runs/:id/cancel
func (h *RunHandler) CancelRun(c *gin.Context) {
	if err := h.runs.CancelRun(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cancellation requested"})
}

// ListRuns handles GET /collections/:id/runs
func (h *RunHandler) ListRuns(c *gin.Context) {
	runs, err := h.runs.ListRuns(c.Request.Context(), c.Param("id"), pageFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// ExecuteItem handles POST /collections/:id/items/:itemId/execute
func (h *RunHandler) ExecuteItem(c *gin.Context) {
	var req ExecuteItemRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid_json",
				Message: "Invalid JSON format",
			})
			return
		}
	}

	result, err := h.runs.ExecuteSingle(c.Request.Context(), c.Param("id"), c.Param("itemId"), req.EnvironmentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
