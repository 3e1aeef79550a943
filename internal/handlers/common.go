package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"collection-runner/internal/collection"
	"collection-runner/internal/models"
	"collection-runner/internal/runner"
	"collection-runner/internal/store"
)

// HealthCheck handles GET /health.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError maps service errors onto the JSON error envelope: missing
// records become 404, invariant violations 400, everything else 500.
func respondError(c *gin.Context, err error) {
	var invalid *collection.ErrInvalid
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "Requested record not found",
		})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: invalid.Reason,
		})
	case errors.Is(err, runner.ErrNotExecutable):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_item_type",
			Message: err.Error(),
		})
	case errors.Is(err, runner.ErrRunFinished):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "run_finished",
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
	}
}
