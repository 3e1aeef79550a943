package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"collection-runner/internal/collection"
	"collection-runner/internal/models"
	"collection-runner/internal/share"
)

type ShareHandler struct {
	shares      *share.Manager
	collections *collection.Service
}

func NewShareHandler(shares *share.Manager, collections *collection.Service) *ShareHandler {
	return &ShareHandler{shares: shares, collections: collections}
}

type createShareRequest struct {
	Permissions []string   `json:"permissions"`
	ExpiresAt   *time.Time `json:"expires_at"`
	MaxAccess   int        `json:"max_access"`
}

// CreateShare handles POST /collections/:id/shares
func (h *ShareHandler) CreateShare(c *gin.Context) {
	collectionID := c.Param("id")
	if _, err := h.collections.Get(c.Request.Context(), collectionID); err != nil {
		respondError(c, err)
		return
	}

	var req createShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Request body must be valid JSON",
		})
		return
	}
	if req.MaxAccess < 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "max_access cannot be negative",
		})
		return
	}

	s, err := h.shares.Issue(c.Request.Context(), collectionID, req.Permissions, share.Options{
		ExpiresAt: req.ExpiresAt,
		MaxAccess: req.MaxAccess,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

// RevokeShare handles DELETE /shares/:token
func (h *ShareHandler) RevokeShare(c *gin.Context) {
	if err := h.shares.Revoke(c.Request.Context(), c.Param("token")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ResolveShare handles GET /shared/:token
//
// A successful resolution consumes one access unit of the share before the
// collection is returned.
func (h *ShareHandler) ResolveShare(c *gin.Context) {
	s, err := h.shares.Validate(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}

	col, err := h.collections.Get(c.Request.Context(), s.CollectionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"permissions": s.Permissions,
		"collection":  col,
	})
}
