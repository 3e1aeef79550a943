package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"collection-runner/internal/collection"
	"collection-runner/internal/models"
)

type ItemHandler struct {
	collections *collection.Service
}

func NewItemHandler(collections *collection.Service) *ItemHandler {
	return &ItemHandler{collections: collections}
}

type CreateItemRequest struct {
	Name             string              `json:"name" binding:"required"`
	ItemType         string              `json:"item_type" binding:"required"`
	ParentID         string              `json:"parent_id"`
	Description      string              `json:"description"`
	PreRequestScript string              `json:"pre_request_script"`
	TestScript       string              `json:"test_script"`
	Request          *models.RequestSpec `json:"request,omitempty"`
}

type UpdateItemRequest struct {
	Name             *string             `json:"name,omitempty"`
	Description      *string             `json:"description,omitempty"`
	PreRequestScript *string             `json:"pre_request_script,omitempty"`
	TestScript       *string             `json:"test_script,omitempty"`
	Request          *models.RequestSpec `json:"request,omitempty"`
}

type MoveItemRequest struct {
	ParentID string `json:"parent_id"`
	Position int    `json:"position"`
}

// CreateItem handles POST /collections/:id/items
func (h *ItemHandler) CreateItem(c *gin.Context) {
	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Name and item_type are required",
		})
		return
	}

	item, err := h.collections.CreateItem(c.Request.Context(), c.Param("id"), collection.CreateItemParams{
		ParentID:         req.ParentID,
		Name:             req.Name,
		Description:      req.Description,
		Type:             req.ItemType,
		PreRequestScript: req.PreRequestScript,
		TestScript:       req.TestScript,
		Request:          req.Request,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// GetItem handles GET /collections/:id/items/:itemId
func (h *ItemHandler) GetItem(c *gin.Context) {
	item, err := h.collections.GetItem(c.Request.Context(), c.Param("id"), c.Param("itemId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// UpdateItem handles PUT /collections/:id/items/:itemId
func (h *ItemHandler) UpdateItem(c *gin.Context) {
	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_json",
			Message: "Invalid JSON format",
		})
		return
	}

	item, err := h.collections.UpdateItem(c.Request.Context(), c.Param("id"), c.Param("itemId"), collection.UpdateItemParams{
		Name:             req.Name,
		Description:      req.Description,
		PreRequestScript: req.PreRequestScript,
		TestScript:       req.TestScript,
		Request:          req.Request,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// MoveItem handles PATCH /collections/:id/items/:itemId/move
func (h *ItemHandler) MoveItem(c *gin.Context) {
	var req MoveItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_json",
			Message: "Invalid JSON format",
		})
		return
	}

	item, err := h.collections.MoveItem(c.Request.Context(), c.Param("id"), c.Param("itemId"), req.ParentID, req.Position)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteItem handles DELETE /collections/:id/items/:itemId
func (h *ItemHandler) DeleteItem(c *gin.Context) {
	if err := h.collections.DeleteItem(c.Request.Context(), c.Param("id"), c.Param("itemId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item deleted successfully"})
}
