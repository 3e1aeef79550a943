package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"collection-runner/internal/collection"
	"collection-runner/internal/config"
	"collection-runner/internal/models"
	"collection-runner/internal/postman"
	"collection-runner/internal/store"
	"collection-runner/internal/version"
)

type CollectionHandler struct {
	collections *collection.Service
	versions    *version.Manager
	cfg         *config.Config
}

func NewCollectionHandler(collections *collection.Service, versions *version.Manager, cfg *config.Config) *CollectionHandler {
	return &CollectionHandler{
		collections: collections,
		versions:    versions,
		cfg:         cfg,
	}
}

type CreateCollectionRequest struct {
	Name        string            `json:"name" binding:"required"`
	Description string            `json:"description"`
	OwnerID     string            `json:"owner_id"`
	Variables   map[string]string `json:"variables"`
}

type UpdateCollectionRequest struct {
	Name        *string            `json:"name,omitempty"`
	Description *string            `json:"description,omitempty"`
	Variables   *map[string]string `json:"variables,omitempty"`
	Tags        *[]string          `json:"tags,omitempty"`
}

// CreateCollection handles POST /collections
func (h *CollectionHandler) CreateCollection(c *gin.Context) {
	var req CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: "Name is required",
		})
		return
	}

	col, err := h.collections.Create(c.Request.Context(), req.Name, req.Description, req.OwnerID, req.Variables)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, col)
}

// ListCollections handles GET /collections
func (h *CollectionHandler) ListCollections(c *gin.Context) {
	page := pageFromQuery(c)
	collections, err := h.collections.List(c.Request.Context(), c.Query("owner_id"), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": collections})
}

// GetCollection handles GET /collections/:id
func (h *CollectionHandler) GetCollection(c *gin.Context) {
	col, err := h.collections.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, col)
}

// GetCollectionTree handles GET /collections/:id/tree
func (h *CollectionHandler) GetCollectionTree(c *gin.Context) {
	tree, err := h.collections.Tree(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tree)
}

// UpdateCollection handles PUT /collections/:id
func (h *CollectionHandler) UpdateCollection(c *gin.Context) {
	var req UpdateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_json",
			Message: "Invalid JSON format",
		})
		return
	}

	col, err := h.collections.Update(c.Request.Context(), c.Param("id"), req.Name, req.Description, req.Variables, req.Tags)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, col)
}

// DeleteCollection handles DELETE /collections/:id
func (h *CollectionHandler) DeleteCollection(c *gin.Context) {
	if err := h.collections.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Collection deleted successfully"})
}

// UploadCollection handles POST /collections/upload
func (h *CollectionHandler) UploadCollection(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.cfg.MaxRequestSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "read_error",
			Message: "Failed to read request body",
		})
		return
	}

	col, err := postman.Import(body, h.cfg.MaxHeaderCount)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	if err := h.collections.Import(c.Request.Context(), col); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"collection_id": col.ID,
		"message":       "Collection imported successfully",
	})
}

// ExportCollection handles GET /collections/:id/export
func (h *CollectionHandler) ExportCollection(c *gin.Context) {
	col, err := h.collections.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	doc, err := postman.Export(col)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func pageFromQuery(c *gin.Context) store.Page {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return store.Page{Limit: limit, Offset: offset}
}
