package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"collection-runner/internal/models"
	"collection-runner/internal/store"
)

type EnvironmentHandler struct {
	environments store.EnvironmentStore
}

func NewEnvironmentHandler(environments store.EnvironmentStore) *EnvironmentHandler {
	return &EnvironmentHandler{environments: environments}
}

type CreateEnvironmentRequest struct {
	Name        string            `json:"name" binding:"required"`
	Description string            `json:"description"`
	CreatedBy   string            `json:"created_by"`
	Variables   []models.Variable `json:"variables"`
}

type UpdateEnvironmentRequest struct {
	Name        *string            `json:"name,omitempty"`
	Description *string            `json:"description,omitempty"`
	Variables   *[]models.Variable `json:"variables,omitempty"`
}

type BatchUpdateVariablesRequest struct {
	Variables map[string]string `json:"variables" binding:"required"`
}

// CreateEnvironment handles POST /environments
func (h *EnvironmentHandler) CreateEnvironment(c *gin.Context) {
	var req CreateEnvironmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: "Name is required",
		})
		return
	}

	if req.Variables == nil {
		req.Variables = []models.Variable{}
	}

	now := time.Now().UTC()
	env := &models.Environment{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
		Variables:   req.Variables,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.environments.Create(c.Request.Context(), env); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, env)
}

// ListEnvironments handles GET /environments
func (h *EnvironmentHandler) ListEnvironments(c *gin.Context) {
	environments, err := h.environments.List(c.Request.Context(), pageFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"environments": environments})
}

// GetEnvironment handles GET /environments/:id
func (h *EnvironmentHandler) GetEnvironment(c *gin.Context) {
	env, err := h.environments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

// UpdateEnvironment handles PUT /environments/:id
func (h *EnvironmentHandler) UpdateEnvironment(c *gin.Context) {
	var req UpdateEnvironmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_json",
			Message: "Invalid JSON format",
		})
		return
	}

	env, err := h.environments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if req.Name != nil {
		env.Name = *req.Name
	}
	if req.Description != nil {
		env.Description = *req.Description
	}
	if req.Variables != nil {
		env.Variables = *req.Variables
	}
	env.UpdatedAt = time.Now().UTC()

	if err := h.environments.Update(c.Request.Context(), env); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

// BatchUpdateEnvironmentVariables handles PATCH /environments/:id/variables
func (h *EnvironmentHandler) BatchUpdateEnvironmentVariables(c *gin.Context) {
	var req BatchUpdateVariablesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: "Variables are required",
		})
		return
	}

	env, err := h.environments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	// Merge: update existing keys in place, append new ones enabled.
	for key, value := range req.Variables {
		found := false
		for i := range env.Variables {
			if env.Variables[i].Key == key {
				env.Variables[i].Value = value
				found = true
				break
			}
		}
		if !found {
			env.Variables = append(env.Variables, models.Variable{Key: key, Value: value, Enabled: true})
		}
	}
	env.UpdatedAt = time.Now().UTC()

	if err := h.environments.Update(c.Request.Context(), env); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "Variables updated successfully",
		"variables": env.Variables,
	})
}

// DeleteEnvironment handles DELETE /environments/:id
func (h *EnvironmentHandler) DeleteEnvironment(c *gin.Context) {
	if err := h.environments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Environment deleted successfully"})
}
