package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"collection-runner/internal/collection"
	"collection-runner/internal/version"
)

type VersionHandler struct {
	versions    *version.Manager
	collections *collection.Service
}

func NewVersionHandler(versions *version.Manager, collections *collection.Service) *VersionHandler {
	return &VersionHandler{versions: versions, collections: collections}
}

// ListVersions handles GET /collections/:id/versions
func (h *VersionHandler) ListVersions(c *gin.Context) {
	versions, err := h.versions.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

// RestoreVersion handles POST /collections/:id/versions/:versionId/restore
func (h *VersionHandler) RestoreVersion(c *gin.Context) {
	restored, err := h.collections.Restore(c.Request.Context(), c.Param("id"), c.Param("versionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, restored)
}

// DiffVersions handles GET /collections/:id/versions/diff?from=&to=
func (h *VersionHandler) DiffVersions(c *gin.Context) {
	collectionID := c.Param("id")
	from, err := h.versions.Get(c.Request.Context(), collectionID, c.Query("from"))
	if err != nil {
		respondError(c, err)
		return
	}
	to, err := h.versions.Get(c.Request.Context(), collectionID, c.Query("to"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"changes": version.Diff(&from.Snapshot, &to.Snapshot),
	})
}
