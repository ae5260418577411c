package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/archaur/archaur/internal/repository"
)

// MetaHandler serves the fixed enumerations: repositories and
// architectures.
type MetaHandler struct {
	arches *repository.ArchitectureRepository
}

func NewMetaHandler(arches *repository.ArchitectureRepository) *MetaHandler {
	return &MetaHandler{arches: arches}
}

func (h *MetaHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/architectures", h.ListArchitectures)
	rg.GET("/repositories", h.ListRepositories)
}

func (h *MetaHandler) ListArchitectures(c *gin.Context) {
	arches, err := h.arches.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list architectures"})
		return
	}
	c.JSON(http.StatusOK, arches)
}

func (h *MetaHandler) ListRepositories(c *gin.Context) {
	repos, err := h.arches.ListRepositories(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list repositories"})
		return
	}
	c.JSON(http.StatusOK, repos)
}
