package handlers

import (
	"net/http"

	"github.com/codesnap/codesnap/models"
	"github.com/gin-gonic/gin"
)

// MetaHandler serves the static catalogues the front end builds its forms from
type MetaHandler struct{}

// NewMetaHandler creates a new metadata handler
func NewMetaHandler() *MetaHandler {
	return &MetaHandler{}
}

// Languages handles GET /api/languages
func (h *MetaHandler) Languages(c *gin.Context) {
	c.JSON(http.StatusOK, models.SupportedLanguages)
}

// ExpirationOptions handles GET /api/expiration-options
func (h *MetaHandler) ExpirationOptions(c *gin.Context) {
	c.JSON(http.StatusOK, models.ExpirationOptions)
}
