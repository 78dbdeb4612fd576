package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// bearerToken extracts the token from an "Authorization: Bearer" header
func bearerToken(c *gin.Context) string {
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}
