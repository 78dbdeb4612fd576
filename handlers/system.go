package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports backend reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler handles system endpoints
type SystemHandler struct {
	store       Pinger
	storageType string
	version     string
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(store Pinger, storageType, version string) *SystemHandler {
	return &SystemHandler{store: store, storageType: storageType, version: version}
}

// Health handles health check via GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	status := http.StatusOK
	state := "ok"

	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			state = "unavailable"
		}
	}

	c.JSON(status, gin.H{
		"status":  state,
		"service": "codesnap",
		"storage": h.storageType,
		"version": h.version,
	})
}
