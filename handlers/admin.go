package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/codesnap/codesnap/internal/auth"
	"github.com/codesnap/codesnap/internal/metrics"
	"github.com/gin-gonic/gin"
)

// AdminHandler handles admin session endpoints
type AdminHandler struct {
	auth    *auth.Authenticator
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(authenticator *auth.Authenticator, m *metrics.Metrics, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{auth: authenticator, metrics: m, logger: logger}
}

type verifyRequest struct {
	Password string `json:"password"`
}

// Verify checks the admin password via POST /api/admin/verify and, on
// success, returns a short-lived capability token
func (h *AdminHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ok := h.auth.Verify(req.Password)
	h.metrics.AdminAttempt(ok)
	if !ok {
		h.logger.Warn("Admin verification failed", "client_ip", c.ClientIP())
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Authentication failed"})
		return
	}

	token, expiresAt, err := h.auth.IssueToken(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to issue admin token", "error", err)
		respondError(c, http.StatusInternalServerError, "Authentication error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Authentication successful",
		"token":     token,
		"expiresAt": expiresAt,
	})
}

// Logout revokes the presented bearer token via POST /api/admin/logout
func (h *AdminHandler) Logout(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		respondError(c, http.StatusUnauthorized, "Missing bearer token")
		return
	}

	if err := h.auth.RevokeToken(c.Request.Context(), token); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrRevokedToken) {
			respondError(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		h.logger.Error("Failed to revoke admin token", "error", err)
		respondError(c, http.StatusInternalServerError, "Logout failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
