package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/codesnap/codesnap/internal/auth"
	"github.com/codesnap/codesnap/internal/services"
	"github.com/codesnap/codesnap/models"
	"github.com/codesnap/codesnap/utils"
	"github.com/gin-gonic/gin"
)

// PasteHandler handles paste-related operations
type PasteHandler struct {
	service *services.PasteService
	logger  *slog.Logger
}

// NewPasteHandler creates a new paste handler
func NewPasteHandler(service *services.PasteService, logger *slog.Logger) *PasteHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PasteHandler{service: service, logger: logger}
}

// adminRequest is the body accepted by update and delete
type adminRequest struct {
	Content       *string `json:"content"`
	AdminPassword string  `json:"adminPassword"`
}

// Create handles paste creation via POST /api/pastes
func (h *PasteHandler) Create(c *gin.Context) {
	var req services.CreatePasteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	resp, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Get handles paste retrieval via GET /api/pastes/:pasteId
func (h *PasteHandler) Get(c *gin.Context) {
	paste, err := h.service.Get(c.Request.Context(), c.Param("pasteId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, paste)
}

// List handles recent paste listing via GET /api/pastes?limit=N
func (h *PasteHandler) List(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"), 0)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, h.service.ListRecent(c.Request.Context(), limit))
}

// Related handles GET /api/pastes/:pasteId/related?limit=N
func (h *PasteHandler) Related(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"), services.MaxRelatedLimit)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	pastes, err := h.service.ListRelated(c.Request.Context(), c.Param("pasteId"), limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, pastes)
}

// Download serves the raw content as an attachment via GET /api/pastes/:pasteId/download
func (h *PasteHandler) Download(c *gin.Context) {
	paste, err := h.service.Download(c.Request.Context(), c.Param("pasteId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	fileName := downloadFileName(paste)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, fileName))
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, utils.DownloadContentType(paste.FileType, fileName), []byte(paste.Content))
}

// Update handles admin content replacement via PUT /api/pastes/:pasteId
func (h *PasteHandler) Update(c *gin.Context) {
	var req adminRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.bindError(c, err)
		return
	}

	paste, err := h.service.Update(c.Request.Context(), c.Param("pasteId"), services.UpdatePasteRequest{
		Content:     req.Content,
		Credentials: credentials(c, req.AdminPassword),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, paste)
}

// Delete handles admin deletion via DELETE /api/pastes/:pasteId
func (h *PasteHandler) Delete(c *gin.Context) {
	var req adminRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.bindError(c, err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("pasteId"), credentials(c, req.AdminPassword)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Paste deleted successfully"})
}

func (h *PasteHandler) bindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(c, http.StatusRequestEntityTooLarge, "File is too large. Please upload a smaller file.")
		return
	}
	h.logger.Debug("Rejected request body", "path", c.FullPath(), "error", err)
	respondError(c, http.StatusBadRequest, "Invalid paste data")
}

// bindOptionalJSON decodes a JSON body when one is present. DELETE callers
// authenticating with a bearer token may send none.
func bindOptionalJSON(c *gin.Context, dst interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// credentials collects the bearer token and the body password
func credentials(c *gin.Context, password string) auth.Credentials {
	return auth.Credentials{Token: bearerToken(c), Password: password}
}

// parseLimit validates an optional non-negative limit; max 0 means uncapped
func parseLimit(raw string, max int) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer")
	}
	if max > 0 && n > max {
		return 0, fmt.Errorf("limit must not exceed %d", max)
	}
	return n, nil
}

func downloadFileName(paste *models.Paste) string {
	if paste.IsFile && paste.FileName != "" {
		return paste.FileName
	}
	return paste.PasteID + "." + models.FileExtension(paste.Language)
}

// respondServiceError maps service error kinds to HTTP statuses
func respondServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
	}
	respondError(c, status, services.PublicMessage(err))
}

// Helper: respondError sends a JSON error response
func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}
