package services

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/codesnap/codesnap/config"
	"github.com/codesnap/codesnap/internal/auth"
	"github.com/codesnap/codesnap/internal/metrics"
	"github.com/codesnap/codesnap/models"
	"github.com/codesnap/codesnap/storage"
	"github.com/codesnap/codesnap/utils"
)

// maxIDAttempts bounds public id generation when the store reports a collision
const maxIDAttempts = 3

// maxExpirationMinutes is the largest offset a time.Duration can hold
const maxExpirationMinutes = math.MaxInt64 / int64(time.Minute)

// MaxRelatedLimit caps the related list size a client may ask for
const MaxRelatedLimit = 20

// AdminGate decides whether presented credentials allow an admin action
type AdminGate interface {
	Authorize(ctx context.Context, creds auth.Credentials) bool
}

// PasteService handles paste business logic
type PasteService struct {
	store        storage.PasteStore
	gate         AdminGate
	logger       *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
	newID        func() (string, error)
	relatedLimit int
}

// Option configures a PasteService
type Option func(*PasteService)

// WithClock overrides the time source used for expiry
func WithClock(now func() time.Time) Option {
	return func(s *PasteService) { s.now = now }
}

// WithIDGenerator overrides public id generation
func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *PasteService) { s.newID = gen }
}

// WithMetrics records service events on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *PasteService) { s.metrics = m }
}

// NewPasteService creates a new paste service
func NewPasteService(store storage.PasteStore, gate AdminGate, cfg *config.Config, logger *slog.Logger, opts ...Option) *PasteService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PasteService{
		store:        store,
		gate:         gate,
		logger:       logger,
		now:          time.Now,
		newID:        utils.NewPasteID,
		relatedLimit: 3,
	}
	if cfg != nil && cfg.RelatedLimit > 0 {
		s.relatedLimit = cfg.RelatedLimit
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePasteRequest represents a request to create a paste
type CreatePasteRequest struct {
	Title             string   `json:"title"`
	Content           *string  `json:"content"`
	Language          string   `json:"language"`
	AuthorName        string   `json:"authorName"`
	Tags              []string `json:"tags"`
	ExpirationMinutes *int     `json:"expirationMinutes"`
	IsFile            bool     `json:"isFile"`
	FileName          string   `json:"fileName"`
	FileType          string   `json:"fileType"`
}

// CreatePasteResponse represents the response from creating a paste
type CreatePasteResponse struct {
	PasteID string `json:"pasteId"`
}

// Create validates and stores a new paste, returning only its public id
func (s *PasteService) Create(ctx context.Context, req CreatePasteRequest) (*CreatePasteResponse, error) {
	if req.Content == nil || *req.Content == "" {
		return nil, validationError("Content is required")
	}

	if m := req.ExpirationMinutes; m != nil && (int64(*m) > maxExpirationMinutes || int64(*m) < -maxExpirationMinutes) {
		return nil, validationError("Invalid expiration")
	}

	paste := &models.Paste{
		Title:      strings.TrimSpace(req.Title),
		Content:    *req.Content,
		Language:   strings.TrimSpace(req.Language),
		AuthorName: strings.TrimSpace(req.AuthorName),
		Tags:       req.Tags,
		IsFile:     req.IsFile,
	}

	if req.IsFile {
		fileType := strings.ToLower(strings.TrimSpace(req.FileType))
		if fileType == "" {
			fileType = utils.InferFileType(req.FileName)
		}
		if fileType != models.FileTypeCSV && fileType != models.FileTypeXML {
			return nil, validationError("File type must be csv or xml")
		}
		paste.FileType = fileType
		paste.FileName = utils.SanitizeFileName(req.FileName)
	}

	now := s.now().UTC()
	paste.CreatedAt = now
	if req.ExpirationMinutes != nil {
		expiresAt := now.Add(time.Duration(*req.ExpirationMinutes) * time.Minute)
		paste.ExpiresAt = &expiresAt
	}
	paste.ApplyDefaults()

	var lastErr error
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return nil, persistenceError("Error creating paste", err)
		}
		paste.PasteID = id

		created, err := s.store.Create(ctx, paste)
		if err == nil {
			s.metrics.PasteCreated()
			s.logger.Info("Paste created", "paste_id", created.PasteID, "language", created.Language, "expires_at", created.ExpiresAt)
			return &CreatePasteResponse{PasteID: created.PasteID}, nil
		}
		lastErr = err
		if !errors.Is(err, storage.ErrDuplicateID) {
			break
		}
		s.logger.Warn("Paste id collision, retrying", "paste_id", id, "attempt", attempt)
	}

	s.metrics.StoreError("create")
	s.logger.Error("Failed to create paste", "op", "create", "error", lastErr)
	return nil, persistenceError("Error creating paste", lastErr)
}

// Get returns a paste and counts the read. The returned views include it.
func (s *PasteService) Get(ctx context.Context, pasteID string) (*models.PublicPaste, error) {
	paste, err := s.lookup(ctx, "get", pasteID)
	if err != nil {
		return nil, err
	}

	// The increment outlives a client disconnect and never fails the read
	if err := s.store.IncrementViews(context.WithoutCancel(ctx), paste.ID); err != nil {
		s.metrics.StoreError("increment_views")
		s.logger.Warn("Failed to increment views", "op", "increment_views", "paste_id", pasteID, "error", err)
	} else {
		paste.Views++
	}
	s.metrics.PasteViewed()

	pub := paste.Public()
	return &pub, nil
}

// ListRecent returns live pastes newest first; limit <= 0 means all
func (s *PasteService) ListRecent(ctx context.Context, limit int) []models.PublicPaste {
	pastes, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		s.metrics.StoreError("list_recent")
		s.logger.Error("Failed to list recent pastes", "op", "list_recent", "error", err)
		return []models.PublicPaste{}
	}
	return models.PublicList(pastes)
}

// ListRelated returns other live pastes in the same language, most viewed first.
// limit <= 0 selects the configured default.
func (s *PasteService) ListRelated(ctx context.Context, pasteID string, limit int) ([]models.PublicPaste, error) {
	if limit <= 0 {
		limit = s.relatedLimit
	}
	if limit > MaxRelatedLimit {
		limit = MaxRelatedLimit
	}

	base, err := s.lookup(ctx, "related", pasteID)
	if err != nil {
		return nil, err
	}

	pastes, err := s.store.ListRelated(ctx, base.Language, base.ID, limit)
	if err != nil {
		s.metrics.StoreError("list_related")
		s.logger.Error("Failed to list related pastes", "op", "list_related", "paste_id", pasteID, "error", err)
		return []models.PublicPaste{}, nil
	}
	return models.PublicList(pastes), nil
}

// Download returns the raw paste without counting a view
func (s *PasteService) Download(ctx context.Context, pasteID string) (*models.Paste, error) {
	return s.lookup(ctx, "download", pasteID)
}

// UpdatePasteRequest represents an admin content replacement
type UpdatePasteRequest struct {
	Content     *string
	Credentials auth.Credentials
}

// Update replaces the content of a paste after the admin gate
func (s *PasteService) Update(ctx context.Context, pasteID string, req UpdatePasteRequest) (*models.PublicPaste, error) {
	if !s.authorize(ctx, req.Credentials) {
		s.logger.Warn("Rejected paste update", "op", "update", "paste_id", pasteID)
		return nil, forbiddenError()
	}
	if req.Content == nil || *req.Content == "" {
		return nil, validationError("Content is required")
	}

	paste, err := s.resolveForWrite(ctx, "update", pasteID)
	if err != nil {
		return nil, err
	}

	ok, err := s.store.UpdateContent(ctx, paste.ID, *req.Content)
	if err != nil {
		s.metrics.StoreError("update")
		s.logger.Error("Failed to update paste", "op", "update", "paste_id", pasteID, "error", err)
		return nil, persistenceError("Failed to update paste", err)
	}
	if !ok {
		return nil, notFoundError()
	}

	updated, err := s.store.GetByID(ctx, paste.ID)
	if err != nil {
		s.reportPurge("update", err)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFoundError()
		}
		// The write succeeded; answer from what we know
		s.logger.Warn("Failed to reload updated paste", "op", "update", "paste_id", pasteID, "error", err)
		paste.Content = *req.Content
		updated = paste
	}

	s.logger.Info("Paste updated", "paste_id", pasteID)
	pub := updated.Public()
	return &pub, nil
}

// Delete removes a paste after the admin gate
func (s *PasteService) Delete(ctx context.Context, pasteID string, creds auth.Credentials) error {
	if !s.authorize(ctx, creds) {
		s.logger.Warn("Rejected paste delete", "op", "delete", "paste_id", pasteID)
		return forbiddenError()
	}

	paste, err := s.resolveForWrite(ctx, "delete", pasteID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, paste.ID); err != nil {
		s.metrics.StoreError("delete")
		s.logger.Error("Failed to delete paste", "op", "delete", "paste_id", pasteID, "error", err)
		return persistenceError("Error deleting paste", err)
	}

	s.logger.Info("Paste deleted", "paste_id", pasteID)
	return nil
}

func (s *PasteService) authorize(ctx context.Context, creds auth.Credentials) bool {
	ok := s.gate != nil && s.gate.Authorize(ctx, creds)
	s.metrics.AdminAttempt(ok)
	return ok
}

// lookup resolves a public id on the read path, where backend errors degrade
// to not found
func (s *PasteService) lookup(ctx context.Context, op, pasteID string) (*models.Paste, error) {
	if !utils.IsValidPasteID(pasteID) {
		return nil, notFoundError()
	}
	paste, err := s.store.GetByPublicID(ctx, pasteID)
	if err != nil {
		s.reportPurge(op, err)
		if !errors.Is(err, storage.ErrNotFound) {
			s.metrics.StoreError(op)
			s.logger.Error("Failed to retrieve paste", "op", op, "paste_id", pasteID, "error", err)
		}
		return nil, notFoundError()
	}
	return paste, nil
}

// resolveForWrite resolves a public id on the write path, where backend
// errors surface
func (s *PasteService) resolveForWrite(ctx context.Context, op, pasteID string) (*models.Paste, error) {
	if !utils.IsValidPasteID(pasteID) {
		return nil, notFoundError()
	}
	paste, err := s.store.GetByPublicID(ctx, pasteID)
	if err != nil {
		s.reportPurge(op, err)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFoundError()
		}
		s.metrics.StoreError(op)
		s.logger.Error("Failed to resolve paste", "op", op, "paste_id", pasteID, "error", err)
		return nil, persistenceError("Error retrieving paste", err)
	}
	return paste, nil
}

// reportPurge logs an expired paste the store could not delete. The paste
// still reads as not found.
func (s *PasteService) reportPurge(op string, err error) {
	var purgeErr *storage.PurgeError
	if !errors.As(err, &purgeErr) {
		return
	}
	s.metrics.StoreError("purge")
	s.logger.Warn("Failed to purge expired paste", "op", op, "paste_id", purgeErr.PasteID, "error", purgeErr.Err)
}
