package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codesnap/codesnap/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore implements PasteStore on any relational database GORM supports
type GormStore struct {
	db  *gorm.DB
	now Clock
}

// NewGormStore opens the database behind dialector and migrates the schema
func NewGormStore(dialector gorm.Dialector, log *slog.Logger, opts ...Option) (*GormStore, error) {
	o := buildOptions(opts)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(log),
		TranslateError: true,
		NowFunc:        func() time.Time { return o.now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	if o.maxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(o.maxOpenConns)
	}

	store := &GormStore{db: db, now: o.now}
	if err := store.Migrate(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

// Migrate creates or updates the pastes table and its indexes
func (g *GormStore) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := g.db.WithContext(ctx).AutoMigrate(&models.Paste{}); err != nil {
		return fmt.Errorf("failed to migrate pastes table: %w", err)
	}
	return nil
}

// Create saves a paste to the database
func (g *GormStore) Create(ctx context.Context, paste *models.Paste) (*models.Paste, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := *paste
	row.ID = 0
	row.ApplyDefaults()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = g.now()
	}
	// SQLite compares timestamps as text, so every stored instant is UTC
	row.CreatedAt = row.CreatedAt.UTC()
	if row.ExpiresAt != nil {
		expires := row.ExpiresAt.UTC()
		row.ExpiresAt = &expires
	}

	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrDuplicateID
		}
		return nil, err
	}
	return &row, nil
}

// GetByPublicID retrieves a paste by its public id
func (g *GormStore) GetByPublicID(ctx context.Context, pasteID string) (*models.Paste, error) {
	return g.first(ctx, "paste_id = ?", pasteID)
}

// GetByID retrieves a paste by its internal id
func (g *GormStore) GetByID(ctx context.Context, id int64) (*models.Paste, error) {
	return g.first(ctx, "id = ?", id)
}

func (g *GormStore) first(ctx context.Context, query string, arg interface{}) (*models.Paste, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var paste models.Paste
	err := g.db.WithContext(ctx).Where(query, arg).First(&paste).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if paste.IsExpiredAt(g.now()) {
		// Lazy purge; a failed delete still hides the row
		return nil, expiredGone(paste.PasteID, g.db.WithContext(ctx).Delete(&models.Paste{}, paste.ID).Error)
	}

	return &paste, nil
}

// IncrementViews increments the view counter in a single statement
func (g *GormStore) IncrementViews(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return g.db.WithContext(ctx).
		Model(&models.Paste{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1)).Error
}

// ListRecent returns live pastes newest first
func (g *GormStore) ListRecent(ctx context.Context, limit int) ([]models.Paste, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var pastes []models.Paste
	q := g.live(ctx).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&pastes).Error; err != nil {
		return nil, err
	}
	return pastes, nil
}

// ListRelated returns live pastes sharing a language, most viewed first
func (g *GormStore) ListRelated(ctx context.Context, language string, excludeID int64, limit int) ([]models.Paste, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var pastes []models.Paste
	q := g.live(ctx).Where("language = ?", language)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	q = q.Order("views DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&pastes).Error; err != nil {
		return nil, err
	}
	return pastes, nil
}

// Delete removes a paste by internal id
func (g *GormStore) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return g.db.WithContext(ctx).Delete(&models.Paste{}, id).Error
}

// UpdateContent replaces the content of a paste, leaving every other column alone
func (g *GormStore) UpdateContent(ctx context.Context, id int64, content string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res := g.db.WithContext(ctx).
		Model(&models.Paste{}).
		Where("id = ?", id).
		UpdateColumn("content", content)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteExpired removes rows whose expiry is at or before the given instant
func (g *GormStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res := g.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", before.UTC()).
		Delete(&models.Paste{})
	return res.RowsAffected, res.Error
}

// Ping checks the database connection
func (g *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (g *GormStore) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (g *GormStore) live(ctx context.Context) *gorm.DB {
	return g.db.WithContext(ctx).
		Model(&models.Paste{}).
		Where("expires_at IS NULL OR expires_at > ?", g.now().UTC())
}

// isDuplicateKey recognises unique violations even from drivers without an
// error translator
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// gormLogger routes GORM's SQL tracing into slog
type gormLogger struct {
	log           *slog.Logger
	level         logger.LogLevel
	slowThreshold time.Duration
}

func newGormLogger(log *slog.Logger) logger.Interface {
	if log == nil {
		log = slog.Default()
	}
	return &gormLogger{log: log.With("component", "gorm"), level: logger.Warn, slowThreshold: 200 * time.Millisecond}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		l.log.InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		l.log.WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		l.log.ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		sql, rows := fc()
		l.log.ErrorContext(ctx, "SQL failed", "error", err, "elapsed", elapsed, "rows", rows, "sql", sql)
	case elapsed > l.slowThreshold && l.level >= logger.Warn:
		sql, rows := fc()
		l.log.WarnContext(ctx, "Slow SQL", "elapsed", elapsed, "rows", rows, "sql", sql)
	case l.log.Enabled(ctx, slog.LevelDebug):
		sql, rows := fc()
		l.log.DebugContext(ctx, "SQL", "elapsed", elapsed, "rows", rows, "sql", sql)
	}
}
