package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codesnap/codesnap/config"
)

// Migrator is implemented by backends that can create their schema on demand
type Migrator interface {
	Migrate(ctx context.Context) error
}

// NewStore creates a storage backend based on the configuration
func NewStore(cfg *config.Config, logger *slog.Logger, opts ...Option) (PasteStore, error) {
	switch cfg.StorageType {
	case config.StoragePostgres:
		logger.Info("Using Postgres storage")
		return NewPostgresStore(cfg.DatabaseURL, logger, opts...)

	case config.StorageSQLite:
		logger.Info("Using SQLite storage", "path", cfg.SQLitePath)
		return NewSQLiteStore(cfg.SQLitePath, logger, opts...)

	case config.StorageMongoDB:
		logger.Info("Using MongoDB storage", "database", cfg.MongoDatabase)
		return NewMongoStore(cfg.MongoURI, cfg.MongoDatabase, opts...)

	case config.StorageDynamoDB:
		logger.Info("Using DynamoDB storage", "table", cfg.DynamoTable, "region", cfg.AWSRegion)
		return NewDynamoStore(cfg.DynamoTable, cfg.AWSRegion, opts...)

	default:
		return nil, fmt.Errorf("unsupported storage type: %s (supported: postgres, sqlite, mongodb, dynamodb)", cfg.StorageType)
	}
}
