package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Supported storage backends
const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageMongoDB  = "mongodb"
	StorageDynamoDB = "dynamodb"
)

// Config holds all configuration for the codesnap service
type Config struct {
	Port int `toml:"port"`

	// Storage configuration
	StorageType   string `toml:"storage"`
	DatabaseURL   string `toml:"database_url"`
	SQLitePath    string `toml:"sqlite_path"`
	MongoURI      string `toml:"mongodb_uri"`
	MongoDatabase string `toml:"mongodb_database"`
	DynamoTable   string `toml:"dynamodb_table"`
	AWSRegion     string `toml:"aws_region"`

	// Admin configuration
	AdminPassword      string        `toml:"admin_password"`
	AdminPasswordHash  string        `toml:"admin_password_hash"`
	TokenSecret        string        `toml:"token_secret"`
	TokenTTL           time.Duration `toml:"token_ttl"`
	RedisURL           string        `toml:"redis_url"`
	AdminRatePerMinute int           `toml:"admin_rate_per_minute"`

	// HTTP configuration
	CORSOrigins     []string `toml:"cors_origins"`
	MaxContentBytes int64    `toml:"max_content_bytes"`
	TrustProxy      bool     `toml:"trust_proxy"`

	// Paste configuration
	RelatedLimit  int           `toml:"related_limit"`
	SweepInterval time.Duration `toml:"sweep_interval"`
	SeedOnEmpty   bool          `toml:"seed_on_empty"`

	// Operational configuration
	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"`

	Version    string `toml:"-"`
	BuildTime  string `toml:"-"`
	CommitHash string `toml:"-"`
}

// Default returns a configuration with sensible defaults. It carries no admin secret.
func Default() *Config {
	return &Config{
		Port:               8080,
		StorageType:        StoragePostgres,
		SQLitePath:         "codesnap.db",
		MongoURI:           "mongodb://localhost:27017",
		MongoDatabase:      "codesnap",
		DynamoTable:        "codesnap-pastes",
		AWSRegion:          "us-east-1",
		TokenTTL:           30 * time.Minute,
		AdminRatePerMinute: 10,
		CORSOrigins:        []string{"*"},
		MaxContentBytes:    10 * 1024 * 1024, // 10MB
		RelatedLimit:       3,
		SweepInterval:      0,
		LogLevel:           "info",
	}
}

// Load builds the configuration from defaults, an optional TOML file, CLI flags
// and CODESNAP_* environment variables, in that order of precedence (last wins).
func Load(args []string) (*Config, error) {
	cfg := Default()

	path := configPathFromArgs(args)
	if path == "" {
		path = os.Getenv("CODESNAP_CONFIG")
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	fs := flag.NewFlagSet("codesnap", flag.ContinueOnError)
	fs.String("config", path, "Path to a TOML config file")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "Port to listen on")
	fs.StringVar(&cfg.StorageType, "storage", cfg.StorageType, "Storage backend: postgres, sqlite, mongodb, dynamodb")
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres connection URL")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "SQLite database file")
	fs.StringVar(&cfg.MongoURI, "mongodb-uri", cfg.MongoURI, "MongoDB connection URI")
	fs.StringVar(&cfg.MongoDatabase, "mongodb-database", cfg.MongoDatabase, "MongoDB database name")
	fs.StringVar(&cfg.DynamoTable, "dynamodb-table", cfg.DynamoTable, "DynamoDB table name")
	fs.StringVar(&cfg.AWSRegion, "aws-region", cfg.AWSRegion, "AWS region for DynamoDB")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", cfg.TokenTTL, "Lifetime of admin capability tokens")
	fs.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis URL for token revocation (optional)")
	fs.IntVar(&cfg.AdminRatePerMinute, "admin-rate", cfg.AdminRatePerMinute, "Admin requests allowed per client per minute (0 disables)")
	fs.Int64Var(&cfg.MaxContentBytes, "max-content-bytes", cfg.MaxContentBytes, "Maximum request body size in bytes")
	fs.BoolVar(&cfg.TrustProxy, "trust-proxy", cfg.TrustProxy, "Trust X-Forwarded-For for client addresses")
	fs.IntVar(&cfg.RelatedLimit, "related-limit", cfg.RelatedLimit, "Default number of related pastes")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Interval of the expired paste sweep (0 disables)")
	fs.BoolVar(&cfg.SeedOnEmpty, "seed", cfg.SeedOnEmpty, "Insert example pastes when the store is empty")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Path to a JSON log file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	applyEnv(cfg)

	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	if val := os.Getenv("CODESNAP_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Port = port
		}
	}
	if val := os.Getenv("CODESNAP_STORAGE"); val != "" {
		cfg.StorageType = val
	}
	if val := os.Getenv("CODESNAP_DATABASE_URL"); val != "" {
		cfg.DatabaseURL = val
	} else if val := os.Getenv("DATABASE_URL"); val != "" && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = val
	}
	if val := os.Getenv("CODESNAP_SQLITE_PATH"); val != "" {
		cfg.SQLitePath = val
	}
	if val := os.Getenv("CODESNAP_MONGODB_URI"); val != "" {
		cfg.MongoURI = val
	}
	if val := os.Getenv("CODESNAP_MONGODB_DATABASE"); val != "" {
		cfg.MongoDatabase = val
	}
	if val := os.Getenv("CODESNAP_DYNAMODB_TABLE"); val != "" {
		cfg.DynamoTable = val
	}
	if val := os.Getenv("AWS_REGION"); val != "" {
		cfg.AWSRegion = val
	}
	if val := os.Getenv("CODESNAP_ADMIN_PASSWORD"); val != "" {
		cfg.AdminPassword = val
	} else if val := os.Getenv("ADMIN_PASSWORD"); val != "" && cfg.AdminPassword == "" {
		cfg.AdminPassword = val
	}
	if val := os.Getenv("CODESNAP_ADMIN_PASSWORD_HASH"); val != "" {
		cfg.AdminPasswordHash = val
	}
	if val := os.Getenv("CODESNAP_TOKEN_SECRET"); val != "" {
		cfg.TokenSecret = val
	}
	if val := os.Getenv("CODESNAP_TOKEN_TTL"); val != "" {
		if ttl, err := time.ParseDuration(val); err == nil {
			cfg.TokenTTL = ttl
		}
	}
	if val := os.Getenv("CODESNAP_REDIS_URL"); val != "" {
		cfg.RedisURL = val
	}
	if val := os.Getenv("CODESNAP_ADMIN_RATE"); val != "" {
		if rate, err := strconv.Atoi(val); err == nil {
			cfg.AdminRatePerMinute = rate
		}
	}
	if val := os.Getenv("CODESNAP_CORS_ORIGINS"); val != "" {
		cfg.CORSOrigins = splitList(val)
	}
	if val := os.Getenv("CODESNAP_MAX_CONTENT_BYTES"); val != "" {
		if size, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.MaxContentBytes = size
		}
	}
	if val := os.Getenv("CODESNAP_TRUST_PROXY"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.TrustProxy = b
		}
	}
	if val := os.Getenv("CODESNAP_RELATED_LIMIT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.RelatedLimit = n
		}
	}
	if val := os.Getenv("CODESNAP_SWEEP_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.SweepInterval = d
		}
	}
	if val := os.Getenv("CODESNAP_SEED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.SeedOnEmpty = b
		}
	}
	if val := os.Getenv("CODESNAP_LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}
	if val := os.Getenv("CODESNAP_LOG_FILE"); val != "" {
		cfg.LogFile = val
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.StorageType {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database url is required for postgres storage")
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite storage")
		}
	case StorageMongoDB:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return fmt.Errorf("mongodb uri and database are required for mongodb storage")
		}
	case StorageDynamoDB:
		if c.DynamoTable == "" {
			return fmt.Errorf("dynamodb table is required for dynamodb storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (valid: postgres, sqlite, mongodb, dynamodb)", c.StorageType)
	}

	if c.AdminPassword == "" && c.AdminPasswordHash == "" {
		return fmt.Errorf("an admin password or password hash must be configured")
	}

	if c.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive: %s", c.TokenTTL)
	}

	if c.AdminRatePerMinute < 0 {
		return fmt.Errorf("admin rate cannot be negative: %d", c.AdminRatePerMinute)
	}

	if c.MaxContentBytes < 1024 || c.MaxContentBytes > 100*1024*1024 {
		return fmt.Errorf("max content bytes must be between 1KB and 100MB: %d", c.MaxContentBytes)
	}

	if c.RelatedLimit < 1 || c.RelatedLimit > 20 {
		return fmt.Errorf("related limit must be between 1 and 20: %d", c.RelatedLimit)
	}

	if c.SweepInterval < 0 {
		return fmt.Errorf("sweep interval cannot be negative: %s", c.SweepInterval)
	}

	return nil
}

// AllowAllOrigins reports whether CORS should accept any origin
func (c *Config) AllowAllOrigins() bool {
	for _, o := range c.CORSOrigins {
		if o == "*" {
			return true
		}
	}
	return len(c.CORSOrigins) == 0
}

// configPathFromArgs finds -config/--config before full flag parsing so the file
// can seed the defaults that flags then override.
func configPathFromArgs(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		name := strings.TrimLeft(arg, "-")
		if len(name) == len(arg) {
			continue
		}
		if strings.HasPrefix(name, "config=") {
			return strings.TrimPrefix(name, "config=")
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
