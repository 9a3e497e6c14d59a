// Package config defines the configuration structures of the substance
// resolver. No I/O lives here, only data types and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/logging"
)

// Reference data source kinds.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
	SourceMinIO    = "minio"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port" validate:"min=1,max=65535"`
	Mode               string        `mapstructure:"mode" validate:"oneof=debug release test"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	SlowRequest        time.Duration `mapstructure:"slow_request"`
	CORSAllowedOrigins []string      `mapstructure:"cors_allowed_origins"`

	// RateLimit is the per-client request rate in requests per second. Zero
	// disables limiting.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst int     `mapstructure:"rate_burst" validate:"gte=0"`
}

// GRPCConfig controls the gRPC health listener.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port" validate:"min=1,max=65535"`
}

// FileSourceConfig points at a YAML or JSON snapshot on local disk.
type FileSourceConfig struct {
	Path     string        `mapstructure:"path"`
	Watch    bool          `mapstructure:"watch"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// ObjectSourceConfig points at a snapshot object in MinIO.
type ObjectSourceConfig struct {
	Bucket string `mapstructure:"bucket"`
	Object string `mapstructure:"object"`
}

// ReferenceConfig selects where the reference store is loaded from.
type ReferenceConfig struct {
	Source      string             `mapstructure:"source" validate:"oneof=file postgres minio"`
	LoadTimeout time.Duration      `mapstructure:"load_timeout"`
	File        FileSourceConfig   `mapstructure:"file"`
	MinIO       ObjectSourceConfig `mapstructure:"minio"`
}

// ResolutionConfig tunes the matcher.
type ResolutionConfig struct {
	// Algorithm names the similarity scorer: wratio or a go-edlib algorithm.
	Algorithm        string `mapstructure:"algorithm" validate:"oneof=wratio levenshtein damerau-levenshtein jaro jaro-winkler lcs cosine jaccard sorensen-dice qgram"`
	FuzzyLimit       int    `mapstructure:"fuzzy_limit" validate:"min=1"`
	MaxFuzzyResults  int    `mapstructure:"max_fuzzy_results" validate:"min=1"`
	SynonymPassLimit int    `mapstructure:"synonym_pass_limit" validate:"min=1"`
	// MinFuzzyScore drops fuzzy hits scoring below it. Zero means unset and
	// is replaced by DefaultMinFuzzyScore.
	MinFuzzyScore    int    `mapstructure:"min_fuzzy_score" validate:"min=1,max=100"`
}

// CacheConfig controls the Redis-backed result cache.
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db" validate:"min=0"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port" validate:"min=1,max=65535"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	DBName           string        `mapstructure:"db_name"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	MigrateOnStart   bool          `mapstructure:"migrate_on_start"`
}

// MinIOConfig holds object storage parameters.
type MinIOConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	Region        string `mapstructure:"region"`
	ArchiveBucket string `mapstructure:"archive_bucket"`
}

// KafkaConfig holds producer and consumer parameters for acquisition.
type KafkaConfig struct {
	Brokers       []string      `mapstructure:"brokers"`
	GroupID       string        `mapstructure:"group_id"`
	RequestTopic  string        `mapstructure:"request_topic"`
	ResultTopic   string        `mapstructure:"result_topic"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	CommitOnError bool          `mapstructure:"commit_on_error"`
}

// PubChemConfig tunes the compound database client.
type PubChemConfig struct {
	BaseURL     string        `mapstructure:"base_url" validate:"omitempty,url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency" validate:"min=1,max=16"`
	UserAgent   string        `mapstructure:"user_agent"`
}

// MetricsConfig controls the Prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object.
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	GRPC       GRPCConfig        `mapstructure:"grpc"`
	Log        logging.LogConfig `mapstructure:"log"`
	Reference  ReferenceConfig   `mapstructure:"reference"`
	Resolution ResolutionConfig  `mapstructure:"resolution"`
	Cache      CacheConfig       `mapstructure:"cache"`
	Redis      RedisConfig       `mapstructure:"redis"`
	Database   DatabaseConfig    `mapstructure:"database"`
	MinIO      MinIOConfig       `mapstructure:"minio"`
	Kafka      KafkaConfig       `mapstructure:"kafka"`
	PubChem    PubChemConfig     `mapstructure:"pubchem"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
}

var validate = validator.New()

// Validate checks field constraints and the cross-section requirements that
// struct tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %s", describeValidation(err))
	}

	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	switch c.Reference.Source {
	case SourceFile:
		if c.Reference.File.Path == "" {
			return fmt.Errorf("config: reference.file.path is required when reference.source=file")
		}
	case SourcePostgres:
		if c.Database.Host == "" || c.Database.DBName == "" {
			return fmt.Errorf("config: database.host and database.db_name are required when reference.source=postgres")
		}
	case SourceMinIO:
		if c.MinIO.Endpoint == "" {
			return fmt.Errorf("config: minio.endpoint is required when reference.source=minio")
		}
		if c.Reference.MinIO.Bucket == "" || c.Reference.MinIO.Object == "" {
			return fmt.Errorf("config: reference.minio.bucket and reference.minio.object are required when reference.source=minio")
		}
	}

	if c.Reference.File.Watch && c.Reference.Source != SourceFile {
		return fmt.Errorf("config: reference.file.watch requires reference.source=file")
	}
	if c.Cache.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when cache.enabled=true")
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("config: cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	return nil
}

// describeValidation turns validator errors into "section.field" messages.
func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// Namespace is "Config.Server.Port"; drop the root type name.
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", strings.ToLower(ns), fe.Tag(), fe.Value()))
	}
	return strings.Join(msgs, "; ")
}
