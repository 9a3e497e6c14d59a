package config

import (
	"time"

	"github.com/spf13/viper"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort            = 8000
	DefaultServerMode            = "release"
	DefaultServerReadTimeout     = 10 * time.Second
	DefaultServerWriteTimeout    = 30 * time.Second
	DefaultServerShutdownTimeout = 15 * time.Second
	DefaultSlowRequest           = 500 * time.Millisecond
	DefaultRateBurst             = 20

	DefaultGRPCPort = 9090

	DefaultReferenceSource      = SourceFile
	DefaultReferenceFile        = "data/reference.yaml"
	DefaultReferenceLoadTimeout = 60 * time.Second
	DefaultWatchDebounce        = 500 * time.Millisecond

	DefaultAlgorithm        = "wratio"
	DefaultFuzzyLimit       = 10
	DefaultMaxFuzzyResults  = 3
	DefaultSynonymPassLimit = 3
	DefaultMinFuzzyScore    = 1

	DefaultCacheTTL       = 10 * time.Minute
	DefaultCacheKeyPrefix = "subres:"

	DefaultRedisAddr     = "localhost:6379"
	DefaultRedisPoolSize = 10

	DefaultDBHost         = "localhost"
	DefaultDBPort         = 5432
	DefaultDBName         = "substances"
	DefaultDBSSLMode      = "disable"
	DefaultDBMaxOpenConns = 10

	DefaultKafkaBroker       = "localhost:9092"
	DefaultKafkaGroupID      = "substance-acquisition"
	DefaultKafkaRequestTopic = "substance.acquisition.requested"
	DefaultKafkaResultTopic  = "substance.identifiers.acquired"
	DefaultKafkaWriteTimeout = 10 * time.Second
	DefaultKafkaMaxRetries   = 3

	DefaultMinIOArchiveBucket = "substance-acquisition"

	DefaultPubChemBaseURL     = "https://pubchem.ncbi.nlm.nih.gov/rest/pug"
	DefaultPubChemTimeout     = 15 * time.Second
	DefaultPubChemConcurrency = 4
	DefaultPubChemUserAgent   = "substance-resolver/1.0"

	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "substance_resolver"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// setDefaults registers every default with viper. Registration is also what
// makes SUBRES_* environment variables visible to Unmarshal when no config
// file mentions the key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.mode", DefaultServerMode)
	v.SetDefault("server.read_timeout", DefaultServerReadTimeout)
	v.SetDefault("server.write_timeout", DefaultServerWriteTimeout)
	v.SetDefault("server.shutdown_timeout", DefaultServerShutdownTimeout)
	v.SetDefault("server.slow_request", DefaultSlowRequest)
	v.SetDefault("server.cors_allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.rate_burst", DefaultRateBurst)

	v.SetDefault("grpc.enabled", false)
	v.SetDefault("grpc.port", DefaultGRPCPort)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("reference.source", DefaultReferenceSource)
	v.SetDefault("reference.load_timeout", DefaultReferenceLoadTimeout)
	v.SetDefault("reference.file.path", DefaultReferenceFile)
	v.SetDefault("reference.file.watch", false)
	v.SetDefault("reference.file.debounce", DefaultWatchDebounce)
	v.SetDefault("reference.minio.bucket", "")
	v.SetDefault("reference.minio.object", "")

	v.SetDefault("resolution.algorithm", DefaultAlgorithm)
	v.SetDefault("resolution.fuzzy_limit", DefaultFuzzyLimit)
	v.SetDefault("resolution.max_fuzzy_results", DefaultMaxFuzzyResults)
	v.SetDefault("resolution.synonym_pass_limit", DefaultSynonymPassLimit)
	v.SetDefault("resolution.min_fuzzy_score", DefaultMinFuzzyScore)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("cache.key_prefix", DefaultCacheKeyPrefix)

	v.SetDefault("redis.addr", DefaultRedisAddr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", DefaultRedisPoolSize)

	v.SetDefault("database.host", DefaultDBHost)
	v.SetDefault("database.port", DefaultDBPort)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.db_name", DefaultDBName)
	v.SetDefault("database.ssl_mode", DefaultDBSSLMode)
	v.SetDefault("database.max_open_conns", DefaultDBMaxOpenConns)
	v.SetDefault("database.migrate_on_start", false)

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.archive_bucket", DefaultMinIOArchiveBucket)

	v.SetDefault("kafka.brokers", []string{DefaultKafkaBroker})
	v.SetDefault("kafka.group_id", DefaultKafkaGroupID)
	v.SetDefault("kafka.request_topic", DefaultKafkaRequestTopic)
	v.SetDefault("kafka.result_topic", DefaultKafkaResultTopic)
	v.SetDefault("kafka.write_timeout", DefaultKafkaWriteTimeout)
	v.SetDefault("kafka.max_retries", DefaultKafkaMaxRetries)

	v.SetDefault("pubchem.base_url", DefaultPubChemBaseURL)
	v.SetDefault("pubchem.timeout", DefaultPubChemTimeout)
	v.SetDefault("pubchem.concurrency", DefaultPubChemConcurrency)
	v.SetDefault("pubchem.user_agent", DefaultPubChemUserAgent)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", DefaultMetricsPath)
	v.SetDefault("metrics.namespace", DefaultMetricsNamespace)
}

// ApplyDefaults fills zero-value fields of a programmatically built Config.
// Boolean switches are left untouched.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}
	if cfg.Server.SlowRequest == 0 {
		cfg.Server.SlowRequest = DefaultSlowRequest
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = DefaultRateBurst
	}
	if len(cfg.Server.CORSAllowedOrigins) == 0 {
		cfg.Server.CORSAllowedOrigins = []string{"*"}
	}

	if cfg.GRPC.Port == 0 {
		cfg.GRPC.Port = DefaultGRPCPort
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.Reference.Source == "" {
		cfg.Reference.Source = DefaultReferenceSource
	}
	if cfg.Reference.LoadTimeout == 0 {
		cfg.Reference.LoadTimeout = DefaultReferenceLoadTimeout
	}
	if cfg.Reference.Source == SourceFile && cfg.Reference.File.Path == "" {
		cfg.Reference.File.Path = DefaultReferenceFile
	}
	if cfg.Reference.File.Debounce == 0 {
		cfg.Reference.File.Debounce = DefaultWatchDebounce
	}

	if cfg.Resolution.Algorithm == "" {
		cfg.Resolution.Algorithm = DefaultAlgorithm
	}
	if cfg.Resolution.FuzzyLimit == 0 {
		cfg.Resolution.FuzzyLimit = DefaultFuzzyLimit
	}
	if cfg.Resolution.MaxFuzzyResults == 0 {
		cfg.Resolution.MaxFuzzyResults = DefaultMaxFuzzyResults
	}
	if cfg.Resolution.SynonymPassLimit == 0 {
		cfg.Resolution.SynonymPassLimit = DefaultSynonymPassLimit
	}
	if cfg.Resolution.MinFuzzyScore == 0 {
		cfg.Resolution.MinFuzzyScore = DefaultMinFuzzyScore
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = DefaultCacheKeyPrefix
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = DefaultRedisPoolSize
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = DefaultDBSSLMode
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = DefaultDBMaxOpenConns
	}

	if cfg.MinIO.ArchiveBucket == "" {
		cfg.MinIO.ArchiveBucket = DefaultMinIOArchiveBucket
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.RequestTopic == "" {
		cfg.Kafka.RequestTopic = DefaultKafkaRequestTopic
	}
	if cfg.Kafka.ResultTopic == "" {
		cfg.Kafka.ResultTopic = DefaultKafkaResultTopic
	}
	if cfg.Kafka.WriteTimeout == 0 {
		cfg.Kafka.WriteTimeout = DefaultKafkaWriteTimeout
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = DefaultKafkaMaxRetries
	}

	if cfg.PubChem.BaseURL == "" {
		cfg.PubChem.BaseURL = DefaultPubChemBaseURL
	}
	if cfg.PubChem.Timeout == 0 {
		cfg.PubChem.Timeout = DefaultPubChemTimeout
	}
	if cfg.PubChem.Concurrency == 0 {
		cfg.PubChem.Concurrency = DefaultPubChemConcurrency
	}
	if cfg.PubChem.UserAgent == "" {
		cfg.PubChem.UserAgent = DefaultPubChemUserAgent
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}
