package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	Index         IndexConfig
	AI            AIConfig
	Agent         AgentConfig
	Export        ExportConfig
	ObjectStore   ObjectStoreConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig describes the analytical database questions are answered
// against. Path is used for sqlite; the network fields for postgresql and mysql.
type DatabaseConfig struct {
	Type            string
	Path            string
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type IndexConfig struct {
	Backend         string
	Path            string
	DSN             string
	RebuildOnStart  bool
	ForeignKeyCache time.Duration
}

type AIConfig struct {
	BaseURL            string
	APIKey             string
	Model              string
	EmbeddingModel     string
	Timeout            time.Duration
	RateLimitPerMinute int
}

type AgentConfig struct {
	MaxAttempts       int
	RetrievalMode     string
	TopK              int
	Critique          bool
	MaxQuestionLength int
	Synthesize        bool
}

type ExportConfig struct {
	Enabled bool
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
	LogFile  string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SQLRAG_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SQLRAG_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "SQLRAG_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "SQLRAG_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "SQLRAG_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "SQLRAG_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "SQLRAG_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyLower(lookup, "SQLRAG_DB_TYPE", &cfg.Database.Type) },
		func() error { return applyString(lookup, "SQLRAG_DB_PATH", &cfg.Database.Path) },
		func() error { return applyString(lookup, "SQLRAG_DB_HOST", &cfg.Database.Host) },
		func() error { return applyInt(lookup, "SQLRAG_DB_PORT", &cfg.Database.Port) },
		func() error { return applyString(lookup, "SQLRAG_DB_NAME", &cfg.Database.Name) },
		func() error { return applyString(lookup, "SQLRAG_DB_USER", &cfg.Database.User) },
		func() error { return applyString(lookup, "SQLRAG_DB_PASSWORD", &cfg.Database.Password) },
		func() error { return applyInt(lookup, "SQLRAG_DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns) },
		func() error { return applyInt(lookup, "SQLRAG_DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns) },
		func() error { return applyDuration(lookup, "SQLRAG_DB_CONN_MAX_IDLE_TIME", &cfg.Database.ConnMaxIdleTime) },
		func() error { return applyDuration(lookup, "SQLRAG_DB_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime) },
		func() error { return applyLower(lookup, "SQLRAG_INDEX_BACKEND", &cfg.Index.Backend) },
		func() error { return applyString(lookup, "SQLRAG_INDEX_PATH", &cfg.Index.Path) },
		func() error { return applyString(lookup, "SQLRAG_INDEX_DSN", &cfg.Index.DSN) },
		func() error { return applyBool(lookup, "SQLRAG_INDEX_REBUILD_ON_START", &cfg.Index.RebuildOnStart) },
		func() error { return applyDuration(lookup, "SQLRAG_INDEX_FK_CACHE_TTL", &cfg.Index.ForeignKeyCache) },
		func() error { return applyString(lookup, "SQLRAG_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, "SQLRAG_AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, "SQLRAG_AI_MODEL", &cfg.AI.Model) },
		func() error { return applyString(lookup, "SQLRAG_AI_EMBEDDING_MODEL", &cfg.AI.EmbeddingModel) },
		func() error { return applyDuration(lookup, "SQLRAG_AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyInt(lookup, "SQLRAG_AI_RATE_LIMIT_PER_MINUTE", &cfg.AI.RateLimitPerMinute) },
		func() error { return applyInt(lookup, "SQLRAG_AGENT_MAX_ATTEMPTS", &cfg.Agent.MaxAttempts) },
		func() error { return applyLower(lookup, "SQLRAG_AGENT_RETRIEVAL_MODE", &cfg.Agent.RetrievalMode) },
		func() error { return applyInt(lookup, "SQLRAG_AGENT_TOP_K", &cfg.Agent.TopK) },
		func() error { return applyBool(lookup, "SQLRAG_AGENT_CRITIQUE", &cfg.Agent.Critique) },
		func() error { return applyInt(lookup, "SQLRAG_AGENT_MAX_QUESTION_LENGTH", &cfg.Agent.MaxQuestionLength) },
		func() error { return applyBool(lookup, "SQLRAG_AGENT_SYNTHESIZE", &cfg.Agent.Synthesize) },
		func() error { return applyBool(lookup, "SQLRAG_EXPORT_ENABLED", &cfg.Export.Enabled) },
		func() error { return applyString(lookup, "SQLRAG_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "SQLRAG_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "SQLRAG_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error { return applyString(lookup, "SQLRAG_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID) },
		func() error { return applyString(lookup, "SQLRAG_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey) },
		func() error { return applyBool(lookup, "SQLRAG_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "SQLRAG_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "SQLRAG_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},
		func() error { return applyBool(lookup, "SQLRAG_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "SQLRAG_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyString(lookup, "SQLRAG_LOG_FILE", &cfg.Observability.LogFile) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if c.HTTP.Address == "" {
		return fmt.Errorf("http address is required")
	}
	switch c.Database.Type {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("SQLRAG_DB_PATH is required for sqlite")
		}
	case "postgresql", "mysql":
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("SQLRAG_DB_HOST and SQLRAG_DB_NAME are required for %s", c.Database.Type)
		}
	default:
		return fmt.Errorf("invalid SQLRAG_DB_TYPE: %q", c.Database.Type)
	}
	switch c.Index.Backend {
	case "memory", "bleve":
	case "pgvector":
		if c.Index.DSN == "" {
			return fmt.Errorf("SQLRAG_INDEX_DSN is required for the pgvector backend")
		}
	default:
		return fmt.Errorf("invalid SQLRAG_INDEX_BACKEND: %q", c.Index.Backend)
	}
	switch c.Agent.RetrievalMode {
	case "plain", "smart":
	default:
		return fmt.Errorf("invalid SQLRAG_AGENT_RETRIEVAL_MODE: %q", c.Agent.RetrievalMode)
	}
	if c.Agent.MaxAttempts < 1 {
		return fmt.Errorf("SQLRAG_AGENT_MAX_ATTEMPTS must be at least 1")
	}
	if c.Agent.TopK < 0 {
		return fmt.Errorf("SQLRAG_AGENT_TOP_K must not be negative")
	}
	if c.Agent.MaxQuestionLength < 1 {
		return fmt.Errorf("SQLRAG_AGENT_MAX_QUESTION_LENGTH must be positive")
	}
	if c.AI.RateLimitPerMinute < 0 {
		return fmt.Errorf("SQLRAG_AI_RATE_LIMIT_PER_MINUTE must not be negative")
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "sqlrag-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Type:            "sqlite",
			Path:            "enterprise.db",
			Host:            "localhost",
			Name:            "enterprise",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Index: IndexConfig{
			Backend:         "bleve",
			Path:            "./repo_db",
			RebuildOnStart:  true,
			ForeignKeyCache: 5 * time.Minute,
		},
		AI: AIConfig{
			BaseURL:            "https://api.openai.com/v1",
			Model:              "gpt-4o-mini",
			EmbeddingModel:     "text-embedding-3-small",
			Timeout:            30 * time.Second,
			RateLimitPerMinute: 60,
		},
		Agent: AgentConfig{
			MaxAttempts:       3,
			RetrievalMode:     "smart",
			Critique:          true,
			MaxQuestionLength: 500,
			Synthesize:        true,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "sqlrag",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "exports",
			AutoCreateBucket: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Index.Backend = "memory"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Observability.LogFile = "sql_rag.log"
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyLower(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.ToLower(strings.TrimSpace(raw))
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
