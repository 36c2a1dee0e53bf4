package domain

import "time"

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines which backing services are used
	Tier Tier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Core tunables
	Scoring   ScoringConfig   `json:"scoring"`
	Screening ScreeningConfig `json:"screening"`
	Rules     RulesConfig     `json:"rules"`
	Analysis  AnalysisConfig  `json:"analysis"`

	// AsyncWorker screens transactions published on the event bus.
	AsyncWorker bool `json:"asyncWorker"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// ScoringConfig tunes the base scorer.
type ScoringConfig struct {
	// DefaultAOV is the average order value assumed when history is empty.
	DefaultAOV float64 `json:"defaultAov"`
}

// ScreeningConfig tunes the scoring pipeline.
type ScreeningConfig struct {
	MaxBatchSize int `json:"maxBatchSize"`
}

// RulesConfig controls the rule store at startup.
type RulesConfig struct {
	// SeedDefaults installs the default rule set when its ids are absent.
	SeedDefaults bool `json:"seedDefaults"`
}

// AnalysisConfig tunes the chargeback analyzer.
type AnalysisConfig struct {
	RepeatOffenderThreshold int           `json:"repeatOffenderThreshold"`
	CacheTTL                time.Duration `json:"cacheTtl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
	Endpoint    string `json:"endpoint"` // OTLP/gRPC collector, host:port
}

// Tier represents the deployment profile.
type Tier string

const (
	// TierCommunity runs on SQLite + channels + in-process cache
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// Defaults shared by every tier.
const (
	DefaultAOV                     = 120.0
	DefaultMaxBatchSize            = 500
	DefaultRepeatOffenderThreshold = 2
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 1000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Scoring: ScoringConfig{
			DefaultAOV: DefaultAOV,
		},
		Screening: ScreeningConfig{
			MaxBatchSize: DefaultMaxBatchSize,
		},
		Rules: RulesConfig{
			SeedDefaults: true,
		},
		Analysis: AnalysisConfig{
			RepeatOffenderThreshold: DefaultRepeatOffenderThreshold,
			CacheTTL:                5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
			Endpoint:    "localhost:4317",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.AsyncWorker = true
	cfg.Tracing.Enabled = true
	return cfg
}
