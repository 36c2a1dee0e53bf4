package main

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// loadConfig reads an optional .env file, picks the tier profile and then
// applies KESTREL_* overrides.
func loadConfig() *domain.Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg := domain.DefaultConfig()
	if os.Getenv("KESTREL_TIER") == string(domain.TierPro) {
		cfg = domain.ProConfig()
	}
	applyEnv(cfg, os.LookupEnv)
	return cfg
}

func applyEnv(cfg *domain.Config, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				slog.Warn("ignoring non-numeric setting", "key", key, "value", v)
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				slog.Warn("ignoring non-boolean setting", "key", key, "value", v)
				return
			}
			*dst = b
		}
	}

	str("KESTREL_HOST", &cfg.Server.Host)
	num("KESTREL_PORT", &cfg.Server.Port)

	str("KESTREL_DB_DRIVER", &cfg.Repository.Driver)
	str("KESTREL_SQLITE_PATH", &cfg.Repository.SQLitePath)
	str("KESTREL_POSTGRES_DSN", &cfg.Repository.PostgresDSN)

	str("KESTREL_CACHE_TYPE", &cfg.Cache.Type)
	str("KESTREL_REDIS_ADDR", &cfg.Cache.RedisAddr)
	str("KESTREL_REDIS_PASSWORD", &cfg.Cache.RedisPassword)

	str("KESTREL_BUS_TYPE", &cfg.EventBus.Type)
	str("KESTREL_NATS_URL", &cfg.EventBus.NATSUrl)
	str("KESTREL_NATS_TOKEN", &cfg.EventBus.NATSToken)

	num("KESTREL_MAX_BATCH_SIZE", &cfg.Screening.MaxBatchSize)
	num("KESTREL_REPEAT_OFFENDER_THRESHOLD", &cfg.Analysis.RepeatOffenderThreshold)
	flag("KESTREL_SEED_RULES", &cfg.Rules.SeedDefaults)
	flag("KESTREL_ASYNC_WORKER", &cfg.AsyncWorker)

	flag("KESTREL_TRACING", &cfg.Tracing.Enabled)
	str("KESTREL_OTLP_ENDPOINT", &cfg.Tracing.Endpoint)

	if v, ok := lookup("KESTREL_DEFAULT_AOV"); ok && v != "" {
		aov, err := strconv.ParseFloat(v, 64)
		if err != nil || aov <= 0 {
			slog.Warn("ignoring invalid default AOV", "value", v)
		} else {
			cfg.Scoring.DefaultAOV = aov
		}
	}

	if v, ok := lookup("KESTREL_DEBUG"); ok && v == "true" {
		cfg.Logging.Level = "debug"
	}
}
