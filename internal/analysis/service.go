package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("kestrel-analysis")

// generationKey holds a token that changes whenever chargebacks are
// imported. Result keys embed it, so an import invalidates every cached
// range at once.
const generationKey = "analysis:generation"

// Service runs Analyze over the chargeback source and caches results.
type Service struct {
	source domain.ChargebackSource
	cache  domain.Cache
	ttl    time.Duration
	opts   Options
}

// NewService creates an analysis service. cache may be nil.
func NewService(source domain.ChargebackSource, cache domain.Cache, cfg domain.AnalysisConfig) *Service {
	return &Service{
		source: source,
		cache:  cache,
		ttl:    cfg.CacheTTL,
		opts:   Options{RepeatOffenderThreshold: cfg.RepeatOffenderThreshold},
	}
}

// Analyze returns the analysis for r, from cache when possible.
func (s *Service) Analyze(ctx context.Context, r domain.DateRange) (*domain.AnalysisResult, error) {
	ctx, span := tracer.Start(ctx, "analysis.Analyze",
		trace.WithAttributes(attribute.String("range", rangeLabel(r))),
	)
	defer span.End()

	key := s.cacheKey(ctx, r)
	if cached := s.lookup(ctx, key); cached != nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}

	records, err := s.source.AllChargebacks(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load chargebacks: %w", err)
	}

	result := Analyze(records, r, s.opts)
	span.SetAttributes(attribute.Int("chargebacks", result.TotalChargebacks))
	s.store(ctx, key, result)

	return result, nil
}

// Import stores records and invalidates cached analyses. It returns the
// number of records that were new.
func (s *Service) Import(ctx context.Context, records []*domain.ChargebackRecord) (int, error) {
	n, err := s.source.SaveChargebacks(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("failed to save chargebacks: %w", err)
	}

	if s.cache != nil && n > 0 {
		if err := s.cache.Set(ctx, generationKey, []byte(uuid.NewString()), 0); err != nil {
			slog.Warn("failed to invalidate analysis cache", "error", err)
		}
	}

	slog.Info("chargebacks imported", "received", len(records), "inserted", n)
	return n, nil
}

func (s *Service) cacheKey(ctx context.Context, r domain.DateRange) string {
	gen := "0"
	if s.cache != nil {
		if v, err := s.cache.Get(ctx, generationKey); err == nil && v != nil {
			gen = string(v)
		}
	}
	return "analysis:" + gen + ":" + rangeLabel(r)
}

func (s *Service) lookup(ctx context.Context, key string) *domain.AnalysisResult {
	if s.cache == nil || s.ttl <= 0 {
		return nil
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("analysis cache read failed", "key", key, "error", err)
		return nil
	}
	if data == nil {
		metrics.ObserveAnalysisCache(false)
		return nil
	}

	var result domain.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		slog.Warn("analysis cache entry unreadable", "key", key, "error", err)
		return nil
	}
	metrics.ObserveAnalysisCache(true)
	return &result
}

func (s *Service) store(ctx context.Context, key string, result *domain.AnalysisResult) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		slog.Warn("analysis cache write failed", "key", key, "error", err)
	}
}

func rangeLabel(r domain.DateRange) string {
	start, end := "*", "*"
	if r.Start != nil {
		start = r.Start.Format(domain.DateLayout)
	}
	if r.End != nil {
		end = r.End.Format(domain.DateLayout)
	}
	return start + ".." + end
}
