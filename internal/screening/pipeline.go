// Package screening runs transactions through the base scorer and the rule
// engine and commits them to history.
package screening

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/scoring"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("kestrel-screening")

// Pipeline scores transactions one at a time. The history read, rule
// evaluation and history write for a transaction happen under one lock, so
// two calls sharing an identity never undercount each other.
type Pipeline struct {
	mu       sync.Mutex
	scorer   *scoring.Scorer
	engine   *rules.Engine
	bus      domain.EventBus
	maxBatch int
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEventBus publishes committed decisions on bus.
func WithEventBus(bus domain.EventBus) Option {
	return func(p *Pipeline) {
		p.bus = bus
	}
}

// WithMaxBatchSize overrides the batch ceiling.
func WithMaxBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxBatch = n
		}
	}
}

// WithClock overrides the time source used for batch timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a screening pipeline.
func New(scorer *scoring.Scorer, engine *rules.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		scorer:   scorer,
		engine:   engine,
		maxBatch: domain.DefaultMaxBatchSize,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxBatchSize returns the configured batch ceiling.
func (p *Pipeline) MaxBatchSize() int {
	return p.maxBatch
}

// Score evaluates tx, applies rules and appends tx to history.
func (p *Pipeline) Score(ctx context.Context, tx *domain.Transaction) (*domain.RiskScoreResult, error) {
	ctx, span := tracer.Start(ctx, "screening.Score",
		trace.WithAttributes(attribute.String("transaction.id", tx.ID)),
	)
	defer span.End()

	result, err := p.commit(ctx, tx)
	if err != nil {
		if errors.Is(err, domain.ErrHistoryUnavailable) {
			metrics.ObserveHistoryError()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("risk.score", result.RiskScore),
		attribute.String("risk.action", string(result.RecommendedAction)),
	)
	metrics.ObserveDecision(result)
	p.publish(ctx, tx, result)

	return result, nil
}

func (p *Pipeline) commit(ctx context.Context, tx *domain.Transaction) (*domain.RiskScoreResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	base, err := p.scorer.Preview(ctx, tx)
	if err != nil {
		return nil, err
	}

	// Rules see the same history snapshot the scorer saw.
	result, err := p.engine.Apply(ctx, tx, base, p.scorer)
	if err != nil {
		return nil, err
	}

	if err := p.scorer.Record(ctx, tx); err != nil {
		return nil, err
	}
	return result, nil
}

// Preview evaluates tx and applies rules without writing history or
// publishing events.
func (p *Pipeline) Preview(ctx context.Context, tx *domain.Transaction) (*domain.RiskScoreResult, error) {
	ctx, span := tracer.Start(ctx, "screening.Preview",
		trace.WithAttributes(attribute.String("transaction.id", tx.ID)),
	)
	defer span.End()

	base, err := p.scorer.Preview(ctx, tx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	result, err := p.engine.Apply(ctx, tx, base, p.scorer)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) publish(ctx context.Context, tx *domain.Transaction, result *domain.RiskScoreResult) {
	if p.bus == nil {
		return
	}

	payload, err := json.Marshal(domain.DecisionEvent{
		Result:      result,
		Email:       tx.Email,
		CardBIN:     tx.CardBIN,
		Amount:      tx.Amount,
		PublishedAt: p.now(),
	})
	if err != nil {
		slog.Error("failed to encode decision", "transaction_id", tx.ID, "error", err)
		return
	}

	if err := p.bus.Publish(ctx, domain.TopicDecision, payload); err != nil {
		slog.Warn("failed to publish decision", "transaction_id", tx.ID, "error", err)
	}
	if result.RecommendedAction == domain.ActionReject {
		if err := p.bus.Publish(ctx, domain.TopicAlert, payload); err != nil {
			slog.Warn("failed to publish alert", "transaction_id", tx.ID, "error", err)
		}
	}
}
