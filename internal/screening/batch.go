package screening

import (
	"context"
	"fmt"
	"strconv"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BatchScore screens txs in order. Each transaction is committed to history
// before the next one is scored, so later entries see earlier ones. The
// first failure aborts the batch.
func (p *Pipeline) BatchScore(ctx context.Context, txs []*domain.Transaction) (*domain.BatchResult, error) {
	if err := p.checkBatchSize(len(txs)); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "screening.BatchScore",
		trace.WithAttributes(attribute.Int("batch.size", len(txs))),
	)
	defer span.End()
	metrics.ObserveBatch(len(txs))

	out := &domain.BatchResult{
		Total:    len(txs),
		ScoredAt: p.now(),
		Results:  make([]*domain.RiskScoreResult, 0, len(txs)),
	}

	for i, tx := range txs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := p.Score(ctx, tx)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("transaction %d (%s): %w", i, tx.ID, err)
		}

		out.Summary.Add(result.RecommendedAction)
		out.Results = append(out.Results, result)
	}

	return out, nil
}

func (p *Pipeline) checkBatchSize(n int) error {
	switch {
	case n == 0:
		ve := domain.NewValidationError()
		ve.AddError("transactions", "transactions must contain at least 1 item")
		return ve
	case n > p.maxBatch:
		ve := domain.NewValidationError()
		ve.AddError("transactions", "transactions must contain at most "+strconv.Itoa(p.maxBatch)+" items")
		return ve
	}
	return nil
}
