// Package scoring implements the six-signal base risk scorer.
package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/disposable"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/velocity"
)

// Scorer computes the base risk score of a transaction against history.
type Scorer struct {
	history    domain.HistoryStore
	velocity   *velocity.Service
	defaultAOV float64
	now        func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithDefaultAOV sets the average order value used when history is empty.
func WithDefaultAOV(aov float64) Option {
	return func(s *Scorer) {
		if aov > 0 {
			s.defaultAOV = aov
		}
	}
}

// WithClock overrides the time source used for ScoredAt.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		s.now = now
	}
}

// NewScorer creates a scorer reading from history.
func NewScorer(history domain.HistoryStore, opts ...Option) *Scorer {
	s := &Scorer{
		history:    history,
		velocity:   velocity.NewService(history),
		defaultAOV: domain.DefaultAOV,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score evaluates tx and then appends it to history, so later calls observe
// it. A history failure is returned as ErrHistoryUnavailable.
func (s *Scorer) Score(ctx context.Context, tx *domain.Transaction) (*domain.RiskScoreResult, error) {
	result, err := s.Preview(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := s.Record(ctx, tx); err != nil {
		return nil, err
	}
	return result, nil
}

// Preview evaluates tx without touching history.
func (s *Scorer) Preview(ctx context.Context, tx *domain.Transaction) (*domain.RiskScoreResult, error) {
	count, err := s.velocity.Max(ctx, tx)
	if err != nil {
		return nil, err
	}

	aov, err := s.averageOrderValue(ctx)
	if err != nil {
		return nil, err
	}

	factors := make([]domain.RiskFactor, 0, 6)
	total := 0
	add := func(f domain.RiskFactor, ok bool) {
		if ok {
			factors = append(factors, f)
			total += f.Score
		}
	}

	add(velocityFactor(count))
	add(geolocationFactor(tx))
	add(categoryFactor(tx))
	add(amountFactor(tx, aov))
	add(newCustomerFactor(tx))
	add(emailFactor(tx))

	return domain.NewRiskScoreResult(tx.ID, total, factors, s.now()), nil
}

// Record appends tx to history.
func (s *Scorer) Record(ctx context.Context, tx *domain.Transaction) error {
	if err := s.history.InsertTransaction(ctx, tx); err != nil {
		return fmt.Errorf("%w: insert %s: %v", domain.ErrHistoryUnavailable, tx.ID, err)
	}
	return nil
}

// Velocity24h is the largest 24h count across email, card BIN and IP country.
func (s *Scorer) Velocity24h(ctx context.Context, tx *domain.Transaction) (int, error) {
	return s.velocity.Max(ctx, tx)
}

// EmailDomainDisposable reports whether tx's email domain is disposable.
func (s *Scorer) EmailDomainDisposable(tx *domain.Transaction) bool {
	return disposable.IsDisposableEmail(tx.Email)
}

func (s *Scorer) averageOrderValue(ctx context.Context) (float64, error) {
	avg, ok, err := s.history.AverageAmount(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: average amount: %v", domain.ErrHistoryUnavailable, err)
	}
	if !ok || avg <= 0 {
		return s.defaultAOV, nil
	}
	return avg, nil
}
