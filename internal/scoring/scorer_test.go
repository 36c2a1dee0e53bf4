package scoring

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func mariaTx() *domain.Transaction {
	return &domain.Transaction{
		ID:              "txn_maria",
		Email:           "maria.silva@gmail.com",
		CardBIN:         "455678",
		CardLastFour:    "1234",
		Amount:          45,
		Currency:        "BRL",
		BillingCountry:  "BR",
		ShippingCountry: "BR",
		IPCountry:       "BR",
		ProductCategory: domain.CategoryApparel,
		IsFirstPurchase: false,
		Timestamp:       fixedNow,
	}
}

func suspiciousTx() *domain.Transaction {
	return &domain.Transaction{
		ID:              "txn_suspicious",
		Email:           "xk7q9m2p@temp-mail.org",
		CardBIN:         "512345",
		CardLastFour:    "9876",
		Amount:          750,
		Currency:        "USD",
		BillingCountry:  "BR",
		ShippingCountry: "CO",
		IPCountry:       "MX",
		ProductCategory: domain.CategoryElectronics,
		IsFirstPurchase: true,
		Timestamp:       fixedNow,
	}
}

func factorScores(result *domain.RiskScoreResult) map[string]int {
	m := make(map[string]int, len(result.RiskFactors))
	for _, f := range result.RiskFactors {
		m[f.Signal] = f.Score
	}
	return m
}

func TestScoreCleanTransaction(t *testing.T) {
	s := NewScorer(repository.NewMemoryRepository(), WithClock(fixedClock))

	result, err := s.Score(context.Background(), mariaTx())
	require.NoError(t, err)

	assert.Equal(t, 0, result.RiskScore)
	assert.Equal(t, domain.RiskLow, result.RiskLevel)
	assert.Equal(t, domain.ActionApprove, result.RecommendedAction)
	assert.NotNil(t, result.RiskFactors)
	assert.Empty(t, result.RiskFactors)
	assert.Equal(t, fixedNow, result.ScoredAt)
}

func TestScoreSuspiciousTransaction(t *testing.T) {
	s := NewScorer(repository.NewMemoryRepository(), WithClock(fixedClock))

	result, err := s.Score(context.Background(), suspiciousTx())
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		domain.SignalGeolocation: 20,
		domain.SignalCategory:    15,
		domain.SignalAmount:      20,
		domain.SignalNewCustomer: 10,
		domain.SignalEmail:       10,
	}, factorScores(result))
	assert.Equal(t, 75, result.RiskScore)
	assert.Equal(t, domain.RiskHigh, result.RiskLevel)
	assert.Equal(t, domain.ActionManualReview, result.RecommendedAction)

	// Factors follow the fixed signal order.
	require.Len(t, result.RiskFactors, 5)
	assert.Equal(t, domain.SignalGeolocation, result.RiskFactors[0].Signal)
	assert.Contains(t, result.RiskFactors[0].Description, "billing/shipping (BR vs CO)")
	assert.Contains(t, result.RiskFactors[2].Description, "($750.00)")
	assert.Equal(t, domain.SignalEmail, result.RiskFactors[4].Signal)
}

func TestScoreRecordsHistory(t *testing.T) {
	repo := repository.NewMemoryRepository()
	s := NewScorer(repo, WithClock(fixedClock))
	ctx := context.Background()

	_, err := s.Preview(ctx, mariaTx())
	require.NoError(t, err)
	_, ok, err := repo.AverageAmount(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "preview must not write history")

	_, err = s.Score(ctx, mariaTx())
	require.NoError(t, err)
	avg, ok, err := repo.AverageAmount(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 45.0, avg)
}

func TestScoreDeterministicAcrossIndependentStores(t *testing.T) {
	a := NewScorer(repository.NewMemoryRepository(), WithClock(fixedClock))
	b := NewScorer(repository.NewMemoryRepository(), WithClock(fixedClock))

	ra, err := a.Score(context.Background(), suspiciousTx())
	require.NoError(t, err)
	rb, err := b.Score(context.Background(), suspiciousTx())
	require.NoError(t, err)

	assert.Equal(t, ra, rb)
}

func TestVelocityMonotonic(t *testing.T) {
	repo := repository.NewMemoryRepository()
	s := NewScorer(repo, WithClock(fixedClock))
	ctx := context.Background()

	probe := mariaTx()
	probe.ID = "probe"

	previous := 0
	for i := 0; i < 10; i++ {
		result, err := s.Preview(ctx, probe)
		require.NoError(t, err)
		points := factorScores(result)[domain.SignalVelocity]
		assert.GreaterOrEqual(t, points, previous, "after %d prior transactions", i)
		previous = points

		prior := mariaTx()
		prior.ID = "prior-" + string(rune('a'+i))
		prior.Timestamp = fixedNow.Add(-time.Duration(i+1) * time.Minute)
		require.NoError(t, repo.InsertTransaction(ctx, prior))
	}
	assert.Equal(t, MaxVelocityPoints, previous)
}

func TestAmountUsesHistoricalAverage(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ctx := context.Background()
	for i, amount := range []float64{100, 300} {
		tx := mariaTx()
		tx.ID = "hist-" + string(rune('a'+i))
		tx.Amount = amount
		tx.Timestamp = fixedNow.Add(-72 * time.Hour)
		require.NoError(t, repo.InsertTransaction(ctx, tx))
	}

	s := NewScorer(repo, WithClock(fixedClock))
	tx := mariaTx()
	tx.Amount = 500 // 2.5x the 200 average

	result, err := s.Preview(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, 8, factorScores(result)[domain.SignalAmount])
}

func TestScoreHistoryUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM transactions")).
		WillReturnError(errors.New("database is locked"))

	s := NewScorer(repository.NewSQLRepository(db, "sqlite"))
	result, err := s.Score(context.Background(), mariaTx())

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrHistoryUnavailable)
}

func TestScoreInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < 3; i++ {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM transactions")).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	}
	mock.ExpectQuery(regexp.QuoteMeta("AVG(amount)")).
		WillReturnRows(sqlmock.NewRows([]string{"count", "avg"}).AddRow(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
		WillReturnError(errors.New("disk I/O error"))

	s := NewScorer(repository.NewSQLRepository(db, "sqlite"))
	_, err = s.Score(context.Background(), mariaTx())

	assert.ErrorIs(t, err, domain.ErrHistoryUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}
