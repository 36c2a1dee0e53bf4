package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/opensource-finance/kestrel/internal/domain"
)

func newMockRepository(t *testing.T, driver string) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewSQLRepository(db, driver), mock
}

func TestPostgresCountMatching(t *testing.T) {
	repo, mock := newMockRepository(t, "pgx")
	until := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	since := until.Add(-24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE card_bin = $1 AND occurred_at > $2 AND occurred_at <= $3")).
		WithArgs("411111", since.UnixMilli(), until.UnixMilli()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountMatching(context.Background(), domain.HistoryCardBIN, "411111", since, until)
	if err != nil {
		t.Fatalf("CountMatching failed: %v", err)
	}
	if count != 4 {
		t.Errorf("expected 4, got %d", count)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresCountMatchingError(t *testing.T) {
	repo, mock := newMockRepository(t, "postgres")
	boom := errors.New("connection reset")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM transactions")).WillReturnError(boom)

	_, err := repo.CountMatching(context.Background(), domain.HistoryEmail, "a@example.com", time.Now(), time.Now())
	if !errors.Is(err, boom) {
		t.Errorf("expected driver error, got: %v", err)
	}
}

func TestPostgresInsertTransaction(t *testing.T) {
	repo, mock := newMockRepository(t, "pgx")
	tx := sampleTx("tx-001", "a@example.com", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (transaction_id) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.InsertTransaction(context.Background(), tx); err != nil {
		t.Fatalf("InsertTransaction failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresSetRuleActiveNotFound(t *testing.T) {
	repo, mock := newMockRepository(t, "postgres")

	mock.ExpectExec(regexp.QuoteMeta("UPDATE rules SET is_active = $1 WHERE id = $2")).
		WithArgs(0, "rule_missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.SetRuleActive(context.Background(), "rule_missing", false)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestPostgresSaveChargebacksRollsBack(t *testing.T) {
	repo, mock := newMockRepository(t, "pgx")

	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO chargebacks"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO chargebacks")).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.SaveChargebacks(context.Background(), []*domain.ChargebackRecord{{ID: "cb-1"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
