package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

func newTestSQLite(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "kestrel-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func sampleTx(id, email string, ts time.Time) *domain.Transaction {
	return &domain.Transaction{
		ID:              id,
		Email:           email,
		CardBIN:         "411111",
		CardLastFour:    "4242",
		Amount:          100,
		Currency:        "USD",
		BillingCountry:  "US",
		ShippingCountry: "US",
		IPCountry:       "US",
		ProductCategory: domain.CategoryApparel,
		IsFirstPurchase: true,
		Timestamp:       ts,
	}
}

// exerciseRepository runs the shared behavioral checks against any backend.
func exerciseRepository(t *testing.T, repo domain.Repository) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("AverageAmountEmpty", func(t *testing.T) {
		_, ok, err := repo.AverageAmount(ctx)
		if err != nil {
			t.Fatalf("AverageAmount failed: %v", err)
		}
		if ok {
			t.Error("expected no average on empty history")
		}
	})

	t.Run("InsertAndCount", func(t *testing.T) {
		txs := []*domain.Transaction{
			sampleTx("tx-001", "a@example.com", now.Add(-2*time.Hour)),
			sampleTx("tx-002", "a@example.com", now.Add(-1*time.Hour)),
			sampleTx("tx-003", "a@example.com", now.Add(-25*time.Hour)),
			sampleTx("tx-004", "b@example.com", now),
		}
		txs[3].Amount = 300
		for _, tx := range txs {
			if err := repo.InsertTransaction(ctx, tx); err != nil {
				t.Fatalf("InsertTransaction failed: %v", err)
			}
		}

		count, err := repo.CountMatching(ctx, domain.HistoryEmail, "a@example.com", now.Add(-24*time.Hour), now)
		if err != nil {
			t.Fatalf("CountMatching failed: %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 email matches in window, got %d", count)
		}

		count, err = repo.CountMatching(ctx, domain.HistoryCardBIN, "411111", now.Add(-24*time.Hour), now)
		if err != nil {
			t.Fatalf("CountMatching failed: %v", err)
		}
		if count != 3 {
			t.Errorf("expected 3 card_bin matches in window, got %d", count)
		}

		// The lower bound is exclusive.
		count, err = repo.CountMatching(ctx, domain.HistoryIPCountry, "US", now.Add(-2*time.Hour), now)
		if err != nil {
			t.Fatalf("CountMatching failed: %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 ip_country matches, got %d", count)
		}
	})

	t.Run("DuplicateInsertIgnored", func(t *testing.T) {
		if err := repo.InsertTransaction(ctx, sampleTx("tx-001", "a@example.com", now)); err != nil {
			t.Fatalf("duplicate insert should be ignored, got: %v", err)
		}
		count, err := repo.CountMatching(ctx, domain.HistoryEmail, "a@example.com", now.Add(-48*time.Hour), now)
		if err != nil {
			t.Fatalf("CountMatching failed: %v", err)
		}
		if count != 3 {
			t.Errorf("expected 3 stored email matches, got %d", count)
		}
	})

	t.Run("AverageAmount", func(t *testing.T) {
		avg, ok, err := repo.AverageAmount(ctx)
		if err != nil {
			t.Fatalf("AverageAmount failed: %v", err)
		}
		if !ok {
			t.Fatal("expected an average")
		}
		if avg != 150 {
			t.Errorf("expected average 150, got %.2f", avg)
		}
	})

	t.Run("UnknownHistoryField", func(t *testing.T) {
		_, err := repo.CountMatching(ctx, domain.HistoryField("customer_id"), "x", now, now)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got: %v", err)
		}
	})

	t.Run("Rules", func(t *testing.T) {
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		seed := []*domain.Rule{
			{
				ID:   "rule_b",
				Name: "second",
				Conditions: []domain.Condition{
					{Field: "amount", Operator: domain.OpGt, Value: 500.0},
				},
				Action:    domain.ActionManualReview,
				Modifier:  10,
				IsActive:  true,
				Priority:  2,
				CreatedAt: base,
			},
			{
				ID:   "rule_a",
				Name: "first",
				Conditions: []domain.Condition{
					{Field: "billing_country", Operator: domain.OpNeq, ValueField: "shipping_country"},
					{Field: "ip_country", Operator: domain.OpIn, Value: []any{"NG", "RU"}},
				},
				Action:    domain.ActionReject,
				Modifier:  -5,
				IsActive:  true,
				Priority:  1,
				CreatedAt: base.Add(time.Second),
			},
		}

		n, err := repo.SeedRules(ctx, seed)
		if err != nil {
			t.Fatalf("SeedRules failed: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 seeded, got %d", n)
		}

		n, err = repo.SeedRules(ctx, seed)
		if err != nil {
			t.Fatalf("SeedRules (again) failed: %v", err)
		}
		if n != 0 {
			t.Errorf("expected reseed to insert nothing, got %d", n)
		}

		created, err := repo.CreateRule(ctx, &domain.Rule{
			Name:       "third",
			Conditions: []domain.Condition{{Field: "currency", Operator: domain.OpEq, Value: "EUR"}},
			Action:     domain.ActionApprove,
			IsActive:   false,
			Priority:   0,
		})
		if err != nil {
			t.Fatalf("CreateRule failed: %v", err)
		}
		if len(created.ID) != len("rule_")+8 {
			t.Errorf("unexpected generated id %q", created.ID)
		}

		active, err := repo.ListActiveRules(ctx)
		if err != nil {
			t.Fatalf("ListActiveRules failed: %v", err)
		}
		if len(active) != 2 {
			t.Fatalf("expected 2 active rules, got %d", len(active))
		}
		if active[0].ID != "rule_a" || active[1].ID != "rule_b" {
			t.Errorf("expected priority order rule_a, rule_b; got %s, %s", active[0].ID, active[1].ID)
		}
		if active[0].Modifier != -5 {
			t.Errorf("expected modifier -5, got %d", active[0].Modifier)
		}
		if len(active[0].Conditions) != 2 || active[0].Conditions[0].ValueField != "shipping_country" {
			t.Errorf("conditions did not round-trip: %+v", active[0].Conditions)
		}

		all, err := repo.ListRules(ctx)
		if err != nil {
			t.Fatalf("ListRules failed: %v", err)
		}
		if len(all) != 3 || all[0].ID != created.ID {
			t.Errorf("expected 3 rules with the priority 0 rule first, got %d", len(all))
		}

		toggled, err := repo.SetRuleActive(ctx, created.ID, true)
		if err != nil {
			t.Fatalf("SetRuleActive failed: %v", err)
		}
		if !toggled.IsActive {
			t.Error("expected rule to be active")
		}

		_, err = repo.SetRuleActive(ctx, "rule_missing", true)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("Chargebacks", func(t *testing.T) {
		records := []*domain.ChargebackRecord{
			{
				ID:              "cb-002",
				TransactionID:   "tx-9",
				TransactionDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
				ChargebackDate:  time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC),
				Amount:          decimal.RequireFromString("49.99"),
				Country:         "BR",
				ProductCategory: domain.CategoryElectronics,
				ReasonCode:      domain.ReasonFraud,
				Email:           "x@example.com",
				CardBIN:         "511111",
			},
			{
				ID:              "cb-001",
				TransactionID:   "tx-8",
				TransactionDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				ChargebackDate:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
				Amount:          decimal.RequireFromString("100.00"),
				Country:         "US",
				ProductCategory: domain.CategoryApparel,
				ReasonCode:      domain.ReasonNotReceived,
				Email:           "y@example.com",
				CardBIN:         "411111",
			},
		}

		n, err := repo.SaveChargebacks(ctx, records)
		if err != nil {
			t.Fatalf("SaveChargebacks failed: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 inserted, got %d", n)
		}

		n, err = repo.SaveChargebacks(ctx, records[:1])
		if err != nil {
			t.Fatalf("SaveChargebacks (again) failed: %v", err)
		}
		if n != 0 {
			t.Errorf("expected duplicate import to insert nothing, got %d", n)
		}

		got, err := repo.AllChargebacks(ctx)
		if err != nil {
			t.Fatalf("AllChargebacks failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 chargebacks, got %d", len(got))
		}
		if got[0].ID != "cb-001" {
			t.Errorf("expected chargeback date order, got %s first", got[0].ID)
		}
		if !got[1].Amount.Equal(decimal.RequireFromString("49.99")) {
			t.Errorf("expected amount 49.99, got %s", got[1].Amount)
		}
		if !got[1].TransactionDate.Equal(records[0].TransactionDate) {
			t.Errorf("transaction date did not round-trip: %v", got[1].TransactionDate)
		}
		if got[1].ReasonCode != domain.ReasonFraud {
			t.Errorf("expected FRAUD, got %s", got[1].ReasonCode)
		}
	})
}

func TestSQLiteRepository(t *testing.T) {
	exerciseRepository(t, newTestSQLite(t))
}

func TestMemoryRepository(t *testing.T) {
	repo, err := New(domain.RepositoryConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	exerciseRepository(t, repo)

	repo.Close()
	if err := repo.Ping(context.Background()); err == nil {
		t.Error("expected Ping to fail after Close")
	}
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		driver   string
		input    string
		expected string
	}{
		{"postgres", "SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"pgx", "INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"postgres", "SELECT * FROM t", "SELECT * FROM t"},
		{"sqlite", "SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = ?"},
	}

	for _, tt := range tests {
		repo := &SQLRepository{driver: tt.driver}
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("%s rebind(%q) = %q, want %q", tt.driver, tt.input, result, tt.expected)
		}
	}
}

func TestNewRuleID(t *testing.T) {
	a, b := NewRuleID(), NewRuleID()
	if a == b {
		t.Error("expected distinct ids")
	}
	if len(a) != 13 || a[:5] != "rule_" {
		t.Errorf("unexpected id format %q", a)
	}
}
