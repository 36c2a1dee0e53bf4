package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const sample = `transaction_id,email,card_bin,card_last_four,amount,billing_country,shipping_country,ip_country,product_category,is_first_purchase,timestamp,is_fraud
txn_1,maria@gmail.com,411111,1234,89.90,BR,BR,BR,apparel,false,2025-03-01T10:00:00Z,0
txn_2,xk7q9m2p@temp-mail.org,552233,9876,1500,US,NG,RU,electronics,,,1
txn_3,joe@yahoo.com,411111,4321,40,US,US,US,home_goods,true,,false
`

func TestReadLabelled(t *testing.T) {
	rows, err := readLabelled(strings.NewReader(sample), 0)
	if err != nil {
		t.Fatalf("readLabelled failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	first := rows[0]
	if first.Fraud {
		t.Error("expected txn_1 to be legit")
	}
	if first.Request.Amount != 89.90 {
		t.Errorf("expected amount 89.90, got %v", first.Request.Amount)
	}
	if first.Request.IsFirstPurchase == nil || *first.Request.IsFirstPurchase {
		t.Error("expected explicit is_first_purchase=false")
	}
	want := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if first.Request.Timestamp == nil || !first.Request.Timestamp.Equal(want) {
		t.Errorf("expected timestamp %v, got %v", want, first.Request.Timestamp)
	}

	second := rows[1]
	if !second.Fraud {
		t.Error("expected txn_2 to be fraud")
	}
	if second.Request.IsFirstPurchase != nil || second.Request.Timestamp != nil {
		t.Error("expected empty optional columns to stay unset")
	}
	if second.Request.ProductCategory != domain.CategoryElectronics {
		t.Errorf("expected electronics, got %s", second.Request.ProductCategory)
	}
}

func TestReadLabelledLimit(t *testing.T) {
	rows, err := readLabelled(strings.NewReader(sample), 2)
	if err != nil {
		t.Fatalf("readLabelled failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(rows))
	}
}

func TestReadLabelledErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing column", "transaction_id,email\ntxn_1,a@b.com\n", `missing column "card_bin"`},
		{"bad amount", strings.Replace(sample, "89.90", "lots", 1), "line 2: amount"},
		{"bad label", strings.Replace(sample, ",false\n", ",maybe\n", 1), "line 4: is_fraud"},
		{"bad timestamp", strings.Replace(sample, "2025-03-01T10:00:00Z", "yesterday", 1), "line 2: timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readLabelled(strings.NewReader(tt.input), 0)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestTally(t *testing.T) {
	result := func(a domain.Action) *domain.RiskScoreResult {
		return &domain.RiskScoreResult{RecommendedAction: a}
	}

	t.Run("RejectOnly", func(t *testing.T) {
		tally := &Tally{}
		tally.Add(true, result(domain.ActionReject))
		tally.Add(true, result(domain.ActionManualReview))
		tally.Add(false, result(domain.ActionReject))
		tally.Add(false, result(domain.ActionApprove))

		if tally.TruePositives != 1 || tally.FalseNegatives != 1 ||
			tally.FalsePositives != 1 || tally.TrueNegatives != 1 {
			t.Errorf("unexpected matrix: %+v", tally)
		}
		if tally.Precision() != 0.5 || tally.Recall() != 0.5 || tally.F1() != 0.5 {
			t.Errorf("expected 0.5 precision/recall/f1, got %v %v %v",
				tally.Precision(), tally.Recall(), tally.F1())
		}
		if tally.Actions.Reject != 2 || tally.Actions.ManualReview != 1 || tally.Actions.Approve != 1 {
			t.Errorf("unexpected action counts: %+v", tally.Actions)
		}
	})

	t.Run("ReviewIsFraud", func(t *testing.T) {
		tally := &Tally{ReviewIsFraud: true}
		tally.Add(true, result(domain.ActionManualReview))
		tally.Add(false, result(domain.ActionApprove))

		if tally.TruePositives != 1 || tally.TrueNegatives != 1 {
			t.Errorf("unexpected matrix: %+v", tally)
		}
		if tally.Accuracy() != 1 {
			t.Errorf("expected accuracy 1, got %v", tally.Accuracy())
		}
	})

	t.Run("EmptyIsZero", func(t *testing.T) {
		tally := &Tally{}
		if tally.Precision() != 0 || tally.Recall() != 0 || tally.F1() != 0 || tally.Accuracy() != 0 {
			t.Error("expected zero metrics for empty tally")
		}
		var buf bytes.Buffer
		tally.Print(&buf, 0)
		if !strings.Contains(buf.String(), "Scored:  0") {
			t.Errorf("unexpected report:\n%s", buf.String())
		}
	})
}
