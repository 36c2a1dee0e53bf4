package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// LabelledTransaction is one CSV row: a scoring request plus its ground truth.
type LabelledTransaction struct {
	Request domain.TransactionRequest
	Fraud   bool
}

var requiredColumns = []string{
	"transaction_id", "email", "card_bin", "card_last_four", "amount",
	"billing_country", "shipping_country", "ip_country", "product_category", "is_fraud",
}

// readLabelled parses a header-led CSV. Optional columns are currency,
// customer_id, is_first_purchase and timestamp (RFC 3339).
func readLabelled(r io.Reader, limit int) ([]LabelledTransaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	get := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []LabelledTransaction
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		amount, err := strconv.ParseFloat(get(record, "amount"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: amount: %w", line, err)
		}

		req := domain.TransactionRequest{
			TransactionID:   get(record, "transaction_id"),
			Email:           get(record, "email"),
			CardBIN:         get(record, "card_bin"),
			CardLastFour:    get(record, "card_last_four"),
			Amount:          amount,
			Currency:        get(record, "currency"),
			BillingCountry:  get(record, "billing_country"),
			ShippingCountry: get(record, "shipping_country"),
			IPCountry:       get(record, "ip_country"),
			ProductCategory: domain.ProductCategory(get(record, "product_category")),
			CustomerID:      get(record, "customer_id"),
		}

		if v := get(record, "is_first_purchase"); v != "" {
			first, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("line %d: is_first_purchase: %w", line, err)
			}
			req.IsFirstPurchase = &first
		}
		if v := get(record, "timestamp"); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, fmt.Errorf("line %d: timestamp: %w", line, err)
			}
			req.Timestamp = &ts
		}

		fraud, err := strconv.ParseBool(get(record, "is_fraud"))
		if err != nil {
			return nil, fmt.Errorf("line %d: is_fraud: %w", line, err)
		}

		rows = append(rows, LabelledTransaction{Request: req, Fraud: fraud})
		if limit > 0 && len(rows) >= limit {
			break
		}
	}

	return rows, nil
}

// Tally is the confusion matrix of a replay. A REJECT is a fraud
// prediction; MANUAL_REVIEW counts too when ReviewIsFraud is set.
type Tally struct {
	ReviewIsFraud bool

	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int

	Actions  domain.BatchSummary
	Errors   int
	Requests int
	Latency  time.Duration
}

// Add records one scored transaction against its label.
func (t *Tally) Add(fraud bool, res *domain.RiskScoreResult) {
	t.Actions.Add(res.RecommendedAction)

	predicted := res.RecommendedAction == domain.ActionReject ||
		(t.ReviewIsFraud && res.RecommendedAction == domain.ActionManualReview)

	switch {
	case predicted && fraud:
		t.TruePositives++
	case predicted && !fraud:
		t.FalsePositives++
	case !predicted && fraud:
		t.FalseNegatives++
	default:
		t.TrueNegatives++
	}
}

// Scored is the number of transactions that came back with a decision.
func (t *Tally) Scored() int {
	return t.TruePositives + t.FalsePositives + t.TrueNegatives + t.FalseNegatives
}

func (t *Tally) Precision() float64 {
	return ratio(t.TruePositives, t.TruePositives+t.FalsePositives)
}

func (t *Tally) Recall() float64 {
	return ratio(t.TruePositives, t.TruePositives+t.FalseNegatives)
}

func (t *Tally) F1() float64 {
	p, r := t.Precision(), t.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func (t *Tally) Accuracy() float64 {
	return ratio(t.TruePositives+t.TrueNegatives, t.Scored())
}

// Print writes the report.
func (t *Tally) Print(w io.Writer, elapsed time.Duration) {
	fmt.Fprintln(w, "\nBENCHMARK RESULTS")

	fmt.Fprintf(w, "\nScored:  %d\n", t.Scored())
	fmt.Fprintf(w, "Errors:  %d\n", t.Errors)
	fmt.Fprintf(w, "Actions: APPROVE=%d MANUAL_REVIEW=%d REJECT=%d\n",
		t.Actions.Approve, t.Actions.ManualReview, t.Actions.Reject)

	fmt.Fprintln(w, "\n                 Predicted")
	fmt.Fprintln(w, "               fraud    legit")
	fmt.Fprintf(w, "Actual fraud  %7d  %7d   (TP, FN)\n", t.TruePositives, t.FalseNegatives)
	fmt.Fprintf(w, "       legit  %7d  %7d   (FP, TN)\n", t.FalsePositives, t.TrueNegatives)

	fmt.Fprintf(w, "\nPrecision: %.4f\n", t.Precision())
	fmt.Fprintf(w, "Recall:    %.4f\n", t.Recall())
	fmt.Fprintf(w, "F1-Score:  %.4f\n", t.F1())
	fmt.Fprintf(w, "Accuracy:  %.4f\n", t.Accuracy())

	fmt.Fprintf(w, "\nDuration:  %v\n", elapsed.Round(time.Millisecond))
	if t.Requests > 0 {
		fmt.Fprintf(w, "Avg batch latency: %.2f ms\n", float64(t.Latency.Milliseconds())/float64(t.Requests))
	}
	if elapsed > 0 {
		fmt.Fprintf(w, "Throughput: %.2f tx/sec\n", float64(t.Scored())/elapsed.Seconds())
	}
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
