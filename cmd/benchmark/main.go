// Benchmark replays labelled transactions against a running Kestrel server.
//
// Usage:
//
//	go run ./cmd/benchmark -csv /path/to/labelled.csv -url http://localhost:8080
//
// Rows are sent in file order through /api/v1/transactions/batch-score so
// that velocity and order history build up the same way they would in
// production. Each decision is compared with the row's is_fraud label.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func main() {
	csvPath := flag.String("csv", "", "Path to labelled transaction CSV")
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	limit := flag.Int("limit", 10000, "Maximum transactions to replay (0 = all)")
	batchSize := flag.Int("batch", 100, "Transactions per batch-score request")
	reviewIsFraud := flag.Bool("review-positive", false, "Count MANUAL_REVIEW as a fraud prediction")
	verbose := flag.Bool("verbose", false, "Print each transaction result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/labelled.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *batchSize <= 0 || *batchSize > domain.DefaultMaxBatchSize {
		fmt.Printf("ERROR: -batch must be between 1 and %d\n", domain.DefaultMaxBatchSize)
		os.Exit(1)
	}

	fmt.Println("KESTREL BENCHMARK")
	fmt.Printf("\nCSV File:        %s\n", *csvPath)
	fmt.Printf("Kestrel URL:     %s\n", *baseURL)
	fmt.Printf("Batch Size:      %d\n", *batchSize)
	fmt.Printf("Limit:           %d\n", *limit)
	fmt.Printf("Review Positive: %v\n\n", *reviewIsFraud)

	client := &http.Client{Timeout: 30 * time.Second}

	if err := checkHealth(client, *baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		os.Exit(1)
	}
	fmt.Println("Kestrel is healthy")

	f, err := os.Open(*csvPath)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
	rows, err := readLabelled(f, *limit)
	f.Close()
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d transactions\n", len(rows))

	tally := &Tally{ReviewIsFraud: *reviewIsFraud}
	start := time.Now()

	for from := 0; from < len(rows); from += *batchSize {
		to := min(from+*batchSize, len(rows))
		chunk := rows[from:to]

		began := time.Now()
		results, err := scoreBatch(client, *baseURL, chunk)
		tally.Latency += time.Since(began)
		tally.Requests++

		if err != nil {
			tally.Errors += len(chunk)
			if *verbose {
				fmt.Printf("ERROR: rows %d-%d -> %v\n", from, to-1, err)
			}
			continue
		}

		for i, res := range results {
			tally.Add(chunk[i].Fraud, res)
			if *verbose {
				fmt.Printf("%-24s | $%10.2f | fraud=%-5v | %3d %-8s %s\n",
					res.TransactionID, chunk[i].Request.Amount, chunk[i].Fraud,
					res.RiskScore, res.RiskLevel, res.RecommendedAction)
			}
		}
	}

	tally.Print(os.Stdout, time.Since(start))
}

func checkHealth(client *http.Client, baseURL string) error {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func scoreBatch(client *http.Client, baseURL string, rows []LabelledTransaction) ([]*domain.RiskScoreResult, error) {
	req := domain.BatchRequest{Transactions: make([]domain.TransactionRequest, len(rows))}
	for i, row := range rows {
		req.Transactions[i] = row.Request
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := client.Post(baseURL+"/api/v1/transactions/batch-score", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var out domain.BatchResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Results) != len(rows) {
		return nil, fmt.Errorf("expected %d results, got %d", len(rows), len(out.Results))
	}
	return out.Results, nil
}
