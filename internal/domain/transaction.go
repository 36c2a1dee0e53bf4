package domain

import (
	"strings"
	"time"
)

// ProductCategory is the closed set of merchandise categories.
type ProductCategory string

const (
	CategoryElectronics ProductCategory = "electronics"
	CategoryApparel     ProductCategory = "apparel"
	CategoryHomeGoods   ProductCategory = "home_goods"
)

// Valid reports whether c is one of the known categories.
func (c ProductCategory) Valid() bool {
	switch c {
	case CategoryElectronics, CategoryApparel, CategoryHomeGoods:
		return true
	}
	return false
}

// DefaultCurrency is applied when a transaction arrives without one.
const DefaultCurrency = "USD"

// Transaction is a candidate purchase event to be scored.
type Transaction struct {
	ID              string          `json:"transaction_id" validate:"required,max=128"`
	Email           string          `json:"email" validate:"required,max=254"`
	CardBIN         string          `json:"card_bin" validate:"required,len=6"`
	CardLastFour    string          `json:"card_last_four" validate:"required,len=4"`
	Amount          float64         `json:"amount" validate:"gt=0"`
	Currency        string          `json:"currency" validate:"max=3"`
	BillingCountry  string          `json:"billing_country" validate:"required,len=2"`
	ShippingCountry string          `json:"shipping_country" validate:"required,len=2"`
	IPCountry       string          `json:"ip_country" validate:"required,len=2"`
	ProductCategory ProductCategory `json:"product_category" validate:"required,oneof=electronics apparel home_goods"`
	CustomerID      string          `json:"customer_id,omitempty" validate:"max=128"`
	IsFirstPurchase bool            `json:"is_first_purchase"`
	Timestamp       time.Time       `json:"timestamp"`
}

// Normalize fills defaults that the caller may omit.
// A zero timestamp becomes now, in UTC.
func (t *Transaction) Normalize(now time.Time) {
	if t.Currency == "" {
		t.Currency = DefaultCurrency
	}
	t.Currency = strings.ToUpper(t.Currency)
	t.BillingCountry = strings.ToUpper(t.BillingCountry)
	t.ShippingCountry = strings.ToUpper(t.ShippingCountry)
	t.IPCountry = strings.ToUpper(t.IPCountry)
	if t.Timestamp.IsZero() {
		t.Timestamp = now
	}
	t.Timestamp = t.Timestamp.UTC()
}

// TransactionRequest is the wire payload for scoring. Optional fields are
// pointers so that defaults can be told apart from explicit values.
type TransactionRequest struct {
	TransactionID   string          `json:"transaction_id" validate:"required,max=128"`
	Email           string          `json:"email" validate:"required,max=254"`
	CardBIN         string          `json:"card_bin" validate:"required,len=6,numeric"`
	CardLastFour    string          `json:"card_last_four" validate:"required,len=4,numeric"`
	Amount          float64         `json:"amount" validate:"gt=0"`
	Currency        string          `json:"currency" validate:"omitempty,max=3"`
	BillingCountry  string          `json:"billing_country" validate:"required,len=2"`
	ShippingCountry string          `json:"shipping_country" validate:"required,len=2"`
	IPCountry       string          `json:"ip_country" validate:"required,len=2"`
	ProductCategory ProductCategory `json:"product_category" validate:"required,oneof=electronics apparel home_goods"`
	CustomerID      string          `json:"customer_id,omitempty" validate:"max=128"`
	IsFirstPurchase *bool           `json:"is_first_purchase,omitempty"`
	Timestamp       *time.Time      `json:"timestamp,omitempty"`
}

// ToTransaction converts a request to a Transaction with defaults applied.
func (r *TransactionRequest) ToTransaction(now time.Time) *Transaction {
	tx := &Transaction{
		ID:              r.TransactionID,
		Email:           r.Email,
		CardBIN:         r.CardBIN,
		CardLastFour:    r.CardLastFour,
		Amount:          r.Amount,
		Currency:        r.Currency,
		BillingCountry:  r.BillingCountry,
		ShippingCountry: r.ShippingCountry,
		IPCountry:       r.IPCountry,
		ProductCategory: r.ProductCategory,
		CustomerID:      r.CustomerID,
		IsFirstPurchase: true,
	}
	if r.IsFirstPurchase != nil {
		tx.IsFirstPurchase = *r.IsFirstPurchase
	}
	if r.Timestamp != nil {
		tx.Timestamp = *r.Timestamp
	}
	tx.Normalize(now)
	return tx
}
