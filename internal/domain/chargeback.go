package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used for chargeback dates.
const DateLayout = "2006-01-02"

// ReasonCode is the closed set of dispute reasons.
type ReasonCode string

const (
	ReasonFraud          ReasonCode = "FRAUD"
	ReasonNotReceived    ReasonCode = "NOT_RECEIVED"
	ReasonNotAsDescribed ReasonCode = "NOT_AS_DESCRIBED"
	ReasonDuplicate      ReasonCode = "DUPLICATE"
	ReasonOther          ReasonCode = "OTHER"
)

// Valid reports whether r is a known reason code.
func (r ReasonCode) Valid() bool {
	switch r {
	case ReasonFraud, ReasonNotReceived, ReasonNotAsDescribed, ReasonDuplicate, ReasonOther:
		return true
	}
	return false
}

// ChargebackRecord is a historical dispute. Dates are calendar days in UTC.
type ChargebackRecord struct {
	ID              string          `json:"id"`
	TransactionID   string          `json:"transaction_id"`
	TransactionDate time.Time       `json:"transaction_date"`
	ChargebackDate  time.Time       `json:"chargeback_date"`
	Amount          decimal.Decimal `json:"amount"`
	Country         string          `json:"country"`
	ProductCategory ProductCategory `json:"product_category"`
	ReasonCode      ReasonCode      `json:"reason_code"`
	Email           string          `json:"email"`
	CardBIN         string          `json:"card_bin"`
}

// ChargebackRequest is the wire payload for importing one record.
type ChargebackRequest struct {
	ID              string          `json:"id" validate:"required,max=128"`
	TransactionID   string          `json:"transaction_id" validate:"required,max=128"`
	TransactionDate string          `json:"transaction_date" validate:"required,datetime=2006-01-02"`
	ChargebackDate  string          `json:"chargeback_date" validate:"required,datetime=2006-01-02"`
	Amount          decimal.Decimal `json:"amount"`
	Country         string          `json:"country" validate:"required,len=2"`
	ProductCategory ProductCategory `json:"product_category" validate:"required,oneof=electronics apparel home_goods"`
	ReasonCode      ReasonCode      `json:"reason_code" validate:"required,oneof=FRAUD NOT_RECEIVED NOT_AS_DESCRIBED DUPLICATE OTHER"`
	Email           string          `json:"email" validate:"required,max=254"`
	CardBIN         string          `json:"card_bin" validate:"required,len=6"`
}

// ToRecord parses the dates and checks date order and amount.
func (r *ChargebackRequest) ToRecord() (*ChargebackRecord, error) {
	txDate, err := time.Parse(DateLayout, r.TransactionDate)
	if err != nil {
		return nil, fmt.Errorf("%w: transaction_date: %v", ErrInvalidInput, err)
	}
	cbDate, err := time.Parse(DateLayout, r.ChargebackDate)
	if err != nil {
		return nil, fmt.Errorf("%w: chargeback_date: %v", ErrInvalidInput, err)
	}
	if cbDate.Before(txDate) {
		return nil, fmt.Errorf("%w: chargeback %s is dated before its transaction", ErrInvalidInput, r.ID)
	}
	if !r.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: chargeback %s amount must be positive", ErrInvalidInput, r.ID)
	}
	return &ChargebackRecord{
		ID:              r.ID,
		TransactionID:   r.TransactionID,
		TransactionDate: txDate,
		ChargebackDate:  cbDate,
		Amount:          r.Amount,
		Country:         r.Country,
		ProductCategory: r.ProductCategory,
		ReasonCode:      r.ReasonCode,
		Email:           r.Email,
		CardBIN:         r.CardBIN,
	}, nil
}

// DateRange is an inclusive calendar-date filter. A nil bound is open.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// Contains reports whether day falls inside the range, bounds included.
func (r DateRange) Contains(day time.Time) bool {
	if r.Start != nil && day.Before(*r.Start) {
		return false
	}
	if r.End != nil && day.After(*r.End) {
		return false
	}
	return true
}

// AnalysisResult is the aggregated view over a set of chargebacks.
type AnalysisResult struct {
	TotalChargebacks int                  `json:"total_chargebacks"`
	AnalysisPeriod   AnalysisPeriod       `json:"analysis_period"`
	ByCountry        []CountryBreakdown   `json:"by_country"`
	ByCategory       []CategoryBreakdown  `json:"by_product_category"`
	ByReasonCode     []ReasonBreakdown    `json:"by_reason_code"`
	TimeToChargeback TimeToChargeback     `json:"time_to_chargeback"`
	RepeatOffenders  RepeatOffenderReport `json:"repeat_offenders"`
	Summary          []string             `json:"summary"`
}

// AnalysisPeriod echoes the requested range, or the observed one when open.
type AnalysisPeriod struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// CountryBreakdown aggregates chargebacks for one country.
type CountryBreakdown struct {
	Country         string  `json:"country"`
	ChargebackCount int     `json:"chargeback_count"`
	Percentage      float64 `json:"percentage"`
	TotalAmount     float64 `json:"total_amount"`
}

// CategoryBreakdown aggregates chargebacks for one product category.
type CategoryBreakdown struct {
	Category        ProductCategory `json:"category"`
	ChargebackCount int             `json:"chargeback_count"`
	Percentage      float64         `json:"percentage"`
	TotalAmount     float64         `json:"total_amount"`
}

// ReasonBreakdown aggregates chargebacks for one reason code.
type ReasonBreakdown struct {
	ReasonCode ReasonCode `json:"reason_code"`
	Count      int        `json:"count"`
	Percentage float64    `json:"percentage"`
}

// TimeToChargeback summarizes the delay between purchase and dispute.
type TimeToChargeback struct {
	AverageDays  float64          `json:"average_days"`
	MedianDays   int              `json:"median_days"`
	MinDays      int              `json:"min_days"`
	MaxDays      int              `json:"max_days"`
	Distribution TimeDistribution `json:"distribution"`
}

// TimeDistribution buckets chargeback delays in days.
type TimeDistribution struct {
	Days0To30  int `json:"0_30_days"`
	Days31To60 int `json:"31_60_days"`
	Days61To90 int `json:"61_90_days"`
	Over90Days int `json:"over_90_days"`
}

// RepeatOffenderReport lists identities with multiple chargebacks.
type RepeatOffenderReport struct {
	ByEmail   []RepeatOffender `json:"by_email"`
	ByCardBIN []RepeatOffender `json:"by_card_bin"`
}

// RepeatOffender is one identity with its chargeback count and exposure.
type RepeatOffender struct {
	Identifier      string  `json:"identifier"`
	ChargebackCount int     `json:"chargeback_count"`
	TotalAmount     float64 `json:"total_amount"`
}
