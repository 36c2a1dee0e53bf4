package scoring

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/kestrel/internal/disposable"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/velocity"
)

// Signal maxima.
const (
	MaxVelocityPoints    = 25
	MaxGeolocationPoints = 20
	MaxCategoryPoints    = 15
	MaxAmountPoints      = 20
	MaxNewCustomerPoints = 10
	MaxEmailPoints       = 10
)

// HighValueFirstPurchase is the amount above which a first purchase earns
// the full new-customer weight.
const HighValueFirstPurchase = 200.0

var categoryPoints = map[domain.ProductCategory]int{
	domain.CategoryElectronics: 15,
	domain.CategoryHomeGoods:   5,
	domain.CategoryApparel:     0,
}

func velocityFactor(count int) (domain.RiskFactor, bool) {
	points := velocity.Points(count)
	if points == 0 {
		return domain.RiskFactor{}, false
	}
	return domain.RiskFactor{
		Signal:      domain.SignalVelocity,
		Score:       points,
		Description: fmt.Sprintf("%d transactions from same email/card_bin/ip_country in last 24h", count),
	}, true
}

func geolocationFactor(tx *domain.Transaction) (domain.RiskFactor, bool) {
	pairs := []struct {
		name string
		a, b string
	}{
		{"billing/shipping", tx.BillingCountry, tx.ShippingCountry},
		{"billing/IP", tx.BillingCountry, tx.IPCountry},
		{"shipping/IP", tx.ShippingCountry, tx.IPCountry},
	}

	var mismatched []string
	for _, p := range pairs {
		if p.a != p.b {
			mismatched = append(mismatched, fmt.Sprintf("%s (%s vs %s)", p.name, p.a, p.b))
		}
	}
	if len(mismatched) == 0 {
		return domain.RiskFactor{}, false
	}

	return domain.RiskFactor{
		Signal:      domain.SignalGeolocation,
		Score:       min(10*len(mismatched), MaxGeolocationPoints),
		Description: "Country mismatch detected: " + strings.Join(mismatched, ", "),
	}, true
}

func categoryFactor(tx *domain.Transaction) (domain.RiskFactor, bool) {
	points := categoryPoints[tx.ProductCategory]
	if points == 0 {
		return domain.RiskFactor{}, false
	}
	return domain.RiskFactor{
		Signal:      domain.SignalCategory,
		Score:       points,
		Description: fmt.Sprintf("Product category '%s' has elevated chargeback rates", tx.ProductCategory),
	}, true
}

// amountPoints maps amount/AOV onto the anomaly tiers.
//
//	<=2 -> 0, (2,3] -> 8, (3,5] -> 14, >5 -> 20
func amountPoints(ratio float64) int {
	switch {
	case ratio <= 2:
		return 0
	case ratio <= 3:
		return 8
	case ratio <= 5:
		return 14
	default:
		return 20
	}
}

func amountFactor(tx *domain.Transaction, aov float64) (domain.RiskFactor, bool) {
	ratio := tx.Amount / aov
	points := amountPoints(ratio)
	if points == 0 {
		return domain.RiskFactor{}, false
	}
	return domain.RiskFactor{
		Signal:      domain.SignalAmount,
		Score:       points,
		Description: fmt.Sprintf("Transaction amount ($%.2f) exceeds average order value by %.1fx", tx.Amount, ratio),
	}, true
}

func newCustomerFactor(tx *domain.Transaction) (domain.RiskFactor, bool) {
	if !tx.IsFirstPurchase {
		return domain.RiskFactor{}, false
	}
	if tx.Amount > HighValueFirstPurchase {
		return domain.RiskFactor{
			Signal:      domain.SignalNewCustomer,
			Score:       MaxNewCustomerPoints,
			Description: fmt.Sprintf("First-time customer with high-value purchase ($%.2f > $%.0f)", tx.Amount, HighValueFirstPurchase),
		}, true
	}
	return domain.RiskFactor{
		Signal:      domain.SignalNewCustomer,
		Score:       5,
		Description: "First-time customer",
	}, true
}

// emailFactor never double counts: a disposable domain takes precedence over
// a suspicious local part.
func emailFactor(tx *domain.Transaction) (domain.RiskFactor, bool) {
	c := disposable.Classify(tx.Email)
	switch {
	case c.DomainDisposable:
		return domain.RiskFactor{
			Signal:      domain.SignalEmail,
			Score:       MaxEmailPoints,
			Description: "Email uses known disposable domain",
		}, true
	case c.PatternSuspicious:
		return domain.RiskFactor{
			Signal:      domain.SignalEmail,
			Score:       5,
			Description: fmt.Sprintf("Email local part appears randomly generated (entropy: %.2f)", c.Ratio),
		}, true
	}
	return domain.RiskFactor{}, false
}
