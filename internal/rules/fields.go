package rules

import (
	"context"
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Transaction attributes a condition may reference.
const (
	FieldTransactionID   = "transaction_id"
	FieldEmail           = "email"
	FieldCardBIN         = "card_bin"
	FieldCardLastFour    = "card_last_four"
	FieldAmount          = "amount"
	FieldCurrency        = "currency"
	FieldBillingCountry  = "billing_country"
	FieldShippingCountry = "shipping_country"
	FieldIPCountry       = "ip_country"
	FieldProductCategory = "product_category"
	FieldCustomerID      = "customer_id"
	FieldIsFirstPurchase = "is_first_purchase"
)

// Virtual fields are derived at evaluation time.
const (
	FieldEmailDomainDisposable = "email_domain_disposable"
	FieldVelocity24h           = "velocity_24h"
)

var knownFields = map[string]struct{}{
	FieldTransactionID:         {},
	FieldEmail:                 {},
	FieldCardBIN:               {},
	FieldCardLastFour:          {},
	FieldAmount:                {},
	FieldCurrency:              {},
	FieldBillingCountry:        {},
	FieldShippingCountry:       {},
	FieldIPCountry:             {},
	FieldProductCategory:       {},
	FieldCustomerID:            {},
	FieldIsFirstPurchase:       {},
	FieldEmailDomainDisposable: {},
	FieldVelocity24h:           {},
}

// KnownField reports whether name can be resolved against a transaction.
func KnownField(name string) bool {
	_, ok := knownFields[name]
	return ok
}

// VirtualSource derives the virtual fields for a transaction.
type VirtualSource interface {
	Velocity24h(ctx context.Context, tx *domain.Transaction) (int, error)
	EmailDomainDisposable(tx *domain.Transaction) bool
}

// resolver looks up field values for one transaction. The velocity lookup
// hits history, so it runs at most once per resolver.
type resolver struct {
	ctx      context.Context
	tx       *domain.Transaction
	source   VirtualSource
	velocity *float64
}

func newResolver(ctx context.Context, tx *domain.Transaction, source VirtualSource) *resolver {
	return &resolver{ctx: ctx, tx: tx, source: source}
}

// resolve returns the value of name. Virtual fields take precedence over
// transaction attributes. Numbers are always float64.
func (r *resolver) resolve(name string) (any, error) {
	switch name {
	case FieldEmailDomainDisposable:
		return r.source.EmailDomainDisposable(r.tx), nil
	case FieldVelocity24h:
		if r.velocity == nil {
			count, err := r.source.Velocity24h(r.ctx, r.tx)
			if err != nil {
				return nil, err
			}
			v := float64(count)
			r.velocity = &v
		}
		return *r.velocity, nil
	}

	tx := r.tx
	switch name {
	case FieldTransactionID:
		return tx.ID, nil
	case FieldEmail:
		return tx.Email, nil
	case FieldCardBIN:
		return tx.CardBIN, nil
	case FieldCardLastFour:
		return tx.CardLastFour, nil
	case FieldAmount:
		return tx.Amount, nil
	case FieldCurrency:
		return tx.Currency, nil
	case FieldBillingCountry:
		return tx.BillingCountry, nil
	case FieldShippingCountry:
		return tx.ShippingCountry, nil
	case FieldIPCountry:
		return tx.IPCountry, nil
	case FieldProductCategory:
		return string(tx.ProductCategory), nil
	case FieldCustomerID:
		return tx.CustomerID, nil
	case FieldIsFirstPurchase:
		return tx.IsFirstPurchase, nil
	}

	return nil, fmt.Errorf("%w: unknown field %q", domain.ErrConfiguration, name)
}
