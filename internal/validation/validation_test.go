package validation

import (
	"errors"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() domain.TransactionRequest {
	return domain.TransactionRequest{
		TransactionID:   "txn_1",
		Email:           "a@example.com",
		CardBIN:         "411111",
		CardLastFour:    "4242",
		Amount:          10,
		BillingCountry:  "US",
		ShippingCountry: "US",
		IPCountry:       "US",
		ProductCategory: domain.CategoryApparel,
	}
}

func TestStructValid(t *testing.T) {
	req := validRequest()
	assert.NoError(t, Struct(&req))
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	req := validRequest()
	req.Amount = 0
	req.BillingCountry = "USA"
	req.ProductCategory = "groceries"

	err := Struct(&req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "amount")
	assert.Contains(t, ve.Fields, "billing_country")
	assert.Contains(t, ve.Fields, "product_category")
	assert.Equal(t, "billing_country must be exactly 2 characters long", ve.Fields["billing_country"])
}

func TestStructNestedConditions(t *testing.T) {
	req := domain.RuleRequest{
		Name:       "bad operator",
		Conditions: []domain.Condition{{Field: "amount", Operator: "between", Value: 1.0}},
		Action:     domain.ActionReject,
		Modifier:   60,
	}

	err := Struct(&req)

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "conditions[0].operator")
	assert.Contains(t, ve.Fields, "risk_score_modifier")
}

func TestStructEmptyConditions(t *testing.T) {
	req := domain.RuleRequest{Name: "empty", Action: domain.ActionApprove, Conditions: []domain.Condition{}}

	var ve *domain.ValidationError
	require.ErrorAs(t, Struct(&req), &ve)
	assert.Contains(t, ve.Fields, "conditions")
}
