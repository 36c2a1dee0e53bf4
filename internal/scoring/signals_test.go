package scoring

import (
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestGeolocationFactor(t *testing.T) {
	tests := []struct {
		name                    string
		billing, shipping, ipCC string
		want                    int
	}{
		{"all equal", "US", "US", "US", 0},
		{"ip differs", "US", "US", "CA", 20},
		{"shipping differs", "US", "MX", "US", 20},
		{"all differ capped", "BR", "CO", "MX", 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := geolocationFactor(&domain.Transaction{
				BillingCountry:  tt.billing,
				ShippingCountry: tt.shipping,
				IPCountry:       tt.ipCC,
			})
			assert.Equal(t, tt.want != 0, ok)
			assert.Equal(t, tt.want, f.Score)
		})
	}
}

func TestAmountPoints(t *testing.T) {
	tests := []struct {
		ratio float64
		want  int
	}{
		{0.5, 0}, {2, 0}, {2.01, 8}, {3, 8}, {3.5, 14}, {5, 14}, {5.01, 20}, {40, 20},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, amountPoints(tt.ratio), "ratio %.2f", tt.ratio)
	}
}

func TestCategoryFactor(t *testing.T) {
	for category, want := range map[domain.ProductCategory]int{
		domain.CategoryElectronics: 15,
		domain.CategoryHomeGoods:   5,
		domain.CategoryApparel:     0,
	} {
		f, _ := categoryFactor(&domain.Transaction{ProductCategory: category})
		assert.Equal(t, want, f.Score, string(category))
	}
}

func TestNewCustomerFactor(t *testing.T) {
	f, ok := newCustomerFactor(&domain.Transaction{IsFirstPurchase: true, Amount: 200})
	assert.True(t, ok)
	assert.Equal(t, 5, f.Score)
	assert.Equal(t, "First-time customer", f.Description)

	f, ok = newCustomerFactor(&domain.Transaction{IsFirstPurchase: true, Amount: 200.01})
	assert.True(t, ok)
	assert.Equal(t, 10, f.Score)

	_, ok = newCustomerFactor(&domain.Transaction{IsFirstPurchase: false, Amount: 5000})
	assert.False(t, ok)
}

func TestEmailFactor(t *testing.T) {
	tests := []struct {
		email string
		want  int
	}{
		{"maria.silva@gmail.com", 0},
		{"buyer@MAILINATOR.com", 10},
		{"qwertyuiopasdf@gmail.com", 5},
		// Disposable and random-looking still scores once.
		{"qwertyuiopasdf@temp-mail.org", 10},
		{"no-at-sign", 0},
	}

	for _, tt := range tests {
		f, _ := emailFactor(&domain.Transaction{Email: tt.email})
		assert.Equal(t, tt.want, f.Score, tt.email)
	}
}

func TestVelocityFactor(t *testing.T) {
	_, ok := velocityFactor(1)
	assert.False(t, ok)

	f, ok := velocityFactor(7)
	assert.True(t, ok)
	assert.Equal(t, MaxVelocityPoints, f.Score)
	assert.Contains(t, f.Description, "7 transactions")
}
