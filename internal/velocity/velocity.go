// Package velocity counts recent transactions that share an identity with
// the one being scored.
package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Window is the trailing period counted before a transaction's timestamp.
const Window = 24 * time.Hour

// Counts holds the per-dimension counts for one transaction.
type Counts struct {
	Email     int `json:"email"`
	CardBIN   int `json:"card_bin"`
	IPCountry int `json:"ip_country"`
}

// Max is the largest count across the three dimensions.
func (c Counts) Max() int {
	m := c.Email
	if c.CardBIN > m {
		m = c.CardBIN
	}
	if c.IPCountry > m {
		m = c.IPCountry
	}
	return m
}

// Points maps a velocity count to its sub-score.
//
//	0-1 -> 0, 2-3 -> 5, 4-6 -> 15, 7+ -> 25
func Points(count int) int {
	switch {
	case count >= 7:
		return 25
	case count >= 4:
		return 15
	case count >= 2:
		return 5
	default:
		return 0
	}
}

// Service calculates transaction velocity against the history store.
type Service struct {
	history domain.HistoryStore
}

// NewService creates a new velocity service.
func NewService(history domain.HistoryStore) *Service {
	return &Service{history: history}
}

// Count returns how many stored transactions share email, card BIN or IP
// country with tx inside (tx.Timestamp-Window, tx.Timestamp].
func (s *Service) Count(ctx context.Context, tx *domain.Transaction) (Counts, error) {
	until := tx.Timestamp
	since := until.Add(-Window)

	var c Counts
	var err error

	if c.Email, err = s.history.CountMatching(ctx, domain.HistoryEmail, tx.Email, since, until); err != nil {
		return Counts{}, wrap(err, "email")
	}
	if c.CardBIN, err = s.history.CountMatching(ctx, domain.HistoryCardBIN, tx.CardBIN, since, until); err != nil {
		return Counts{}, wrap(err, "card_bin")
	}
	if c.IPCountry, err = s.history.CountMatching(ctx, domain.HistoryIPCountry, tx.IPCountry, since, until); err != nil {
		return Counts{}, wrap(err, "ip_country")
	}

	return c, nil
}

// Max is Count(...).Max(), the value exposed to rules as velocity_24h.
func (s *Service) Max(ctx context.Context, tx *domain.Transaction) (int, error) {
	c, err := s.Count(ctx, tx)
	if err != nil {
		return 0, err
	}
	return c.Max(), nil
}

func wrap(err error, field string) error {
	return fmt.Errorf("%w: count by %s: %v", domain.ErrHistoryUnavailable, field, err)
}
