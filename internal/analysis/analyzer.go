// Package analysis aggregates historical chargebacks into breakdowns and a
// short plain-language summary.
package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

// Options tunes Analyze.
type Options struct {
	// RepeatOffenderThreshold is the minimum chargeback count for an email or
	// card BIN to be reported. Values below 2 are raised to 2.
	RepeatOffenderThreshold int
}

// Analyze computes every breakdown over the records whose chargeback date
// falls inside r. It never fails; no records yields a zero-filled result.
func Analyze(records []*domain.ChargebackRecord, r domain.DateRange, opts Options) *domain.AnalysisResult {
	threshold := opts.RepeatOffenderThreshold
	if threshold < domain.DefaultRepeatOffenderThreshold {
		threshold = domain.DefaultRepeatOffenderThreshold
	}

	selected := make([]*domain.ChargebackRecord, 0, len(records))
	for _, rec := range records {
		if r.Contains(rec.ChargebackDate) {
			selected = append(selected, rec)
		}
	}

	result := &domain.AnalysisResult{
		TotalChargebacks: len(selected),
		AnalysisPeriod:   period(selected, r),
		ByCountry:        byCountry(selected),
		ByCategory:       byCategory(selected),
		ByReasonCode:     byReasonCode(selected),
		TimeToChargeback: timeToChargeback(selected),
		RepeatOffenders: domain.RepeatOffenderReport{
			ByEmail:   repeatOffenders(selected, func(c *domain.ChargebackRecord) string { return c.Email }, threshold),
			ByCardBIN: repeatOffenders(selected, func(c *domain.ChargebackRecord) string { return c.CardBIN }, threshold),
		},
	}
	result.Summary = Summarize(result)
	return result
}

func period(records []*domain.ChargebackRecord, r domain.DateRange) domain.AnalysisPeriod {
	var p domain.AnalysisPeriod
	var first, last time.Time
	for i, rec := range records {
		if i == 0 || rec.ChargebackDate.Before(first) {
			first = rec.ChargebackDate
		}
		if i == 0 || rec.ChargebackDate.After(last) {
			last = rec.ChargebackDate
		}
	}

	switch {
	case r.Start != nil:
		p.Start = r.Start.Format(domain.DateLayout)
	case len(records) > 0:
		p.Start = first.Format(domain.DateLayout)
	}
	switch {
	case r.End != nil:
		p.End = r.End.Format(domain.DateLayout)
	case len(records) > 0:
		p.End = last.Format(domain.DateLayout)
	}
	return p
}

// group is one key's running totals. Groups are returned in order of first
// appearance so that a stable sort keeps ties in input order.
type group struct {
	key    string
	count  int
	amount decimal.Decimal
}

func groupBy(records []*domain.ChargebackRecord, key func(*domain.ChargebackRecord) string) []*group {
	index := make(map[string]*group)
	var groups []*group
	for _, rec := range records {
		k := key(rec)
		g, ok := index[k]
		if !ok {
			g = &group{key: k}
			index[k] = g
			groups = append(groups, g)
		}
		g.count++
		g.amount = g.amount.Add(rec.Amount)
	}
	return groups
}

func sortByCount(groups []*group) {
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].count > groups[j].count
	})
}

func byCountry(records []*domain.ChargebackRecord) []domain.CountryBreakdown {
	groups := groupBy(records, func(c *domain.ChargebackRecord) string { return c.Country })
	sortByCount(groups)

	shares := percentages(groups, len(records))
	out := make([]domain.CountryBreakdown, 0, len(groups))
	for i, g := range groups {
		out = append(out, domain.CountryBreakdown{
			Country:         g.key,
			ChargebackCount: g.count,
			Percentage:      shares[i],
			TotalAmount:     money(g.amount),
		})
	}
	return out
}

func byCategory(records []*domain.ChargebackRecord) []domain.CategoryBreakdown {
	groups := groupBy(records, func(c *domain.ChargebackRecord) string { return string(c.ProductCategory) })
	sortByCount(groups)

	shares := percentages(groups, len(records))
	out := make([]domain.CategoryBreakdown, 0, len(groups))
	for i, g := range groups {
		out = append(out, domain.CategoryBreakdown{
			Category:        domain.ProductCategory(g.key),
			ChargebackCount: g.count,
			Percentage:      shares[i],
			TotalAmount:     money(g.amount),
		})
	}
	return out
}

func byReasonCode(records []*domain.ChargebackRecord) []domain.ReasonBreakdown {
	groups := groupBy(records, func(c *domain.ChargebackRecord) string { return string(c.ReasonCode) })
	sortByCount(groups)

	shares := percentages(groups, len(records))
	out := make([]domain.ReasonBreakdown, 0, len(groups))
	for i, g := range groups {
		out = append(out, domain.ReasonBreakdown{
			ReasonCode: domain.ReasonCode(g.key),
			Count:      g.count,
			Percentage: shares[i],
		})
	}
	return out
}

// Bucket upper bounds in days, inclusive.
const (
	bucket30 = 30
	bucket60 = 60
	bucket90 = 90
)

func timeToChargeback(records []*domain.ChargebackRecord) domain.TimeToChargeback {
	var t domain.TimeToChargeback
	if len(records) == 0 {
		return t
	}

	days := make([]int, len(records))
	sum := 0
	for i, rec := range records {
		d := int(math.Round(rec.ChargebackDate.Sub(rec.TransactionDate).Hours() / 24))
		days[i] = d
		sum += d

		switch {
		case d <= bucket30:
			t.Distribution.Days0To30++
		case d <= bucket60:
			t.Distribution.Days31To60++
		case d <= bucket90:
			t.Distribution.Days61To90++
		default:
			t.Distribution.Over90Days++
		}
	}

	sort.Ints(days)
	n := len(days)
	if n%2 == 0 {
		t.MedianDays = floorDiv(days[n/2-1]+days[n/2], 2)
	} else {
		t.MedianDays = days[n/2]
	}
	t.AverageDays = round1(float64(sum) / float64(n))
	t.MinDays = days[0]
	t.MaxDays = days[n-1]
	return t
}

func repeatOffenders(records []*domain.ChargebackRecord, key func(*domain.ChargebackRecord) string, threshold int) []domain.RepeatOffender {
	groups := groupBy(records, key)
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].amount.GreaterThan(groups[j].amount)
	})

	out := make([]domain.RepeatOffender, 0)
	for _, g := range groups {
		if g.count < threshold {
			continue
		}
		out = append(out, domain.RepeatOffender{
			Identifier:      g.key,
			ChargebackCount: g.count,
			TotalAmount:     money(g.amount),
		})
	}
	return out
}

// percentages splits 100.0 across groups in tenths by largest remainder.
// Each share is within 0.1 of its exact value and the shares sum to 100.0.
// Equal remainders go to the earlier group.
func percentages(groups []*group, total int) []float64 {
	out := make([]float64, len(groups))
	if total == 0 {
		return out
	}

	const whole = 1000 // 100.0% in tenths
	tenths := make([]int, len(groups))
	order := make([]int, len(groups))
	left := whole
	for i, g := range groups {
		tenths[i] = g.count * whole / total
		left -= tenths[i]
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		ra := groups[order[a]].count * whole % total
		rb := groups[order[b]].count * whole % total
		return ra > rb
	})
	for k := 0; k < left; k++ {
		tenths[order[k]]++
	}

	for i, t := range tenths {
		out[i] = float64(t) / 10
	}
	return out
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(part) / float64(total) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
