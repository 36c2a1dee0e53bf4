package analysis

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// heavyOffenderCount is the chargeback count at which an identity is called
// out in the summary.
const heavyOffenderCount = 3

var reasonDescriptions = map[domain.ReasonCode]string{
	domain.ReasonFraud:          "suggesting stolen card usage",
	domain.ReasonNotReceived:    "indicating delivery issues",
	domain.ReasonNotAsDescribed: "suggesting product quality concerns",
	domain.ReasonDuplicate:      "indicating billing system issues",
	domain.ReasonOther:          "requiring further investigation",
}

// Summarize renders the headline findings of a computed result. An empty
// result has an empty summary.
func Summarize(r *domain.AnalysisResult) []string {
	summary := make([]string, 0, 5)
	if r.TotalChargebacks == 0 {
		return summary
	}

	if len(r.ByCountry) > 0 {
		top := r.ByCountry[0]
		summary = append(summary, fmt.Sprintf(
			"%s accounts for %.1f%% of all chargebacks, significantly above its transaction share",
			top.Country, top.Percentage))
	}

	if len(r.ByCategory) > 0 {
		top := r.ByCategory[0]
		summary = append(summary, fmt.Sprintf(
			"%s have the highest chargeback rate at %.1f%% of all disputes",
			capitalize(string(top.Category)), top.Percentage))
	}

	if len(r.ByReasonCode) > 0 {
		top := r.ByReasonCode[0]
		line := fmt.Sprintf("%s is the leading reason code at %.1f%%", top.ReasonCode, top.Percentage)
		if desc, ok := reasonDescriptions[top.ReasonCode]; ok {
			line += ", " + desc
		}
		summary = append(summary, line)
	}

	dist := r.TimeToChargeback.Distribution
	within60 := percentage(dist.Days0To30+dist.Days31To60, r.TotalChargebacks)
	summary = append(summary, fmt.Sprintf(
		"Average time to chargeback is %.1f days, with %.1f%% filed within 60 days",
		r.TimeToChargeback.AverageDays, within60))

	emails := countAtLeast(r.RepeatOffenders.ByEmail, heavyOffenderCount)
	bins := countAtLeast(r.RepeatOffenders.ByCardBIN, heavyOffenderCount)
	if emails > 0 || bins > 0 {
		summary = append(summary, fmt.Sprintf(
			"%d email addresses and %d card BINs are repeat offenders with %d+ chargebacks each",
			emails, bins, heavyOffenderCount))
	}

	return summary
}

func countAtLeast(offenders []domain.RepeatOffender, n int) int {
	c := 0
	for _, o := range offenders {
		if o.ChargebackCount >= n {
			c++
		}
	}
	return c
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
