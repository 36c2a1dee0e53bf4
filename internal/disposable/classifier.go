// Package disposable classifies email addresses by their domain and by how
// machine-generated their local part looks.
package disposable

import (
	"strings"
	"unicode/utf8"
)

// A local part is suspicious when its distinct-character ratio exceeds
// PatternRatioThreshold and it is longer than PatternMinLength.
const (
	PatternRatioThreshold = 0.85
	PatternMinLength      = 12
)

// Result is the classification of one address.
type Result struct {
	Local  string
	Domain string

	// DomainDisposable is set when Domain is a known throwaway provider.
	DomainDisposable bool

	// Ratio is distinct characters over total characters of Local.
	Ratio float64

	// PatternSuspicious is set when Local looks randomly generated.
	PatternSuspicious bool
}

// Classify splits email at the first "@" and evaluates both signals.
// Without an "@" the whole string is the local part and the domain is empty.
func Classify(email string) Result {
	local, domain, _ := strings.Cut(email, "@")
	ratio := DistinctRatio(local)
	return Result{
		Local:             local,
		Domain:            domain,
		DomainDisposable:  IsDisposableDomain(domain),
		Ratio:             ratio,
		PatternSuspicious: ratio > PatternRatioThreshold && utf8.RuneCountInString(local) > PatternMinLength,
	}
}

// IsDisposableDomain matches domain case-insensitively against the known set.
func IsDisposableDomain(domain string) bool {
	if domain == "" {
		return false
	}
	_, ok := knownDomains[strings.ToLower(domain)]
	return ok
}

// IsDisposableEmail reports whether the domain part of email is disposable.
func IsDisposableEmail(email string) bool {
	_, domain, found := strings.Cut(email, "@")
	if !found {
		return false
	}
	return IsDisposableDomain(domain)
}

// DistinctRatio is the share of distinct runes in s; zero for an empty s.
func DistinctRatio(s string) float64 {
	if s == "" {
		return 0
	}
	seen := make(map[rune]struct{}, len(s))
	n := 0
	for _, r := range s {
		seen[r] = struct{}{}
		n++
	}
	return float64(len(seen)) / float64(n)
}
