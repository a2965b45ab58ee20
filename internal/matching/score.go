// Package matching computes a 0-100 compatibility score between a buyer
// profile and a listing. It performs no I/O; callers filter inputs and
// order results.
package matching

import "strings"

// Sub-score caps. The total is bounded to 100 by construction.
const (
	budgetMax    = 40
	industryMax  = 40
	geographyMax = 20
)

type Buyer struct {
	Industries []string
	Regions    []string
	BudgetMin  int64
	BudgetMax  int64
}

type Listing struct {
	BusinessType string
	Geography    string
	AskingPrice  int64
}

type Result struct {
	Score   int
	Reasons []string
}

// Score evaluates buyer/listing compatibility. Reasons collect the label of
// every sub-score above zero, in budget, industry, geography order.
func Score(buyer Buyer, listing Listing) Result {
	result := Result{Reasons: []string{}}

	if points, reason := budgetScore(buyer.BudgetMin, buyer.BudgetMax, listing.AskingPrice); points > 0 {
		result.Score += points
		result.Reasons = append(result.Reasons, reason)
	}
	if anyMatch(buyer.Industries, listing.BusinessType) {
		result.Score += industryMax
		result.Reasons = append(result.Reasons, "Industry match")
	}
	if anyMatch(buyer.Regions, listing.Geography) {
		result.Score += geographyMax
		result.Reasons = append(result.Reasons, "Geography match")
	}
	return result
}

// budgetScore walks the bands in priority order; the first match wins and
// bands never sum. Bands are derived from the original min/max, boundaries
// inclusive.
func budgetScore(min, max, price int64) (int, string) {
	if max <= 0 || price <= 0 || min < 0 {
		return 0, ""
	}
	if min <= price && price <= max {
		return budgetMax, "Perfect budget match"
	}
	if scale(min, 0.8) <= price && price <= scale(max, 1.2) {
		return 30, "Asking price within 20% of budget"
	}
	if scale(min, 0.5) <= price && price <= scale(max, 1.5) {
		return 20, "Asking price within 50% of budget"
	}
	if price <= scale(max, 2.0) {
		return 10, "Asking price within 100% of budget"
	}
	return 0, ""
}

func scale(amount int64, factor float64) int64 {
	return int64(float64(amount) * factor)
}

// anyMatch reports a case-insensitive substring hit in either direction
// between any candidate and the target. Binary: no partial credit.
func anyMatch(candidates []string, target string) bool {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return false
	}
	for _, candidate := range candidates {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == "" {
			continue
		}
		if strings.Contains(target, candidate) || strings.Contains(candidate, target) {
			return true
		}
	}
	return false
}
