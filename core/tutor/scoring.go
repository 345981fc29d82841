package tutor

import (
	"math"
	"sort"

	"github.com/trezcool/mwalimu/core"
)

// score weights
const (
	subjectWeight      = 0.4
	ratingWeight       = 0.3
	priceWeight        = 0.2
	availabilityWeight = 0.1

	noSlotsAvailability = 0.3
	maxMatches          = 5
)

// MatchScore computes how well a tutor fits a budget, rounded to 2 decimals.
// Subject match is always full since candidates are filtered on the subject.
func MatchScore(t Tutor, budget float64, hasSlots bool) float64 {
	ratingNorm := math.Min(t.Rating/5, 1)

	var priceFit float64
	if budget > 0 && t.HourlyRate <= budget {
		priceFit = 1 - (t.HourlyRate/budget)*0.5
	}

	availability := noSlotsAvailability
	if hasSlots {
		availability = 1
	}

	score := subjectWeight*1 + ratingWeight*ratingNorm + priceWeight*priceFit + availabilityWeight*availability
	return core.Round(score, 2)
}

// rankMatches sorts matches by descending score and keeps the best ones.
func rankMatches(matches []Match) []Match {
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].MatchScore > matches[j].MatchScore })
	if len(matches) > maxMatches {
		matches = matches[:maxMatches]
	}
	return matches
}
