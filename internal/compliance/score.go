package compliance

import (
	"math"

	"github.com/coverwatch/coverwatch/internal/models"
)

// Tier thresholds. Boundary values belong to the safer bracket: exactly 85 is
// Elite Safe, exactly 70 is Preferred.
const (
	tierEliteSafeMin = 85
	tierPreferredMin = 70
	tierWatchMin     = 55
	tierHighRiskMin  = 35
)

// Score aggregates partition sizes into the 0-100 global score and its tier.
// When no rules are configured the result is unscored rather than 100 or 0;
// ok reports whether a score exists.
func Score(passing, failing, missing int) (score int, tier models.RiskTier, ok bool) {
	total := passing + failing + missing
	if total <= 0 {
		return 0, "", false
	}
	score = int(math.Round(100 * float64(passing) / float64(total)))
	return score, TierForScore(score), true
}

// TierForScore maps a score onto the canonical risk tier. Tier is a pure
// function of score; no other input may override it.
func TierForScore(score int) models.RiskTier {
	switch {
	case score >= tierEliteSafeMin:
		return models.TierEliteSafe
	case score >= tierPreferredMin:
		return models.TierPreferred
	case score >= tierWatchMin:
		return models.TierWatch
	case score >= tierHighRiskMin:
		return models.TierHighRisk
	default:
		return models.TierSevere
	}
}
