// internal/risk/risk.go
package risk

import (
	"time"

	apperrors "rpas-compliance/internal/common/errors"
)

// Risk levels derived from the score banding. The breakpoints 4, 9 and 16 are
// regulatory-adjacent thresholds referenced by UI coloring and stats
// aggregation and must not move.
const (
	LevelLow      = "Low"
	LevelMedium   = "Medium"
	LevelHigh     = "High"
	LevelCritical = "Critical"
)

// Expiry windows for permit reminders.
const (
	ExpiryExpired  = "expired"
	ExpiryCritical = "critical"
	ExpiryWarning  = "warning"
	ExpiryOK       = "ok"
)

// Score computes likelihood*severity. Both inputs must be in 1..5.
func Score(likelihood, severity int) (int, error) {
	if likelihood < 1 || likelihood > 5 {
		return 0, apperrors.NewRiskDomainError("likelihood", likelihood)
	}
	if severity < 1 || severity > 5 {
		return 0, apperrors.NewRiskDomainError("severity", severity)
	}
	return likelihood * severity, nil
}

// Level bands a risk score: ≤4 Low, ≤9 Medium, ≤16 High, else Critical.
func Level(score int) string {
	switch {
	case score <= 4:
		return LevelLow
	case score <= 9:
		return LevelMedium
	case score <= 16:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// ExpiryWindow classifies a permit expiry date relative to now:
// expired, critical within 7 days, warning within 30 days, otherwise ok.
func ExpiryWindow(expiresAt, now time.Time) string {
	if !expiresAt.After(now) {
		return ExpiryExpired
	}
	remaining := expiresAt.Sub(now)
	switch {
	case remaining <= 7*24*time.Hour:
		return ExpiryCritical
	case remaining <= 30*24*time.Hour:
		return ExpiryWarning
	default:
		return ExpiryOK
	}
}
