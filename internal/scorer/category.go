package scorer

import (
	"math"

	"github.com/miradorstack/mirador-risk/internal/models"
)

// RiskScore rescales a probability to 0-100, rounded to one decimal.
func RiskScore(probability float64) float64 {
	return math.Round(probability*1000) / 10
}

// Categorize buckets a risk score. Upper bounds are inclusive: (-1,20] Low, (20,50] Medium,
// (50,80] High, (80,100] Critical.
func Categorize(score float64) models.RiskCategory {
	switch {
	case score <= 20:
		return models.RiskLow
	case score <= 50:
		return models.RiskMedium
	case score <= 80:
		return models.RiskHigh
	default:
		return models.RiskCritical
	}
}
