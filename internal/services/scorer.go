package services

import "github.com/platewise/receipt-scan/internal/models"

// Aggregate sums nutrition field-wise across all enriched items. An empty
// list yields all-zero totals.
func Aggregate(items []models.EnrichedItem) models.WeeklyTotals {
	var totals models.WeeklyTotals
	for _, item := range items {
		totals.Protein += item.Nutrition.Protein
		totals.Carbs += item.Nutrition.Carbs
		totals.Fat += item.Nutrition.Fat
		totals.Calories += item.Nutrition.Calories
	}
	return totals
}

// Grade scores a week of purchased nutrition and maps it to a letter.
//
// The point weights and thresholds encode product intent (roughly: 700g+
// of weekly protein with a moderate fat ratio is an excellent shop) and
// are deliberate, including the flat +15 band for 4000-6999 kcal. Do not
// smooth them.
func Grade(totals models.WeeklyTotals) string {
	score := gradeScore(totals)

	switch {
	case score >= 85:
		return "A+"
	case score >= 70:
		return "A"
	case score >= 55:
		return "B+"
	case score >= 40:
		return "B"
	case score >= 25:
		return "C"
	default:
		return "D"
	}
}

func gradeScore(totals models.WeeklyTotals) int {
	score := 0

	switch {
	case totals.Protein >= 700:
		score += 40
	case totals.Protein >= 400:
		score += 25
	case totals.Protein >= 200:
		score += 10
	}

	switch {
	case totals.Calories >= 7000 && totals.Calories <= 20000:
		score += 30
	case totals.Calories >= 4000:
		score += 15
	}

	denom := totals.Calories
	if denom < 1 {
		denom = 1
	}
	fatFraction := float64(totals.Fat*9) / float64(denom)
	switch {
	case fatFraction < 0.35:
		score += 30
	case fatFraction < 0.45:
		score += 15
	}

	return score
}
