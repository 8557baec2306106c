package services

import (
	"math"
	"strings"

	"github.com/platewise/receipt-scan/internal/models"
)

// defaultProfile is the per-100g estimate used for items the knowledge
// table does not recognize. Estimation never fails; an unknown item just
// gets a generic guess.
var defaultProfile = models.NutritionProfile{Protein: 5, Carbs: 15, Fat: 5, Calories: 120}

// multiplier bounds guard against extraction misreads (a "2kg" read as
// 2000 would otherwise scale a profile two-thousand-fold).
const (
	minMultiplier = 0.1
	maxMultiplier = 200
)

// Estimator converts extracted (name, quantity, unit) triples into
// nutrition estimates using the knowledge table.
type Estimator struct {
	kb *KnowledgeBase
}

// NewEstimator creates an estimator backed by the given knowledge table.
func NewEstimator(kb *KnowledgeBase) *Estimator {
	return &Estimator{kb: kb}
}

// Estimate returns the nutrition profile for a purchased quantity of the
// named item. It is a pure function of its inputs and never fails:
// unmatched names fall back to a generic per-100g profile and an
// unparseable quantity is treated as 1.
func (e *Estimator) Estimate(name string, quantity float64, unit string) models.NutritionProfile {
	if quantity <= 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		quantity = 1
	}

	base := defaultProfile
	basis := BasisPer100g
	if entry, ok := e.kb.Lookup(name); ok {
		base = entry.Profile
		basis = entry.Basis
	}

	var multiplier float64
	switch basis {
	case BasisPer100g, BasisPer100ml:
		multiplier = toBaseUnits(quantity, unit) / 100
	case BasisPerUnit:
		multiplier = quantity
	case BasisPerServe:
		multiplier = math.Max(1, quantity)
	}

	multiplier = clamp(multiplier, minMultiplier, maxMultiplier)

	return models.NutritionProfile{
		Protein:  scale(base.Protein, multiplier),
		Carbs:    scale(base.Carbs, multiplier),
		Fat:      scale(base.Fat, multiplier),
		Calories: scale(base.Calories, multiplier),
	}
}

// toBaseUnits converts a quantity to grams or millilitres using unit-string
// containment: "kg" scales by 1000, a litre unit ("l" without "ml") scales
// by 1000, anything else is taken as already in g/mL.
func toBaseUnits(quantity float64, unit string) float64 {
	u := strings.ToLower(unit)
	switch {
	case strings.Contains(u, "kg"):
		return quantity * 1000
	case strings.Contains(u, "l") && !strings.Contains(u, "ml"):
		return quantity * 1000
	default:
		return quantity
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func scale(base int, multiplier float64) int {
	return int(math.Round(float64(base) * multiplier))
}
