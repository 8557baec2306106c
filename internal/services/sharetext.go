package services

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/platewise/receipt-scan/internal/models"
)

// ShareText renders the social-sharing summary for a scan. At most the
// first three item names are listed, in extraction order.
func ShareText(items []models.EnrichedItem, totals models.WeeklyTotals, grade string) string {
	names := make([]string, 0, 3)
	for _, item := range items {
		if len(names) == 3 {
			break
		}
		names = append(names, item.Name)
	}

	var b strings.Builder
	b.WriteString("🧾 Just scanned my weekly shop!\n\n")
	if len(names) > 0 {
		fmt.Fprintf(&b, "🛒 Haul highlights: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, "💪 %dg protein banked for the week\n", totals.Protein)
	fmt.Fprintf(&b, "🔥 %s calories in the cart\n", humanize.Comma(int64(totals.Calories)))
	fmt.Fprintf(&b, "🏆 Shop grade: %s\n\n", grade)
	b.WriteString("#MealPrep #EatWellTrainHard #PlateWise")
	return b.String()
}
