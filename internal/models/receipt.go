package models

// Category classifies a receipt line item. The set matches what the vision
// extraction prompt allows, so values arriving from the model are already
// constrained to this enum.
type Category string

const (
	CategoryMeat       Category = "meat"
	CategoryDairy      Category = "dairy"
	CategoryGrains     Category = "grains"
	CategoryVegetables Category = "vegetables"
	CategoryFruit      Category = "fruit"
	CategoryPantry     Category = "pantry"
	CategoryBeverage   Category = "beverage"
	CategorySupplement Category = "supplement"
	CategoryOther      Category = "other"
)

// ReceiptItem is a single line item extracted from a receipt image.
// Instances are scoped to one scan request and never persisted.
type ReceiptItem struct {
	Name     string   `json:"name"`
	Quantity float64  `json:"quantity"`
	Unit     string   `json:"unit"`
	Price    float64  `json:"price"`
	Category Category `json:"category"`
}

// NutritionProfile holds macros in grams and energy in kilocalories.
// It serves both as a knowledge-base base value (per 100g/100mL/unit/serve)
// and as a computed per-item or aggregate value.
type NutritionProfile struct {
	Protein  int `json:"protein" yaml:"protein"`
	Carbs    int `json:"carbs" yaml:"carbs"`
	Fat      int `json:"fat" yaml:"fat"`
	Calories int `json:"calories" yaml:"calories"`
}

// EnrichedItem is a ReceiptItem with its estimated nutrition attached.
// Nutrition is always present: estimation falls back to a default profile
// for unmatched items instead of failing.
type EnrichedItem struct {
	ReceiptItem
	Nutrition NutritionProfile `json:"nutrition"`
}

// WeeklyTotals is the field-wise sum of nutrition across one scan.
type WeeklyTotals struct {
	Protein  int `json:"protein"`
	Carbs    int `json:"carbs"`
	Fat      int `json:"fat"`
	Calories int `json:"calories"`
}

// ScanResult is the payload returned for a successful receipt scan.
// It lives entirely within one request/response cycle.
type ScanResult struct {
	Items        []EnrichedItem              `json:"items"`
	ByCategory   map[Category][]EnrichedItem `json:"byCategory"`
	WeeklyTotals WeeklyTotals                `json:"weeklyTotals"`
	Grade        string                      `json:"grade"`
	ShareText    string                      `json:"shareText"`
	ItemCount    int                         `json:"itemCount"`
}
