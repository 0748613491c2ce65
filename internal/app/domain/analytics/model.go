package analytics

import "time"

// Stats is the live marketplace summary shown on the marketplace page.
type Stats struct {
	CreditsForSale  int     `json:"credits_for_sale"`
	CreditsRetired  int     `json:"credits_retired"`
	ProjectCount    int     `json:"project_count"`
	AveragePrice    float64 `json:"average_price"`
	TotalQuantityKg float64 `json:"total_quantity_kg"`
}

// DailySnapshot aggregates one day of trading activity.
type DailySnapshot struct {
	ID              string
	Date            time.Time
	CreditsTraded   int
	VolumeKg        float64
	ValueUSD        float64
	AvgPricePerKg   float64
	ActiveUsers     int
	NewPartnerships int
	Volatility      float64
	CreatedAt       time.Time
}
