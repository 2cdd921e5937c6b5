package db

import (
	"time"

	"github.com/jonathan/deal-tracker/internal/types"
)

// ScrapeResult is the stored outcome of fetching an item's article.
type ScrapeResult struct {
	ItemID        int64     `json:"item_id"`
	Success       bool      `json:"success"`
	Text          *string   `json:"text,omitempty"`
	HTML          *string   `json:"-"`
	FailureKind   *string   `json:"failure_kind,omitempty"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	ScrapedAt     time.Time `json:"scraped_at"`
}

// Extraction is the stored structured deal record produced by the extractor.
// Analytic fields are nil when extraction did not complete.
type Extraction struct {
	ItemID                int64                  `json:"item_id"`
	Company               *string                `json:"company"`
	CompanyDescription    *string                `json:"company_description"`
	TransactionType       *types.TransactionType `json:"transaction_type"`
	CapitalSources        types.CapitalSources   `json:"capital_sources"`
	Sectors               types.Sectors          `json:"sectors"`
	DealAmount            *string                `json:"deal_amount"`
	Investors             *string                `json:"investors"`
	Location              *string                `json:"location"`
	StrategicSignificance *string                `json:"strategic_significance"`
	MarketImplications    *string                `json:"market_implications"`
	Complete              bool                   `json:"complete"`
	ModelID               string                 `json:"model_id"`
	Error                 *string                `json:"error,omitempty"`
	ExtractedAt           time.Time              `json:"extracted_at"`
}
