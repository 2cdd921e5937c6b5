package types

// ExtractionFields is the structured deal information an extractor returns.
// A nil field means the article did not state it.
type ExtractionFields struct {
	Company               *string          `json:"company"`
	CompanyDescription    *string          `json:"company_description"`
	TransactionType       *TransactionType `json:"transaction_type"`
	CapitalSources        CapitalSources   `json:"capital_sources"`
	Sectors               Sectors          `json:"sectors"`
	DealAmount            *string          `json:"deal_amount"`
	Investors             *string          `json:"investors"`
	Location              *string          `json:"location"`
	StrategicSignificance *string          `json:"strategic_significance"`
	MarketImplications    *string          `json:"market_implications"`
}
