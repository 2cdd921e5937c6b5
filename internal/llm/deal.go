package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/jonathan/deal-tracker/internal/prompts"
	"github.com/jonathan/deal-tracker/internal/schemas"
	"github.com/jonathan/deal-tracker/internal/types"
	"go.uber.org/zap"
)

// unknownValues are placeholder answers treated as "not stated".
var unknownValues = map[string]bool{
	"":              true,
	"unknown":       true,
	"n/a":           true,
	"na":            true,
	"none":          true,
	"null":          true,
	"not specified": true,
	"not stated":    true,
	"not mentioned": true,
}

// DealExtractor turns article text into structured deal fields.
type DealExtractor struct {
	client Client
	tier   ModelTier
	logger *zap.Logger
}

// NewDealExtractor creates an extractor backed by client.
func NewDealExtractor(client Client, logger *zap.Logger) *DealExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DealExtractor{client: client, tier: TierStandard, logger: logger}
}

// ModelID identifies the model that produces extractions.
func (e *DealExtractor) ModelID() string {
	return e.client.GetModel(e.tier)
}

// rawDeal is the response shape before normalisation.
type rawDeal struct {
	Company               *string              `json:"company"`
	CompanyDescription    *string              `json:"company_description"`
	TransactionType       *string              `json:"transaction_type"`
	CapitalSources        types.CapitalSources `json:"capital_sources"`
	Sectors               types.Sectors        `json:"sectors"`
	DealAmount            *string              `json:"deal_amount"`
	Investors             *string              `json:"investors"`
	Location              *string              `json:"location"`
	StrategicSignificance *string              `json:"strategic_significance"`
	MarketImplications    *string              `json:"market_implications"`
}

// Extract asks the model for deal fields. The caller is responsible for
// truncating text.
func (e *DealExtractor) Extract(ctx context.Context, text, title, url string) (*types.ExtractionFields, error) {
	set, err := prompts.Extraction()
	if err != nil {
		return nil, err
	}
	prompt, err := set.Render(prompts.KeyExtractDeal, map[string]string{
		"Title":            title,
		"URL":              url,
		"Text":             text,
		"TransactionTypes": joinLabels(types.TransactionTypes()),
		"CapitalSources":   joinLabels(types.CapitalSourceVocabulary()),
		"Sectors":          joinLabels(types.SectorVocabulary()),
	})
	if err != nil {
		return nil, err
	}
	system, err := set.Get(prompts.KeySystem)
	if err != nil {
		return nil, err
	}

	out, err := e.client.GenerateJSON(ctx, JSONRequest{
		System: system,
		Prompt: prompt,
		Tier:   e.tier,
		Schema: dealResponseSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract deal: %w", err)
	}

	return e.parse(out, url)
}

func (e *DealExtractor) parse(out, url string) (*types.ExtractionFields, error) {
	if err := schemas.ValidateExtraction(out); err != nil {
		return nil, fmt.Errorf("extraction output failed schema validation: %w", err)
	}

	var raw rawDeal
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse extraction output: %w", err)
	}

	fields := &types.ExtractionFields{
		Company:               clean(raw.Company),
		CompanyDescription:    clean(raw.CompanyDescription),
		DealAmount:            clean(raw.DealAmount),
		Investors:             clean(raw.Investors),
		Location:              clean(raw.Location),
		StrategicSignificance: clean(raw.StrategicSignificance),
		MarketImplications:    clean(raw.MarketImplications),
	}

	if label := clean(raw.TransactionType); label != nil {
		if t, ok := types.ParseTransactionType(*label); ok {
			fields.TransactionType = &t
		} else {
			e.logger.Warn("dropping unknown transaction type", zap.String("url", url), zap.String("label", *label))
		}
	}

	var dropped []string
	fields.CapitalSources, dropped = raw.CapitalSources.Normalize()
	if len(dropped) > 0 {
		e.logger.Warn("dropping unknown capital sources", zap.String("url", url), zap.Strings("labels", dropped))
	}
	fields.Sectors, dropped = raw.Sectors.Normalize()
	if len(dropped) > 0 {
		e.logger.Warn("dropping unknown sectors", zap.String("url", url), zap.Strings("labels", dropped))
	}

	return fields, nil
}

// clean trims s and maps placeholder answers to nil.
func clean(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if unknownValues[strings.ToLower(v)] {
		return nil
	}
	return &v
}

func joinLabels[T ~string](vals []T) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

func enumOf[T ~string](vals []T) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}

// dealResponseSchema mirrors the embedded JSON schema in Gemini's schema
// dialect, with category enums taken from the vocabularies.
func dealResponseSchema() *genai.Schema {
	text := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc, Nullable: true}
	}
	enumList := func(vals []string) *genai.Schema {
		return &genai.Schema{
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString, Format: "enum", Enum: vals},
		}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"company":             text("Company being invested in or acquired"),
			"company_description": text("One sentence on what the company does"),
			"transaction_type": {
				Type:     genai.TypeString,
				Format:   "enum",
				Enum:     enumOf(types.TransactionTypes()),
				Nullable: true,
			},
			"capital_sources":        enumList(enumOf(types.CapitalSourceVocabulary())),
			"sectors":                enumList(enumOf(types.SectorVocabulary())),
			"deal_amount":            text("Dollar value if stated"),
			"investors":              text("Key investors or acquirers"),
			"location":               text("Company headquarters"),
			"strategic_significance": text("Why the deal matters for defense"),
			"market_implications":    text("What it signals about defense tech trends"),
		},
		Required: []string{"company", "transaction_type"},
	}
}
