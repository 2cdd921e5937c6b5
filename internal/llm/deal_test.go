package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/jonathan/deal-tracker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	response string
	err      error
	last     JSONRequest
}

func (s *stubClient) GenerateJSON(_ context.Context, req JSONRequest) (string, error) {
	s.last = req
	return s.response, s.err
}

func (s *stubClient) GetModel(ModelTier) string { return "stub-model" }

func (s *stubClient) Close() error { return nil }

func TestDealExtractor_Extract(t *testing.T) {
	client := &stubClient{response: `{
		"company": " Acme Defense ",
		"company_description": "Builds autonomous drones.",
		"transaction_type": "equity funding round",
		"capital_sources": ["Venture Capital", "Crypto", "venture capital"],
		"sectors": "Space; Autonomy & Drones",
		"deal_amount": "$40M",
		"investors": "Unknown",
		"location": null,
		"strategic_significance": "Expands ISR capacity.",
		"market_implications": "N/A"
	}`}
	e := NewDealExtractor(client, nil)

	fields, err := e.Extract(context.Background(), "article body", "Acme raises $40M", "https://news.test/acme")
	require.NoError(t, err)

	assert.Equal(t, "Acme Defense", *fields.Company)
	require.NotNil(t, fields.TransactionType)
	assert.Equal(t, types.TransactionEquityRound, *fields.TransactionType)
	assert.Equal(t, types.CapitalSources{types.CapitalVentureCapital}, fields.CapitalSources)
	assert.Equal(t, types.Sectors{types.SectorAutonomy, types.SectorSpace}, fields.Sectors)
	assert.Equal(t, "$40M", *fields.DealAmount)
	assert.Nil(t, fields.Investors)
	assert.Nil(t, fields.Location)
	assert.Nil(t, fields.MarketImplications)

	assert.Contains(t, client.last.Prompt, "Acme raises $40M")
	assert.Contains(t, client.last.Prompt, "article body")
	assert.NotEmpty(t, client.last.System)
	assert.Equal(t, TierStandard, client.last.Tier)
	require.NotNil(t, client.last.Schema)
	assert.Contains(t, client.last.Schema.Properties, "sectors")
	assert.Equal(t, "stub-model", e.ModelID())
}

func TestDealExtractor_UnknownTransactionTypeIsDropped(t *testing.T) {
	client := &stubClient{response: `{"company": "Acme", "transaction_type": "Crowdfunding"}`}

	fields, err := NewDealExtractor(client, nil).Extract(context.Background(), "t", "t", "u")
	require.NoError(t, err)
	assert.Nil(t, fields.TransactionType)
	assert.Empty(t, fields.Sectors)
}

func TestDealExtractor_Errors(t *testing.T) {
	tests := []struct {
		name   string
		client *stubClient
	}{
		{name: "client error", client: &stubClient{err: errors.New("quota exceeded")}},
		{name: "schema violation", client: &stubClient{response: `{"transaction_type": "IPO"}`}},
		{name: "not json", client: &stubClient{response: `sorry, I cannot help`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDealExtractor(tt.client, nil).Extract(context.Background(), "t", "t", "u")
			assert.Error(t, err)
		})
	}
}

func TestDealResponseSchema_UsesVocabularies(t *testing.T) {
	s := dealResponseSchema()
	assert.Len(t, s.Properties["transaction_type"].Enum, len(types.TransactionTypes()))
	assert.Len(t, s.Properties["sectors"].Items.Enum, len(types.SectorVocabulary()))
	assert.ElementsMatch(t, []string{"company", "transaction_type"}, s.Required)
}
