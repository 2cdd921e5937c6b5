package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestAcceptRequest_Validation(t *testing.T) {
	tt := TransactionAcquisition
	bad := TransactionType("Hostile Takeover")

	tests := []struct {
		name    string
		request AcceptRequest
		wantErr bool
	}{
		{name: "empty request uses defaults", request: AcceptRequest{}},
		{
			name: "valid overrides",
			request: AcceptRequest{
				Company:         strPtr("Acme"),
				TransactionType: &tt,
				Sectors:         &Sectors{SectorSpace},
				CapitalSources:  &CapitalSources{CapitalGovernment},
			},
		},
		{name: "unknown transaction type", request: AcceptRequest{TransactionType: &bad}, wantErr: true},
		{name: "unknown sector", request: AcceptRequest{Sectors: &Sectors{"Crypto"}}, wantErr: true},
		{name: "unknown capital source", request: AcceptRequest{CapitalSources: &CapitalSources{"Friends"}}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.request.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAcceptRequest_DecodeFromJSON(t *testing.T) {
	body := `{"company":"Acme","transaction_type":"Equity Funding Round","sectors":"Space, AI/ML"}`

	var req AcceptRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	require.NoError(t, req.Validate())

	assert.Equal(t, "Acme", *req.Company)
	assert.Equal(t, TransactionEquityRound, *req.TransactionType)
	assert.Equal(t, Sectors{SectorSpace, SectorAIML}, *req.Sectors)
	assert.Nil(t, req.Investors)
}

func TestSubmitRequest_Validation(t *testing.T) {
	assert.NoError(t, (&SubmitRequest{URL: "https://example.com/a"}).Validate())
	assert.Error(t, (&SubmitRequest{URL: "not a url"}).Validate())
	assert.Error(t, (&SubmitRequest{}).Validate())
}

func TestRejectRequest_Validation(t *testing.T) {
	assert.NoError(t, (&RejectRequest{}).Validate())
	assert.NoError(t, (&RejectRequest{Reason: strPtr("off topic")}).Validate())
}
